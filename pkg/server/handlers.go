// Copyright 2024 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/binkynet/ServoTimer/pkg/service"
	"github.com/binkynet/ServoTimer/pkg/servo"
)

type pulseWidthRequest struct {
	PulseWidthUs *uint32 `json:"pulse_width_us"`
}

type dutyCycleRequest struct {
	DutyCycle *float64 `json:"duty_cycle"`
}

type frequencyRequest struct {
	FrequencyHz *uint32 `json:"frequency_hz"`
}

type errorResponse struct {
	Error  string          `json:"error"`
	Status *service.Status `json:"status,omitempty"`
}

// statusError is returned by handlers when an operation failed after
// the servo status was updated.
type statusError struct {
	error
	status service.Status
}

func (s *Server) handleGetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.api.Status())
}

func (s *Server) handleSetPulseWidth(c echo.Context) error {
	var req pulseWidthRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.PulseWidthUs == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "pulse_width_us is required")
	}
	return c.JSON(http.StatusOK, s.api.SetPulseWidth(*req.PulseWidthUs))
}

func (s *Server) handleSetDutyCycle(c echo.Context) error {
	var req dutyCycleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.DutyCycle == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "duty_cycle is required")
	}
	return c.JSON(http.StatusOK, s.api.SetDutyCycle(*req.DutyCycle))
}

func (s *Server) handleSetFrequency(c echo.Context) error {
	var req frequencyRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.FrequencyHz == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "frequency_hz is required")
	}
	status, err := s.api.SetFrequency(*req.FrequencyHz)
	return respond(c, status, err)
}

func (s *Server) handleStart(c echo.Context) error {
	status, err := s.api.Start()
	return respond(c, status, err)
}

func (s *Server) handleStop(c echo.Context) error {
	status, err := s.api.Stop()
	return respond(c, status, err)
}

func respond(c echo.Context, status service.Status, err error) error {
	if err != nil {
		return statusError{error: err, status: status}
	}
	return c.JSON(http.StatusOK, status)
}

// httpErrorHandler maps servo errors to HTTP status codes.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		s.sendError(c, he.Code, errors.New(msg), nil)
		return
	}
	var status *service.Status
	if se, ok := err.(statusError); ok {
		status = &se.status
		err = se.error
	}
	s.sendError(c, statusCodeOf(err), err, status)
}

func (s *Server) sendError(c echo.Context, code int, err error, status *service.Status) {
	if code >= http.StatusInternalServerError {
		s.log.Warn().Err(err).Int("code", code).Str("path", c.Path()).Msg("Request failed")
	}
	if c.Request().Method == http.MethodHead {
		c.NoContent(code)
		return
	}
	c.JSON(code, errorResponse{Error: err.Error(), Status: status})
}

// statusCodeOf returns the HTTP status code for the given error.
func statusCodeOf(err error) int {
	switch {
	case servo.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Cause(err) == servo.ErrNotInitialized:
		return http.StatusConflict
	case servo.IsDeviceError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
