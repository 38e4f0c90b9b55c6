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

package devices

import (
	"github.com/binkynet/ServoTimer/pkg/metrics"
)

const (
	subSystem = "devices"
)

var (
	// Total number of register writes per timer & register
	registerWriteCounters = metrics.MustRegisterCounterVec(subSystem,
		"register_write_total",
		"Total number of register writes per timer & register",
		"timer", "register")
	// Total number of register reads per timer & register
	registerReadCounters = metrics.MustRegisterCounterVec(subSystem,
		"register_read_total",
		"Total number of register reads per timer & register",
		"timer", "register")
	// Total number of output start/stop calls per timer & channel
	outputCounters = metrics.MustRegisterCounterVec(subSystem,
		"output_total",
		"Total number of output start/stop calls per timer & channel",
		"timer", "channel", "op")
	// Total number of failed output start/stop calls per timer & channel
	outputErrorCounters = metrics.MustRegisterCounterVec(subSystem,
		"output_error_total",
		"Total number of failed output start/stop calls per timer & channel",
		"timer", "channel", "op")
	// Output state per timer & channel (1 = enabled)
	outputEnabledGauges = metrics.MustRegisterGaugeVec(subSystem,
		"output_enabled",
		"Output state per timer & channel (1 = enabled)",
		"timer", "channel")
)
