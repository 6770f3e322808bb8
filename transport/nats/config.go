// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package nats

import (
	"time"

	"github.com/tochemey/grainplacement/internal/validation"
	"github.com/tochemey/grainplacement/transport"
)

// Config represents the NATS transport configuration
type Config struct {
	// NatsServer defines the nats server in the format nats://host:port
	NatsServer string
	// SubjectPrefix prefixes every subject used by the transport
	SubjectPrefix string
	// ConnectRetries is the number of connection attempts made by Start
	ConnectRetries int
	// ReconnectWait is the maximum wait between connection attempts
	ReconnectWait time.Duration
	// Compression applies to every payload. All silos must agree on it.
	Compression transport.Compression
}

// Validate checks whether the given transport configuration is valid
func (x Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("NatsServer", x.NatsServer)).
		AddValidator(validation.NewEmptyStringValidator("SubjectPrefix", x.SubjectPrefix)).
		AddAssertion(x.ConnectRetries >= 0, "ConnectRetries must not be negative").
		AddAssertion(x.Compression >= transport.NoCompression && x.Compression <= transport.BrotliCompression, "Compression is not supported").
		Validate()
}
