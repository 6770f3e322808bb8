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

package membership

import (
	"bytes"
	"fmt"
	"io"
	"regexp"

	"github.com/tochemey/grainplacement/log"
)

// logWriter bridges memberlist standard log output into log.Logger
type logWriter struct {
	logger log.Logger
	levels []levelPattern
}

type levelPattern struct {
	pattern *regexp.Regexp
	write   func(...any)
}

var _ io.Writer = (*logWriter)(nil)

// NewLogWriter returns an io.Writer that routes "[LEVEL] message" lines,
// as written by memberlist and olric, to logger.
func NewLogWriter(logger log.Logger) io.Writer {
	return newLogWriter(logger)
}

func newLogWriter(logger log.Logger) *logWriter {
	return &logWriter{
		logger: logger,
		levels: []levelPattern{
			{regexp.MustCompile(`\[DEBUG\] (.+)`), func(v ...any) { logger.Debugf("%s", fmt.Sprint(v...)) }},
			{regexp.MustCompile(`\[INFO\] (.+)`), logger.Info},
			{regexp.MustCompile(`\[WARN\] (.+)`), func(v ...any) { logger.Warnf("%s", fmt.Sprint(v...)) }},
			{regexp.MustCompile(`\[ERR(?:OR)?\] (.+)`), func(v ...any) { logger.Errorf("%s", fmt.Sprint(v...)) }},
		},
	}
}

// Write routes the message to the matching log level. Unmatched messages are logged at info.
func (l *logWriter) Write(message []byte) (int, error) {
	text := string(bytes.TrimSpace(message))
	for _, level := range l.levels {
		if matches := level.pattern.FindStringSubmatch(text); len(matches) > 1 {
			level.write(matches[1])
			return len(message), nil
		}
	}
	l.logger.Info(text)
	return len(message), nil
}
