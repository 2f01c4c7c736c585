// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coffee

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Sink receives the progress messages of an optimization.
// Emit is called synchronously from Optimize.
type Sink interface {
	Emit(at time.Time, msg string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(at time.Time, msg string)

// Emit calls f(at, msg).
func (f SinkFunc) Emit(at time.Time, msg string) { f(at, msg) }

// WriterSink returns a Sink that writes each message prefixed with its
// timestamp. Write errors are ignored.
func WriterSink(w io.Writer) Sink {
	return SinkFunc(func(at time.Time, msg string) {
		msg = strings.TrimRight(msg, "\n")
		_, _ = fmt.Fprintf(w, "%s %s\n", at.Format(time.RFC3339Nano), msg)
	})
}
