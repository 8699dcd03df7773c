// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cli contains helpers shared by the diskforge commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// WithContext wraps function call to provide a context cancellable with ^C.
//
// The second signal is not intercepted, so it terminates the process.
func WithContext(ctx context.Context, f func(context.Context) error) error {
	return withSignals(ctx, os.Stderr, f)
}

func withSignals(ctx context.Context, stderr io.Writer, f func(context.Context) error) error {
	wrappedCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exited := make(chan struct{})
	defer close(exited)

	go func() {
		select {
		case <-wrappedCtx.Done():
		case <-exited:
			return
		}

		// restore the default behavior, so that the next ^C kills the process
		stop()

		select {
		case <-exited:
		default:
			if ctx.Err() == nil {
				fmt.Fprintln(stderr, "Signal received, aborting, press Ctrl+C once again to abort immediately...")
			}
		}
	}()

	return f(wrappedCtx)
}
