package cmd

import (
	"context"
	"os"
	"os/signal"
)

// signalContext cancels on Ctrl-C so a running wait stops polling. The EC2
// side of the operation carries on regardless.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}
