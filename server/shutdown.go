package main

/******************************************************************************
 *
 *  Description :
 *
 *  Graceful shutdown of the server
 *
 *****************************************************************************/

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// signalContext returns a context cancelled when a termination signal is received.
func signalContext(parent context.Context, log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signchan := make(chan os.Signal, 1)
	signal.Notify(signchan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		defer signal.Stop(signchan)
		select {
		case sig := <-signchan:
			// Don't care which signal it is.
			log.Info("Signal received, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
