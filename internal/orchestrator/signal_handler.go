package orchestrator

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// SignalHandler turns SIGINT/SIGTERM into context cancellation
type SignalHandler struct {
	sigChan chan os.Signal
}

// NewSignalHandler registers for interrupt and terminate signals
func NewSignalHandler() *SignalHandler {
	sh := &SignalHandler{
		sigChan: make(chan os.Signal, 1),
	}
	signal.Notify(sh.sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sh
}

// Context returns a child of parent that is cancelled on the first signal.
func (sh *SignalHandler) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer signal.Stop(sh.sigChan)
		select {
		case sig := <-sh.sigChan:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
