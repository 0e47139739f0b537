// Package orchestrator runs the ingest and api binaries as one deployable unit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Service is a child binary
type Service struct {
	Name string
	Path string
	Args []string
}

// ServiceManager starts child services and stops them on shutdown
type ServiceManager struct {
	gracePeriod time.Duration
}

// NewServiceManager creates a manager that waits gracePeriod between SIGTERM and SIGKILL.
func NewServiceManager(gracePeriod time.Duration) *ServiceManager {
	return &ServiceManager{gracePeriod: gracePeriod}
}

// RunToCompletion runs svc and waits for it to exit. A signal on ctx stops it.
func (sm *ServiceManager) RunToCompletion(ctx context.Context, svc Service) error {
	cmd, err := sm.start(svc)
	if err != nil {
		return err
	}
	return sm.wait(ctx, svc, cmd)
}

// RunUntilDone starts a long-running svc and returns when it exits or ctx is cancelled.
func (sm *ServiceManager) RunUntilDone(ctx context.Context, svc Service) error {
	cmd, err := sm.start(svc)
	if err != nil {
		return err
	}
	err = sm.wait(ctx, svc, cmd)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (sm *ServiceManager) start(svc Service) (*exec.Cmd, error) {
	log.Info().Str("service", svc.Name).Msg("Starting service")

	cmd := exec.Command(svc.Path, svc.Args...)
	cmd.Stdout = log.Logger
	cmd.Stderr = log.Logger
	// output pipes may be held open by grandchildren after the service exits
	cmd.WaitDelay = sm.gracePeriod

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", svc.Name, err)
	}
	return cmd, nil
}

func (sm *ServiceManager) wait(ctx context.Context, svc Service, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Str("service", svc.Name).Msg("Service exited with error")
			return fmt.Errorf("%s: %w", svc.Name, err)
		}
		log.Info().Str("service", svc.Name).Msg("Service exited")
		return nil
	case <-ctx.Done():
		log.Info().Str("service", svc.Name).Msg("Stopping service")
		sm.stop(svc, cmd, done)
		return ctx.Err()
	}
}

// stop sends SIGTERM and escalates to SIGKILL after the grace period.
func (sm *ServiceManager) stop(svc Service, cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Warn().Err(err).Str("service", svc.Name).Msg("Failed to signal service")
	}

	select {
	case <-done:
	case <-time.After(sm.gracePeriod):
		log.Warn().Str("service", svc.Name).Msg("Service did not stop in time, killing")
		_ = cmd.Process.Kill()
		<-done
	}
}
