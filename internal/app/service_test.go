package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/storefront-next/internal/config"
)

type fakeService struct {
	name     string
	startErr error
	stopped  bool
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *fakeService) Stop(context.Context) error {
	s.stopped = true
	return nil
}

func TestRunnerStopsAllServicesOnFailure(t *testing.T) {
	boom := errors.New("listen failed")
	failing := &fakeService{name: "http", startErr: boom}
	healthy := &fakeService{name: "worker"}
	closed := false

	runner := NewRunner(failing, healthy)
	runner.closers = append(runner.closers, func() error {
		closed = true
		return nil
	})

	err := runner.Run(context.Background(), time.Second, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if !failing.stopped || !healthy.stopped {
		t.Fatalf("all services should be stopped")
	}
	if !closed {
		t.Fatalf("closers should run after stop")
	}
}

func TestRunnerCancelReturnsCloserErrors(t *testing.T) {
	closeErr := errors.New("close failed")
	runner := NewRunner(&fakeService{name: "worker"})
	runner.closers = append(runner.closers, func() error { return closeErr })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runner.Run(ctx, time.Second, nil)
	if !errors.Is(err, closeErr) {
		t.Fatalf("expected closer error, got %v", err)
	}
}

func TestBuildRunnerValidatesInput(t *testing.T) {
	if _, err := BuildRunner(nil, nil, ModeAll); err == nil {
		t.Fatalf("nil config should fail")
	}
	if _, err := BuildRunner(&config.Config{}, nil, "bogus"); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}
