package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// GRPCService serves srv on addr until stopped.
func GRPCService(srv *grpc.Server, addr string, logger *zap.Logger) Service {
	return &FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", addr, err)
			}
			logger.Info("gRPC server listening",
				zap.String("addr", lis.Addr().String()),
			)
			return srv.Serve(lis)
		},
		StopFn: srv.GracefulStop,
	}
}

// HTTPService serves srv until stopped, allowing in-flight requests grace to finish.
func HTTPService(srv *http.Server, grace time.Duration, logger *zap.Logger) Service {
	return &FuncService{
		StartFn: func() error {
			logger.Info("http server listening",
				zap.String("addr", srv.Addr),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), grace)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	}
}

// Ticker runs fn every interval until stopped.
type Ticker struct {
	interval time.Duration
	fn       func()
	done     chan struct{}
	once     sync.Once
}

// NewTicker returns a Ticker calling fn every interval.
//
// Precondition: interval > 0; fn must be non-nil.
func NewTicker(interval time.Duration, fn func()) *Ticker {
	return &Ticker{interval: interval, fn: fn, done: make(chan struct{})}
}

// Start blocks, calling fn on every tick, until Stop.
func (t *Ticker) Start() error {
	tick := time.NewTicker(t.interval)
	defer tick.Stop()
	for {
		select {
		case <-t.done:
			return nil
		case <-tick.C:
			t.fn()
		}
	}
}

// Stop makes Start return. Safe to call more than once.
func (t *Ticker) Stop() {
	t.once.Do(func() { close(t.done) })
}
