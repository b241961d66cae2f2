package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
)

type mockService struct {
	started atomic.Bool
	stopped atomic.Bool
	startFn func() error
	order   *[]string
	name    string
}

func (m *mockService) Start() error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn()
	}
	// Block until stopped
	for !m.stopped.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (m *mockService) Stop() {
	if m.order != nil {
		*m.order = append(*m.order, m.name)
	}
	m.stopped.Store(true)
}

func waitStarted(t *testing.T, svcs ...*mockService) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		all := true
		for _, s := range svcs {
			all = all && s.started.Load()
		}
		if all {
			return
		}
		select {
		case <-deadline:
			t.Fatal("services did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestLifecycleStartsAndStopsServices(t *testing.T) {
	defer goleak.VerifyNone(t)
	lc := NewLifecycle(zaptest.NewLogger(t))

	var order []string
	svc1 := &mockService{name: "svc1", order: &order}
	svc2 := &mockService{name: "svc2", order: &order}
	lc.Add("svc1", svc1)
	lc.Add("svc2", svc2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- lc.Run(ctx)
	}()

	waitStarted(t, svc1, svc2)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	assert.True(t, svc1.stopped.Load())
	assert.True(t, svc2.stopped.Load())
	assert.Equal(t, []string{"svc2", "svc1"}, order)
}

func TestLifecycleReturnsServiceError(t *testing.T) {
	defer goleak.VerifyNone(t)
	lc := NewLifecycle(zaptest.NewLogger(t))

	boom := errors.New("boom")
	healthy := &mockService{}
	lc.Add("healthy", healthy)
	lc.Add("failing", &mockService{startFn: func() error { return boom }})

	err := lc.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "service failing")
	assert.True(t, healthy.stopped.Load())
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false

	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() {
			stopped = true
		},
	}

	err := svc.Start()
	assert.NoError(t, err)
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)
}

func TestTicker(t *testing.T) {
	defer goleak.VerifyNone(t)
	var ticks atomic.Int32
	tk := NewTicker(5*time.Millisecond, func() { ticks.Add(1) })

	done := make(chan error, 1)
	go func() { done <- tk.Start() }()
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	tk.Stop()
	tk.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not stop")
	}
}

func TestGRPCServiceAndHTTPServiceUnderLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)
	logger := zaptest.NewLogger(t)
	lc := NewLifecycle(logger)

	lc.Add("grpc", GRPCService(grpc.NewServer(), "127.0.0.1:0", logger))
	lc.Add("http", HTTPService(&http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}, time.Second, logger))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.NoError(t, lc.Run(ctx))
}

func TestGRPCServiceBadAddress(t *testing.T) {
	logger := zaptest.NewLogger(t)
	lc := NewLifecycle(logger)
	lc.Add("grpc", GRPCService(grpc.NewServer(), "not-an-address", logger))
	err := lc.Run(context.Background())
	assert.Error(t, err)
}
