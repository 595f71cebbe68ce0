package framework

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// callRecorder keeps an ordered record of lifecycle calls across components
// and hooks so tests can assert ordering constraints.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *callRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// indexOf returns the position of the first matching call, or -1.
func (r *callRecorder) indexOf(call string) int {
	for i, c := range r.Calls() {
		if c == call {
			return i
		}
	}
	return -1
}

// testComponent is a scriptable component used throughout the tests.
type testComponent struct {
	name string
	deps []string

	registerErr error
	startErr    error
	stopErr     error
	startDelay  time.Duration

	recorder *callRecorder

	mu         sync.Mutex
	registered int
	started    int
	stopped    int
}

func newTestComponent(name string, deps ...string) *testComponent {
	return &testComponent{name: name, deps: deps}
}

func (c *testComponent) Name() string { return c.name }

func (c *testComponent) Dependencies() []string { return c.deps }

func (c *testComponent) Register(ctx context.Context) error {
	c.mu.Lock()
	c.registered++
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.record("register:" + c.name)
	}
	return c.registerErr
}

func (c *testComponent) Start(ctx context.Context) error {
	if c.startDelay > 0 {
		time.Sleep(c.startDelay)
	}
	c.mu.Lock()
	c.started++
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.record("start:" + c.name)
	}
	return c.startErr
}

func (c *testComponent) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopped++
	c.mu.Unlock()
	if c.recorder != nil {
		c.recorder.record("stop:" + c.name)
	}
	return c.stopErr
}

func (c *testComponent) counts() (registered, started, stopped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered, c.started, c.stopped
}

// testLogger routes framework logs through the test output.
type testLogger struct {
	t *testing.T
}

func (l *testLogger) Info(msg string, args ...any)  { l.t.Logf("INFO: %s %v", msg, args) }
func (l *testLogger) Error(msg string, args ...any) { l.t.Logf("ERROR: %s %v", msg, args) }
func (l *testLogger) Warn(msg string, args ...any)  { l.t.Logf("WARN: %s %v", msg, args) }
func (l *testLogger) Debug(msg string, args ...any) { l.t.Logf("DEBUG: %s %v", msg, args) }

// captureLogger records log lines for assertions and stays safe to use from
// goroutines that may outlive the test body.
type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *captureLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg+" "+fmt.Sprint(args...))
}

func (l *captureLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args) }
func (l *captureLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args) }

func (l *captureLogger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// newTestOrchestrator builds an orchestrator that never exits the process and
// returns the terminal error instead.
func newTestOrchestrator(t *testing.T, root *Module, opts ...Option) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ExitOnError = false
	cfg.DrainTimeout = Duration(500 * time.Millisecond)
	base := []Option{
		WithLogger(&captureLogger{}),
		WithConfig(cfg),
		WithExitFunc(func(int) { t.Error("unexpected process exit") }),
	}
	orch, err := NewOrchestrator(root, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	return orch
}
