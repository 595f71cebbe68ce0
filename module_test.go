package framework

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hook(recorder *callRecorder, name string) HookFunc {
	return func(ctx context.Context) error {
		recorder.record(name)
		return nil
	}
}

func TestBoundaryHooksRunRootToLeafOnStart(t *testing.T) {
	recorder := &callRecorder{}
	db := newTestComponent("db")
	db.recorder = recorder

	platform := NewModule("platform",
		WithComponents(db),
		WithBeforeStart(hook(recorder, "beforeStart:platform")),
		WithAfterStart(hook(recorder, "afterStart:platform")),
	)
	root := NewModule("app",
		WithSubmodules(platform),
		WithBeforeStart(hook(recorder, "beforeStart:app")),
		WithAfterStart(hook(recorder, "afterStart:app")),
	)

	orch := newTestOrchestrator(t, root)
	require.NoError(t, orch.StartAll(context.Background()))

	calls := recorder.Calls()
	assert.Less(t, recorder.indexOf("beforeStart:app"), recorder.indexOf("beforeStart:platform"), "calls: %v", calls)
	assert.Less(t, recorder.indexOf("beforeStart:platform"), recorder.indexOf("start:db"), "calls: %v", calls)
	assert.Less(t, recorder.indexOf("start:db"), recorder.indexOf("afterStart:platform"), "calls: %v", calls)
	assert.Less(t, recorder.indexOf("afterStart:platform"), recorder.indexOf("afterStart:app"), "calls: %v", calls)
}

func TestBoundaryHooksRunLeafToRootOnStop(t *testing.T) {
	recorder := &callRecorder{}
	db := newTestComponent("db")
	db.recorder = recorder

	platform := NewModule("platform",
		WithComponents(db),
		WithBeforeStop(hook(recorder, "beforeStop:platform")),
		WithAfterStop(hook(recorder, "afterStop:platform")),
	)
	root := NewModule("app",
		WithSubmodules(platform),
		WithBeforeStop(hook(recorder, "beforeStop:app")),
		WithAfterStop(hook(recorder, "afterStop:app")),
	)

	orch := newTestOrchestrator(t, root)
	require.NoError(t, orch.StartAll(context.Background()))
	require.NoError(t, orch.StopAll(context.Background()))

	calls := recorder.Calls()
	assert.Less(t, recorder.indexOf("beforeStop:platform"), recorder.indexOf("beforeStop:app"), "calls: %v", calls)
	assert.Less(t, recorder.indexOf("beforeStop:platform"), recorder.indexOf("stop:db"), "calls: %v", calls)
	assert.Less(t, recorder.indexOf("stop:db"), recorder.indexOf("afterStop:platform"), "calls: %v", calls)
	assert.Less(t, recorder.indexOf("afterStop:platform"), recorder.indexOf("afterStop:app"), "calls: %v", calls)
}

// Two load paths crossing the same module boundary must trigger each hook
// exactly once.
func TestBoundaryHooksFireOncePerModule(t *testing.T) {
	var mu sync.Mutex
	fired := make(map[string]int)
	countHook := func(name string) HookFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			fired[name]++
			mu.Unlock()
			return nil
		}
	}

	a := newTestComponent("a")
	a.startDelay = 10 * time.Millisecond
	b := newTestComponent("b")
	platform := NewModule("platform",
		WithComponents(a, b),
		WithBeforeStart(countHook("beforeStart")),
		WithAfterStart(countHook("afterStart")),
		WithBeforeStop(countHook("beforeStop")),
		WithAfterStop(countHook("afterStop")),
	)
	root := NewModule("app", WithSubmodules(platform))

	orch := newTestOrchestrator(t, root)
	require.NoError(t, orch.StartAll(context.Background()))
	require.NoError(t, orch.StopAll(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	for _, name := range []string{"beforeStart", "afterStart", "beforeStop", "afterStop"} {
		assert.Equal(t, 1, fired[name], "hook %s fired %d times", name, fired[name])
	}
}

func TestAfterStartWaitsForAllOwnedComponents(t *testing.T) {
	recorder := &callRecorder{}
	a := newTestComponent("a")
	b := newTestComponent("b")
	a.recorder = recorder
	b.recorder = recorder

	platform := NewModule("platform",
		WithComponents(a, b),
		WithAfterStart(hook(recorder, "afterStart:platform")),
	)
	orch := newTestOrchestrator(t, NewModule("app", WithSubmodules(platform)))
	require.NoError(t, orch.StartAll(context.Background()))

	calls := recorder.Calls()
	assert.Less(t, recorder.indexOf("start:a"), recorder.indexOf("afterStart:platform"), "calls: %v", calls)
	assert.Less(t, recorder.indexOf("start:b"), recorder.indexOf("afterStart:platform"), "calls: %v", calls)
}

func TestOnRegisterFiresOnceAtConstruction(t *testing.T) {
	var registered int
	root := NewModule("app",
		WithComponents(newTestComponent("db")),
		WithOnRegister(func(ctx context.Context) error {
			registered++
			return nil
		}),
	)

	orch := newTestOrchestrator(t, root)
	require.Equal(t, 1, registered)

	require.NoError(t, orch.StartAll(context.Background()))
	require.NoError(t, orch.StopAll(context.Background()))
	assert.Equal(t, 1, registered, "register hook must not fire again on lifecycle transitions")
}

func TestBeforeStartHookFailureAbortsStartup(t *testing.T) {
	hookErr := errors.New("migrations pending")
	db := newTestComponent("db")
	root := NewModule("app",
		WithComponents(db),
		WithBeforeStart(func(ctx context.Context) error { return hookErr }),
	)

	orch := newTestOrchestrator(t, root)
	err := orch.StartAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, hookErr)

	_, started, _ := db.counts()
	assert.Zero(t, started, "components must not start when a boundary hook fails")
	assert.Equal(t, PhaseStopped, orch.Phase())
}

func TestPassThroughModulesNestComponents(t *testing.T) {
	db := newTestComponent("db")
	api := newTestComponent("api", "db")
	root := NewModule("app",
		WithSubmodules(
			NewModule("platform", WithSubmodules(
				NewModule("storage", WithComponents(db)),
			)),
			NewModule("edge", WithComponents(api)),
		),
	)

	orch := newTestOrchestrator(t, root)
	require.NoError(t, orch.StartAll(context.Background()))

	assert.True(t, orch.IsActive("db"))
	assert.True(t, orch.IsActive("api"))
}

func TestNilRootModuleRejected(t *testing.T) {
	_, err := NewOrchestrator(nil)
	assert.ErrorIs(t, err, ErrModuleNil)
}
