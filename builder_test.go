package framework

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrchestratorDefaults(t *testing.T) {
	orch, err := NewOrchestrator(NewModule("app"))
	require.NoError(t, err)

	assert.Equal(t, PhaseIdle, orch.Phase())
	assert.NotNil(t, orch.Logger())
	assert.NotNil(t, orch.Errors())
}

func TestWithConfigNilRejected(t *testing.T) {
	_, err := NewOrchestrator(NewModule("app"), WithConfig(nil))
	assert.ErrorIs(t, err, ErrConfigNil)
}

func TestWithConfigFileLoadsAndAppliesEnv(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
stop_timeout: 5s
log_level: warn
`)
	t.Setenv("FRAMEWORK_LOG_LEVEL", "debug")

	orch, err := NewOrchestrator(NewModule("app"), WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, Duration(5*time.Second), orch.cfg.StopTimeout)
	assert.Equal(t, "debug", orch.cfg.LogLevel, "environment overrides the file")
}

func TestWithConfigFileMissingFile(t *testing.T) {
	_, err := NewOrchestrator(NewModule("app"), WithConfigFile("/nonexistent/config.yaml"))
	assert.Error(t, err)
}

func TestOptionErrorAbortsConstruction(t *testing.T) {
	boom := errors.New("bad option")
	_, err := NewOrchestrator(NewModule("app"), func(o *Orchestrator) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestComponentStateTracking(t *testing.T) {
	db := newTestComponent("db")
	orch := newTestOrchestrator(t, NewModule("app", WithComponents(db)))

	assert.False(t, orch.IsRegistered("db"))
	assert.False(t, orch.IsActive("db"))

	require.NoError(t, orch.StartAll(context.Background()))
	assert.True(t, orch.IsRegistered("db"))
	assert.True(t, orch.IsActive("db"))

	require.NoError(t, orch.StopAll(context.Background()))
	assert.True(t, orch.IsRegistered("db"), "registration persists past shutdown")
	assert.False(t, orch.IsActive("db"))
}

func TestRegisterComponentRejectsNil(t *testing.T) {
	orch := newTestOrchestrator(t, NewModule("app"))
	assert.ErrorIs(t, orch.RegisterComponent(nil), ErrComponentNil)
}

func TestRegisterHookFailureIsReportedNotFatal(t *testing.T) {
	logger := &captureLogger{}
	root := NewModule("app", WithOnRegister(func(ctx context.Context) error {
		return errors.New("warmup failed")
	}))

	orch, err := NewOrchestrator(root, WithLogger(logger))
	require.NoError(t, err, "register hook failures must not abort construction")
	require.NotNil(t, orch)

	var found bool
	for _, entry := range logger.Entries() {
		if strings.Contains(entry, "warmup failed") {
			found = true
		}
	}
	assert.True(t, found, "register hook failure should surface through the error manager")
}
