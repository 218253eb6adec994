package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pseudomuto/chkit/pkg/drift"
	"github.com/pseudomuto/chkit/pkg/plugin"
	"github.com/pseudomuto/chkit/pkg/policy"
	"github.com/pseudomuto/chkit/pkg/store"
)

func TestEvaluatePassesWithNoSignals(t *testing.T) {
	result := policy.Evaluate(policy.DefaultConfig(), policy.Input{})
	assert.True(t, result.Passed)
	assert.Empty(t, result.FailedChecks)
}

func TestEvaluateFailsOnPending(t *testing.T) {
	result := policy.Evaluate(policy.DefaultConfig(), policy.Input{Pending: []string{"20240101000000_a.sql"}})
	assert.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, policy.CheckPendingMigrations)
}

func TestEvaluateFailsOnChecksumMismatch(t *testing.T) {
	result := policy.Evaluate(policy.DefaultConfig(), policy.Input{
		ChecksumMismatches: []store.ChecksumMismatch{{Name: "20240101000000_a.sql"}},
	})
	assert.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, policy.CheckChecksumMismatch)
}

func TestEvaluateFailsOnDrift(t *testing.T) {
	result := policy.Evaluate(policy.DefaultConfig(), policy.Input{
		DriftReport: &drift.Report{Drifted: true},
	})
	assert.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, policy.CheckSchemaDrift)
}

func TestEvaluateIgnoresDisabledGates(t *testing.T) {
	cfg := policy.Config{FailOnPending: false, FailOnChecksumMismatch: false, FailOnDrift: false}
	result := policy.Evaluate(cfg, policy.Input{
		Pending:            []string{"x"},
		ChecksumMismatches: []store.ChecksumMismatch{{Name: "x"}},
		DriftReport:        &drift.Report{Drifted: true},
	})
	assert.True(t, result.Passed)
}

func TestEvaluatePluginErrorFindingFails(t *testing.T) {
	result := policy.Evaluate(policy.DefaultConfig(), policy.Input{
		PluginResults: []plugin.CheckResult{{
			Plugin:    "audit",
			Evaluated: true,
			OK:        false,
			Findings:  []plugin.Finding{{Code: "x", Severity: "error"}},
		}},
	})
	assert.False(t, result.Passed)
	assert.Contains(t, result.FailedChecks, "plugin:audit")
}

func TestEvaluatePluginWarningFindingDoesNotFail(t *testing.T) {
	result := policy.Evaluate(policy.DefaultConfig(), policy.Input{
		PluginResults: []plugin.CheckResult{{
			Plugin:    "audit",
			Evaluated: true,
			OK:        false,
			Findings:  []plugin.Finding{{Code: "x", Severity: "warning"}},
		}},
	})
	assert.True(t, result.Passed)
}

func TestStrictForcesAllGatesOn(t *testing.T) {
	cfg := policy.Config{}.Strict()
	assert.True(t, cfg.FailOnPending)
	assert.True(t, cfg.FailOnChecksumMismatch)
	assert.True(t, cfg.FailOnDrift)
}
