// Package policy implements the check/policy engine: it folds
// pending migrations, checksum mismatches, drift, and plugin findings into
// a single pass/fail result. The engine never throws — every gate either
// passes or contributes a named failure to the result it returns.
package policy

import (
	"github.com/pseudomuto/chkit/pkg/drift"
	"github.com/pseudomuto/chkit/pkg/plugin"
	"github.com/pseudomuto/chkit/pkg/store"
)

// Gate names, the closed set of failed-check identifiers from. Plugin
// failures use "plugin:<name>" instead of one of these constants.
const (
	CheckPendingMigrations = "pending_migrations"
	CheckChecksumMismatch  = "checksum_mismatch"
	CheckSchemaDrift       = "schema_drift"
)

// Config is the effective policy, defaulting every gate to enabled.
// Strict forces all three built-in gates on irrespective of config.
type Config struct {
	FailOnPending          bool
	FailOnChecksumMismatch bool
	FailOnDrift            bool
}

// DefaultConfig returns every built-in gate enabled, the documented default.
func DefaultConfig() Config {
	return Config{FailOnPending: true, FailOnChecksumMismatch: true, FailOnDrift: true}
}

// Strict returns cfg with every built-in gate forced on, the effect of the
// `--strict` flag.
func (cfg Config) Strict() Config {
	return Config{FailOnPending: true, FailOnChecksumMismatch: true, FailOnDrift: true}
}

// Input carries the signals the policy engine evaluates. DriftReport is
// optional: a nil value means the drift gate is skipped (e.g. no live
// ClickHouse connection was available), which is distinct from a report
// that found no drift.
type Input struct {
	Pending           []string
	ChecksumMismatches []store.ChecksumMismatch
	DriftReport       *drift.Report
	PluginResults     []plugin.CheckResult
}

// Result is the policy engine's combined pass/fail verdict.
type Result struct {
	Passed       bool     `json:"passed"`
	FailedChecks []string `json:"failedChecks"`
}

// Evaluate combines in against cfg into a Result. Every enabled gate whose
// signal is non-empty contributes its name to FailedChecks; Passed is true
// iff FailedChecks is empty.
func Evaluate(cfg Config, in Input) Result {
	var failed []string

	if cfg.FailOnPending && len(in.Pending) > 0 {
		failed = append(failed, CheckPendingMigrations)
	}
	if cfg.FailOnChecksumMismatch && len(in.ChecksumMismatches) > 0 {
		failed = append(failed, CheckChecksumMismatch)
	}
	if cfg.FailOnDrift && in.DriftReport != nil && in.DriftReport.Drifted {
		failed = append(failed, CheckSchemaDrift)
	}

	for _, r := range in.PluginResults {
		if r.HasErrorFinding() {
			failed = append(failed, "plugin:"+r.Plugin)
		}
	}

	return Result{Passed: len(failed) == 0, FailedChecks: failed}
}
