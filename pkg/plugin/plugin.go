// Package plugin defines the fixed hook contract external collaborators use
// to observe and extend a chkit command. chkit treats plugins
// as external: this package only types the context objects passed to each
// hook and enforces the order hooks are invoked in — it never implements a
// plugin itself.
package plugin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pseudomuto/chkit/pkg/planner"
	"github.com/pseudomuto/chkit/pkg/schema"
)

// Context carries the fields common to every hook invocation.
// RequestID is generated once per command invocation (uuid.New) so a
// plugin's log lines across phases can be joined without reusing a
// migration version as a correlation key.
type Context struct {
	RequestID  string
	Command    string
	ConfigPath string
	TableScope []string
	Flags      map[string]string
	Options    map[string]string
	JSONMode   bool
}

// NewContext returns a Context with a freshly generated RequestID.
func NewContext(command, configPath string, tableScope []string, flags, options map[string]string, jsonMode bool) Context {
	return Context{
		RequestID:  uuid.New().String(),
		Command:    command,
		ConfigPath: configPath,
		TableScope: tableScope,
		Flags:      flags,
		Options:    options,
		JSONMode:   jsonMode,
	}
}

type (
	// Finding is one plugin-reported check detail.
	Finding struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Severity string `json:"severity"`
	}

	// CheckResult is a plugin's contribution to the policy engine's `check`
	// command. A plugin contributes a failure iff Evaluated is
	// true, OK is false, and at least one Finding has Severity "error".
	CheckResult struct {
		Plugin    string         `json:"plugin"`
		Evaluated bool           `json:"evaluated"`
		OK        bool           `json:"ok"`
		Findings  []Finding      `json:"findings,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}
)

// HasErrorFinding reports whether r contains a check-failing finding per
// rule: `evaluated && !ok && any finding has severity=error`.
func (r CheckResult) HasErrorFinding() bool {
	if !r.Evaluated || r.OK {
		return false
	}
	for _, f := range r.Findings {
		if f.Severity == "error" {
			return true
		}
	}
	return false
}

// BeforeApplyResult is onBeforeApply's return value: a plugin may rewrite
// the statement list about to be executed for a migration. A nil
// Statements leaves the original list untouched.
type BeforeApplyResult struct {
	Statements []string
}

// Plugin is the hook contract a plugin implements. Every hook after
// OnConfigLoaded receives the same Context that was passed to
// OnConfigLoaded, so a plugin can correlate its own state across the whole
// command invocation by RequestID.
//
// Plugins also contribute named subcommands under `plugin <name> <cmd>`;
// that surface is deliberately not typed here, since subcommand wiring is
// CLI-layer orchestration, not core behavior.
type Plugin interface {
	// Name identifies the plugin for `plugin:<name>` check-failure names and
	// the `plugin <name> <cmd>` subcommand namespace.
	Name() string

	// OnConfigLoaded runs once per command, before any schema or plan work
	// begins. A plugin that rejects its options should return
	// chkerr.ErrPluginOptionInvalid (or wrap it).
	OnConfigLoaded(ctx context.Context, hc Context) error

	// OnSchemaLoaded may return a replacement definition list; a nil return
	// leaves definitions unchanged.
	OnSchemaLoaded(ctx context.Context, hc Context, definitions []schema.Definition) ([]schema.Definition, error)

	// OnPlanCreated may return a replacement plan; a nil return leaves plan
	// unchanged.
	OnPlanCreated(ctx context.Context, hc Context, plan *planner.MigrationPlan) (*planner.MigrationPlan, error)

	// OnBeforeApply runs once per migration file, immediately before its
	// statements execute, and may rewrite the statement list.
	OnBeforeApply(ctx context.Context, hc Context, migration, sql string, statements []string) (BeforeApplyResult, error)

	// OnAfterApply runs once per migration file, immediately after all of
	// its statements have executed successfully.
	OnAfterApply(ctx context.Context, hc Context, migration string, statements []string, appliedAt time.Time) error

	// OnCheck contributes this plugin's findings to the `check` command.
	OnCheck(ctx context.Context, hc Context) (CheckResult, error)

	// OnCheckReport is a side-effecting hook (e.g. printing) run after the
	// policy engine has combined every gate's result.
	OnCheckReport(ctx context.Context, hc Context, results []CheckResult) error
}

// Base is an embeddable no-op implementation of Plugin: a concrete plugin
// only needs to implement the hooks it cares about and embed Base for the
// rest, the same pattern as an http.Handler middleware that only overrides
// one method.
type Base struct{}

func (Base) Name() string { return "" }

func (Base) OnConfigLoaded(context.Context, Context) error { return nil }

func (Base) OnSchemaLoaded(context.Context, Context, []schema.Definition) ([]schema.Definition, error) {
	return nil, nil
}

func (Base) OnPlanCreated(context.Context, Context, *planner.MigrationPlan) (*planner.MigrationPlan, error) {
	return nil, nil
}

func (Base) OnBeforeApply(context.Context, Context, string, string, []string) (BeforeApplyResult, error) {
	return BeforeApplyResult{}, nil
}

func (Base) OnAfterApply(context.Context, Context, string, []string, time.Time) error { return nil }

func (Base) OnCheck(context.Context, Context) (CheckResult, error) {
	return CheckResult{Evaluated: false}, nil
}

func (Base) OnCheckReport(context.Context, Context, []CheckResult) error { return nil }

// Bridge invokes a fixed set of registered plugins at each phase boundary,
// in the sequential order documented by/: plugin hooks are never
// run concurrently, and each hook's result is authoritative input to the
// next phase.
type Bridge struct {
	Plugins []Plugin
}

// NewBridge returns a Bridge wrapping plugins, in invocation order.
func NewBridge(plugins ...Plugin) *Bridge {
	return &Bridge{Plugins: plugins}
}

// ConfigLoaded invokes OnConfigLoaded on every plugin, in order, stopping
// at the first error (a plugin rejecting its own options, per).
func (b *Bridge) ConfigLoaded(ctx context.Context, hc Context) error {
	for _, p := range b.Plugins {
		if err := p.OnConfigLoaded(ctx, hc); err != nil {
			return err
		}
	}
	return nil
}

// SchemaLoaded threads definitions through every plugin's OnSchemaLoaded in
// order; a plugin that returns a non-nil replacement list feeds the next
// plugin's input.
func (b *Bridge) SchemaLoaded(ctx context.Context, hc Context, definitions []schema.Definition) ([]schema.Definition, error) {
	for _, p := range b.Plugins {
		replacement, err := p.OnSchemaLoaded(ctx, hc, definitions)
		if err != nil {
			return nil, err
		}
		if replacement != nil {
			definitions = replacement
		}
	}
	return definitions, nil
}

// PlanCreated threads plan through every plugin's OnPlanCreated in order.
func (b *Bridge) PlanCreated(ctx context.Context, hc Context, plan *planner.MigrationPlan) (*planner.MigrationPlan, error) {
	for _, p := range b.Plugins {
		replacement, err := p.OnPlanCreated(ctx, hc, plan)
		if err != nil {
			return nil, err
		}
		if replacement != nil {
			plan = replacement
		}
	}
	return plan, nil
}

// BeforeApply threads statements through every plugin's OnBeforeApply in
// order, accumulating rewrites.
func (b *Bridge) BeforeApply(ctx context.Context, hc Context, migration, sql string, statements []string) ([]string, error) {
	for _, p := range b.Plugins {
		result, err := p.OnBeforeApply(ctx, hc, migration, sql, statements)
		if err != nil {
			return nil, err
		}
		if result.Statements != nil {
			statements = result.Statements
		}
	}
	return statements, nil
}

// AfterApply invokes OnAfterApply on every plugin, in order. The first
// error aborts subsequent plugins' invocations for this migration, but the
// migration itself has already been journaled by the caller.
func (b *Bridge) AfterApply(ctx context.Context, hc Context, migration string, statements []string, appliedAt time.Time) error {
	for _, p := range b.Plugins {
		if err := p.OnAfterApply(ctx, hc, migration, statements, appliedAt); err != nil {
			return err
		}
	}
	return nil
}

// Check runs OnCheck on every plugin and returns their results in order,
// each stamped with its plugin's name. The first plugin that returns an
// error stops the loop; that error is returned and no results are.
func (b *Bridge) Check(ctx context.Context, hc Context) ([]CheckResult, error) {
	results := make([]CheckResult, 0, len(b.Plugins))
	for _, p := range b.Plugins {
		result, err := p.OnCheck(ctx, hc)
		if err != nil {
			return nil, err
		}
		result.Plugin = p.Name()
		results = append(results, result)
	}
	return results, nil
}

// CheckReport invokes the side-effecting OnCheckReport hook on every
// plugin, in order.
func (b *Bridge) CheckReport(ctx context.Context, hc Context, results []CheckResult) error {
	for _, p := range b.Plugins {
		if err := p.OnCheckReport(ctx, hc, results); err != nil {
			return err
		}
	}
	return nil
}
