// Package chkerr defines the error taxonomy shared across chkit's core
// packages. Every kind here maps to a specific command-line exit code;
// callers that need the exit code
// should type-switch (or errors.As) on these types rather than inspecting
// error strings.
package chkerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors used with errors.Is/errors.Cause for the simpler taxonomy
// members that carry no structured payload beyond a message.
var (
	// ErrChecksumMismatch indicates one or more applied migrations no longer
	// match their journaled checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrMissingClickHouseConfig indicates an operation that requires a live
	// connection was invoked without one configured.
	ErrMissingClickHouseConfig = errors.New("missing clickhouse configuration")

	// ErrPluginOptionInvalid indicates a plugin rejected its options during
	// onConfigLoaded.
	ErrPluginOptionInvalid = errors.New("invalid plugin options")
)

type (
	// Issue is a single structural invariant violation surfaced by the
	// validator. Code is one of the closed set documented on
	// ValidationFailed.
	Issue struct {
		Code    string
		Message string
	}

	// ValidationFailed wraps one or more schema invariant violations
	//. Codes are drawn from:
	//
	//	duplicate_object_name, duplicate_column_name, duplicate_index_name,
	//	duplicate_projection_name, primary_key_missing_column,
	//	order_by_missing_column
	ValidationFailed struct {
		Issues []Issue
	}

	// UnresolvableRename indicates a CLI or schema rename mapping could not
	// be applied to the plan.
	UnresolvableRename struct {
		Mapping string
		Reason  string
	}

	// DestructiveBlocked indicates the pending migration set contains
	// risk=danger operations and destructive execution was not explicitly
	// allowed.
	DestructiveBlocked struct {
		Migrations []string
		Operations []DestructiveOperation
	}

	// DestructiveOperation is one danger-risk marker found in a blocked
	// migration file.
	DestructiveOperation struct {
		Migration   string
		Key         string
		WarningCode string
	}

	// IOFailure wraps filesystem/serialization errors: malformed journal
	// JSON, unreadable snapshot, or other I/O errors. The first one
	// encountered aborts the command.
	IOFailure struct {
		Op  string
		Err error
	}

	// ChecksumMismatch lists the journaled migrations whose current file
	// content no longer matches their recorded checksum. Kept free of a pkg/store import (store already imports
	// chkerr) by carrying just the migration names.
	ChecksumMismatch struct {
		Names []string
	}
)

func (e *ValidationFailed) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = fmt.Sprintf("%s: %s", issue.Code, issue.Message)
	}
	return "schema validation failed: " + strings.Join(msgs, "; ")
}

func (e *UnresolvableRename) Error() string {
	return fmt.Sprintf("unresolvable rename mapping %q: %s", e.Mapping, e.Reason)
}

func (e *DestructiveBlocked) Error() string {
	return fmt.Sprintf("blocked %d destructive migration(s); rerun with --allow-destructive to proceed", len(e.Migrations))
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOFailure) Unwrap() error { return e.Err }

func (e *ChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch: %s", strings.Join(e.Names, ", "))
}

// ExitCode returns the process exit code documented in/for err, or
// 1 for anything not in the taxonomy (the generic-failure default).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch {
	case errors.As(err, new(*DestructiveBlocked)):
		return 3
	case errors.Is(err, ErrPluginOptionInvalid):
		return 2
	default:
		return 1
	}
}

// WarningCodeForDrop returns the destructive-gate warning code for a given
// operation type, per scenario S7 (drop_table -> drop_table_data_loss).
func WarningCodeForDrop(opType string) string {
	switch opType {
	case "drop_table":
		return "drop_table_data_loss"
	case "alter_table_drop_column":
		return "drop_column_data_loss"
	case "drop_view", "drop_materialized_view":
		return "drop_object"
	default:
		return "destructive_operation"
	}
}
