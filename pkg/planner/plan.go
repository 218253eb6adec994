// Package planner diffs two canonicalized schema definition sets into an
// ordered, risk-annotated MigrationPlan, including heuristic
// column-rename inference and the explicit rename mappings an orchestrator
// applies on top of the raw diff.
package planner

import (
	"fmt"
	"sort"

	"github.com/pseudomuto/chkit/pkg/schema"
)

// Operation types, the closed set from.
const (
	OpCreateDatabase          = "create_database"
	OpCreateTable             = "create_table"
	OpDropTable               = "drop_table"
	OpCreateView              = "create_view"
	OpDropView                = "drop_view"
	OpCreateMaterializedView  = "create_materialized_view"
	OpDropMaterializedView    = "drop_materialized_view"
	OpAlterTableAddColumn     = "alter_table_add_column"
	OpAlterTableModifyColumn  = "alter_table_modify_column"
	OpAlterTableDropColumn    = "alter_table_drop_column"
	OpAlterTableRenameColumn  = "alter_table_rename_column"
	OpAlterTableRenameTable   = "alter_table_rename_table"
	OpAlterTableAddIndex      = "alter_table_add_index"
	OpAlterTableDropIndex     = "alter_table_drop_index"
	OpAlterTableAddProjection = "alter_table_add_projection"
	OpAlterTableDropProjection = "alter_table_drop_projection"
	OpAlterTableModifySetting = "alter_table_modify_setting"
	OpAlterTableResetSetting  = "alter_table_reset_setting"
	OpAlterTableModifyTTL     = "alter_table_modify_ttl"
)

// Risk levels,/.
const (
	RiskSafe    = "safe"
	RiskCaution = "caution"
	RiskDanger  = "danger"
)

type (
	// Operation is a single atomic change in a migration plan.
	Operation struct {
		Type string
		Key  string
		Risk string
		SQL  string
	}

	// RiskSummary counts operations per risk level.
	RiskSummary struct {
		Safe    int `json:"safe"`
		Caution int `json:"caution"`
		Danger  int `json:"danger"`
	}

	// RenameSuggestion is a column-level heuristic rename candidate.
	RenameSuggestion struct {
		Kind             string `json:"kind"`
		Database         string `json:"database"`
		Table            string `json:"table"`
		From             string `json:"from"`
		To               string `json:"to"`
		Confidence       string `json:"confidence"`
		Reason           string `json:"reason"`
		DropOperationKey string `json:"dropOperationKey"`
		AddOperationKey  string `json:"addOperationKey"`
		ConfirmationSQL  string `json:"confirmationSQL"`
	}

	// MigrationPlan is the Planner's output.
	MigrationPlan struct {
		Operations        []Operation        `json:"operations"`
		RiskSummary       RiskSummary        `json:"riskSummary"`
		RenameSuggestions []RenameSuggestion `json:"renameSuggestions"`
	}
)

// operationRank gives the coarse sort rank used in step 5:
// drop_* = 0, alter_* = 1, create_database = 2, create_* = 3.
func operationRank(opType string) int {
	switch {
	case opType == OpCreateDatabase:
		return 2
	case hasPrefix(opType, "drop_"):
		return 0
	case hasPrefix(opType, "alter_"):
		return 1
	case hasPrefix(opType, "create_"):
		return 3
	default:
		return 4
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// sortOperations orders ops by (rank, key), the deterministic tiebreak that
// keeps repeated plan generation from the same inputs stable.
func sortOperations(ops []Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		ri, rj := operationRank(ops[i].Type), operationRank(ops[j].Type)
		if ri != rj {
			return ri < rj
		}
		return ops[i].Key < ops[j].Key
	})
}

func summarize(ops []Operation) RiskSummary {
	var s RiskSummary
	for _, op := range ops {
		switch op.Risk {
		case RiskSafe:
			s.Safe++
		case RiskCaution:
			s.Caution++
		case RiskDanger:
			s.Danger++
		}
	}
	return s
}

// Key-builder helpers, producing the canonical operation key shapes used
// for sorting and for matching a migration's markers against a table scope.

func databaseKey(db string) string { return fmt.Sprintf("database:%s", db) }

func tableKey(db, name string) string { return fmt.Sprintf("table:%s.%s", db, name) }

func viewKey(db, name string) string { return fmt.Sprintf("view:%s.%s", db, name) }

func materializedViewKey(db, name string) string {
	return fmt.Sprintf("materialized_view:%s.%s", db, name)
}

func columnKey(db, table, col string) string {
	return fmt.Sprintf("%s:column:%s", tableKey(db, table), col)
}

func indexKey(db, table, idx string) string {
	return fmt.Sprintf("%s:index:%s", tableKey(db, table), idx)
}

func projectionKey(db, table, proj string) string {
	return fmt.Sprintf("%s:projection:%s", tableKey(db, table), proj)
}

func settingKey(db, table, k string) string {
	return fmt.Sprintf("%s:setting:%s", tableKey(db, table), k)
}

func ttlKey(db, table string) string { return fmt.Sprintf("%s:ttl", tableKey(db, table)) }

func renameTableKey(db, table string) string {
	return fmt.Sprintf("%s:rename_table", tableKey(db, table))
}

func columnRenameKey(db, table, from, to string) string {
	return fmt.Sprintf("%s:column_rename:%s:%s", tableKey(db, table), from, to)
}

// byIdentity indexes a canonicalized definition set by its identity key, the
// shape both Diff and the rename post-processing rely on.
func byIdentity(defs []schema.Definition) map[schema.Identity]schema.Definition {
	m := make(map[schema.Identity]schema.Definition, len(defs))
	for _, d := range defs {
		m[d.Identity()] = d
	}
	return m
}
