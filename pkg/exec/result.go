package exec

import (
	"github.com/gqlite/gqlite/pkg/types"
)

// EntityRef points a row column back at its source node or edge.
type EntityRef struct {
	Kind string // "node" or "edge"
	ID   string
}

// Row is one result row: named values, positional values in projection
// order, and source-entity references for columns bound to graph entities.
type Row struct {
	Values           map[string]types.Value
	PositionalValues []types.Value
	SourceEntities   map[string]EntityRef
	TextScore        *float64
	HighlightSnippet string
}

// NewRow builds a row from named values in column order.
func NewRow(columns []string, values map[string]types.Value) Row {
	row := Row{
		Values:         values,
		SourceEntities: make(map[string]EntityRef),
	}
	for _, col := range columns {
		row.PositionalValues = append(row.PositionalValues, values[col])
	}
	return row
}

// StatusRow builds the single-row shape write statements return.
func StatusRow(message string) Row {
	return NewRow([]string{"status"}, map[string]types.Value{
		"status": types.NewString(message),
	})
}

// SessionResult carries session-state changes back to the caller.
type SessionResult struct {
	CurrentSchema string
	CurrentGraph  string
}

// QueryResult is the uniform statement result.
type QueryResult struct {
	Variables       []string
	Rows            []Row
	RowsAffected    int
	ExecutionTimeMS uint64
	Warnings        []string
	SessionResult   *SessionResult
}

// StatusResult builds a single status-row result.
func StatusResult(message string, rowsAffected int) *QueryResult {
	return &QueryResult{
		Variables:    []string{"status"},
		Rows:         []Row{StatusRow(message)},
		RowsAffected: rowsAffected,
	}
}

// approxRowSize estimates a row's in-memory footprint for the memory budget
// and cache tier routing.
func approxRowSize(r Row) int {
	size := 64
	for k, v := range r.Values {
		size += len(k) + approxValueSize(v)
	}
	return size
}

func approxValueSize(v types.Value) int {
	switch v.Kind {
	case types.KindString:
		return 16 + len(v.Str)
	case types.KindList:
		size := 24
		for _, e := range v.List {
			size += approxValueSize(e)
		}
		return size
	case types.KindMap:
		size := 48
		for k, e := range v.Map {
			size += len(k) + approxValueSize(e)
		}
		return size
	}
	return 16
}

// ApproxResultSize estimates a result's footprint for cache routing.
func ApproxResultSize(res *QueryResult) int {
	size := 128
	for _, r := range res.Rows {
		size += approxRowSize(r)
	}
	return size
}
