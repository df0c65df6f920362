// Package querysql compiles event filters to parameterized SQLite queries
// over the events table.
//
// Every compiled query ends with ORDER BY seq ASC so results come back in
// append order, matching event.Apply over the file log. Values are always
// bound as ? parameters and never interpolated.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/hivelog/internal/event"
)

// Columns is the select list shared by all event queries, in scan order.
const Columns = "seq, id, type, stream_id, causation_id, correlation_id, actor, timestamp, payload"

// Compiler builds queries against one table.
type Compiler struct {
	Table string
}

// NewCompiler creates a compiler for the events table.
func NewCompiler() *Compiler {
	return &Compiler{Table: "events"}
}

// Compile converts f to SQL and its parameters.
//
// A Limit keeps the most recent matches; the inner query selects them in
// descending order and the outer query restores append order.
func (c *Compiler) Compile(f event.Filter) (string, []any) {
	where, params := c.compileWhere(f)

	if f.Limit > 0 {
		inner := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY seq DESC LIMIT ?", Columns, c.Table, where)
		params = append(params, f.Limit)
		return fmt.Sprintf("SELECT %s FROM (%s) ORDER BY seq ASC", Columns, inner), params
	}
	return fmt.Sprintf("SELECT %s FROM %s%s ORDER BY seq ASC", Columns, c.Table, where), params
}

// CompileStream selects one stream's events at or after a row offset.
func (c *Compiler) CompileStream(streamID string, fromOffset int) (string, []any) {
	inner := fmt.Sprintf("SELECT %s FROM %s ORDER BY seq ASC LIMIT -1 OFFSET ?", Columns, c.Table)
	sql := fmt.Sprintf("SELECT %s FROM (%s) WHERE stream_id = ? ORDER BY seq ASC", Columns, inner)
	return sql, []any{max(fromOffset, 0), streamID}
}

// compileWhere returns " WHERE ..." (or "") and its parameters.
func (c *Compiler) compileWhere(f event.Filter) (string, []any) {
	var (
		parts  []string
		params []any
	)

	if len(f.Types) > 0 {
		parts = append(parts, "type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			params = append(params, string(t))
		}
	}
	if len(f.Categories) > 0 {
		var ors []string
		for _, cat := range f.Categories {
			ors = append(ors, "type LIKE ? ESCAPE '\\'")
			params = append(params, escapeLike(string(cat))+".%")
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	if f.StreamID != "" {
		parts = append(parts, "stream_id = ?")
		params = append(params, f.StreamID)
	}
	if f.Actor != "" {
		parts = append(parts, "actor = ?")
		params = append(params, f.Actor)
	}
	if f.CorrelationID != "" {
		parts = append(parts, "correlation_id = ?")
		params = append(params, f.CorrelationID)
	}
	if f.From != 0 {
		parts = append(parts, "timestamp >= ?")
		params = append(params, f.From)
	}
	if f.To != 0 {
		parts = append(parts, "timestamp <= ?")
		params = append(params, f.To)
	}

	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), params
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// escapeLike escapes LIKE wildcards so category names match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
