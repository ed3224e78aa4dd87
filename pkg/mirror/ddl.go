package mirror

import (
	"fmt"
	"strings"
)

// Tracking columns owned by the engine on the target table. They are
// metadata about the target row's relationship to the source, never business
// data: they are not read from the source and never take part in equality.
const (
	OperationColumn = "operation_type"
	UpdatedColumn   = "last_updated"

	OpInserted = "inserted"
	OpUpdated  = "updated"
	OpDeleted  = "deleted"
)

var trackingColumnDefs = []string{
	"`operation_type` VARCHAR(10) DEFAULT 'inserted'",
	"`last_updated` TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP",
}

// TableDefinition is a structured form of a SHOW CREATE TABLE statement:
// the definition body split into column definitions, index/key definitions
// and foreign key constraints, plus the trailing table options. Rewriting
// happens on this structure and the result is re-rendered, so the mirror
// stays byte-faithful to the source's types, defaults and indexes without
// regex surgery on the raw statement.
type TableDefinition struct {
	Name        string
	Columns     []string
	Keys        []string
	ForeignKeys []string
	Options     string
}

// ParseCreateTable parses MySQL SHOW CREATE TABLE output. Double quotes are
// normalized to backticks first, matching output produced under ANSI_QUOTES
// sql_mode.
func ParseCreateTable(ddl string) (*TableDefinition, error) {
	normalized := strings.ReplaceAll(ddl, `"`, "`")
	lines := strings.Split(normalized, "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("unexpected create statement shape: %q", ddl)
	}

	def := &TableDefinition{}

	header := strings.TrimSpace(lines[0])
	name, ok := parseHeader(header)
	if !ok {
		return nil, fmt.Errorf("cannot parse create statement header: %q", header)
	}
	def.Name = name

	for _, raw := range lines[1:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ")") {
			def.Options = strings.TrimSpace(strings.TrimPrefix(line, ")"))
			break
		}

		line = strings.TrimSuffix(line, ",")
		switch {
		case strings.HasPrefix(line, "`"):
			def.Columns = append(def.Columns, line)
		case isForeignKeyClause(line):
			def.ForeignKeys = append(def.ForeignKeys, line)
		default:
			// PRIMARY KEY, UNIQUE KEY, KEY, FULLTEXT, SPATIAL, CHECK constraints
			def.Keys = append(def.Keys, line)
		}
	}

	if len(def.Columns) == 0 {
		return nil, fmt.Errorf("create statement for %s has no column definitions", def.Name)
	}

	return def, nil
}

// parseHeader extracts the table name from "CREATE TABLE `name` (",
// tolerating an IF NOT EXISTS clause.
func parseHeader(header string) (string, bool) {
	rest, found := strings.CutPrefix(header, "CREATE TABLE ")
	if !found {
		return "", false
	}
	rest, _ = strings.CutPrefix(rest, "IF NOT EXISTS ")
	rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "("))
	if !strings.HasPrefix(rest, "`") || !strings.HasSuffix(rest, "`") || len(rest) < 3 {
		return "", false
	}
	return strings.Trim(rest, "`"), true
}

func isForeignKeyClause(line string) bool {
	upper := strings.ToUpper(line)
	if strings.HasPrefix(upper, "FOREIGN KEY") {
		return true
	}
	return strings.HasPrefix(upper, "CONSTRAINT") && strings.Contains(upper, "FOREIGN KEY")
}

// HasColumn reports whether a column of the given name is defined.
func (d *TableDefinition) HasColumn(name string) bool {
	prefix := "`" + name + "`"
	for _, col := range d.Columns {
		if strings.HasPrefix(col, prefix) {
			return true
		}
	}
	return false
}

// RenderMirror renders the target table's creation statement: idempotent
// (IF NOT EXISTS), every foreign key constraint dropped (the mirror is
// decoupled from the source's referential graph), and the two tracking
// columns appended unless an operation_type column already exists.
func (d *TableDefinition) RenderMirror() string {
	defs := append([]string{}, d.Columns...)
	if !d.HasColumn(OperationColumn) {
		defs = append(defs, trackingColumnDefs...)
	}
	defs = append(defs, d.Keys...)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS `%s` (\n", d.Name)
	for i, def := range defs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(defs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	if d.Options != "" {
		b.WriteString(" ")
		b.WriteString(d.Options)
	}

	return b.String()
}
