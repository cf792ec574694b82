package postgres

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL builds a CREATE TABLE IF NOT EXISTS statement with every
// column typed TEXT. Identifiers are double-quoted with embedded quotes
// escaped; schema-qualified names are quoted per segment.
func BuildCreateTableSQL(table string, columns []string) (string, error) {
	fqn := strings.TrimSpace(table)
	if fqn == "" {
		return "", fmt.Errorf("postgres ddl: table must not be empty")
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("postgres ddl: at least one column is required")
	}

	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		if strings.TrimSpace(c) == "" {
			return "", fmt.Errorf("postgres ddl: column with empty name in table %s", fqn)
		}
		defs = append(defs, quoteIdent(c)+" TEXT")
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		quoteFQN(fqn),
		strings.Join(defs, ",\n  "),
	), nil
}

// quoteIdent quotes a single identifier segment for Postgres, e.g.:
//
//	quoteIdent(`pcv`)        => `"pcv"`
//	quoteIdent(`weird"name`) => `"weird""name"`
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// quoteFQN quotes a possibly schema-qualified name like "public.users" to
// `"public"."users"`. Empty segments are ignored.
func quoteFQN(f string) string {
	parts := strings.Split(f, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, quoteIdent(p))
	}
	return strings.Join(out, ".")
}
