package sqlite

import (
	"sort"
	"strings"

	"github.com/vovakirdan/callrelay/internal/store"
)

// Statements are built from validated, double-quoted identifiers; every
// value travels as a bound parameter.

func quote(name string) (string, error) {
	if err := store.ValidateIdentifier(name); err != nil {
		return "", err
	}
	return `"` + name + `"`, nil
}

func sortedColumns(row store.Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func whereClause(where *store.Predicate) (string, []any, error) {
	if where == nil {
		return "", nil, nil
	}
	col, err := quote(where.Column)
	if err != nil {
		return "", nil, err
	}
	return " WHERE " + col + " = ?", []any{where.Value}, nil
}

func buildInsert(table string, row store.Row) (string, []any, error) {
	if len(row) == 0 {
		return "", nil, store.ErrEmptyRow
	}
	qt, err := quote(table)
	if err != nil {
		return "", nil, err
	}

	cols := sortedColumns(row)
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		if quoted[i], err = quote(col); err != nil {
			return "", nil, err
		}
		args[i] = row[col]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	return "INSERT INTO " + qt + " (" + strings.Join(quoted, ", ") + ") VALUES (" + placeholders + ")", args, nil
}

func buildSelect(table string, where *store.Predicate) (string, []any, error) {
	qt, err := quote(table)
	if err != nil {
		return "", nil, err
	}
	cond, args, err := whereClause(where)
	if err != nil {
		return "", nil, err
	}
	return "SELECT * FROM " + qt + cond, args, nil
}

func buildUpdate(table string, row store.Row, where *store.Predicate) (string, []any, error) {
	if len(row) == 0 {
		return "", nil, store.ErrEmptyRow
	}
	qt, err := quote(table)
	if err != nil {
		return "", nil, err
	}

	cols := sortedColumns(row)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		qc, err := quote(col)
		if err != nil {
			return "", nil, err
		}
		sets[i] = qc + " = ?"
		args = append(args, row[col])
	}

	cond, condArgs, err := whereClause(where)
	if err != nil {
		return "", nil, err
	}
	return "UPDATE " + qt + " SET " + strings.Join(sets, ", ") + cond, append(args, condArgs...), nil
}

func buildDelete(table string, where *store.Predicate) (string, []any, error) {
	qt, err := quote(table)
	if err != nil {
		return "", nil, err
	}
	cond, args, err := whereClause(where)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + qt + cond, args, nil
}
