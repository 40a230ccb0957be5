package searchlist

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/hugwawi/hugwawi-admin/internal/directory"
)

// Column identifies one filterable column of the result table.
type Column string

const (
	ColumnKdn      Column = "kdn"
	ColumnSuchname Column = "suchname"
	ColumnName1    Column = "name1"
	ColumnPlz      Column = "plz"
	ColumnOrt      Column = "ort"
)

// Columns lists the result table columns in display order.
var Columns = []Column{ColumnKdn, ColumnSuchname, ColumnName1, ColumnPlz, ColumnOrt}

// Label returns the column header shown in the result table.
func (c Column) Label() string {
	switch c {
	case ColumnKdn:
		return "Kdn"
	case ColumnSuchname:
		return "Suchname"
	case ColumnName1:
		return "Name"
	case ColumnPlz:
		return "PLZ"
	case ColumnOrt:
		return "Ort"
	default:
		return string(c)
	}
}

// ColumnFilterSet maps a column to a substring pattern typed into the
// table header. It narrows the loaded page only and is never sent to
// the backend.
type ColumnFilterSet map[Column]string

// columnValue reads the cell value of a column. Unknown columns read
// as the empty string, so a pattern on them matches nothing.
func columnValue(a directory.Address, col Column) string {
	switch col {
	case ColumnKdn:
		return a.Kdn
	case ColumnSuchname:
		return a.Suchname
	case ColumnName1:
		return a.Name1
	case ColumnPlz:
		return a.Plz
	case ColumnOrt:
		return a.Ort
	default:
		return ""
	}
}

// VisibleItems projects the loaded page through the column filters. A
// row stays visible when every non-blank pattern is contained in the
// row's cell value, compared case-insensitively with Unicode folding
// so German umlauts and eszett match as typed. The input slice is
// never mutated.
func VisibleItems(items []directory.Address, filters ColumnFilterSet) []directory.Address {
	fold := cases.Fold()

	active := make(map[Column]string, len(filters))
	for col, pattern := range filters {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			active[col] = fold.String(trimmed)
		}
	}
	if len(active) == 0 {
		return items
	}

	visible := make([]directory.Address, 0, len(items))
	for _, item := range items {
		keep := true
		for col, pattern := range active {
			if !strings.Contains(fold.String(columnValue(item, col)), pattern) {
				keep = false
				break
			}
		}
		if keep {
			visible = append(visible, item)
		}
	}
	return visible
}

func (s ColumnFilterSet) clone() ColumnFilterSet {
	if len(s) == 0 {
		return ColumnFilterSet{}
	}
	out := make(ColumnFilterSet, len(s))
	for col, pattern := range s {
		out[col] = pattern
	}
	return out
}
