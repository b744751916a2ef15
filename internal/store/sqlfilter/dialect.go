package sqlfilter

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect captures the SQL differences between the supported backends.
type Dialect struct {
	name   string
	format sq.PlaceholderFormat
	in     func(column string, values any) sq.Sqlizer
	like   func(column, pattern string) sq.Sqlizer
}

func (d Dialect) String() string { return d.name }

var (
	// Postgres binds id lists as one array argument and matches text with
	// ILIKE.
	Postgres = Dialect{
		name:   "postgres",
		format: sq.Dollar,
		in: func(column string, values any) sq.Sqlizer {
			return sq.Expr(column+" = ANY(?)", values)
		},
		like: func(column, pattern string) sq.Sqlizer {
			return sq.ILike{column: pattern}
		},
	}

	// MySQL expands id lists into IN (?, ...). LIKE is case-insensitive
	// under the default collations.
	MySQL = Dialect{
		name:   "mysql",
		format: sq.Question,
		in: func(column string, values any) sq.Sqlizer {
			return sq.Eq{column: values}
		},
		like: func(column, pattern string) sq.Sqlizer {
			return sq.Like{column: pattern}
		},
	}
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}
