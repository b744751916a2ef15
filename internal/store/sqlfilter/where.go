package sqlfilter

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Builder accumulates the conditions of one WHERE clause.
type Builder struct {
	dialect Dialect
	conds   sq.And
}

// NewBuilder starts a WHERE clause for dialect.
func NewBuilder(dialect Dialect) *Builder {
	return &Builder{dialect: dialect}
}

// Where adds a raw condition with "?" markers for args.
func (b *Builder) Where(pred string, args ...any) *Builder {
	b.conds = append(b.conds, sq.Expr(pred, args...))
	return b
}

// Filter adds the conditions of f. The filtered resource table must be
// aliased "r".
func (b *Builder) Filter(f Filter) *Builder {
	b.inList("r.id", f.IDs)
	if len(f.ItemSetIDs) > 0 {
		b.subquery("EXISTS ", sq.Select("1").From("item_item_set iis").
			Where("iis.item_id = r.id").
			Where(b.dialect.in("iis.item_set_id", f.ItemSetIDs)))
	}
	if len(f.NotItemSetIDs) > 0 {
		b.subquery("NOT EXISTS ", sq.Select("1").From("item_item_set niis").
			Where("niis.item_id = r.id").
			Where(b.dialect.in("niis.item_set_id", f.NotItemSetIDs)))
	}
	b.inList("r.resource_class_id", f.ClassIDs)
	if len(f.ClassTerms) > 0 {
		b.subquery("r.resource_class_id IN ", sq.Select("rc.id").From("resource_class rc").
			Where(b.dialect.in("rc.term", f.ClassTerms)))
	}
	b.inList("r.resource_template_id", f.TemplateIDs)
	b.inList("r.owner_id", f.OwnerIDs)
	if f.IsPublic != nil {
		b.conds = append(b.conds, sq.Eq{"r.is_public": *f.IsPublic})
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		values := sq.Select("1").From("value sv").
			Where("sv.resource_id = r.id").
			Where(b.dialect.like("sv.value_text", pattern))
		b.conds = append(b.conds, sq.Or{
			b.dialect.like("r.title", pattern),
			subquery("EXISTS ", values),
		})
	}
	if len(f.Properties) > 0 {
		b.conds = append(b.conds, b.properties(f.Properties))
	}
	return b
}

// Build returns the clause and its arguments in the dialect's placeholder
// format. With no condition the clause is always true.
func (b *Builder) Build() (string, []any, error) {
	if len(b.conds) == 0 {
		return "1 = 1", nil, nil
	}
	where, args, err := b.conds.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build %s where clause: %w", b.dialect, err)
	}
	where, err = b.dialect.format.ReplacePlaceholders(where)
	if err != nil {
		return "", nil, fmt.Errorf("build %s where clause: %w", b.dialect, err)
	}
	return where, args, nil
}

func (b *Builder) inList(column string, ids []int64) {
	if len(ids) == 0 {
		return
	}
	b.conds = append(b.conds, b.dialect.in(column, ids))
}

func (b *Builder) subquery(prefix string, sub sq.SelectBuilder) {
	b.conds = append(b.conds, subquery(prefix, sub))
}

// subquery renders prefix (sub). sub keeps "?" markers so Build numbers
// them with the outer clause.
func subquery(prefix string, sub sq.SelectBuilder) sq.Sqlizer {
	return sq.ConcatExpr(prefix+"(", sub, ")")
}

func (b *Builder) properties(clauses []PropertyClause) sq.Sqlizer {
	var expr sq.Sqlizer
	for i, clause := range clauses {
		cond := b.property(clause)
		switch {
		case i == 0:
			expr = cond
		case clause.Or:
			expr = sq.Or{expr, cond}
		default:
			expr = sq.And{expr, cond}
		}
	}
	return expr
}

func (b *Builder) property(clause PropertyClause) sq.Sqlizer {
	sub := sq.Select("1").From("value pv").Where("pv.resource_id = r.id")
	if clause.Property != "" {
		sub = sub.Where(sq.Eq{"pv.property_term": clause.Property})
	}
	switch clause.Type {
	case PropertyEquals, PropertyNotEquals:
		sub = sub.Where(sq.Eq{"pv.value_text": clause.Text})
	case PropertyContains, PropertyNotContains:
		sub = sub.Where(b.dialect.like("pv.value_text", likePattern(clause.Text)))
	}

	if clause.Negated() {
		return subquery("NOT EXISTS ", sub)
	}
	return subquery("EXISTS ", sub)
}
