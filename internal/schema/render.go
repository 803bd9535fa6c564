package schema

import (
	"strings"
)

// CanonicalText renders the record deterministically. The same record always
// yields the same text, which is what gets embedded and placed in prompts.
func (r *Record) CanonicalText() string {
	var b strings.Builder

	b.WriteString("Table: ")
	b.WriteString(r.TableName)
	b.WriteByte('\n')

	if r.Description != "" {
		b.WriteString("Description: ")
		b.WriteString(r.Description)
		b.WriteByte('\n')
	}

	if r.BusinessContext != "" {
		b.WriteString("Business Context: ")
		b.WriteString(r.BusinessContext)
		b.WriteByte('\n')
	}

	if len(r.Columns) > 0 {
		b.WriteString("\nColumns:\n")

		for _, c := range r.Columns {
			b.WriteString("  - ")
			b.WriteString(renderColumn(c))
			b.WriteByte('\n')
		}
	}

	if len(r.Relationships) > 0 {
		b.WriteString("Relationships:\n")

		for _, rel := range r.Relationships {
			b.WriteString("  - ")
			b.WriteString(renderRelationship(rel))
			b.WriteByte('\n')
		}
	}

	if len(r.Indexes) > 0 {
		b.WriteString("Indexes: ")
		b.WriteString(strings.Join(r.Indexes, ", "))
		b.WriteByte('\n')
	}

	if len(r.ExampleQueries) > 0 {
		b.WriteString("Example Queries:\n")

		for _, q := range r.ExampleQueries {
			b.WriteString("  - ")
			b.WriteString(q)
			b.WriteByte('\n')
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func renderColumn(c Column) string {
	var b strings.Builder

	b.WriteString(c.Name)
	b.WriteString(" (")
	b.WriteString(c.Type)
	b.WriteByte(')')

	if len(c.Constraints) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(c.Constraints, ", "))
		b.WriteByte(']')
	}

	if c.Description != "" {
		b.WriteString(" - ")
		b.WriteString(c.Description)
	}

	return b.String()
}

// renderRelationship produces "<type>: <related_table> via <foreign_key>" followed by the
// description, dropping whichever parts are empty. Free text is returned as is.
func renderRelationship(r Relationship) string {
	if r.Kind == RelationshipFreeText {
		return r.Text
	}

	target := r.RelatedTable
	if r.ForeignKey != "" {
		if target != "" {
			target += " via " + r.ForeignKey
		} else {
			target = "via " + r.ForeignKey
		}
	}

	var out string

	switch {
	case r.Type != "" && target != "":
		out = r.Type + ": " + target
	case r.Type != "":
		out = r.Type
	default:
		out = target
	}

	if r.Description != "" {
		if out == "" {
			return r.Description
		}

		out += " — " + r.Description
	}

	return out
}
