// Package schema parses table-schema description files into a canonical
// record and renders the text used for embedding and prompt context.
package schema

// Record is the normalized form of one schema file
type Record struct {
	TableName       string
	Description     string
	BusinessContext string
	Columns         []Column
	Relationships   []Relationship
	Indexes         []string
	ExampleQueries  []string
}

// Column describes one table column
type Column struct {
	Name        string
	Type        string
	Constraints []string
	Description string
}

// RelationshipKind tells which shape a relationship had in the file
type RelationshipKind int

const (
	RelationshipStructured RelationshipKind = iota
	RelationshipFreeText
)

// Relationship is either a structured link to another table or a free-text note.
// Text is only set for RelationshipFreeText.
type Relationship struct {
	Kind         RelationshipKind
	Type         string
	RelatedTable string
	ForeignKey   string
	Description  string
	Text         string
}
