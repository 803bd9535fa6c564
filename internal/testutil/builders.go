package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// SchemaFile is the on-disk JSON shape of a schema description. Columns
// holds either a list of column objects or an ordered mapping built with
// WithColumnMapping.
type SchemaFile struct {
	TableName       string        `json:"table_name"`
	Description     string        `json:"description,omitempty"`
	BusinessContext string        `json:"business_context,omitempty"`
	Columns         interface{}   `json:"columns,omitempty"`
	Relationships   []interface{} `json:"relationships,omitempty"`
	Indexes         []string      `json:"indexes,omitempty"`
	ExampleQueries  []string      `json:"example_queries,omitempty"`
}

// ColumnSpec describes one column for the builders
type ColumnSpec struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Constraints []string `json:"constraints,omitempty"`
	Description string   `json:"description,omitempty"`
}

// SchemaOption is a functional option for configuring test schema files
type SchemaOption func(*SchemaFile)

// WithSchemaDescription sets the table description
func WithSchemaDescription(desc string) SchemaOption {
	return func(s *SchemaFile) {
		s.Description = desc
	}
}

// WithBusinessContext sets the business context
func WithBusinessContext(text string) SchemaOption {
	return func(s *SchemaFile) {
		s.BusinessContext = text
	}
}

// WithColumns sets columns in the list shape
func WithColumns(cols ...ColumnSpec) SchemaOption {
	return func(s *SchemaFile) {
		s.Columns = cols
	}
}

// WithColumnMapping sets columns in the mapping shape, keeping cols' order
func WithColumnMapping(cols ...ColumnSpec) SchemaOption {
	return func(s *SchemaFile) {
		s.Columns = orderedColumns(cols)
	}
}

// WithRelationship appends a structured relationship
func WithRelationship(relType, relatedTable, foreignKey, desc string) SchemaOption {
	return func(s *SchemaFile) {
		s.Relationships = append(s.Relationships, map[string]string{
			"type":          relType,
			"related_table": relatedTable,
			"foreign_key":   foreignKey,
			"description":   desc,
		})
	}
}

// WithRelationshipText appends a free-text relationship
func WithRelationshipText(text string) SchemaOption {
	return func(s *SchemaFile) {
		s.Relationships = append(s.Relationships, text)
	}
}

// WithIndexes sets the index list
func WithIndexes(indexes ...string) SchemaOption {
	return func(s *SchemaFile) {
		s.Indexes = indexes
	}
}

// WithExampleQueries sets the example queries
func WithExampleQueries(queries ...string) SchemaOption {
	return func(s *SchemaFile) {
		s.ExampleQueries = queries
	}
}

// NewTestSchema creates a schema with an id column and sensible defaults
// and applies any provided options.
func NewTestSchema(tableName string, opts ...SchemaOption) SchemaFile {
	s := SchemaFile{
		TableName:   tableName,
		Description: TestDescription,
		Columns: []ColumnSpec{
			{Name: "id", Type: "INTEGER", Constraints: []string{"PRIMARY KEY"}, Description: "Unique identifier"},
		},
	}

	for _, opt := range opts {
		opt(&s)
	}

	return s
}

// Bytes encodes s as indented JSON
func (s SchemaFile) Bytes() []byte {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		panic(err)
	}

	return data
}

// WriteSchema writes s to dir/file and returns the path
func WriteSchema(t *testing.T, dir, file string, s SchemaFile) string {
	t.Helper()

	return WriteFile(t, dir, file, s.Bytes())
}

// WriteFile writes raw content to dir/file and returns the path
func WriteFile(t *testing.T, dir, file string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}

	return path
}

// RemoveFile deletes dir/file
func RemoveFile(t *testing.T, dir, file string) {
	t.Helper()

	if err := os.Remove(filepath.Join(dir, file)); err != nil {
		t.Fatalf("failed to remove %s: %v", file, err)
	}
}

// orderedColumns marshals as a JSON object whose keys follow slice order
type orderedColumns []ColumnSpec

func (o orderedColumns) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}

	for i, col := range o {
		if i > 0 {
			buf = append(buf, ',')
		}

		key, err := json.Marshal(col.Name)
		if err != nil {
			return nil, err
		}

		value := map[string]interface{}{"type": col.Type}
		if len(col.Constraints) > 0 {
			value["constraints"] = col.Constraints
		}

		if col.Description != "" {
			value["description"] = col.Description
		}

		body, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}

		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, body...)
	}

	return append(buf, '}'), nil
}
