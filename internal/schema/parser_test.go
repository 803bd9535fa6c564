package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/schema-rag/internal/errors"
)

const mappingSchema = `{
  "table_name": "orders",
  "description": "Customer orders",
  "business_context": "One row per checkout",
  "columns": {
    "order_id": {"type": "INTEGER", "constraints": "PRIMARY KEY", "description": "Order identifier"},
    "customer_id": {"type": "INTEGER", "constraints": "NOT NULL", "description": "Buyer"},
    "amount": {"type": "DECIMAL(10,2)", "description": "Total"}
  },
  "relationships": [
    {"type": "many-to-one", "related_table": "customers", "foreign_key": "customer_id", "description": "Buyer of the order"},
    "orders.order_id is referenced by order_items.order_id"
  ]
}`

const listSchema = `{
  "table_name": "orders",
  "description": "Customer orders",
  "business_context": "One row per checkout",
  "columns": [
    {"name": "order_id", "type": "INTEGER", "constraints": ["PRIMARY KEY"], "description": "Order identifier"},
    {"name": "customer_id", "type": "INTEGER", "constraints": ["NOT NULL"], "description": "Buyer"},
    {"name": "amount", "type": "DECIMAL(10,2)", "description": "Total"}
  ],
  "relationships": [
    {"type": "many-to-one", "related_table": "customers", "foreign_key": "customer_id", "description": "Buyer of the order"},
    "orders.order_id is referenced by order_items.order_id"
  ]
}`

func TestParseMappingColumns(t *testing.T) {
	record, err := Parse([]byte(mappingSchema))
	require.NoError(t, err)

	assert.Equal(t, "orders", record.TableName)
	assert.Equal(t, "Customer orders", record.Description)
	assert.Equal(t, "One row per checkout", record.BusinessContext)
	// file order, not alphabetical
	require.Len(t, record.Columns, 3)
	assert.Equal(t, "order_id", record.Columns[0].Name)
	assert.Equal(t, "customer_id", record.Columns[1].Name)
	assert.Equal(t, "amount", record.Columns[2].Name)
	assert.Equal(t, []string{"PRIMARY KEY"}, record.Columns[0].Constraints)
	assert.Empty(t, record.Columns[2].Constraints)

	require.Len(t, record.Relationships, 2)
	assert.Equal(t, RelationshipStructured, record.Relationships[0].Kind)
	assert.Equal(t, "customers", record.Relationships[0].RelatedTable)
	assert.Equal(t, RelationshipFreeText, record.Relationships[1].Kind)
}

func TestParseFormatEquivalence(t *testing.T) {
	fromMapping, err := Parse([]byte(mappingSchema))
	require.NoError(t, err)

	fromList, err := Parse([]byte(listSchema))
	require.NoError(t, err)

	assert.Equal(t, fromMapping.Columns, fromList.Columns)
	assert.Equal(t, fromMapping.CanonicalText(), fromList.CanonicalText())
}

func TestParseListConstraintsString(t *testing.T) {
	record, err := Parse([]byte(`{"table_name": "t", "columns": [{"name": "id", "type": "INT", "constraints": "PRIMARY KEY"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"PRIMARY KEY"}, record.Columns[0].Constraints)
}

func TestParseOptionalExtras(t *testing.T) {
	record, err := Parse([]byte(`{
		"table_name": "t",
		"columns": {"id": {"type": "INT"}},
		"indexes": ["idx_a", 3, "idx_b"],
		"example_queries": "not a list"
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"idx_a", "idx_b"}, record.Indexes)
	assert.Empty(t, record.ExampleQueries)
}

func TestParseWithoutColumns(t *testing.T) {
	record, err := Parse([]byte(`{"table_name": "audit_log"}`))
	require.NoError(t, err)
	assert.Empty(t, record.Columns)
	assert.Equal(t, "Table: audit_log", record.CanonicalText())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		errorContains string
	}{
		{name: "not json", content: `table_name: orders`, errorContains: "not a JSON object"},
		{name: "array", content: `[{"table_name": "orders"}]`, errorContains: "not a JSON object"},
		{name: "null", content: `null`, errorContains: "not a JSON object"},
		{name: "missing table name", content: `{"columns": {}}`, errorContains: "table_name is required"},
		{name: "table name not string", content: `{"table_name": 7}`, errorContains: "table_name must be a string"},
		{name: "empty table name", content: `{"table_name": "  "}`, errorContains: "table_name must not be empty"},
		{name: "columns scalar", content: `{"table_name": "t", "columns": "id"}`, errorContains: "columns must be"},
		{name: "list column not object", content: `{"table_name": "t", "columns": ["id"]}`, errorContains: "column 0 must be an object"},
		{name: "list column lacks name", content: `{"table_name": "t", "columns": [{"type": "INT"}]}`, errorContains: `lacks "name"`},
		{name: "list column lacks type", content: `{"table_name": "t", "columns": [{"name": "id"}]}`, errorContains: `lacks "type"`},
		{name: "mapping value not object", content: `{"table_name": "t", "columns": {"id": "INT"}}`, errorContains: `column "id" must be an object`},
		{name: "mapping value lacks type", content: `{"table_name": "t", "columns": {"id": {"description": "x"}}}`, errorContains: `lacks "type"`},
		{name: "bad constraints", content: `{"table_name": "t", "columns": {"id": {"type": "INT", "constraints": 5}}}`, errorContains: "constraints must be"},
		{name: "relationships not list", content: `{"table_name": "t", "relationships": {"a": 1}}`, errorContains: "relationships must be a list"},
		{name: "relationship number", content: `{"table_name": "t", "relationships": [42]}`, errorContains: "relationship 0 must be"},
		{name: "description not string", content: `{"table_name": "t", "description": ["x"]}`, errorContains: "description must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Nil(t, record)
			assert.True(t, errors.IsType(err, errors.ErrTypeSchemaFormat), "got %v", err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestParseHTMLDescriptions(t *testing.T) {
	record, err := Parse([]byte(`{
		"table_name": "customers",
		"description": "<p>All <b>active</b> customers</p>",
		"columns": {"email": {"type": "TEXT", "description": "<em>unique</em> address"}},
		"relationships": [{"type": "one-to-many", "related_table": "orders", "description": "<p>placed orders</p>"}]
	}`))
	require.NoError(t, err)

	assert.NotContains(t, record.Description, "<b>")
	assert.Contains(t, record.Description, "**active**")
	assert.NotContains(t, record.Columns[0].Description, "<em>")
	assert.Contains(t, record.Columns[0].Description, "unique")
	assert.Equal(t, "placed orders", record.Relationships[0].Description)
}

func TestParsePlainTextUntouched(t *testing.T) {
	record, err := Parse([]byte(`{"table_name": "t", "description": "  amount < 100 and > 5  "}`))
	require.NoError(t, err)
	assert.Equal(t, "amount < 100 and > 5", record.Description)
}

func TestPeekTableName(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{name: "valid", content: mappingSchema, expected: "orders"},
		{name: "invalid columns still valid json", content: `{"table_name": "orders", "columns": 3}`, expected: "orders"},
		{name: "truncated json", content: `{"table_name": "orders", "columns": {`, expected: "orders"},
		{name: "escaped quote", content: `{"table_name": "a\"b", `, expected: `a"b`},
		{name: "non string", content: `{"table_name": 1}`, expected: ""},
		{name: "absent", content: `{"columns": {}}`, expected: ""},
		{name: "garbage", content: `<<<`, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PeekTableName([]byte(tt.content)))
		})
	}
}
