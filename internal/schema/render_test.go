package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalText(t *testing.T) {
	record, err := Parse([]byte(mappingSchema))
	require.NoError(t, err)

	expected := `Table: orders
Description: Customer orders
Business Context: One row per checkout

Columns:
  - order_id (INTEGER) [PRIMARY KEY] - Order identifier
  - customer_id (INTEGER) [NOT NULL] - Buyer
  - amount (DECIMAL(10,2)) - Total
Relationships:
  - many-to-one: customers via customer_id — Buyer of the order
  - orders.order_id is referenced by order_items.order_id`

	assert.Equal(t, expected, record.CanonicalText())
}

func TestCanonicalTextDeterministic(t *testing.T) {
	first, err := Parse([]byte(mappingSchema))
	require.NoError(t, err)

	second, err := Parse([]byte(mappingSchema))
	require.NoError(t, err)

	assert.Equal(t, first.CanonicalText(), second.CanonicalText())
}

func TestCanonicalTextExtras(t *testing.T) {
	record := &Record{
		TableName:      "events",
		Columns:        []Column{{Name: "id", Type: "BIGINT", Constraints: []string{"PRIMARY KEY", "NOT NULL"}}},
		Indexes:        []string{"idx_events_ts", "idx_events_user"},
		ExampleQueries: []string{"SELECT count(*) FROM events"},
	}

	expected := `Table: events

Columns:
  - id (BIGINT) [PRIMARY KEY, NOT NULL]
Indexes: idx_events_ts, idx_events_user
Example Queries:
  - SELECT count(*) FROM events`

	assert.Equal(t, expected, record.CanonicalText())
}

func TestRenderRelationship(t *testing.T) {
	tests := []struct {
		name     string
		rel      Relationship
		expected string
	}{
		{
			name:     "all parts",
			rel:      Relationship{Type: "one-to-many", RelatedTable: "orders", ForeignKey: "customer_id", Description: "purchases"},
			expected: "one-to-many: orders via customer_id — purchases",
		},
		{
			name:     "no foreign key",
			rel:      Relationship{Type: "one-to-one", RelatedTable: "profiles"},
			expected: "one-to-one: profiles",
		},
		{
			name:     "no type",
			rel:      Relationship{RelatedTable: "orders", ForeignKey: "customer_id"},
			expected: "orders via customer_id",
		},
		{
			name:     "description only",
			rel:      Relationship{Description: "loosely linked to audit rows"},
			expected: "loosely linked to audit rows",
		},
		{
			name:     "free text",
			rel:      Relationship{Kind: RelationshipFreeText, Text: "see ledger"},
			expected: "see ledger",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, renderRelationship(tt.rel))
			assert.Equal(t, tt.expected, tt.rel.String())
		})
	}
}
