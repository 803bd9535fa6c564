package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("count orders per customer", "Table: orders", false, nil)

	assert.True(t, strings.HasPrefix(prompt, SystemPrompt+"\n\n## Database Schema (Relevant Tables Only):\nTable: orders\n"))
	assert.Contains(t, prompt, "## Business Logic:\ncount orders per customer\n\n"+TaskInstructions)
	assert.Contains(t, prompt, "## Output Format:\n"+outputSQLOnly)
	assert.True(t, strings.HasSuffix(prompt, "SQL Query:"))
	assert.NotContains(t, prompt, ExplanationInstructions)

	// sections appear in a fixed order
	order := []string{
		"## Database Schema",
		"## Business Logic:",
		"## Instructions:",
		"## Output Format:",
		"SQL Query:",
	}
	last := -1

	for _, marker := range order {
		i := strings.Index(prompt, marker)
		assert.Greater(t, i, last, marker)
		last = i
	}
}

func TestBuildPromptHistory(t *testing.T) {
	history := []Turn{
		{User: "all customers", Assistant: "SELECT * FROM customers;"},
		{User: "only active ones", Assistant: "SELECT * FROM customers WHERE active;"},
	}

	prompt := BuildPrompt("sort by name", "Table: customers", false, history)

	assert.Contains(t, prompt, "\n## Previous Conversation:\n\nTurn 1:\nUser: all customers\nAssistant: SELECT * FROM customers;\n")
	assert.Contains(t, prompt, "\nTurn 2:\nUser: only active ones\n")
	assert.Less(t, strings.Index(prompt, "## Previous Conversation:"), strings.Index(prompt, "## Current Request:"))
	assert.Less(t, strings.Index(prompt, "## Current Request:"), strings.Index(prompt, "## Business Logic:"))
}

func TestFormatSchemas(t *testing.T) {
	assert.Equal(t, "Table: a\n\nTable: b", FormatSchemas([]string{"Table: a\n", "  ", "Table: b"}))
	assert.Empty(t, FormatSchemas(nil))
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SELECT 1;", "SELECT 1;"},
		{"whitespace", "\n  SELECT 1;  \n", "SELECT 1;"},
		{"sql fence", "```sql\nSELECT 1;\n```", "SELECT 1;"},
		{"bare fence", "```\nSELECT 1;\n```\n", "SELECT 1;"},
		{"fence with explanation after", "```sql\nSELECT 1;\n```\nUses no tables.", "SELECT 1;\nUses no tables."},
		{"unterminated fence", "```sql\nSELECT 1;", "SELECT 1;"},
		{"inner backticks kept", "SELECT `id` FROM t;", "SELECT `id` FROM t;"},
		{"inline fence", "```SELECT 1```", "SELECT 1"},
		{"closing fence on last line", "```sql\nSELECT 1;```", "SELECT 1;"},
		{"inline fence with explanation", "```SELECT 1;``` selects a constant", "SELECT 1;\nselects a constant"},
		{"unterminated inline fence", "```SELECT 1;", "SELECT 1;"},
		{"query on the opening fence line", "```SELECT *\nFROM t;\n```", "SELECT *\nFROM t;"},
		{"fenced backticks kept", "```sql\nSELECT `id` FROM t;\n```", "SELECT `id` FROM t;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanResponse(tt.in))
		})
	}
}
