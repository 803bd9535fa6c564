package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndWrap(t *testing.T) {
	err := New(ErrTypeValidation, "k must be positive")
	assert.Equal(t, ErrTypeValidation, err.Type)
	assert.Equal(t, "k must be positive", err.Message)
	assert.NoError(t, err.Cause)

	cause := errors.New("connection refused")
	wrapped := Wrapf(cause, ErrTypeNetwork, "failed to reach %s:%d", "localhost", 11434)
	assert.Equal(t, "failed to reach localhost:11434", wrapped.Message)
	assert.Equal(t, cause, wrapped.Cause)
	assert.ErrorIs(t, wrapped, cause)
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without cause",
			err:      New(ErrTypeSchemaFormat, "orders.json: table_name is required"),
			expected: "schema_format: orders.json: table_name is required",
		},
		{
			name:     "with cause",
			err:      Wrap(errors.New("disk full"), ErrTypeBackend, "upsert failed"),
			expected: "backend_unavailable: upsert failed (caused by: disk full)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestIsTypeThroughFmtWrapping(t *testing.T) {
	base := NewBackendError(errors.New("timeout"), "list")
	outer := fmt.Errorf("sync aborted: %w", base)

	assert.True(t, IsType(outer, ErrTypeBackend))
	assert.False(t, IsType(outer, ErrTypeParseIO))
	assert.Equal(t, ErrTypeBackend, GetType(outer))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.False(t, IsType(nil, ErrTypeBackend))
}

func TestSpecificConstructors(t *testing.T) {
	t.Run("schema format with file", func(t *testing.T) {
		err := NewSchemaFormatError("customers.json", "column %d lacks %q", 2, "type")
		assert.Equal(t, ErrTypeSchemaFormat, err.Type)
		assert.Equal(t, `customers.json: column 2 lacks "type"`, err.Message)
	})

	t.Run("schema format without file", func(t *testing.T) {
		err := NewSchemaFormatError("", "not a JSON object")
		assert.Equal(t, "not a JSON object", err.Message)
	})

	t.Run("duplicate table", func(t *testing.T) {
		err := NewDuplicateTableError("orders", []string{"a.json", "b.json"})
		assert.Equal(t, ErrTypeDuplicateTable, err.Type)
		assert.Contains(t, err.Message, `"orders"`)
		assert.Contains(t, err.Message, "a.json")
		require.Len(t, err.Suggestions, 1)
	})

	t.Run("parse io", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := NewParseIOError(cause, "/schemas/x.json")
		assert.Equal(t, ErrTypeParseIO, err.Type)
		assert.ErrorIs(t, err, cause)
	})
}

func TestGetSuggestions(t *testing.T) {
	inner := New(ErrTypeConfig, "bad path").WithSuggestion("check SCHEMA_RAG_DB_PATH")
	outer := Wrap(inner, ErrTypeDatabase, "open failed").WithSuggestion("run schema-rag config")

	assert.Equal(t, []string{"run schema-rag config", "check SCHEMA_RAG_DB_PATH"}, GetSuggestions(outer))
	assert.Empty(t, GetSuggestions(errors.New("plain")))
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("invalid backend", "index.backend")
	assert.Equal(t, "invalid backend (field: index.backend)", err.Message)
	assert.Len(t, err.Suggestions, 2)
}
