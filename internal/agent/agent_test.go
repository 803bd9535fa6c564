package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/schema-rag/internal/config"
	"github.com/kyleking/schema-rag/internal/errors"
	"github.com/kyleking/schema-rag/internal/retrieval"
	"github.com/kyleking/schema-rag/internal/storage"
	"github.com/kyleking/schema-rag/internal/syncer"
	"github.com/kyleking/schema-rag/internal/testutil"
)

type stubRetriever struct {
	docs    []string
	err     error
	queries []string
	ks      []int
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, k int) ([]string, error) {
	s.queries = append(s.queries, query)
	s.ks = append(s.ks, k)

	return s.docs, s.err
}

type fakeRecorder struct {
	errs []error
}

func (f *fakeRecorder) ObserveGeneration(err error) {
	f.errs = append(f.errs, err)
}

var customersDoc = "Table: customers\nColumns:\n  - customer_id (INTEGER)"

func historyConfig() config.AgentConfig {
	return config.AgentConfig{HistoryEnabled: true, MaxHistory: 10, HistoryInPrompt: 3, SummarizeOldTurns: true}
}

func TestGenerate(t *testing.T) {
	retriever := &stubRetriever{docs: []string{customersDoc}}
	completer := testutil.NewMockCompleter(testutil.WithAnswers("```sql\nSELECT * FROM customers;\n```"))
	recorder := &fakeRecorder{}

	a := New(retriever, completer, Options{TopK: testutil.TestTopK, Model: "model-x", History: historyConfig(), Recorder: recorder})

	answer, err := a.Generate(context.Background(), "  all customers  ", false)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM customers;", answer.SQL)
	assert.Equal(t, "all customers", answer.Request)
	assert.Equal(t, []string{customersDoc}, answer.Schemas)
	assert.Equal(t, []int{testutil.TestTopK}, retriever.ks)
	assert.Equal(t, []string{"model-x"}, completer.Models)

	prompt := completer.LastPrompt()
	assert.Equal(t, answer.Prompt, prompt)
	assert.Contains(t, prompt, customersDoc)
	assert.Contains(t, prompt, "## Business Logic:\nall customers")
	assert.NotContains(t, prompt, "## Previous Conversation:")

	require.Len(t, recorder.errs, 1)
	assert.NoError(t, recorder.errs[0])

	assert.Equal(t, []Turn{{User: "all customers", Assistant: "SELECT * FROM customers;"}}, a.History().Turns())
}

func TestGenerateNoRelevantTables(t *testing.T) {
	completer := testutil.NewMockCompleter()
	recorder := &fakeRecorder{}
	a := New(&stubRetriever{}, completer, Options{Recorder: recorder})

	_, err := a.Generate(context.Background(), "anything", false)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	assert.Contains(t, err.Error(), "no relevant tables found")
	assert.NotEmpty(t, errors.GetSuggestions(err))

	assert.Zero(t, completer.CallCount())
	require.Len(t, recorder.errs, 1)
	assert.Error(t, recorder.errs[0])
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name      string
		request   string
		retriever *stubRetriever
		completer *testutil.MockCompleter
		errType   errors.ErrorType
	}{
		{
			name:      "empty request",
			request:   "   ",
			retriever: &stubRetriever{docs: []string{customersDoc}},
			completer: testutil.NewMockCompleter(),
			errType:   errors.ErrTypeValidation,
		},
		{
			name:      "retrieval failure",
			request:   "customers",
			retriever: &stubRetriever{err: errors.NewBackendError(fmt.Errorf("closed"), "query")},
			completer: testutil.NewMockCompleter(),
			errType:   errors.ErrTypeBackend,
		},
		{
			name:      "model failure",
			request:   "customers",
			retriever: &stubRetriever{docs: []string{customersDoc}},
			completer: testutil.NewMockCompleter(testutil.WithError(fmt.Errorf("503"))),
			errType:   errors.ErrTypeNetwork,
		},
		{
			name:      "blank answer",
			request:   "customers",
			retriever: &stubRetriever{docs: []string{customersDoc}},
			completer: testutil.NewMockCompleter(testutil.WithAnswers("  \n ")),
			errType:   errors.ErrTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.retriever, tt.completer, Options{History: historyConfig()})

			_, err := a.Generate(context.Background(), tt.request, false)
			require.Error(t, err)
			assert.Equal(t, tt.errType, errors.GetType(err))
			assert.Zero(t, a.History().Len())
		})
	}
}

func TestGenerateExplain(t *testing.T) {
	completer := testutil.NewMockCompleter()
	a := New(&stubRetriever{docs: []string{customersDoc}}, completer, Options{})

	_, err := a.Generate(context.Background(), "customers", true)
	require.NoError(t, err)

	prompt := completer.LastPrompt()
	assert.Contains(t, prompt, ExplanationInstructions)
	assert.Contains(t, prompt, outputExplanation)
	assert.NotContains(t, prompt, outputSQLOnly)
}

func TestGenerateIncludesHistory(t *testing.T) {
	longSQL := "SELECT " + strings.Repeat("c, ", 60) + "id FROM customers;"
	completer := testutil.NewMockCompleter(testutil.WithAnswers(longSQL, "SELECT 2;", "SELECT 3;"))
	a := New(&stubRetriever{docs: []string{customersDoc}}, completer, Options{History: historyConfig()})

	ctx := context.Background()

	for _, req := range []string{"first", "second", "third"} {
		_, err := a.Generate(ctx, req, false)
		require.NoError(t, err)
	}

	prompt := completer.LastPrompt()
	assert.Contains(t, prompt, "## Previous Conversation:")
	assert.Contains(t, prompt, "Turn 1:\nUser: first\nAssistant: "+longSQL[:summaryLength]+"...\n")
	assert.Contains(t, prompt, "Turn 2:\nUser: second\nAssistant: SELECT 2;\n")
	assert.Contains(t, prompt, "## Current Request:\n\n## Business Logic:\nthird")
}

func TestGenerateHistoryDisabled(t *testing.T) {
	completer := testutil.NewMockCompleter()
	a := New(&stubRetriever{docs: []string{customersDoc}}, completer, Options{})

	for i := 0; i < 2; i++ {
		_, err := a.Generate(context.Background(), "customers", false)
		require.NoError(t, err)
	}

	assert.NotContains(t, completer.LastPrompt(), "## Previous Conversation:")
	assert.Zero(t, a.History().Len())
}

func TestGenerateWithRetrievalService(t *testing.T) {
	dir := t.TempDir()
	idx := storage.NewTestIndex(t, "memory")

	testutil.WriteSchema(t, dir, "customers.json", testutil.NewTestSchema("customers",
		testutil.WithSchemaDescription("Customers who place orders"),
		testutil.WithColumns(testutil.ColumnSpec{Name: "customer_id", Type: "INTEGER"}),
	))
	testutil.WriteSchema(t, dir, "weather.json", testutil.NewTestSchema("weather_readings",
		testutil.WithSchemaDescription("Hourly temperature from weather stations"),
	))

	_, err := syncer.New(idx, syncer.Options{}).Sync(context.Background(), dir, false)
	require.NoError(t, err)

	completer := testutil.NewMockCompleter()
	a := New(retrieval.NewService(idx), completer, Options{TopK: 1})

	answer, err := a.Generate(context.Background(), "customers who place orders", false)
	require.NoError(t, err)

	require.Len(t, answer.Schemas, 1)
	assert.Contains(t, answer.Schemas[0], "customers")
	assert.NotContains(t, completer.LastPrompt(), "weather_readings")
	assert.Equal(t, testutil.TestSQL, answer.SQL)
}

func TestGenerateTopK(t *testing.T) {
	retriever := &stubRetriever{docs: []string{customersDoc}}
	_, err := New(retriever, testutil.NewMockCompleter(), Options{}).Generate(context.Background(), "customers", false)
	require.NoError(t, err)
	assert.Equal(t, []int{DefaultTopK}, retriever.ks)

	// a negative k reaches the retrieval service and is rejected there
	idx := storage.NewTestIndex(t, "memory")
	completer := testutil.NewMockCompleter()

	_, err = New(retrieval.NewService(idx), completer, Options{TopK: -1}).Generate(context.Background(), "customers", false)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Zero(t, completer.CallCount())
}
