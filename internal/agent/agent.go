package agent

import (
	"context"
	"strings"

	"github.com/kyleking/schema-rag/internal/config"
	"github.com/kyleking/schema-rag/internal/errors"
	"github.com/kyleking/schema-rag/internal/llm"
	"github.com/kyleking/schema-rag/internal/logging"
)

// Retriever returns the canonical texts of the schemas most relevant to a
// request. retrieval.Service satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// Recorder receives the outcome of each generation. metrics.Recorder
// satisfies it.
type Recorder interface {
	ObserveGeneration(err error)
}

// Answer is the generated SQL and the schemas it was grounded on
type Answer struct {
	Request string   `json:"request"`
	SQL     string   `json:"sql"`
	Schemas []string `json:"schemas"`
	Prompt  string   `json:"-"`
}

// Options configures an Agent
type Options struct {
	TopK     int
	Model    string
	History  config.AgentConfig
	Logger   *logging.Logger
	Recorder Recorder
}

// Agent turns natural-language requests into SQL using only the schemas
// the retriever returns
type Agent struct {
	retriever Retriever
	completer llm.Service
	opts      Options
	history   *History
	logger    *logging.Logger
}

// DefaultTopK is used when Options.TopK is left unset
const DefaultTopK = 5

// New creates an agent. A negative TopK is passed through so the retriever
// can reject it.
func New(retriever Retriever, completer llm.Service, opts Options) *Agent {
	if opts.TopK == 0 {
		opts.TopK = DefaultTopK
	}

	maxHistory := 0
	if opts.History.HistoryEnabled {
		maxHistory = opts.History.MaxHistory
	}

	return &Agent{
		retriever: retriever,
		completer: completer,
		opts:      opts,
		history:   NewHistory(maxHistory),
		logger:    logging.OrDiscard(opts.Logger).WithField("component", "agent"),
	}
}

// History returns the conversation so far
func (a *Agent) History() *History {
	return a.history
}

// Generate retrieves the relevant schemas and asks the model for SQL
func (a *Agent) Generate(ctx context.Context, request string, explain bool) (ans *Answer, err error) {
	defer func() {
		if a.opts.Recorder != nil {
			a.opts.Recorder.ObserveGeneration(err)
		}
	}()

	request = strings.TrimSpace(request)
	if request == "" {
		return nil, errors.New(errors.ErrTypeValidation, "request cannot be empty")
	}

	schemas, err := a.retriever.Retrieve(ctx, request, a.opts.TopK)
	if err != nil {
		return nil, err
	}

	if len(schemas) == 0 {
		return nil, errors.New(errors.ErrTypeNotFound, "no relevant tables found").
			WithSuggestion("Run 'schema-rag sync' to index your schema files").
			WithSuggestion("Rephrase the request using table or column names")
	}

	var turns []Turn
	if a.opts.History.HistoryEnabled {
		turns = a.history.ForPrompt(a.opts.History.HistoryInPrompt, a.opts.History.SummarizeOldTurns)
	}

	prompt := BuildPrompt(request, FormatSchemas(schemas), explain, turns)

	a.logger.WithFields(map[string]interface{}{
		"schemas":       len(schemas),
		"history_turns": len(turns),
		"prompt_length": len(prompt),
	}).Debug("Generating SQL")

	text, err := a.completer.Complete(ctx, prompt, a.opts.Model)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeNetwork, "SQL generation failed")
	}

	sql := CleanResponse(text)
	if sql == "" {
		return nil, errors.New(errors.ErrTypeInternal, "language model returned an empty response")
	}

	a.history.Add(Turn{User: request, Assistant: sql})

	return &Answer{Request: request, SQL: sql, Schemas: schemas, Prompt: prompt}, nil
}
