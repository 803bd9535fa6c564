package retrieval

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/kyleking/schema-rag/internal/errors"
	"github.com/kyleking/schema-rag/internal/logging"
	"github.com/kyleking/schema-rag/internal/storage"
)

// Result is a retrieved schema with its relevance
type Result struct {
	TableName string            `json:"table_name"`
	Document  string            `json:"document"`
	Score     float64           `json:"score"`
	Rank      int               `json:"rank"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Recorder receives the outcome of every retrieval. metrics.Recorder satisfies it.
type Recorder interface {
	ObserveRetrieval(duration time.Duration, results int, err error)
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		s.logger = logging.OrDiscard(logger)
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// Service serves the schemas most relevant to a request. It never writes
// to the index.
type Service struct {
	index    storage.Index
	logger   *logging.Logger
	recorder Recorder
}

// NewService creates a retrieval service over index
func NewService(index storage.Index, opts ...Option) *Service {
	s := &Service{index: index, logger: logging.Discard()}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Retrieve returns up to k canonical schema texts, most relevant first.
// An empty index yields an empty slice.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	results, err := s.RetrieveMatches(ctx, query, k)
	if err != nil {
		return nil, err
	}

	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}

	return docs, nil
}

// RetrieveMatches is Retrieve with scores and metadata for display
func (s *Service) RetrieveMatches(ctx context.Context, query string, k int) (results []Result, err error) {
	if k <= 0 {
		return nil, errors.Newf(errors.ErrTypeValidation, "k must be positive, got %d", k).
			WithSuggestion("Use --top-k with a value of 1 or more")
	}

	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.ErrTypeValidation, "query must not be empty")
	}

	start := time.Now()

	defer func() {
		if s.recorder != nil {
			s.recorder.ObserveRetrieval(time.Since(start), len(results), err)
		}
	}()

	matches, err := s.index.Query(ctx, query, k)
	if stderrors.Is(err, storage.ErrDimensionMismatch) {
		return nil, errors.NewBackendError(err, "query").
			WithSuggestion("The embedding provider or dimensions changed since the last sync; run 'schema-rag sync -f' to re-embed every table")
	}

	if err != nil {
		return nil, errors.NewBackendError(err, "query").
			WithSuggestion("Check that the index exists; run 'schema-rag sync' first")
	}

	results = rank(matches, k)

	s.logger.WithFields(map[string]interface{}{
		"k":       k,
		"results": len(results),
		"elapsed": time.Since(start).String(),
	}).Debug("Retrieved schemas")

	return results, nil
}

// rank orders matches by score, breaking ties by table name, and keeps at
// most k
func rank(matches []storage.Match, k int) []Result {
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			TableName: m.ID,
			Document:  m.Document,
			Score:     m.Score,
			Metadata:  m.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}

		return results[i].TableName < results[j].TableName
	})

	if len(results) > k {
		results = results[:k]
	}

	for i := range results {
		results[i].Rank = i + 1
	}

	return results
}
