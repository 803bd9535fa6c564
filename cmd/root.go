package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/cli/go-gh/v2/pkg/term"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/schema-rag/internal/config"
	"github.com/kyleking/schema-rag/internal/embedding"
	"github.com/kyleking/schema-rag/internal/errors"
	"github.com/kyleking/schema-rag/internal/formatter"
	"github.com/kyleking/schema-rag/internal/llm"
	"github.com/kyleking/schema-rag/internal/logging"
	"github.com/kyleking/schema-rag/internal/metrics"
	"github.com/kyleking/schema-rag/internal/storage"
)

// globalFlags are read by every command when loading configuration
var globalFlags = []string{"config", "schemas-dir", "db-path", "backend", "log-level"}

// app carries the process streams so commands can be run in tests
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	width  int

	newCompleter func(cfg config.LLMConfig, logger *logging.Logger) (llm.Service, error)
}

// Execute runs the CLI against the process arguments and terminal
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := term.FromEnv()

	a := &app{
		in:           os.Stdin,
		out:          t.Out(),
		errOut:       t.ErrOut(),
		isTTY:        t.IsTerminalOutput(),
		newCompleter: newCompleter,
	}

	if a.isTTY {
		if w, _, err := t.Size(); err == nil {
			a.width = w
		}
	}

	err := a.command().Run(ctx, os.Args)
	if err != nil {
		a.printError(err)
	}

	return err
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:  "schema-rag",
		Usage: "Index table schemas and turn natural-language requests into SQL",
		Description: `schema-rag keeps a local vector index in sync with a directory of JSON table
schema files and retrieves the schemas relevant to a request. The 'ask' command
sends those schemas with the request to a language model to generate SQL.`,
		Writer:    a.out,
		ErrWriter: a.errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a JSON or TOML config file"},
			&cli.StringFlag{Name: "schemas-dir", Usage: "Directory containing schema files"},
			&cli.StringFlag{Name: "db-path", Usage: "Path to the index database"},
			&cli.StringFlag{Name: "backend", Usage: "Index backend: duckdb, sqlite, or memory"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, or error"},
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging"},
		},
		Commands: []*cli.Command{
			a.syncCommand(),
			a.searchCommand(),
			a.askCommand(),
			a.listCommand(),
			a.showCommand(),
			a.statsCommand(),
			a.clearCommand(),
			a.configCommand(),
		},
	}
}

// loadConfig layers the global flags and any command overrides on top of
// file and environment configuration
func (a *app) loadConfig(cmd *cli.Command, extra map[string]interface{}) (*config.Config, error) {
	overrides := make(map[string]interface{})

	for _, name := range globalFlags {
		if v := cmd.String(name); v != "" {
			overrides[name] = v
		}
	}

	if cmd.Bool("verbose") {
		overrides["verbose"] = true
	}

	for k, v := range extra {
		overrides[k] = v
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConfig, "failed to load configuration").
			WithSuggestion("Run 'schema-rag config' to inspect the active settings")
	}

	if cfg.Debug.Verbose || cfg.Debug.Enabled {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

func (a *app) newLogger(cfg *config.Config) (*logging.Logger, error) {
	if strings.EqualFold(cfg.Logging.Output, "stderr") {
		return logging.NewWriterLogger(a.errOut, cfg.Logging), nil
	}

	return logging.NewLogger(cfg.Logging)
}

// session is the configuration and open index shared by one command run
type session struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    storage.Store
	embedder *embedding.Manager
	metrics  *metrics.Recorder
}

func (a *app) open(ctx context.Context, cmd *cli.Command, extra map[string]interface{}) (*session, error) {
	cfg, err := a.loadConfig(cmd, extra)
	if err != nil {
		return nil, err
	}

	logger, err := a.newLogger(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConfig, "failed to create logger")
	}

	logging.SetGlobalLogger(logger)

	fail := func(err error) (*session, error) {
		logging.SetGlobalLogger(nil)
		_ = logger.Close()

		return nil, err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return fail(errors.Wrap(err, errors.ErrTypeConfig, "failed to create directories"))
	}

	embedder, err := embedding.NewManager(cfg.Embedding)
	if err != nil {
		return fail(errors.Wrap(err, errors.ErrTypeConfig, "failed to configure embeddings"))
	}

	store, err := storage.NewStoreFromConfig(ctx, cfg.Index, embedder)
	if err != nil {
		return fail(errors.Wrap(err, errors.ErrTypeDatabase, "failed to open index").
			WithSuggestion(fmt.Sprintf("Check the index path %q and backend %q", cfg.Index.Path, cfg.Index.Backend)))
	}

	logger.WithFields(map[string]interface{}{
		"backend": cfg.Index.Backend,
		"path":    cfg.Index.Path,
	}).Debug("Opened index")

	return &session{cfg: cfg, logger: logger, store: store, embedder: embedder, metrics: metrics.NewRecorder()}, nil
}

// writeMetrics exports the recorder when a textfile path is configured
func (s *session) writeMetrics() {
	if err := s.metrics.WriteTextfile(s.cfg.Metrics.TextfilePath); err != nil {
		s.logger.WithError(err).Warn("Failed to write metrics textfile")
	}
}

func (s *session) Close() error {
	s.writeMetrics()

	err := s.store.Close()

	logging.SetGlobalLogger(nil)
	_ = s.logger.Close()

	return err
}

func (a *app) formatter() *formatter.Formatter {
	return formatter.NewFormatter(a.out, a.isTTY, a.width)
}

// startSpinner shows progress on an interactive terminal and returns its stop func
func (a *app) startSpinner(message string) func() {
	if !a.isTTY {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(a.errOut))
	s.Suffix = " " + message
	s.Start()

	return s.Stop
}

func (a *app) printError(err error) {
	fmt.Fprintf(a.errOut, "Error: %v\n", err)

	if suggestions := errors.GetSuggestions(err); len(suggestions) > 0 {
		fmt.Fprintln(a.errOut, "\nSuggestions:")

		for _, s := range suggestions {
			fmt.Fprintf(a.errOut, "  - %s\n", s)
		}
	}
}

// commandArgs joins the positional arguments into one request string
func commandArgs(cmd *cli.Command) string {
	return strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
}

func newCompleter(cfg config.LLMConfig, logger *logging.Logger) (llm.Service, error) {
	client, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	manager := llm.NewManager(llm.DefaultManagerConfig(cfg.Provider), logger)
	if err := manager.RegisterProvider(cfg.Provider, client); err != nil {
		return nil, err
	}

	return manager, nil
}
