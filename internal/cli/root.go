// Package cli implements the command-line interface for ure.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kilupskalvis/ure/internal/config"
	"github.com/kilupskalvis/ure/internal/core"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/source"
	"github.com/kilupskalvis/ure/internal/source/sqlsource"
	"github.com/kilupskalvis/ure/internal/store"
	"github.com/kilupskalvis/ure/internal/weaviate"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

// Exit codes
const (
	ExitOK        = 0
	ExitError     = 1
	ExitNoMatches = 2
)

// osExit is swapped out by tests
var osExit = os.Exit

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Ctx    context.Context
	Config *config.Config
	Store  *store.Store
	Engine *core.Engine

	closers []func()
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// initContext loads the config and opens the operation log (no record source)
func initContext(cmd *cobra.Command) *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	ctx := cmd.Context()
	if !rootCmd.PersistentFlags().Changed("log-level") {
		ctx = withLogger(ctx, cfg.Level())
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		exitError("failed to open operation log: %v", err)
	}
	st.SetRetentionLimit(cfg.History.Limit)

	c := &cmdContext{Ctx: ctx, Config: cfg, Store: st}
	c.closers = append(c.closers, func() { st.Close() })
	return c
}

// openEngine connects to the record source the spec needs
func (c *cmdContext) openEngine(spec models.SearchSpec) {
	src, closeSource, err := openSource(c.Ctx, c.Config, spec.DatabaseMode())
	if err != nil {
		c.Close()
		exitError("failed to open record source: %v", err)
	}
	c.closers = append(c.closers, closeSource)

	retry := &source.RetryConfig{
		MaxRetries:     c.Config.Retry.MaxAttempts - 1,
		InitialBackoff: time.Duration(c.Config.Retry.BaseDelayMS) * time.Millisecond,
		MaxBackoff:     time.Duration(c.Config.Retry.MaxDelayMS) * time.Millisecond,
		JitterFraction: 0.25,
	}
	rs := source.NewRetryStore(src, retry)

	c.Engine = core.NewEngine(rs, rs, c.Store, engineOptions(c.Config, spec))
}

func engineOptions(cfg *config.Config, spec models.SearchSpec) core.Options {
	opts := core.Options{
		PageSize:       cfg.Search.ContentBatchSize,
		PreviewCap:     cfg.Search.MaxPreviewResults,
		SnippetContext: cfg.Search.SnippetContext,
		ExcludeFields:  cfg.Search.ExcludeFields,
		MaxRegexInput:  cfg.Search.MaxRegexInput,
	}
	if spec.DatabaseMode() {
		opts.PageSize = cfg.Search.DatabaseBatchSize
	}
	return opts
}

// openSource connects to the configured backend. Tests replace it.
var openSource = func(ctx context.Context, cfg *config.Config, databaseMode bool) (source.Store, func(), error) {
	if cfg.Source.Kind == "weaviate" {
		if databaseMode {
			return nil, nil, errors.New("table mode needs a SQL source, not weaviate")
		}
		client, err := weaviate.NewClient(ctx, cfg.Source.WeaviateURL, weaviate.ClientOptions{APIKey: cfg.WeaviateAPIKey()})
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			return nil, nil, err
		}
		src := weaviate.NewSource(client, weaviate.SourceOptions{
			ContentProperty: cfg.Source.ContentProperty,
			TitleProperty:   cfg.Source.TitleProperty,
		})
		return src, func() {}, nil
	}

	d, err := sqlsource.ParseDialect(cfg.Source.Kind)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlsource.Open(ctx, d, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { db.Close() }

	if databaseMode {
		return sqlsource.NewTableSource(db, d, sqlsource.TableOptions{SkipGUID: cfg.Search.SkipGUID}), closeDB, nil
	}
	src, err := sqlsource.NewContentSource(db, d, sqlsource.ContentOptions{
		TablePrefix:    cfg.Source.TablePrefix,
		StructuredKeys: cfg.Source.StructuredKeys,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return src, closeDB, nil
}

var (
	actorID  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ure",
	Short: "Universal Replace Engine",
	Long: `ure searches and replaces text across content records, their metadata,
page-builder JSON and raw database tables. Serialized and JSON values are
decoded before matching so lengths and escaping stay valid, and every
replace is logged so it can be rolled back.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmd.SetContext(withLogger(cmd.Context(), logLevel))
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", defaultActor(), "Actor recorded in the operation log")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(profileCmd)
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

// withLogger attaches a console logger at the given level to ctx
func withLogger(ctx context.Context, level string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: rootCmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
	return logger.WithContext(ctx)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	exitWith(ExitError, "error: "+format, args...)
}

// exitWith prints a message to stderr and exits with code
func exitWith(code int, format string, args ...interface{}) {
	fmt.Fprintf(rootCmd.ErrOrStderr(), format+"\n", args...)
	osExit(code)
}

// truncate shortens s to n runes for table output
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
