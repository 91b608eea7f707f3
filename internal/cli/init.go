package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/ure/internal/config"
	"github.com/kilupskalvis/ure/internal/store"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new ure project",
	Long: `Initialize a new ure project in the current directory.
This creates a .ure directory holding the config and the operation log.
Secrets such as the DSN can be kept out of the config by setting
URE_SOURCE_DSN in the environment or in .ure/.env.`,
	Args: cobra.NoArgs,
	Run:  runInit,
}

var (
	initSource      string
	initDSN         string
	initWeaviateURL string
	initTablePrefix string
	initSkipCheck   bool
)

func init() {
	initCmd.Flags().StringVar(&initSource, "source", "sqlite", "Record source: sqlite, mysql, postgres or weaviate")
	initCmd.Flags().StringVar(&initDSN, "dsn", "", "Database connection string")
	initCmd.Flags().StringVar(&initWeaviateURL, "weaviate-url", "", "Weaviate server URL")
	initCmd.Flags().StringVar(&initTablePrefix, "table-prefix", "", "Content table prefix (default wp_)")
	initCmd.Flags().BoolVar(&initSkipCheck, "skip-check", false, "Do not test the connection to the source")
}

func runInit(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()

	cwd, err := os.Getwd()
	if err != nil {
		exitError("failed to get working directory: %v", err)
	}

	cfg, err := config.Initialize(cwd, config.SourceConfig{
		Kind:        initSource,
		DSN:         initDSN,
		WeaviateURL: initWeaviateURL,
		TablePrefix: initTablePrefix,
	})
	if errors.Is(err, config.ErrAlreadyInitialized) {
		exitError("ure project already exists")
	}
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		exitError("failed to create operation log: %v", err)
	}
	st.Close()

	if !initSkipCheck {
		fmt.Fprintf(out, "Connecting to %s source...\n", cfg.Source.Kind)
		ctx := withLogger(cmd.Context(), cfg.Level())
		_, closeSource, err := openSource(ctx, cfg, false)
		if err != nil {
			color.New(color.FgYellow).Fprintf(out, "Warning: could not connect: %v\n", err)
		} else {
			closeSource()
		}
	}

	color.New(color.FgGreen).Fprintf(out, "Initialized ure project in %s\n", cfg.UREPath())
}
