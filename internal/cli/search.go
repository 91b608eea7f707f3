package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/snippet"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Preview matches without changing anything",
	Long: `Search records for a term and show highlighted samples of each match.
The total count is exact even when only the first samples are shown.`,
	Run: runSearch,
}

var (
	searchFlags specFlags
	searchLimit int
)

func init() {
	searchFlags.register(searchCmd, true)
	searchCmd.Args = searchFlags.args(1)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Show at most N samples (0 shows every sample collected)")
}

func runSearch(cmd *cobra.Command, args []string) {
	c := initContext(cmd)
	defer c.Close()

	spec, err := searchFlags.buildSpec(c, cmd, args)
	if err != nil {
		exitError("%v", err)
	}

	c.openEngine(spec)
	res, err := c.Engine.Preview(c.Ctx, spec)
	if res != nil {
		printPreview(cmd.OutOrStdout(), res, searchLimit)
	}
	if err != nil {
		exitError("search failed: %v", err)
	}

	if err := c.Store.CachePreview(actorID, spec, res); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not cache preview: %v\n", err)
	}
}

// printPreview renders preview samples, the match total and field errors
func printPreview(w io.Writer, res *models.PreviewResult, limit int) {
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	if res.TotalMatches == 0 {
		fmt.Fprintf(w, "No matches found (%d record(s) scanned)\n", res.RecordsScanned)
		printFieldErrors(w, res.Errors)
		return
	}

	samples := res.Samples
	if limit > 0 && len(samples) > limit {
		samples = samples[:limit]
	}

	for _, m := range samples {
		yellow.Fprintf(w, "#%s", m.RecordID)
		if m.RecordTitle != "" {
			fmt.Fprintf(w, " %s", m.RecordTitle)
		}
		location := string(m.FieldLocation)
		if m.Path != "" {
			location += " > " + m.Path
		}
		cyan.Fprintf(w, " [%s]\n", location)

		before, match, after := snippet.Split(m.SnippetBefore)
		fmt.Fprintf(w, "  - %s", before)
		red.Fprint(w, match)
		fmt.Fprintln(w, after)

		if m.SnippetAfter != "" {
			before, repl, after := snippet.Split(m.SnippetAfter)
			fmt.Fprintf(w, "  + %s", before)
			green.Fprint(w, repl)
			fmt.Fprintln(w, after)
		}
	}

	if hidden := res.TotalMatches - len(samples); hidden > 0 {
		fmt.Fprintf(w, "...and %d more\n", hidden)
	}
	fmt.Fprintf(w, "\nFound %d match(es) in %d record(s) (%d scanned)\n", res.TotalMatches, res.MatchedRecords, res.RecordsScanned)
	printFieldErrors(w, res.Errors)
}

func printFieldErrors(w io.Writer, errs []models.FieldError) {
	if len(errs) == 0 {
		return
	}
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(w, "%d field(s) could not be processed:\n", len(errs))
	for _, e := range errs {
		if e.FieldLocation != "" {
			yellow.Fprintf(w, "  - #%s [%s]: %s\n", e.RecordID, e.FieldLocation, e.Message)
		} else {
			yellow.Fprintf(w, "  - #%s: %s\n", e.RecordID, e.Message)
		}
	}
}
