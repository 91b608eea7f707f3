package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/ure/internal/core"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/spf13/cobra"
)

// previewMaxAge bounds how old a cached search may be to size the confirmation prompt
const previewMaxAge = 5 * time.Minute

var replaceCmd = &cobra.Command{
	Use:   "replace <term> <replacement>",
	Short: "Replace a term across records",
	Long: `Replace every match of a term. Serialized and JSON values are decoded,
rewritten leaf by leaf and re-encoded. Every change is written to the
operation log and can be undone with 'ure rollback'.

With --profile the term and replacement default to the saved ones.
An empty replacement is only accepted with --dry-run.

Exit status is 0 on success, 2 when nothing matched and 1 on errors.`,
	Run: runReplace,
}

var (
	replaceFlags  specFlags
	replaceDryRun bool
	replaceYes    bool
	replaceLimit  int
)

func init() {
	replaceFlags.register(replaceCmd, true)
	replaceCmd.Args = replaceFlags.args(2)
	replaceCmd.Flags().BoolVar(&replaceDryRun, "dry-run", false, "Only preview what would change")
	replaceCmd.Flags().BoolVarP(&replaceYes, "yes", "y", false, "Do not ask for confirmation")
	replaceCmd.Flags().IntVar(&replaceLimit, "limit", 0, "Show at most N samples in a dry run")
}

func runReplace(cmd *cobra.Command, args []string) {
	c := initContext(cmd)
	defer c.Close()

	spec, err := replaceFlags.buildSpec(c, cmd, args)
	if err != nil {
		exitError("%v", err)
	}
	if !replaceDryRun {
		if err := core.ValidateReplacement(spec); err != nil {
			exitError("%v", err)
		}
	}
	c.openEngine(spec)
	out := cmd.OutOrStdout()

	if replaceDryRun {
		res, err := c.Engine.Preview(c.Ctx, spec)
		if res != nil {
			printPreview(out, res, replaceLimit)
		}
		if err != nil {
			exitError("preview failed: %v", err)
		}
		return
	}

	preview, err := c.Store.CachedPreview(actorID, spec, previewMaxAge)
	if err != nil || preview == nil || preview.TotalMatches == 0 {
		if preview, err = c.Engine.Preview(c.Ctx, spec); err != nil {
			exitError("preview failed: %v", err)
		}
	}
	if preview.TotalMatches == 0 {
		fmt.Fprintln(out, "No matches found")
		c.Close()
		osExit(ExitNoMatches)
		return
	}

	if !replaceYes && !confirm(cmd, fmt.Sprintf("Replace %d match(es) in %d record(s)?", preview.TotalMatches, preview.MatchedRecords)) {
		fmt.Fprintln(out, "Aborted.")
		return
	}

	res, err := c.Engine.Apply(c.Ctx, spec, actorID)
	_ = c.Store.InvalidatePreview(actorID, spec)
	if res != nil {
		printApply(out, res)
	}
	if err != nil {
		exitError("replace failed: %v", err)
	}
	if res.ModifiedRecordCount == 0 {
		c.Close()
		if len(res.Errors) > 0 {
			osExit(ExitError)
			return
		}
		osExit(ExitNoMatches)
	}
}

func printApply(w io.Writer, res *models.ApplyResult) {
	green := color.New(color.FgGreen)

	if res.ModifiedRecordCount == 0 {
		fmt.Fprintf(w, "Nothing replaced (%d record(s) scanned)\n", res.RecordsScanned)
	} else {
		green.Fprintf(w, "Replaced %d match(es) in %d record(s)", res.TotalMatches, res.ModifiedRecordCount)
		if res.EntryID > 0 {
			fmt.Fprintf(w, " (log entry #%d)", res.EntryID)
		}
		fmt.Fprintln(w)
	}
	printFieldErrors(w, res.Errors)
}

// confirm asks a yes/no question on the command's input
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	reader := bufio.NewReader(cmd.InOrStdin())
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
