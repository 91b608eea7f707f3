package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/ure/internal/core"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/store"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <id>",
	Short: "Undo a logged operation",
	Long: `Restore every field changed by a log entry to its value before the change.
The rollback itself is logged, so it can be rolled back too.`,
	Args: cobra.ExactArgs(1),
	Run:  runRollback,
}

var rollbackYes bool

func init() {
	rollbackCmd.Flags().BoolVarP(&rollbackYes, "yes", "y", false, "Do not ask for confirmation")
}

// specForEntry returns a spec whose mode matches the source the entry was written to
func specForEntry(entry *models.OperationLogEntry) models.SearchSpec {
	if entry.Spec != nil {
		return *entry.Spec
	}
	for _, ch := range entry.Changes {
		if ch.FieldLocation.Kind() == models.LocationColumn {
			table, _, _ := strings.Cut(ch.RecordID, "/")
			return models.SearchSpec{Scope: models.ScopeAll, Tables: []string{table}}
		}
	}
	return models.SearchSpec{Scope: models.ScopeAll}
}

func runRollback(cmd *cobra.Command, args []string) {
	id := parseEntryID(args[0])

	c := initContext(cmd)
	defer c.Close()

	entry, err := c.Store.GetEntry(c.Ctx, id)
	if errors.Is(err, store.ErrEntryNotFound) {
		exitError("log entry not found: %d", id)
	}
	if err != nil {
		exitError("failed to read log entry: %v", err)
	}

	out := cmd.OutOrStdout()
	if !rollbackYes && !confirm(cmd, fmt.Sprintf("Restore %d field(s) changed by #%d (%s)?", len(entry.Changes), id, entry.Summary)) {
		fmt.Fprintln(out, "Aborted.")
		return
	}

	c.openEngine(specForEntry(entry))
	res, err := c.Engine.Rollback(c.Ctx, id, actorID)
	if errors.Is(err, core.ErrNoRollbackData) {
		exitError("log entry #%d has no changes to roll back", id)
	}
	if res != nil {
		green := color.New(color.FgGreen)
		green.Fprintf(out, "Restored %d field(s) from #%d", res.RestoredCount, id)
		if res.EntryID > 0 {
			fmt.Fprintf(out, " (log entry #%d)", res.EntryID)
		}
		fmt.Fprintln(out)
		printFieldErrors(out, res.Errors)
	}
	if err != nil {
		exitError("rollback failed: %v", err)
	}
	if res.RestoredCount == 0 && len(res.Errors) > 0 {
		c.Close()
		osExit(ExitError)
	}
}
