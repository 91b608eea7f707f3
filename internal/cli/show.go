package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/store"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show log entry details",
	Long:  `Show details about a logged operation including every field it changed.`,
	Args:  cobra.ExactArgs(1),
	Run:   runShow,
}

var showFull bool

func init() {
	showCmd.Flags().BoolVar(&showFull, "full", false, "Print complete field values instead of a preview")
}

func runShow(cmd *cobra.Command, args []string) {
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

	printEntry(cmd.OutOrStdout(), entry, showFull)
}

func printEntry(w io.Writer, entry *models.OperationLogEntry, full bool) {
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	yellow.Fprintf(w, "entry #%d", entry.ID)
	cyan.Fprintf(w, " [%s]\n", entry.Type)
	fmt.Fprintf(w, "Actor:  %s\n", entry.ActorID)
	fmt.Fprintf(w, "Date:   %s\n", entry.Timestamp.Local().Format("Mon Jan 2 15:04:05 2006"))
	if entry.RunID != "" {
		fmt.Fprintf(w, "Run:    %s\n", entry.RunID)
	}
	if entry.OriginalEntryID > 0 {
		fmt.Fprintf(w, "Undoes: #%d\n", entry.OriginalEntryID)
	}
	if s := entry.Spec; s != nil {
		fmt.Fprintf(w, "Search: %q -> %q (scope %s", s.Term, s.Replacement, s.Scope)
		if s.UseRegex {
			fmt.Fprint(w, ", regex")
		}
		if s.CaseSensitive {
			fmt.Fprint(w, ", case-sensitive")
		}
		fmt.Fprintln(w, ")")
	}
	fmt.Fprintf(w, "\n    %s\n\n", entry.Summary)

	fmt.Fprintf(w, "%d field change(s):\n", len(entry.Changes))
	for _, ch := range entry.Changes {
		yellow.Fprintf(w, "  #%s", ch.RecordID)
		if ch.RecordTitle != "" {
			fmt.Fprintf(w, " %s", ch.RecordTitle)
		}
		cyan.Fprintf(w, " [%s]\n", ch.FieldLocation)

		oldValue, newValue := ch.OldValue, ch.NewValue
		if !full {
			oldValue, newValue = truncate(oldValue, 120), truncate(newValue, 120)
		}
		red.Fprintf(w, "    - %s\n", oldValue)
		green.Fprintf(w, "    + %s\n", newValue)
	}
}
