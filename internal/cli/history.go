package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/kilupskalvis/ure/internal/models"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the operation log",
	Long: `Display logged replace and rollback operations, most recent first.
Only the most recent entries are kept (see history.limit in the config).`,
	Args: cobra.NoArgs,
	Run:  runHistory,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one log entry",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryDelete,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every log entry",
	Args:  cobra.NoArgs,
	Run:   runHistoryClear,
}

var (
	historyLimit    int
	historyClearYes bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Limit the number of entries to show")
	historyClearCmd.Flags().BoolVarP(&historyClearYes, "yes", "y", false, "Do not ask for confirmation")
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	c := initContext(cmd)
	defer c.Close()

	entries, err := c.Store.ListEntries(c.Ctx, historyLimit)
	if err != nil {
		exitError("failed to read operation log: %v", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No operations logged yet")
		return
	}
	printHistory(out, entries)

	total, err := c.Store.CountEntries(c.Ctx)
	if err == nil && total > len(entries) {
		fmt.Fprintf(out, "Showing %d of %d entries\n", len(entries), total)
	}
}

func printHistory(w io.Writer, entries []*models.OperationLogEntry) {
	data := pterm.TableData{{"ID", "Date", "Actor", "Type", "Records", "Matches", "Summary"}}
	for _, e := range entries {
		data = append(data, []string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.ActorID,
			string(e.Type),
			strconv.Itoa(e.Counters.ModifiedRecordCount),
			strconv.Itoa(e.Counters.TotalMatches),
			truncate(e.Summary, 60),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		exitError("failed to render history: %v", err)
	}
	fmt.Fprintln(w, table)
}

func parseEntryID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		exitError("invalid log entry id: %s", s)
	}
	return id
}

func runHistoryDelete(cmd *cobra.Command, args []string) {
	id := parseEntryID(args[0])

	c := initContext(cmd)
	defer c.Close()

	if err := c.Store.DeleteEntry(c.Ctx, id); err != nil {
		exitError("failed to delete entry #%d: %v", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted log entry #%d\n", id)
}

func runHistoryClear(cmd *cobra.Command, args []string) {
	c := initContext(cmd)
	defer c.Close()

	if !historyClearYes && !confirm(cmd, "Delete every log entry? Rollback will no longer be possible.") {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return
	}

	n, err := c.Store.ClearEntries(c.Ctx)
	if err != nil {
		exitError("failed to clear operation log: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d log entries\n", n)
}
