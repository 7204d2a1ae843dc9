package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bgjob/internal/jobs"
	"bgjob/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect queues and the job database",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueCountCommand(ctx))
	queueCmd.AddCommand(newQueueNamesCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		queueName  string
		statuses   []string
		allStatus  bool
		limit      int
		parentID   int64
		topLevel   bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, oldest first",
		Long: "List jobs, oldest first. Without --status only queued and failed jobs\n" +
			"are shown; --all includes every status.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			if allStatus {
				filter = jobs.AllStatuses()
			}
			if topLevel && cmd.Flags().Changed("parent") {
				return fmt.Errorf("--top-level and --parent are mutually exclusive")
			}
			opts := jobs.ListOptions{
				Queue:    strings.TrimSpace(queueName),
				Limit:    limit,
				Statuses: filter,
			}
			switch {
			case topLevel:
				opts.ParentID = jobs.TopLevel()
			case cmd.Flags().Changed("parent"):
				opts.ParentID = jobs.ChildrenOf(parentID)
			}

			return ctx.withManager(false, func(mgr *jobs.Manager, _ *queue.Store) error {
				list, err := mgr.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, newJobViews(list))
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(jobTableHeaders, buildJobRows(list), jobTableAligns))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&queueName, "queue", "q", "", "Only list jobs in this queue")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable or comma separated)")
	cmd.Flags().BoolVarP(&allStatus, "all", "a", false, "Include jobs in every status")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of jobs to list")
	cmd.Flags().Int64Var(&parentID, "parent", 0, "Only list children of this job")
	cmd.Flags().BoolVar(&topLevel, "top-level", false, "Only list jobs without a parent")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueCountCommand(ctx *commandContext) *cobra.Command {
	var (
		queueName string
		statuses  []string
	)

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count jobs in a queue (queued jobs unless --status is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withManager(false, func(mgr *jobs.Manager, _ *queue.Store) error {
				var n int64
				if cmd.Flags().Changed("queue") {
					n, err = mgr.Count(cmd.Context(), queueName, filter...)
				} else {
					n, err = mgr.CountAll(cmd.Context(), filter...)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&queueName, "queue", "q", "", "Queue to count (every queue when omitted)")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Statuses to count (repeatable or comma separated)")
	return cmd
}

func newQueueNamesCommand(ctx *commandContext) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "names",
		Short: "List queue names that have held jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(false, func(mgr *jobs.Manager, _ *queue.Store) error {
				names, err := mgr.QueueNames(cmd.Context(), activeOnly)
				if err != nil {
					return err
				}
				if len(names) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No queues found")
					return nil
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Hide queues whose jobs are all done or abandoned")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					out := make(map[string]int, len(stats))
					for status, count := range stats {
						out[string(status)] = count
					}
					return writeJSON(cmd, out)
				}
				rows := buildStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// buildStatusRows lists known statuses in lifecycle order, then anything the
// store holds that this build does not recognize.
func buildStatusRows(stats map[jobs.Status]int) [][]string {
	rows := make([][]string, 0, len(stats))
	seen := make(map[jobs.Status]struct{}, len(stats))
	for _, status := range jobs.AllStatuses() {
		seen[status] = struct{}{}
		if count := stats[status]; count > 0 {
			rows = append(rows, []string{statusTitle(status), strconv.Itoa(count)})
		}
	}
	for status, count := range stats {
		if _, ok := seen[status]; ok || count == 0 {
			continue
		}
		rows = append(rows, []string{statusTitle(status), strconv.Itoa(count)})
	}
	return rows
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the job database and summarize job states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				db, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				summary, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				var dirs []directoryCheck
				if cfg := ctx.configValue(); cfg != nil {
					dirs = []directoryCheck{
						checkDirectoryAccess("Data directory", cfg.Paths.DataDir),
						checkDirectoryAccess("Lock directory", cfg.LockDir()),
					}
				}
				if jsonOutput {
					return writeJSON(cmd, struct {
						Database    queue.DatabaseHealth `json:"database"`
						Directories []directoryCheck     `json:"directories"`
						Jobs        queue.HealthSummary  `json:"jobs"`
					}{db, dirs, summary})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Database", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range databaseHealthLines(db, colorize) {
					fmt.Fprintln(out, line)
				}
				for _, dir := range dirs {
					fmt.Fprintln(out, renderStatusLine(dir.Name, dir.kind(), dir.Detail, colorize))
				}
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Jobs", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range jobHealthLines(summary, colorize) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func databaseHealthLines(db queue.DatabaseHealth, colorize bool) []string {
	check := func(ok bool) statusKind {
		if ok {
			return statusOK
		}
		return statusError
	}
	lines := []string{
		renderStatusLine("Path", statusInfo, db.DBPath, colorize),
		renderStatusLine("Exists", check(db.DatabaseExists), yesNo(db.DatabaseExists), colorize),
		renderStatusLine("Readable", check(db.DatabaseReadable), yesNo(db.DatabaseReadable), colorize),
		renderStatusLine("Schema version", statusInfo, strconv.Itoa(db.SchemaVersion), colorize),
		renderStatusLine("Jobs table", check(db.TableExists), yesNo(db.TableExists), colorize),
		renderStatusLine("Integrity", check(db.IntegrityCheck), yesNo(db.IntegrityCheck), colorize),
	}
	if len(db.MissingColumns) > 0 {
		lines = append(lines, renderStatusLine("Missing columns", statusError, strings.Join(db.MissingColumns, ", "), colorize))
	}
	if db.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, db.Error, colorize))
	}
	return lines
}

func jobHealthLines(summary queue.HealthSummary, colorize bool) []string {
	return []string{
		renderStatusLine("Total", statusInfo, strconv.Itoa(summary.Total), colorize),
		renderStatusLine("Pending", statusInfo, strconv.Itoa(summary.Pending), colorize),
		renderStatusLine("In progress", statusInfo, strconv.Itoa(summary.InProgress), colorize),
		renderStatusLine("Claimed", statusInfo, strconv.Itoa(summary.Claimed), colorize),
		renderStatusLine("Failed", kindForCount(summary.Failed, statusWarn), strconv.Itoa(summary.Failed), colorize),
		renderStatusLine("Abandoned", kindForCount(summary.Abandoned, statusError), strconv.Itoa(summary.Abandoned), colorize),
		renderStatusLine("Done", statusOK, strconv.Itoa(summary.Done), colorize),
	}
}
