package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"bgjob/internal/jobs"
	"bgjob/internal/jobtypes"
	"bgjob/internal/queue"
)

const defaultQueueName = "default"

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		queueName    string
		data         string
		parentID     int64
		maxRetries   int
		timeEstimate int
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "enqueue <type> <label>",
		Short: "Create a job and add it to a queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeName := strings.TrimSpace(args[0])
			label := strings.TrimSpace(args[1])
			if label == "" {
				return errors.New("job label must not be empty")
			}
			var dataset any
			if trimmed := strings.TrimSpace(data); trimmed != "" {
				if !json.Valid([]byte(trimmed)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				dataset = json.RawMessage(trimmed)
			}

			return ctx.withManager(false, func(mgr *jobs.Manager, _ *queue.Store) error {
				job, err := mgr.Create(label, typeName, dataset, parentID)
				if err != nil {
					if errors.Is(err, jobs.ErrUnregisteredJobType) {
						return fmt.Errorf("unknown job type %q (known: %s)", typeName, strings.Join(mgr.Registry().Names(), ", "))
					}
					return err
				}
				if cmd.Flags().Changed("max-retries") {
					job.SetMaxRetries(maxRetries)
				}
				if cmd.Flags().Changed("time-estimate") {
					job.SetTimeEstimate(timeEstimate)
				}
				if err := job.Save(cmd.Context(), queueName, ""); err != nil {
					if errors.Is(err, jobs.ErrParentNotFound) {
						return fmt.Errorf("parent job #%d not found", parentID)
					}
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, newJobView(job, false))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job #%d (%s) in queue %q\n", job.ID(), job.Type(), job.Queue())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&queueName, "queue", "q", defaultQueueName, "Queue to add the job to")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Job dataset as a JSON document")
	cmd.Flags().Int64Var(&parentID, "parent", 0, "ID of the parent job")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Retry budget (defaults to jobs.default_max_retries)")
	cmd.Flags().IntVar(&timeEstimate, "time-estimate", 0, "Estimated runtime in seconds")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput   bool
		showChildren bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job with its history and output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(false, func(mgr *jobs.Manager, _ *queue.Store) error {
				job, err := mgr.Load(cmd.Context(), id)
				if err != nil {
					return describeLoadError(id, err)
				}
				var children []*jobs.Job
				if showChildren {
					children, err = mgr.List(cmd.Context(), jobs.ListOptions{
						ParentID: jobs.ChildrenOf(id),
						Statuses: jobs.AllStatuses(),
					})
					if err != nil {
						return err
					}
				}
				if jsonOutput {
					payload := struct {
						jobView
						Children []jobView `json:"children,omitempty"`
					}{jobView: newJobView(job, true)}
					if showChildren {
						payload.Children = newJobViews(children)
					}
					return writeJSON(cmd, payload)
				}
				out := cmd.OutOrStdout()
				printJobDetails(out, job)
				if showChildren {
					fmt.Fprintln(out)
					if len(children) == 0 {
						fmt.Fprintln(out, "No child jobs")
					} else {
						fmt.Fprint(out, renderTable(jobTableHeaders, buildJobRows(children), jobTableAligns))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showChildren, "children", false, "Also list the job's children")
	return cmd
}

func printJobDetails(out io.Writer, job *jobs.Job) {
	parent := "-"
	if job.ParentID() != 0 {
		parent = fmt.Sprintf("#%d", job.ParentID())
	}
	worker := job.WorkerID()
	if worker == "" {
		worker = "-"
	}
	fmt.Fprintf(out, "Job #%d: %s\n", job.ID(), job.Label())
	fmt.Fprintf(out, "  Type:      %s\n", job.Type())
	fmt.Fprintf(out, "  Status:    %s\n", job.Status())
	fmt.Fprintf(out, "  Queue:     %s\n", job.Queue())
	fmt.Fprintf(out, "  Parent:    %s\n", parent)
	fmt.Fprintf(out, "  Worker:    %s\n", worker)
	fmt.Fprintf(out, "  Retries:   %d/%d (retryable: %s)\n", job.RetryCount(), job.MaxRetries(), yesNo(job.CanBeRetried()))
	fmt.Fprintf(out, "  Estimate:  %ds\n", job.TimeEstimate())
	fmt.Fprintf(out, "  Created:   %s\n", formatTimestamp(job.CreatedAt()))
	fmt.Fprintf(out, "  Updated:   %s\n", formatTimestamp(job.UpdatedAt()))
	if dataset := job.Dataset(); len(dataset) > 0 {
		fmt.Fprintf(out, "  Dataset:   %s\n", dataset)
	}
	printLogSection(out, "History", job.History())
	printLogSection(out, "Output", job.Output())
}

func printLogSection(out io.Writer, title string, lines []string) {
	fmt.Fprintf(out, "\n%s:\n", title)
	if len(lines) == 0 {
		fmt.Fprintln(out, "  (empty)")
		return
	}
	for _, line := range lines {
		fmt.Fprintf(out, "  %s\n", line)
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a job from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(false, func(mgr *jobs.Manager, _ *queue.Store) error {
				job, err := mgr.Dequeue(cmd.Context(), id)
				if err != nil {
					return describeLoadError(id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted job #%d (%s)\n", id, job.Label())
				return nil
			})
		},
	}
}

func newUnclaimCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unclaim <id>",
		Short: "Release a job from the worker holding it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(false, func(mgr *jobs.Manager, _ *queue.Store) error {
				job, err := mgr.Load(cmd.Context(), id)
				if err != nil {
					return describeLoadError(id, err)
				}
				if !job.IsClaimed() {
					fmt.Fprintf(cmd.OutOrStdout(), "Job #%d is not claimed\n", id)
					return nil
				}
				previous := job.WorkerID()
				if err := job.Unclaim(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released job #%d from worker %s\n", id, previous)
				return nil
			})
		},
	}
}

func newFailCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "fail <id>",
		Short: "Record a failed attempt for a job",
		Long: "Record a failed attempt for a job, typically one left in progress by a\n" +
			"worker that died. The job is retried if its budget allows, otherwise abandoned.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(false, func(mgr *jobs.Manager, _ *queue.Store) error {
				job, err := mgr.Load(cmd.Context(), id)
				if err != nil {
					return describeLoadError(id, err)
				}
				if err := job.MarkAsFailed(cmd.Context(), errors.New(reason)); err != nil {
					if errors.Is(err, jobs.ErrInvalidTransition) {
						return fmt.Errorf("job #%d is %s and cannot be failed", id, job.Status())
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job #%d is now %s (attempt %d of %d)\n", id, job.Status(), job.RetryCount(), job.MaxRetries()+1)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "marked as failed from the command line", "Reason recorded in the job history")
	return cmd
}

func newTypesCommand(_ *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "types",
		Short:       "List registered job types",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := jobs.NewRegistry()
			jobtypes.Register(registry)
			for _, name := range registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
