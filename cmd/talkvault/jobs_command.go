package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"talkvault/internal/jobs"
	"talkvault/internal/model"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect processing jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsFailInterruptedCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobs.Open(cmd.Context(), cfg.JobsDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			filter := make([]model.ProcessingStatus, 0, len(statuses))
			for _, s := range statuses {
				filter = append(filter, model.ProcessingStatus(strings.ToLower(strings.TrimSpace(s))))
			}
			list, err := store.List(cmd.Context(), limit, filter...)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				detail := job.Message
				if job.ErrorMessage != "" {
					detail = job.ErrorMessage
				}
				rows = append(rows, []string{
					job.ID[:8],
					string(job.Status),
					fmt.Sprintf("%.0f%%", job.Progress),
					fallbackText(job.VideoID, job.VideoPath),
					job.Duration().Round(time.Second).String(),
					truncate(detail, 60),
				})
			}
			return listing{
				columns: []column{
					{title: "ID"}, {title: "Status"}, {title: "Progress", numeric: true},
					{title: "Video"}, {title: "Duration", numeric: true}, {title: "Detail"},
				},
				rows:    rows,
				records: list,
				empty:   "No jobs",
			}.write(cmd, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs (0 for all)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only list jobs in these statuses")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func newJobsFailInterruptedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fail-interrupted",
		Short: "Mark jobs left running by a terminated process as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobs.Open(cmd.Context(), cfg.JobsDBPath())
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.FailInterrupted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d job(s) failed\n", n)
			return nil
		},
	}
}

func fallbackText(primary, secondary string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return secondary
}
