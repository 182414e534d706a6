package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"talkvault/internal/config"
	"talkvault/internal/pipeline"
	"talkvault/internal/services/llm"
)

func newRerunCommand(ctx *commandContext) *cobra.Command {
	var modelFlag string

	cmd := &cobra.Command{
		Use:   "rerun <archive-dir> <stage>",
		Short: "Regenerate one stage from cached inputs as a new cache version",
		Long: "Regenerate one stage of an archived talk from the cached results of its " +
			"dependencies. The new result becomes the current cache version; archive files " +
			"are left untouched. Stages: " + strings.Join(pipeline.RerunnableStages, ", ") + ".",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			archivePath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			stageName := strings.ToLower(strings.TrimSpace(args[1]))
			if !slices.Contains(pipeline.RerunnableStages, stageName) {
				return fmt.Errorf("unknown stage %q (choose from %s)", stageName, strings.Join(pipeline.RerunnableStages, ", "))
			}

			return llm.WithClient(cfg.LLM, func(client llm.Client) error {
				orch, err := newOrchestrator(cfg, client, logger)
				if err != nil {
					return err
				}
				renderer := newProgressRenderer(cmd.OutOrStdout())
				entry, err := orch.Rerun(cmd.Context(), archivePath, stageName, strings.TrimSpace(modelFlag), func(u pipeline.Update) {
					renderer.render(eventFromUpdate(u))
				})
				if renderer.interactive && renderer.drawn {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s version %d (model %s)\n", entry.Stage, entry.Version, entry.ModelName)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model to use instead of the configured one")
	return cmd
}
