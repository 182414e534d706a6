package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"talkvault/internal/config"
	"talkvault/internal/stagecache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and select cached stage results",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheUseCommand(ctx))
	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var stageFilter string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list <archive-dir>",
		Short: "List cached stage versions of an archived talk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			archivePath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			cache := stagecache.New(logger)
			manifest := cache.Manifest(archivePath)
			if manifest == nil {
				return fmt.Errorf("no stage cache in %s", archivePath)
			}

			stages := make([]string, 0, len(manifest.Entries))
			for name := range manifest.Entries {
				if stageFilter == "" || name == stageFilter {
					stages = append(stages, name)
				}
			}
			slices.Sort(stages)

			entries := []stagecache.Entry{}
			for _, name := range stages {
				entries = append(entries, cache.Entries(archivePath, name)...)
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				degraded, _ := e.Metadata["degraded"].(bool)
				rows = append(rows, []string{
					e.Stage,
					strconv.Itoa(e.Version),
					currentMarker(e.IsCurrent),
					e.ModelName,
					yesNo(degraded),
					e.CreatedAt.Local().Format(time.DateTime),
				})
			}
			return listing{
				columns: []column{
					{title: "Stage"}, {title: "Version", numeric: true}, {title: "Current"},
					{title: "Model"}, {title: "Degraded"}, {title: "Created"},
				},
				rows:    rows,
				records: entries,
				empty:   "No cached results",
			}.write(cmd, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&stageFilter, "stage", "s", "", "Only list this stage")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	return cmd
}

func currentMarker(current bool) string {
	if current {
		return "*"
	}
	return ""
}

func newCacheUseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "use <archive-dir> <stage> <version>",
		Short: "Make a cached version the current result of a stage",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			archivePath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			stageName := strings.TrimSpace(args[1])
			version, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(args[2]), "v"))
			if err != nil || version < 1 {
				return fmt.Errorf("invalid version %q", args[2])
			}
			ok, err := stagecache.New(logger).SetCurrentVersion(archivePath, stageName, version)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s has no cached version %d in %s", stageName, version, archivePath)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now uses version %d\n", stageName, version)
			return nil
		},
	}
}
