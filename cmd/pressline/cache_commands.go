package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pressline/internal/cache"
	"pressline/internal/config"
)

func newCacheCommand(cmdCtx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the content cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(cmdCtx))
	cacheCmd.AddCommand(newCacheStatsCommand(cmdCtx))
	cacheCmd.AddCommand(newCacheRemoveCommand(cmdCtx))
	cacheCmd.AddCommand(newCacheResetCommand(cmdCtx))
	cacheCmd.AddCommand(newCacheClearCommand(cmdCtx))

	return cacheCmd
}

func withStore(cmdCtx *commandContext, fn func(cmd *cobra.Command, args []string, cfg *config.Config, store *cache.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := cmdCtx.ensureConfig()
		if err != nil {
			return err
		}
		store, err := cache.Open(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd, args, cfg, store)
	}
}

func newCacheListCommand(cmdCtx *commandContext) *cobra.Command {
	var stageFilter string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached topics",
		RunE: withStore(cmdCtx, func(cmd *cobra.Command, args []string, cfg *config.Config, store *cache.Store) error {
			var stages []cache.Stage
			if stageFilter != "" {
				stage, ok := cache.ParseStage(stageFilter)
				if !ok {
					return fmt.Errorf("unknown stage %q (expected one of %v)", stageFilter, cache.AllStages())
				}
				stages = append(stages, stage)
			}

			entries, err := store.List(cmd.Context(), stages...)
			if err != nil {
				return err
			}

			if jsonOutput {
				type jsonEntry struct {
					Fingerprint  string `json:"fingerprint"`
					Topic        string `json:"topic"`
					Stage        string `json:"stage"`
					RemotePostID int64  `json:"remote_post_id,omitempty"`
					Attempts     int    `json:"attempts"`
					UpdatedAt    string `json:"updated_at"`
				}
				out := make([]jsonEntry, 0, len(entries))
				for _, entry := range entries {
					out = append(out, jsonEntry{
						Fingerprint:  entry.Fingerprint,
						Topic:        entry.Topic,
						Stage:        string(entry.Stage),
						RemotePostID: entry.RemotePostID,
						Attempts:     entry.AttemptCount,
						UpdatedAt:    entry.UpdatedAt.Format(time.RFC3339),
					})
				}
				return writeJSON(cmd, out)
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				postID := ""
				if entry.RemotePostID > 0 {
					postID = strconv.FormatInt(entry.RemotePostID, 10)
				}
				rows = append(rows, []string{
					shortFingerprint(entry.Fingerprint),
					entry.Topic,
					string(entry.Stage),
					postID,
					entry.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			printTable(cmd.OutOrStdout(), []column{
				{title: "Fingerprint"},
				{title: "Topic"},
				{title: "Stage"},
				{title: "Post ID", numeric: true},
				{title: "Updated"},
			}, rows)
			return nil
		}),
	}

	cmd.Flags().StringVar(&stageFilter, "stage", "", "Only list entries at this stage")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit entries as JSON")
	return cmd
}

func newCacheStatsCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show entry counts per stage",
		RunE: withStore(cmdCtx, func(cmd *cobra.Command, args []string, cfg *config.Config, store *cache.Store) error {
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]int{
					"total":          stats.Total,
					"generated":      stats.Generated,
					"media_resolved": stats.MediaResolved,
					"published":      stats.Published,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache: %s\n", store.Path())
			fmt.Fprintf(out, "  total:          %d\n", stats.Total)
			fmt.Fprintf(out, "  generated:      %d\n", stats.Generated)
			fmt.Fprintf(out, "  media_resolved: %d\n", stats.MediaResolved)
			fmt.Fprintf(out, "  published:      %d\n", stats.Published)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit stats as JSON")
	return cmd
}

func newCacheRemoveCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <fingerprint>",
		Short: "Remove a single cache entry",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(cmdCtx, func(cmd *cobra.Command, args []string, cfg *config.Config, store *cache.Store) error {
			removed, err := store.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no entry with fingerprint %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Entry removed")
			return nil
		}),
	}
}

func newCacheResetCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove unpublished entries so those topics regenerate",
		RunE: withStore(cmdCtx, func(cmd *cobra.Command, args []string, cfg *config.Config, store *cache.Store) error {
			removed, err := store.ResetPartial(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d unpublished entries\n", removed)
			return nil
		}),
	}
}

func newCacheClearCommand(cmdCtx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: withStore(cmdCtx, func(cmd *cobra.Command, args []string, cfg *config.Config, store *cache.Store) error {
			if !confirmed {
				return fmt.Errorf("clearing forgets published post IDs and allows duplicate posts; pass --yes to confirm")
			}
			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", removed)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm clearing the cache")
	return cmd
}

func shortFingerprint(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
