package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/docscribe/docscribe/internal/cache"
	uuidgen "github.com/docscribe/docscribe/internal/id/uuid"
	"github.com/docscribe/docscribe/internal/logging"
	"github.com/docscribe/docscribe/internal/progress"
	"github.com/docscribe/docscribe/internal/progress/sinks"
)

// newCacheCmd groups cache maintenance commands.
func newCacheCmd(bootLogger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persisted page cache",
	}
	cmd.AddCommand(newCacheClearCmd(bootLogger))
	return cmd
}

// newCacheClearCmd empties the persisted cache snapshot so the next crawl
// starts cold.
func newCacheClearCmd(bootLogger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the persisted page cache",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			logger, err := logging.New(development)
			if err != nil {
				logger = bootLogger
			}
			defer func() { _ = logger.Sync() }()

			path := viper.GetString("cache.path")
			if path == "" {
				return fmt.Errorf("cache.path is not configured")
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				logger.Info("no persisted cache to clear", zap.String("path", path))
				return nil
			}

			store := cache.New(viper.GetInt("cache.max_entries"), viper.GetDuration("cache.ttl"))
			if err := store.Restore(path); err != nil {
				return fmt.Errorf("restore cache snapshot: %w", err)
			}
			entries := store.Len()
			store.Clear()
			if err := store.Persist(path); err != nil {
				return fmt.Errorf("persist cleared cache: %w", err)
			}

			emitCacheCleared(logger, path, entries)
			logger.Info("cache cleared",
				zap.String("path", path),
				zap.Int("entries_removed", entries),
			)
			return nil
		},
	}
}

// emitCacheCleared reports the clear through the progress pipeline so log
// sinks see the same lifecycle stages a crawl run produces.
func emitCacheCleared(logger *zap.Logger, path string, entries int) {
	id, err := uuidgen.NewGenerator().NewRawID()
	if err != nil {
		return
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger))
	hub.Emit(progress.Event{
		JobID: progress.UUIDToBytes(id),
		TS:    time.Now().UTC(),
		Stage: progress.StageCacheCleared,
		URL:   path,
		Count: int64(entries),
	})
	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = hub.Close(closeCtx)
}
