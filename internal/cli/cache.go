package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/entityshape/internal/cache"
	"github.com/ppiankov/entityshape/internal/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the on-disk response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count cached entries per namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, dir, err := diskCache()
		if err != nil {
			return err
		}
		stats, err := disk.Stats()
		if err != nil {
			return fmt.Errorf("read cache: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Cache directory: %s\n", dir)
		namespaces := make([]string, 0, len(stats))
		for ns := range stats {
			namespaces = append(namespaces, ns)
		}
		sort.Strings(namespaces)
		for _, ns := range namespaces {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-8s %d\n", ns, stats[ns])
		}
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, _, err := diskCache()
		if err != nil {
			return err
		}
		removed, err := disk.Prune()
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d expired entries\n", removed)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		disk, dir, err := diskCache()
		if err != nil {
			return err
		}
		if err := disk.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %s\n", dir)
		return nil
	},
}

func diskCache() (*cache.DiskCache, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	applyCacheDir(cfg)
	if cfg.Cache.Dir == "" {
		return nil, "", fmt.Errorf("no cache directory configured")
	}
	return cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL), cfg.Cache.Dir, nil
}

// applyCacheDir puts the disk layer under the user cache dir when none is configured
func applyCacheDir(cfg *model.Config) {
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = cache.DefaultDir()
	}
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
