// subsctl is the operations CLI for the subscriber store: schema setup,
// statistics, JSON backups, and legacy JSON imports.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vibecodezero/subscriber-service/internal/config"
	"github.com/vibecodezero/subscriber-service/internal/domain"
	"github.com/vibecodezero/subscriber-service/internal/persistence"
	"github.com/vibecodezero/subscriber-service/internal/storage"
)

const backupPageSize = 500

var rootCmd = &cobra.Command{
	Use:   "subsctl",
	Short: "Subscriber store operations",
	Long:  "Manages the subscriber store configured via environment variables: migrations, stats, backups and legacy imports.",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the subscriber schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, err := loadEnv()
		if err != nil {
			return err
		}

		switch cfg.Storage.Backend {
		case config.BackendSQLite:
			db, err := persistence.OpenSQLite(ctx, cfg.Storage.SQLitePath)
			if err != nil {
				return fmt.Errorf("open sqlite: %w", err)
			}
			defer db.Close()
			fmt.Printf("sqlite schema ready at %s\n", cfg.Storage.SQLitePath)

		case config.BackendPostgres:
			pg, err := persistence.NewPostgres(ctx, cfg.Storage, logger)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				return err
			}
			fmt.Println("postgres migrations applied")

		default:
			fmt.Println("file backend needs no schema")
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print subscriber statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		adapter, cleanup, err := openAdapter(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		total, err := adapter.Count(ctx, storage.Filter{})
		if err != nil {
			return err
		}
		active, err := adapter.Count(ctx, storage.Filter{Status: domain.SubscriberStatusActive})
		if err != nil {
			return err
		}
		unsubscribed, err := adapter.Count(ctx, storage.Filter{Status: domain.SubscriberStatusUnsubscribed})
		if err != nil {
			return err
		}

		fmt.Println("subscriber statistics")
		fmt.Println(strings.Repeat("=", 40))
		fmt.Printf("total:        %d\n", total)
		fmt.Printf("active:       %d\n", active)
		fmt.Printf("unsubscribed: %d\n", unsubscribed)

		if counter, ok := adapter.(storage.SourceCounter); ok {
			sources, err := counter.CountBySource(ctx)
			if err != nil {
				return err
			}
			if len(sources) > 0 {
				fmt.Println("\nby source")
				fmt.Println(strings.Repeat("-", 40))
				for _, sc := range sources {
					fmt.Printf("%-30s %d (active: %d)\n", sc.Source, sc.Count, sc.Active)
				}
			}
		}

		recent, err := adapter.List(ctx, 1, 10, storage.Filter{})
		if err != nil {
			return err
		}
		if len(recent.Records) > 0 {
			fmt.Println("\nmost recent")
			fmt.Println(strings.Repeat("-", 40))
			for i, sub := range recent.Records {
				marker := "+"
				if sub.Status != domain.SubscriberStatusActive {
					marker = "-"
				}
				fmt.Printf("%2d. [%s] %s (%s)\n", i+1, marker, sub.Email, sub.SubscribedAt.Format(time.RFC3339))
			}
		}
		return nil
	},
}

var backupDir string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Dump all subscribers to a timestamped JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, _, err := loadEnv()
		if err != nil {
			return err
		}
		adapter, cleanup, err := openAdapter(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		var all []domain.Subscriber
		for page := 1; ; page++ {
			res, err := adapter.List(ctx, page, backupPageSize, storage.Filter{})
			if err != nil {
				return err
			}
			all = append(all, res.Records...)
			if len(all) >= res.TotalCount || len(res.Records) == 0 {
				break
			}
		}

		if err := os.MkdirAll(backupDir, 0o755); err != nil {
			return err
		}
		timestamp := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().UTC().Format(time.RFC3339))
		path := filepath.Join(backupDir, fmt.Sprintf("subscribers_backup_%s.json", timestamp))

		payload := map[string]any{
			"backup_info": map[string]any{
				"created_at":     time.Now().UTC().Format(time.RFC3339),
				"total_records":  len(all),
				"backend":        cfg.Storage.Backend,
				"backup_version": "1.0",
			},
			"subscribers": all,
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}

		fmt.Printf("backup written: %s (%d records)\n", path, len(all))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <subscribers.json>",
	Short: "Import a legacy JSON subscribers file into the configured backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		adapter, cleanup, err := openAdapter(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var legacy []domain.Subscriber
		if err := json.Unmarshal(data, &legacy); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		imported, skipped := 0, 0
		for _, sub := range legacy {
			normalizeLegacy(&sub)
			err := adapter.Insert(ctx, &sub)
			switch {
			case err == nil:
				imported++
			case errors.Is(err, storage.ErrDuplicateKey):
				skipped++
			default:
				return fmt.Errorf("import %s: %w", sub.Email, err)
			}
		}

		fmt.Printf("imported %d subscribers, skipped %d duplicates\n", imported, skipped)
		return nil
	},
}

// normalizeLegacy fills fields the oldest JSON files did not carry.
func normalizeLegacy(sub *domain.Subscriber) {
	now := time.Now().UTC()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.UnsubscribeToken == "" {
		sub.UnsubscribeToken = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = domain.SubscriberStatusActive
	}
	if sub.Source == "" {
		sub.Source = domain.DefaultSource
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = now
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = sub.SubscribedAt
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = sub.SubscribedAt
	}
}

func loadEnv() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openAdapter(ctx context.Context) (storage.Adapter, func(), error) {
	cfg, logger, err := loadEnv()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Storage.Backend {
	case config.BackendFile:
		adapter, err := storage.NewFileAdapter(cfg.Storage.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return adapter, func() {}, nil

	case config.BackendSQLite:
		db, err := persistence.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewSQLiteAdapter(db), func() { db.Close() }, nil

	case config.BackendPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewPostgresAdapter(pg.PoolHandle()), pg.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Storage.Backend)
}

func init() {
	backupCmd.Flags().StringVar(&backupDir, "out", "backups", "directory for backup files")
	rootCmd.AddCommand(migrateCmd, statsCmd, backupCmd, importCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
