package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diogomassis/rinha-dispatch/internal/env"
	"github.com/diogomassis/rinha-dispatch/internal/logger"
	"github.com/diogomassis/rinha-dispatch/internal/models"
	"github.com/diogomassis/rinha-dispatch/internal/persistence"
	"github.com/diogomassis/rinha-dispatch/internal/services/cache"
	"github.com/diogomassis/rinha-dispatch/internal/services/payments"
	servicespersistence "github.com/diogomassis/rinha-dispatch/internal/services/persistence"
)

func summaryCmd() *cobra.Command {
	var from, to string
	var archive bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the processed payments summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), archive, func(service *payments.Service) error {
				res, err := service.GetSummary(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "inclusive lower bound (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "inclusive upper bound (RFC 3339)")
	cmd.Flags().BoolVar(&archive, "archive", false, "read the Postgres archive instead of Redis")

	return cmd
}

func purgeCmd() *cobra.Command {
	var archive bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Clear recorded payments, counters, dedup keys and queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), archive, func(service *payments.Service) error {
				if err := service.Purge(cmd.Context()); err != nil {
					return err
				}
				fmt.Println("payments purged")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&archive, "archive", false, "purge the Postgres archive instead of Redis")

	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the processor health mirrored by running instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			redisClient := cache.NewRinhaRedisClient(cfg)
			defer redisClient.Close()

			mirror := cache.NewHealthMirror(redisClient.Client(), cfg.HealthCacheTTL)
			out := make(map[models.ProcessorType]models.ProcessorHealth, len(models.Processors))
			for _, p := range models.Processors {
				h, err := mirror.Get(cmd.Context(), p)
				if err != nil {
					return err
				}
				out[p] = h
			}
			return printJSON(out)
		},
	}
}

func withStores(ctx context.Context, archive bool, fn func(service *payments.Service) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	redisClient := cache.NewRinhaRedisClient(cfg)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		return err
	}

	queue := cache.NewRinhaRedisQueueService(redisClient.Client(), cfg.QueueOrdering)
	if !archive {
		recorder := cache.NewRinhaRedisPersistenceService(redisClient.Client(), cfg.DedupTTL, logger.Component(log, "recorder"))
		return fn(payments.NewService(queue, recorder, logger.Component(log, "payments")))
	}

	store, closeStore, err := openArchive(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(payments.NewService(archiveOnly{queue}, store, logger.Component(log, "payments")))
}

func openArchive(ctx context.Context, cfg *env.EnvironmentVariables, log zerolog.Logger) (*servicespersistence.PaymentPersistenceService, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("--archive needs DATABASE_URL")
	}
	db, err := persistence.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		return nil, nil, err
	}
	if err := persistence.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Debug().Msg("using postgres archive")
	return servicespersistence.NewPaymentPersistenceService(db), db.Close, nil
}

// archiveOnly keeps archive purges away from the live queues.
type archiveOnly struct {
	*cache.RinhaRedisQueueService
}

func (archiveOnly) Purge(ctx context.Context) error {
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
