package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/pelusa-v/roomchat/internal/auth"
	"github.com/pelusa-v/roomchat/internal/chat"
	"github.com/pelusa-v/roomchat/internal/config"
	"github.com/pelusa-v/roomchat/internal/dao"
	"github.com/pelusa-v/roomchat/internal/handlers"
	"github.com/pelusa-v/roomchat/internal/media"
	"github.com/pelusa-v/roomchat/internal/notify"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Start the websocket and HTTP server",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := dao.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	store := dao.New(db)
	defer store.Close()

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// presence 降级为离线，不阻止启动
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, presence degraded")
	}

	var bus chat.Backplane = chat.NewLocalBackplane()
	if cfg.Redis.Backplane == "redis" {
		bus = chat.NewRedisBackplane(rdb, cfg.Redis.Prefix+"bus:")
	}

	resolver, err := buildMedia(ctx, cfg)
	if err != nil {
		return err
	}
	notifier, queue, err := buildNotifier(ctx, cfg, store)
	if err != nil {
		return err
	}

	mgr := chat.NewManager(chat.Deps{
		Store: store,
		Registry: chat.NewRedisRegistry(rdb, chat.RegistryOptions{
			Prefix:  cfg.Redis.Prefix,
			Timeout: cfg.Presence.Timeout,
			TTL:     cfg.Presence.TTL,
		}),
		Backplane: bus,
		Media:     resolver,
		Notifier:  notifier,
		Fanout:    chat.FanoutOptions{PageSize: cfg.Chat.FanoutPageSize, Workers: cfg.Chat.FanoutWorkers},
		PageLimit: cfg.Chat.PageLimit,
	})
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start channel: %w", err)
	}
	if queue != nil {
		if err := queue.Start(ctx); err != nil {
			return fmt.Errorf("failed to start push queue: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := queue.Stop(sctx); err != nil {
				log.Warn().Err(err).Msg("push queue stop")
			}
		}()
	}

	authn, err := auth.New(cfg.Auth.Secret, store, cfg.Auth.Method)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handlers.New(ctx, mgr, authn).Routes(app)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		errCh <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	return app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout)
}

// buildMedia returns nil when no bucket is configured; URLs are then left empty.
func buildMedia(ctx context.Context, cfg *config.Config) (chat.MediaResolver, error) {
	if cfg.Media.Bucket == "" {
		log.Info().Msg("no media bucket, media urls disabled")
		return nil, nil
	}
	client, err := media.NewS3Client(ctx, cfg.Media.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	checker := media.NewS3Checker(client, cfg.Media.Bucket)
	return media.NewResolver(checker, cfg.Media.CDNURL, cfg.Media.Folders, cfg.Media.CheckTimeout), nil
}

func buildNotifier(ctx context.Context, cfg *config.Config, store *dao.Store) (chat.Notifier, *notify.Queue, error) {
	if cfg.Notify.Backend == "none" {
		return nil, nil, nil
	}
	var pusher notify.Pusher = notify.LogPusher{}
	if cfg.Notify.FCMCredentials != "" {
		client, err := notify.NewFCMClient(ctx, cfg.Notify.FCMCredentials, cfg.Notify.FCMProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init firebase: %w", err)
		}
		pusher = notify.NewFCMPusher(client)
	}
	deliverer := notify.NewDeliverer(store, pusher, cfg.Notify.Batch)

	if cfg.Notify.Backend == "river" {
		q, err := notify.NewQueue(ctx, cfg.Notify.DatabaseURL, deliverer, cfg.Notify.Workers)
		if err != nil {
			return nil, nil, err
		}
		return q.Notifier(0), q, nil
	}
	return notify.NewDirectNotifier(deliverer, cfg.Notify.Timeout), nil, nil
}
