package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tradepost/internal/api"
	"tradepost/internal/audit"
	"tradepost/internal/auth"
	"tradepost/internal/config"
	"tradepost/internal/db"
	"tradepost/internal/economy"
	"tradepost/internal/market"
	"tradepost/internal/player"
	"tradepost/internal/shopconf"
	"tradepost/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	var pool *pgxpool.Pool
	if cfg.NeedsPostgres() {
		pool, err = db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: int32(cfg.DBMaxConns), MinConns: 1})
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Error("db schema failed", "err", err)
			os.Exit(1)
		}
	}

	kind, err := store.ParseKind(cfg.Store)
	if err != nil {
		logger.Error("store config invalid", "err", err)
		os.Exit(1)
	}
	backend, err := store.Open(ctx, store.Options{
		Kind:      kind,
		Path:      cfg.StorePath,
		RedisAddr: cfg.RedisAddr,
		Pool:      pool,
	})
	if err != nil {
		logger.Error("store open failed", "kind", kind, "err", err)
		os.Exit(1)
	}
	persist := store.NewWriteback(backend, cfg.WriteTimeout, logger)
	defer func() {
		if err := persist.Close(); err != nil {
			logger.Error("store close failed", "err", err)
		}
	}()

	var money, points economy.Ledger
	if cfg.Ledger == "postgres" {
		pg := economy.NewPgLedger(pool)
		money, points = pg, pg
	} else {
		mem := economy.NewMemoryLedger()
		money, points = mem, mem
	}
	economies := economy.NewRegistry(cfg.DefaultEconomy, logger)
	if err := economies.Builtins(money, points, cfg.Currency); err != nil {
		logger.Error("economy init failed", "err", err)
		os.Exit(1)
	}

	resolver := market.VanillaResolver{}
	catalog := market.NewCatalog(cfg.DynamicPricing, logger)
	if cfg.CatalogPath != "" {
		file, err := shopconf.Load(cfg.CatalogPath)
		if err != nil {
			logger.Error("catalog load failed", "path", cfg.CatalogPath, "err", err)
			os.Exit(1)
		}
		if err := shopconf.Apply(catalog, file, resolver); err != nil {
			logger.Error("catalog apply failed", "path", cfg.CatalogPath, "err", err)
			os.Exit(1)
		}
	}
	if err := catalog.Hydrate(ctx, persist); err != nil {
		logger.Warn("stock hydration incomplete", "err", err)
	}

	fileLog := audit.NewFileLog(cfg.AuditLogPath, logger)
	defer fileLog.Close()
	sinks := audit.Fanout{fileLog}
	if cfg.DiscordWebhook != "" {
		discord, err := audit.NewDiscord(cfg.DiscordWebhook, logger)
		if err != nil {
			logger.Error("discord audit disabled", "err", err)
		} else {
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := discord.Close(closeCtx); err != nil {
					logger.Warn("discord audit close", "err", err)
				}
			}()
			sinks = append(sinks, discord)
		}
	}

	discounts := market.NewDiscounts("", []market.NamedTier{
		{Name: "vip", Rate: decimal.NewFromFloat(cfg.DiscountVIP)},
		{Name: "mvp", Rate: decimal.NewFromFloat(cfg.DiscountMVP)},
		{Name: "premium", Rate: decimal.NewFromFloat(cfg.DiscountPremium)},
	})
	processor := market.NewProcessor(market.ProcessorDeps{
		Catalog:   catalog,
		Limits:    market.NewLimits(persist, logger),
		Discounts: discounts,
		Economies: economies,
		Store:     persist,
		Audit:     sinks,
	}, logger)

	restorer := market.NewRestorer(catalog, persist, cfg.RestoreRate, logger)
	if err := restorer.Start(ctx, cfg.RestoreInterval); err != nil {
		logger.Error("restorer start failed", "err", err)
		os.Exit(1)
	}
	defer restorer.Stop()

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("auth init failed", "err", err)
		os.Exit(1)
	}
	if cfg.BootstrapAdmin != "" {
		token, expires, err := tokens.Issue("", cfg.BootstrapAdmin, auth.RoleAdmin, auth.RolePlayer)
		if err != nil {
			logger.Error("bootstrap token failed", "err", err)
			os.Exit(1)
		}
		logger.Info("bootstrap admin token issued", "name", cfg.BootstrapAdmin, "expires_at", expires, "token", token)
	}

	server := api.New(cfg, logger, api.Deps{
		Processor: processor,
		Restorer:  restorer,
		Economies: economies,
		Players:   player.NewDirectory(logger),
		Store:     persist,
		Tokens:    tokens,
		Resolver:  resolver,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("tradepost api listening", "addr", cfg.Addr, "store", kind, "ledger", cfg.Ledger)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
