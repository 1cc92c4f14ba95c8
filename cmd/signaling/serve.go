package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mossy-p/burner-signaling/config"
	"github.com/mossy-p/burner-signaling/internal/admission"
	"github.com/mossy-p/burner-signaling/internal/clock"
	"github.com/mossy-p/burner-signaling/internal/expiry"
	"github.com/mossy-p/burner-signaling/internal/handlers"
	"github.com/mossy-p/burner-signaling/internal/identity"
	"github.com/mossy-p/burner-signaling/internal/keyring"
	"github.com/mossy-p/burner-signaling/internal/metrics"
	"github.com/mossy-p/burner-signaling/internal/redis"
	"github.com/mossy-p/burner-signaling/internal/rooms"
)

const shutdownTimeout = 10 * time.Second

var flagPort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(flagPort)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&flagPort, "port", "p", "", "HTTP listen port (overrides PORT)")
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	keys, err := keyring.New(cfg.JWTSecret)
	if err != nil {
		return err
	}
	clk := clock.Real()
	m := metrics.New()

	credentialKey := keys.MustDerive(keyring.PurposeCredential)
	authority := identity.NewAuthority(credentialKey[:], clk, identity.Config{
		CredentialTTL: cfg.CredentialTTL,
		RefreshWindow: cfg.RefreshWindow,
	})

	// Connect to Redis when enabled; buckets and the room directory
	// then live there.
	memStore := admission.NewMemoryStore()
	var store admission.Store = memStore
	var mirror *rooms.Mirror
	if cfg.Redis.Enabled {
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		logger.Info("Redis connection established", "addr", cfg.Redis.Addr())

		store = redis.NewBucketStore(rdb, "")
		mirror = rooms.NewMirror(redis.NewDirectory(rdb, ""), 0, logger, m)
	}

	limiter := admission.NewLimiter(cfg.Policies(), store, clk, logger, m)
	adjuster := admission.NewAdjuster(limiter, admission.HeapSampler{Budget: uint64(cfg.MemoryBudget)}, cfg.AdjustPeriod, clk)

	hub := rooms.New(rooms.Config{
		EndedGrace:  cfg.EndedGrace,
		MessageTTL:  cfg.MessageTTL,
		PasscodeKey: keys.MustDerive(keyring.PurposePasscode),
	}, mirror, clk, logger, m)

	scheduler := expiry.New(clk, cfg.SweepInterval, logger)
	scheduler.Register("rooms", hub)
	scheduler.Register("revocations", expiry.SweeperFunc(authority.Sweep))
	if !cfg.Redis.Enabled {
		scheduler.Register("rate_buckets", memStore)
	}

	if cfg.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterDeps{
		Config:        cfg,
		Authority:     authority,
		Hub:           hub,
		Limiter:       limiter,
		Fingerprinter: admission.NewFingerprinter(keys.MustDerive(keyring.PurposeFingerprint)),
		Metrics:       m,
		Logger:        logger,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return adjuster.Run(gctx) })
	if mirror != nil {
		g.Go(func() error { return mirror.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("Starting signaling server", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped", "counters", m.Snapshot())
	return err
}
