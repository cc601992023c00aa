package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront/handlers"
	"storefront/internal/auth"
	"storefront/internal/basket"
	"storefront/internal/config"
	"storefront/internal/consul"
	"storefront/internal/media"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/products"
	"storefront/internal/stores/kafka"
	"storefront/internal/stores/postgres"
	"storefront/internal/stores/redisstore"
	"storefront/internal/users"
	"storefront/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	slog.Info("starting storefront", slog.String("version", Version), slog.Int("port", cfg.ServerPort))

	db, err := postgres.OpenDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := postgres.Migrate(db, "up"); err != nil {
			return err
		}
	}

	keys, err := auth.NewKeys(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	sessions, closeSessions, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	k, err := kafka.NewConf(cfg.KafkaBrokers)
	if err != nil {
		return err
	}
	defer k.Close()
	if !k.Enabled() {
		slog.Warn("KAFKA_BROKERS not set, domain events are dropped")
	}

	images, err := media.NewResolver(cfg.CloudinaryURL)
	if err != nil {
		return err
	}

	u, err := users.NewConf(db)
	if err != nil {
		return err
	}
	p, err := products.NewConf(db)
	if err != nil {
		return err
	}
	b, err := basket.NewConf(db)
	if err != nil {
		return err
	}
	o, err := orders.NewConf(db)
	if err != nil {
		return err
	}

	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		slog.Warn("Stripe keys incomplete, checkout or webhook verification will fail")
	}
	pay := payments.NewStripe(payments.Config{
		SecretKey:         cfg.StripeSecretKey,
		WebhookSecret:     cfg.StripeWebhookSecret,
		Currency:          cfg.Currency,
		SuccessURL:        cfg.SuccessURL,
		CancelURL:         cfg.CancelURL,
		ShippingCountries: cfg.ShippingCountries,
	})

	r, err := handlers.API(handlers.Deps{
		Users:        u,
		Products:     p,
		Basket:       b,
		Orders:       o,
		Payments:     pay,
		Events:       k,
		Images:       images,
		Keys:         keys,
		Sessions:     sessions,
		Currency:     cfg.Currency,
		CORSOrigin:   cfg.CORSOrigin,
		SessionTTL:   cfg.SessionTTL,
		SecureCookie: cfg.GinMode == gin.ReleaseMode,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      r,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("failed to listen on grpc port: %w", err)
		}
		gs := grpc.NewServer()
		hs := handlers.NewHealthService(db, cfg.ServiceName)
		hs.Register(gs)
		go hs.Run(ctx)
		go func() {
			slog.Info("grpc health server listening", slog.String("addr", lis.Addr().String()))
			if err := gs.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
		defer gs.GracefulStop()
	}

	if cfg.ConsulAddr != "" {
		client, err := consul.NewClient(cfg.ConsulAddr)
		if err != nil {
			return err
		}
		serviceID, err := consul.RegisterService(client, cfg.ServiceName, cfg.ServiceAddress, cfg.ServerPort)
		if err != nil {
			slog.Error("consul registration failed", slog.String(logkey.ERROR, err.Error()))
		} else {
			slog.Info("registered with consul", slog.String("service_id", serviceID))
			defer func() {
				if err := consul.DeregisterService(client, serviceID); err != nil {
					slog.Error("consul deregistration failed", slog.String(logkey.ERROR, err.Error()))
				}
			}()
		}
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("server error", slog.String(logkey.ERROR, err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful server shutdown failed", slog.String(logkey.ERROR, err.Error()))
		return err
	}
	slog.Info("server gracefully stopped")
	return nil
}

// newSessionStore prefers redis and falls back to process memory when REDIS_ADDR is unset.
func newSessionStore(cfg *config.Config) (auth.SessionStore, func(), error) {
	if cfg.RedisAddr == "" {
		slog.Warn("REDIS_ADDR not set, sessions are kept in memory")
		return auth.NewMemorySessionStore(), func() {}, nil
	}

	client, err := redisstore.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	store := redisstore.NewStore(client)
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Error("error closing redis client", slog.String(logkey.ERROR, err.Error()))
		}
	}, nil
}
