package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sigillo-app/backend/internal/accounts"
	"github.com/sigillo-app/backend/internal/auth"
	"github.com/sigillo-app/backend/internal/catalog"
	"github.com/sigillo-app/backend/internal/checkout"
	"github.com/sigillo-app/backend/internal/config"
	"github.com/sigillo-app/backend/internal/database"
	"github.com/sigillo-app/backend/internal/finance"
	"github.com/sigillo-app/backend/internal/logging"
	"github.com/sigillo-app/backend/internal/messaging"
	"github.com/sigillo-app/backend/internal/server"
	"github.com/sigillo-app/backend/internal/storage"
	"github.com/sigillo-app/backend/internal/submissions"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sigillo-api",
		Short: "Sigillo notary booking backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("storage-root", defaults.GetString("storage.root"), "Object storage root directory")
	cmd.PersistentFlags().String("public-base-url", defaults.GetString("storage.public_base_url"), "Public base URL for stored objects")
	cmd.PersistentFlags().String("stripe-secret-key", "", "Stripe secret key (overrides env)")
	cmd.PersistentFlags().String("redis-address", defaults.GetString("redis.address"), "Redis address for cross-instance fan-out")
	cmd.PersistentFlags().Bool("admin-mode", defaults.GetBool("admin_mode"), "Mount the privileged finance and catalog surface")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "storage.root", "storage-root")
	bindFlag(cmd, "storage.public_base_url", "public-base-url")
	bindFlag(cmd, "stripe.secret_key", "stripe-secret-key")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "admin_mode", "admin-mode")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "sigillo-auth",
		Audience:      "sigillo-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	ids := submissions.NewUUIDProvider()

	accountService, err := accounts.NewService(accounts.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: ids,
		Logger:     logging.Named(logger, "accounts"),
	})
	if err != nil {
		return err
	}

	submissionService, err := submissions.NewService(submissions.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: ids,
		Notaries:   accountService,
		Logger:     logging.Named(logger, "submissions"),
	})
	if err != nil {
		return err
	}

	objectStore, err := storage.NewStore(storage.StoreConfig{
		Fs:            afero.NewOsFs(),
		Root:          appConfig.StorageRoot,
		PublicBaseURL: appConfig.PublicBaseURL,
		Clock:         time.Now,
	})
	if err != nil {
		return err
	}

	dispatcher := server.NewRealtimeDispatcher()
	var publisher messaging.Publisher = dispatcher

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if appConfig.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     appConfig.RedisAddress,
			Password: appConfig.RedisPassword,
		})
		defer redisClient.Close()

		bridge, err := server.NewRedisBridge(server.RedisBridgeConfig{
			Client: redisClient,
			Local:  dispatcher,
			Logger: logging.Named(logger, "realtime"),
		})
		if err != nil {
			return err
		}
		go bridge.Run(signalCtx)
		publisher = bridge
	}

	messagingService, err := messaging.NewService(messaging.ServiceConfig{
		Database:    db,
		Clock:       time.Now,
		IDProvider:  ids,
		Publisher:   publisher,
		Attachments: objectStore,
		Submissions: submissionService,
		Logger:      logging.Named(logger, "messaging"),
	})
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		TokenManager: tokenManager,
		Accounts:     accountService,
		Submissions:  submissionService,
		Messaging:    messagingService,
		Realtime:     dispatcher,
		Logger:       logger,
	}

	catalogStore, err := catalog.NewStore(catalog.StoreConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: ids,
	})
	if err != nil {
		return err
	}

	if appConfig.AdminMode {
		financeService, err := finance.NewService(finance.ServiceConfig{
			Database:    db,
			Clock:       time.Now,
			IDProvider:  ids,
			Receipts:    submissionService,
			Submissions: submissionService,
			Logger:      logging.Named(logger, "finance"),
		})
		if err != nil {
			return err
		}
		deps.Finance = financeService
		deps.Catalog = catalogStore
	}

	if appConfig.StripeSecretKey != "" {
		sessions, err := checkout.NewStripeSessionCreator(appConfig.StripeSecretKey, appConfig.Currency)
		if err != nil {
			return err
		}
		bridge, err := checkout.NewBridge(checkout.BridgeConfig{
			Catalog:     catalogStore,
			Accounts:    accountService,
			Submissions: submissionService,
			Sessions:    sessions,
			SuccessPath: appConfig.SuccessURLPath,
			CancelPath:  appConfig.CancelURLPath,
			Logger:      logging.Named(logger, "checkout"),
		})
		if err != nil {
			return err
		}
		deps.Checkout = bridge
	}

	handler, err := server.NewHTTPHandler(deps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
