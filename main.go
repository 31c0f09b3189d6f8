package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fleetwise/agent"
	"fleetwise/config"
	"fleetwise/database"
	"fleetwise/llmclient"
	"fleetwise/orders"
	"fleetwise/web"
	"fleetwise/web/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(args []string) error {
	rootCmd := &cobra.Command{
		Use:           "fleetwise",
		Short:         "Fleet reporting chat assistant and order intake",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newServeCmd(), newAskCmd(), newParseOrderCmd(), newSeedCmd())
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// bootstrap loads configuration and the configured logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to re-initialize logger with configured level: %w", err)
	}
	return cfg, logger, nil
}

// loadExtractor builds the order extractor over the reference catalog. A
// missing catalog is tolerated: items then pass through unmatched.
func loadExtractor(cfg *config.Config, llm orders.Completer, logger *zap.Logger) (*orders.Extractor, *orders.Matcher) {
	catalog, err := orders.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Warn("Reference catalog unavailable, order items will not be matched",
			zap.String("path", cfg.CatalogPath),
			zap.Error(err))
		catalog = &orders.Catalog{}
	} else {
		logger.Info("Reference catalog loaded",
			zap.Int("materials", len(catalog.Materials)),
			zap.Int("customers", len(catalog.Customers)))
	}

	matcher := orders.NewMatcher(catalog.Materials, cfg.MatchThreshold, cfg.MatchBlockingThreshold, logger)
	return orders.NewExtractor(llm, catalog, matcher, cfg.CustomerMatchThreshold, logger), matcher
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer config.Cleanup()
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mongoStore, err := database.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		return err
	}
	defer mongoStore.Close(context.Background())

	var pgStore *database.PostgresStore
	if cfg.PostgresDSN != "" {
		pgStore, err = database.NewPostgresStore(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to ensure database schema: %w", err)
		}
	} else {
		logger.Info("POSTGRES_DSN not set, chat history and orders are kept in memory only")
	}

	llm := llmclient.New(cfg, logger)
	fleetAgent := agent.NewAgent(cfg, llm, mongoStore, logger)
	extractor, matcher := loadExtractor(cfg, llm, logger)
	defer matcher.Close()

	sessions, err := services.NewSessionService(cfg.SessionCacheSize, pgStore, logger)
	if err != nil {
		return err
	}
	chatService := services.NewChatService(fleetAgent, sessions, pgStore, logger)
	orderService := services.NewOrderService(extractor, sessions, pgStore, logger)

	if pgStore != nil && cfg.CleanupEnabled {
		cleanupService := web.NewCleanupService(pgStore, sessions, logger)
		go cleanupService.Run(ctx, cfg.CleanupInterval, cfg.SessionRetentionAge)
	}

	webServer := web.NewServer(chatService, orderService, sessions, logger, cfg)
	port := fmt.Sprintf(":%d", cfg.WebPort)
	logger.Info("Starting FleetWise web server", zap.String("port", port))
	return webServer.Start(ctx, port)
}
