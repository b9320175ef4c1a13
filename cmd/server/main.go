package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/temirov/GAuss/pkg/gauss"
	"github.com/temirov/GAuss/pkg/session"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/auth"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/events"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/httpapi"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/ingest"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/lifecycle"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/media"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/metrics"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/projects"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/publicpage"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/siteicon"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/slug"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/storage"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/task"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/widget"
)

const (
	commandUseName               = "server"
	commandShortDescription      = "Run the testimonial server"
	commandLongDescription       = "Launch the testimonial collection and display HTTP server"
	missingConfigurationMessage  = "missing required configuration"
	loggerCreationErrorMessage   = "logger"
	unexpectedArgumentsMessage   = "unexpected command arguments"
	commandInitializationFailure = "failed to configure command"
	flagNotDefinedMessage        = "flag %s not defined"
	environmentConfigurationErr  = "failed to apply environment configuration"
	invalidDurationMessage       = "invalid duration for %s"

	logEventListening    = "listening"
	logEventOpenDatabase = "open_db"
	logEventAutoMigrate  = "migrate"
	logEventServer       = "server"
	logEventRedis        = "redis_unavailable"
	logEventKafka        = "kafka_unavailable"
	logEventMinio        = "minio_unavailable"
	logEventOAuth        = "oauth_unavailable"
	logEventShutdown     = "shutdown"
	logFieldAddress      = "addr"
	logFieldServeMode    = "serve_mode"

	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyServeMode          = "SERVE_MODE"
	environmentKeyDatabaseDriver     = "DB_DRIVER"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeySessionSecret      = "SESSION_SECRET"
	environmentKeyGoogleClientID     = "GOOGLE_CLIENT_ID"
	environmentKeyGoogleClientSecret = "GOOGLE_CLIENT_SECRET"
	environmentKeyPublicBaseURL      = "PUBLIC_BASE_URL"
	environmentKeyRedisAddress       = "REDIS_ADDR"
	environmentKeyWidgetCacheTTL     = "WIDGET_CACHE_TTL"
	environmentKeyKafkaBrokers       = "KAFKA_BROKERS"
	environmentKeyKafkaTopic         = "KAFKA_TOPIC"
	environmentKeyMinioEndpoint      = "MINIO_ENDPOINT"
	environmentKeyMinioAccessKey     = "MINIO_ACCESS_KEY"
	environmentKeyMinioSecretKey     = "MINIO_SECRET_KEY"
	environmentKeyMinioBucket        = "MINIO_BUCKET"
	environmentKeyMinioUseSSL        = "MINIO_USE_SSL"
	environmentKeyMinioPublicURL     = "MINIO_PUBLIC_URL"
	environmentKeySweepInterval      = "SWEEP_INTERVAL"
	environmentKeySpamRetention      = "SPAM_RETENTION"

	flagNameApplicationAddress = "app-addr"
	flagNameServeMode          = "serve-mode"
	flagNameDatabaseDriver     = "db-driver"
	flagNameDatabaseDataSource = "db-dsn"
	flagNameSessionSecret      = "session-secret"
	flagNameGoogleClientID     = "google-client-id"
	flagNameGoogleClientSecret = "google-client-secret"
	flagNamePublicBaseURL      = "public-base-url"
	flagNameRedisAddress       = "redis-addr"
	flagNameWidgetCacheTTL     = "widget-cache-ttl"
	flagNameKafkaBrokers       = "kafka-brokers"
	flagNameKafkaTopic         = "kafka-topic"
	flagNameMinioEndpoint      = "minio-endpoint"
	flagNameMinioAccessKey     = "minio-access-key"
	flagNameMinioSecretKey     = "minio-secret-key"
	flagNameMinioBucket        = "minio-bucket"
	flagNameMinioUseSSL        = "minio-use-ssl"
	flagNameMinioPublicURL     = "minio-public-url"
	flagNameSweepInterval      = "sweep-interval"
	flagNameSpamRetention      = "spam-retention"

	defaultApplicationAddress = ":8080"
	defaultDatabaseDriver     = storage.DriverNameSQLite
	defaultWidgetCacheTTL     = "30s"
	defaultMinioBucket        = "testimonials"
	defaultSweepInterval      = "1h"
	defaultSpamRetention      = "720h"
	dashboardRoute            = "/app"
	readHeaderTimeoutSeconds  = 5
	shutdownTimeout           = 10 * time.Second
)

// configurationOption binds one flag to its environment key.
type configurationOption struct {
	environmentKey string
	flagName       string
	defaultValue   string
	usage          string
}

var configurationOptions = []configurationOption{
	{environmentKeyApplicationAddress, flagNameApplicationAddress, defaultApplicationAddress, "address for the HTTP server to listen on"},
	{environmentKeyServeMode, flagNameServeMode, string(ServeModeMonolith), "routes to serve: monolith, public or api"},
	{environmentKeyDatabaseDriver, flagNameDatabaseDriver, defaultDatabaseDriver, "database driver: sqlite or postgres"},
	{environmentKeyDatabaseDataSource, flagNameDatabaseDataSource, "", "database data source name"},
	{environmentKeySessionSecret, flagNameSessionSecret, "", "secret used to sign session cookies"},
	{environmentKeyGoogleClientID, flagNameGoogleClientID, "", "Google OAuth client id"},
	{environmentKeyGoogleClientSecret, flagNameGoogleClientSecret, "", "Google OAuth client secret"},
	{environmentKeyPublicBaseURL, flagNamePublicBaseURL, "", "external base URL of the dashboard"},
	{environmentKeyRedisAddress, flagNameRedisAddress, "", "Redis address for the widget cache (disabled when empty)"},
	{environmentKeyWidgetCacheTTL, flagNameWidgetCacheTTL, defaultWidgetCacheTTL, "lifetime of cached widget responses"},
	{environmentKeyKafkaBrokers, flagNameKafkaBrokers, "", "comma separated Kafka brokers for lifecycle events (disabled when empty)"},
	{environmentKeyKafkaTopic, flagNameKafkaTopic, events.DefaultTopic, "Kafka topic for lifecycle events"},
	{environmentKeyMinioEndpoint, flagNameMinioEndpoint, "", "MinIO endpoint for uploaded images (uploads disabled when empty)"},
	{environmentKeyMinioAccessKey, flagNameMinioAccessKey, "", "MinIO access key"},
	{environmentKeyMinioSecretKey, flagNameMinioSecretKey, "", "MinIO secret key"},
	{environmentKeyMinioBucket, flagNameMinioBucket, defaultMinioBucket, "MinIO bucket for uploaded images"},
	{environmentKeyMinioUseSSL, flagNameMinioUseSSL, "false", "use TLS for MinIO"},
	{environmentKeyMinioPublicURL, flagNameMinioPublicURL, "", "public base URL of stored images"},
	{environmentKeySweepInterval, flagNameSweepInterval, defaultSweepInterval, "interval between moderation sweeps"},
	{environmentKeySpamRetention, flagNameSpamRetention, defaultSpamRetention, "age after which spam submissions are deleted (0 keeps them)"},
}

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string
	ServeMode              ServeMode
	DatabaseDriver         string
	DatabaseDataSourceName string
	SessionSecret          string
	GoogleClientID         string
	GoogleClientSecret     string
	PublicBaseURL          string
	RedisAddress           string
	WidgetCacheTTL         time.Duration
	KafkaBrokers           []string
	KafkaTopic             string
	Minio                  media.MinioConfig
	SweepInterval          time.Duration
	SpamRetention          time.Duration
}

// DatabaseOpener opens a database connection using the provided storage configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	commandFlags := command.Flags()
	for _, option := range configurationOptions {
		application.configurationLoader.SetDefault(option.environmentKey, option.defaultValue)
		commandFlags.String(option.flagName, option.defaultValue, option.usage)
	}
	application.configurationLoader.AutomaticEnv()

	for _, option := range configurationOptions {
		if bindErr := application.bindFlag(commandFlags, option.environmentKey, option.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, option.environmentKey, option.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationErr, setErr)
	}

	return nil
}

func (application *ServerApplication) loadConfiguration() (ServerConfig, error) {
	loader := application.configurationLoader
	serveMode, serveModeErr := ParseServeMode(loader.GetString(environmentKeyServeMode))
	if serveModeErr != nil {
		return ServerConfig{}, serveModeErr
	}
	cacheTTL, ttlErr := parseDurationOption(loader, environmentKeyWidgetCacheTTL, flagNameWidgetCacheTTL)
	if ttlErr != nil {
		return ServerConfig{}, ttlErr
	}
	sweepInterval, sweepErr := parseDurationOption(loader, environmentKeySweepInterval, flagNameSweepInterval)
	if sweepErr != nil {
		return ServerConfig{}, sweepErr
	}
	spamRetention, retentionErr := parseDurationOption(loader, environmentKeySpamRetention, flagNameSpamRetention)
	if retentionErr != nil {
		return ServerConfig{}, retentionErr
	}

	return ServerConfig{
		ApplicationAddress:     loader.GetString(environmentKeyApplicationAddress),
		ServeMode:              serveMode,
		DatabaseDriver:         strings.TrimSpace(loader.GetString(environmentKeyDatabaseDriver)),
		DatabaseDataSourceName: strings.TrimSpace(loader.GetString(environmentKeyDatabaseDataSource)),
		SessionSecret:          strings.TrimSpace(loader.GetString(environmentKeySessionSecret)),
		GoogleClientID:         strings.TrimSpace(loader.GetString(environmentKeyGoogleClientID)),
		GoogleClientSecret:     strings.TrimSpace(loader.GetString(environmentKeyGoogleClientSecret)),
		PublicBaseURL:          strings.TrimRight(strings.TrimSpace(loader.GetString(environmentKeyPublicBaseURL)), "/"),
		RedisAddress:           strings.TrimSpace(loader.GetString(environmentKeyRedisAddress)),
		WidgetCacheTTL:         cacheTTL,
		KafkaBrokers:           splitList(loader.GetString(environmentKeyKafkaBrokers)),
		KafkaTopic:             strings.TrimSpace(loader.GetString(environmentKeyKafkaTopic)),
		Minio: media.MinioConfig{
			Endpoint:  strings.TrimSpace(loader.GetString(environmentKeyMinioEndpoint)),
			AccessKey: strings.TrimSpace(loader.GetString(environmentKeyMinioAccessKey)),
			SecretKey: strings.TrimSpace(loader.GetString(environmentKeyMinioSecretKey)),
			Bucket:    strings.TrimSpace(loader.GetString(environmentKeyMinioBucket)),
			UseSSL:    loader.GetBool(environmentKeyMinioUseSSL),
			PublicURL: strings.TrimSpace(loader.GetString(environmentKeyMinioPublicURL)),
		},
		SweepInterval: sweepInterval,
		SpamRetention: spamRetention,
	}, nil
}

func parseDurationOption(loader *viper.Viper, environmentKey string, flagName string) (time.Duration, error) {
	duration, parseErr := time.ParseDuration(strings.TrimSpace(loader.GetString(environmentKey)))
	if parseErr != nil {
		return 0, fmt.Errorf(invalidDurationMessage+": %w", flagName, parseErr)
	}
	return duration, nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig, configurationErr := application.loadConfiguration()
	if configurationErr != nil {
		return configurationErr
	}
	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}
	command.SilenceUsage = true

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, databaseErr := application.databaseOpener(storage.Config{
		DriverName:     serverConfig.DatabaseDriver,
		DataSourceName: serverConfig.DatabaseDataSourceName,
	})
	if databaseErr != nil {
		logger.Error(logEventOpenDatabase, zap.Error(databaseErr))
		return databaseErr
	}
	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Error(logEventAutoMigrate, zap.Error(migrateErr))
		return migrateErr
	}

	rootContext := command.Context()
	if rootContext == nil {
		rootContext = context.Background()
	}
	components := buildComponents(rootContext, serverConfig, database, logger)
	defer components.close()

	if serverConfig.ServeMode.servesAPI() {
		sweepScheduler := task.NewScheduler(serverConfig.SweepInterval,
			task.NewModerationSweep(database, logger, task.SweepConfig{SpamRetention: serverConfig.SpamRetention}),
			logger)
		go sweepScheduler.Run(rootContext)
		sweepScheduler.Trigger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	router.Use(metrics.Middleware())

	if serverConfig.ServeMode.servesAPI() {
		session.NewSession([]byte(serverConfig.SessionSecret))
		oauthHandlers, oauthErr := auth.NewHandlers(auth.Config{
			GoogleClientID:     serverConfig.GoogleClientID,
			GoogleClientSecret: serverConfig.GoogleClientSecret,
			PublicBaseURL:      serverConfig.PublicBaseURL,
			RedirectPath:       dashboardRoute,
			Scopes:             gauss.ScopeStrings(gauss.DefaultScopes),
			Logger:             logger,
		})
		if oauthErr != nil {
			logger.Error(logEventOAuth, zap.Error(oauthErr))
			return oauthErr
		}
		oauthHandlers.Register(router)
	}

	registerRoutes(router, routeDependencies{
		serveMode:           serverConfig.ServeMode,
		publicHandlers:      components.publicHandlers,
		ownerHandlers:       components.ownerHandlers,
		authManager:         components.authManager,
		rateLimiter:         httpapi.NewRateLimiter(0, 0),
		authenticatedOrigin: serverConfig.PublicBaseURL,
	})

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info(logEventListening,
			zap.String(logFieldAddress, serverConfig.ApplicationAddress),
			zap.String(logFieldServeMode, string(serverConfig.ServeMode)),
		)
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error(logEventServer, zap.Error(serveErr))
			return serveErr
		}
		return nil
	case <-rootContext.Done():
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownContext); shutdownErr != nil {
			logger.Warn(logEventShutdown, zap.Error(shutdownErr))
		}
		return nil
	}
}

// serverComponents holds the wired domain services and the resources closed on shutdown.
type serverComponents struct {
	publicHandlers *httpapi.PublicHandlers
	ownerHandlers  *httpapi.OwnerHandlers
	authManager    *httpapi.AuthManager
	closers        []func()
}

func (components serverComponents) close() {
	for index := len(components.closers) - 1; index >= 0; index-- {
		components.closers[index]()
	}
}

// buildComponents wires the optional backends. An unreachable Redis, Kafka or MinIO degrades the
// matching feature instead of failing startup.
func buildComponents(ctx context.Context, configuration ServerConfig, database *gorm.DB, logger *zap.Logger) serverComponents {
	var components serverComponents

	broadcaster := events.NewBroadcaster()
	components.closers = append(components.closers, broadcaster.Close)
	publishers := events.MultiPublisher{broadcaster}
	if len(configuration.KafkaBrokers) > 0 {
		kafkaPublisher, kafkaErr := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: configuration.KafkaBrokers,
			Topic:   configuration.KafkaTopic,
		}, logger)
		if kafkaErr != nil {
			logger.Warn(logEventKafka, zap.Error(kafkaErr))
		} else {
			publishers = append(publishers, kafkaPublisher)
			components.closers = append(components.closers, func() { _ = kafkaPublisher.Close() })
		}
	}

	var widgetCache widget.Cache = widget.NoopCache()
	if configuration.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: configuration.RedisAddress})
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			logger.Warn(logEventRedis, zap.Error(pingErr))
			_ = redisClient.Close()
		} else {
			widgetCache = widget.NewRedisCache(redisClient, configuration.WidgetCacheTTL)
			components.closers = append(components.closers, func() { _ = redisClient.Close() })
		}
	}

	var mediaStore media.Store
	if configuration.Minio.Endpoint != "" {
		minioStore, minioErr := media.NewMinioStore(ctx, configuration.Minio)
		if minioErr != nil {
			logger.Warn(logEventMinio, zap.Error(minioErr))
		} else {
			mediaStore = minioStore
		}
	}

	allocator := slug.NewAllocator()
	widgetController := widget.NewController(database, widgetCache, logger)
	engine := lifecycle.NewEngine(database, logger, publishers, widgetController)
	service := projects.NewService(database, engine, widgetController, publishers, mediaStore, logger).
		WithIconResolver(siteicon.NewResolver(nil, logger))
	ingestor := ingest.NewIngestor(database, allocator, publishers, logger)

	components.publicHandlers = httpapi.NewPublicHandlers(widgetController, publicpage.NewReader(database, logger), ingestor, mediaStore, logger)
	components.ownerHandlers = httpapi.NewOwnerHandlers(service, broadcaster, logger)
	if configuration.ServeMode.servesAPI() {
		components.authManager = httpapi.NewAuthManager(nil, logger)
	}
	return components
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.DatabaseDataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSource)
	}
	if configuration.ServeMode.servesAPI() {
		if configuration.SessionSecret == "" {
			missingParameters = append(missingParameters, flagNameSessionSecret)
		}
		if configuration.GoogleClientID == "" {
			missingParameters = append(missingParameters, flagNameGoogleClientID)
		}
		if configuration.GoogleClientSecret == "" {
			missingParameters = append(missingParameters, flagNameGoogleClientSecret)
		}
		if configuration.PublicBaseURL == "" {
			missingParameters = append(missingParameters, flagNamePublicBaseURL)
		}
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func splitList(rawList string) []string {
	var items []string
	for _, item := range strings.Split(rawList, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	signalContext, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	executeErr := rootCommand.ExecuteContext(signalContext)
	stop()
	if executeErr != nil {
		os.Exit(1)
	}
}
