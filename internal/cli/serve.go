package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"whatado/event-service/internal/config"
	"whatado/event-service/internal/gateway"
	"whatado/event-service/internal/handler"
	"whatado/event-service/internal/migrations"
	"whatado/event-service/internal/pubsub"
	"whatado/event-service/internal/repository"
	"whatado/event-service/internal/service"
	"whatado/event-service/internal/validation"
	"whatado/event-service/pkg/auth"
	"whatado/event-service/pkg/db"
	"whatado/event-service/pkg/logger"
	"whatado/event-service/pkg/metrics"
)

const (
	serviceName     = "event-service"
	shutdownTimeout = 10 * time.Second
	dbStatsInterval = 15 * time.Second
)

// ServeOptions holds flags for the serve command
type ServeOptions struct {
	*RootOptions
	Migrate bool
}

// NewServeCommand creates the serve command
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC service and the HTTP gateway",
		Long: `Run the EventService gRPC server and the HTTP JSON gateway in front of it.

Storage is MySQL unless STORAGE_DRIVER=memory. Push notifications go to the
Redis channel NOTIFICATION_CHANNEL when REDIS_URL is set and are logged
otherwise.

Example:
  event-service serve --env-file config.env
  STORAGE_DRIVER=memory event-service serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(ctx, cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "apply pending migrations before serving")

	return cmd
}

// backend is the storage the services run on
type backend struct {
	users      repository.UserRepository
	events     repository.EventRepository
	attendance repository.AttendanceRepository
	ready      func(ctx context.Context) error
	close      func() error
}

func openBackend(ctx context.Context, cfg *config.Config, opts *ServeOptions, log *logger.Logger, m *metrics.Metrics) (*backend, error) {
	if cfg.StorageDriver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on exit")
		store := repository.NewMemoryStore()
		return &backend{
			users:      store,
			events:     store,
			attendance: store,
			close:      func() error { return nil },
		}, nil
	}

	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	log.WithField("host", cfg.DB.Host).Info("connected to database")

	if opts.Migrate {
		runner, err := migrations.NewRunner(conn.DB)
		if err == nil {
			err = runner.Up()
		}
		if err != nil {
			conn.Close()
			return nil, err
		}
		log.Info("migrations applied")
	}
	if err := db.NewSchemaGuard(conn.DB).ValidateTables(ctx, migrations.Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("schema check failed, run migrate up: %w", err)
	}

	go m.PollDBStats(ctx, conn.DB, dbStatsInterval)

	return &backend{
		users:      repository.NewUserRepository(conn.DB),
		events:     repository.NewEventRepository(conn.DB),
		attendance: repository.NewAttendanceRepository(conn.DB),
		ready:      conn.Ping,
		close:      conn.Close,
	}, nil
}

func openPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) (pubsub.Publisher, error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL is empty, push notifications are only logged")
		return pubsub.NewLogPublisher(log.Logger), nil
	}
	pub, err := pubsub.NewRedisPublisher(ctx, cfg.RedisURL, cfg.NotificationChannel)
	if err != nil {
		return nil, err
	}
	log.WithField("channel", cfg.NotificationChannel).Info("publishing push notifications to redis")
	return pub, nil
}

func serve(ctx context.Context, cfg *config.Config, opts *ServeOptions) error {
	log := logger.NewLogger(serviceName, cfg.LogLevel)
	m := metrics.NewMetrics("event_service", prometheus.DefaultRegisterer)

	store, err := openBackend(ctx, cfg, opts, log, m)
	if err != nil {
		return err
	}
	defer store.close()

	pub, err := openPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pub.Close()

	svcOpts := service.Options{
		Radius:         cfg.DiscoveryRadius,
		SuggestedLimit: cfg.SuggestedLimit,
		MaxPageSize:    cfg.MaxPageSize,
		QueryTimeout:   cfg.QueryTimeout,
		Now:            time.Now,
	}
	notifier := service.NewNotifier(pub, log)
	discovery := service.NewDiscoveryService(store.users, store.events, svcOpts, log, m)
	attendance := service.NewAttendanceService(store.attendance, store.events, notifier, m)
	events := service.NewEventService(store.events, store.users, validation.New(), notifier, svcOpts)

	interceptors := []grpc.UnaryServerInterceptor{
		logger.UnaryServerInterceptor(log),
		metrics.UnaryServerInterceptor(m),
	}
	var validator auth.TokenValidator
	if cfg.JWTSecret != "" {
		jwtValidator := auth.NewJWTValidator(cfg.JWTSecret)
		validator = jwtValidator
		interceptors = append(interceptors, auth.UnaryServerInterceptor(jwtValidator))
	} else {
		log.Warn("JWT_SECRET is empty, requests are not authenticated")
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	handler.RegisterEventHandler(grpcServer, discovery, attendance, events)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(handler.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.GRPCPort, err)
	}

	conn, err := grpc.NewClient("localhost:"+cfg.GRPCPort, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create gateway client: %w", err)
	}
	defer conn.Close()

	throttle := gateway.NewThrottle(cfg.ThrottleMaxRequests, cfg.ThrottlePeriod, nil)
	go throttle.Run(ctx)

	httpServer := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: gateway.NewRouter(gateway.Config{
			Client:    handler.NewEventClient(conn),
			Validator: validator,
			Throttle:  throttle,
			Logger:    log,
			Gatherer:  prometheus.DefaultGatherer,
			Ready:     store.ready,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.WithField("port", cfg.GRPCPort).Info("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server stopped: %w", err)
		}
	}()
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("HTTP gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP gateway stopped: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		log.WithError(runErr).Error("server failed, shutting down")
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP gateway shutdown incomplete")
	}
	grpcServer.GracefulStop()
	log.Info("server stopped")
	return runErr
}
