package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/moviex/booking-system/internal/domain"
	"github.com/moviex/booking-system/internal/mailer"
	"github.com/moviex/booking-system/internal/payment"
	"github.com/moviex/booking-system/internal/realtime"
	"github.com/moviex/booking-system/internal/repository"
	"github.com/moviex/booking-system/internal/sweeper"
	appvalidator "github.com/moviex/booking-system/internal/validator"
	"github.com/moviex/booking-system/internal/vcs"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

var (
	version = vcs.Version()
)

type Application struct {
	config         config
	logger         *slog.Logger
	db             *pgxpool.Pool
	redis          redis.UniversalClient
	validator      *validator.Validate
	mailer         mailer.Mailer
	sessionManager *scs.SessionManager
	clock          domain.Clock
	hub            *realtime.Hub
	wg             sync.WaitGroup

	bookingRepo  domain.BookingRepository
	seatRepo     domain.SeatRepository
	showtimeRepo domain.ShowtimeRepository
	userRepo     domain.UserRepository

	paymentProvider domain.PaymentProvider
	publisher       domain.EventPublisher
}

type config struct {
	port int
	env  string
	db   struct {
		dsn          string
		maxOpenConns int
		maxIdleTime  time.Duration
	}
	redis struct {
		url          string
		maxOpenConns int
		maxIdleConns int
		maxIdleTime  time.Duration
	}
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	gateway struct {
		appID       string
		orderKey    string
		callbackKey string
		endpoint    string
		queryURL    string
		callbackURL string
	}
	booking struct {
		selectTimeout time.Duration
		payTimeout    time.Duration
	}
	sweepInterval    time.Duration
	otelCollectorUrl string
}

func Run() error {
	var cfg config

	flag.IntVar(&cfg.port, "port", 3000, "server port")
	flag.StringVar(&cfg.env, "env", "dev", "Environment (dev|staging|prod)")

	flag.StringVar(&cfg.db.dsn, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.db.maxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.redis.url, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.redis.maxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.redis.maxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.redis.maxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.smtp.host, "smtp-host", "sandbox.smtp.mailtrap.io", "SMTP host")
	flag.IntVar(&cfg.smtp.port, "smtp-port", 2525, "SMTP port")
	flag.StringVar(&cfg.smtp.username, "smtp-username", "", "SMTP username")
	flag.StringVar(&cfg.smtp.password, "smtp-password", "", "SMTP password")
	flag.StringVar(&cfg.smtp.sender, "smtp-sender", "MovieX <no-reply@moviex.example.com>", "SMTP sender")

	flag.StringVar(&cfg.gateway.appID, "gateway-app-id", "", "Payment gateway app ID")
	flag.StringVar(&cfg.gateway.orderKey, "gateway-order-key", "", "Payment gateway order signing key")
	flag.StringVar(&cfg.gateway.callbackKey, "gateway-callback-key", "", "Payment gateway callback verification key")
	flag.StringVar(&cfg.gateway.endpoint, "gateway-endpoint", "https://sb-openapi.zalopay.vn/v2/create", "Payment gateway order endpoint")
	flag.StringVar(&cfg.gateway.queryURL, "gateway-query-url", "https://sb-openapi.zalopay.vn/v2/query", "Payment gateway status endpoint")
	flag.StringVar(&cfg.gateway.callbackURL, "gateway-callback-url", "", "Public URL of the payment callback endpoint")

	flag.DurationVar(&cfg.booking.selectTimeout, "booking-select-timeout", 5*time.Minute, "Seat selection window per booking")
	flag.DurationVar(&cfg.booking.payTimeout, "booking-pay-timeout", 15*time.Minute, "Payment window per booking")
	flag.DurationVar(&cfg.sweepInterval, "sweep-interval", time.Minute, "Interval between expiry sweeps")

	flag.StringVar(&cfg.otelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector URL")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	clock := domain.NewRealClock()
	validator := appvalidator.NewValidator()

	db, err := newDatabasePool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	err = repository.Migrate(context.Background(), db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	hub := realtime.NewHub()
	broadcaster := realtime.NewBroadcaster(redisClient, hub, logger)

	gatewayProvider := payment.NewGatewayProvider(
		cfg.gateway.appID,
		cfg.gateway.orderKey,
		cfg.gateway.callbackKey,
		cfg.gateway.endpoint,
		cfg.gateway.queryURL,
		cfg.gateway.callbackURL,
		clock,
	)

	app := &Application{
		config:          cfg,
		logger:          logger,
		db:              db,
		redis:           redisClient,
		validator:       validator,
		mailer:          mailer.NewSMTPMailer(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender),
		sessionManager:  newSessionManager(redisClient),
		clock:           clock,
		hub:             hub,
		bookingRepo:     repository.NewPostgresBookingRepository(db, clock),
		seatRepo:        repository.NewPostgresSeatRepository(db, clock),
		showtimeRepo:    repository.NewPostgresShowtimeRepository(db),
		userRepo:        repository.NewPostgresUserRepository(db),
		paymentProvider: gatewayProvider,
		publisher:       broadcaster,
	}

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go func() {
		err := broadcaster.Run(workerCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event broadcaster exited", "error", err)
		}
	}()

	expirySweeper := sweeper.New(app.bookingRepo, app.publisher, logger, cfg.sweepInterval)
	go expirySweeper.Start(workerCtx)

	err = app.run()

	cancelWorkers()
	expirySweeper.Stop()
	app.wg.Wait()

	return err
}

func newSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = goredisstore.New(client)
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func newRedisClient(cfg config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.redis.url,
		MaxIdleConns:    cfg.redis.maxIdleConns,
		MaxActiveConns:  cfg.redis.maxOpenConns,
		ConnMaxIdleTime: cfg.redis.maxIdleTime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	err = errors.Join(redisotel.InstrumentTracing(rdb), redisotel.InstrumentMetrics(rdb))
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func newDatabasePool(cfg config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.db.maxIdleTime
	config.MaxConns = int32(cfg.db.maxOpenConns)

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // SSE streams write for the lifetime of the connection
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
		}

		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}
