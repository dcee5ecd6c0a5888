package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/api"
	"github.com/npezzotti/go-tripplanner/internal/cache"
	"github.com/npezzotti/go-tripplanner/internal/config"
	"github.com/npezzotti/go-tripplanner/internal/database"
	"github.com/npezzotti/go-tripplanner/internal/server"
	"github.com/npezzotti/go-tripplanner/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr              string
	dsn               string
	signingKey        string
	allowedOrigins    stringSliceFlag
	opportunitiesPath string
	redisAddr         string
	notifyChannel     string
	migrate           bool
)

func main() {
	logger := log.New(os.Stderr, "[tripplanner] ", log.LstdFlags)

	if err := config.LoadEnv(); err != nil {
		logger.Fatal("load env:", err)
	}

	flag.StringVar(&addr, "addr", config.Getenv("TRIPPLANNER_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", config.Getenv("TRIPPLANNER_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", config.Getenv("TRIPPLANNER_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&opportunitiesPath, "opportunities", config.Getenv("TRIPPLANNER_OPPORTUNITIES", "data/opportunities.json"), "grouped opportunity dataset served to clients")
	flag.StringVar(&redisAddr, "redis-addr", config.Getenv("TRIPPLANNER_REDIS_ADDR", ""), "redis address for the profile cache, empty to disable")
	flag.StringVar(&notifyChannel, "notify-channel", config.Getenv("TRIPPLANNER_NOTIFY_CHANNEL", ""), "postgres NOTIFY channel for row changes across instances, empty for in-process delivery")
	flag.BoolVar(&migrate, "migrate", true, "apply database migrations on start")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		if origins := config.Getenv("TRIPPLANNER_ALLOWED_ORIGINS", ""); origins != "" {
			allowedOrigins.Set(origins)
		}
	}

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins,
		config.WithOpportunitiesPath(opportunitiesPath),
		config.WithRedisAddr(redisAddr),
		config.WithNotifyChannel(notifyChannel),
	)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgTripPlannerRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if migrate {
		if err := dbConn.Migrate(); err != nil {
			logger.Fatal("db migrate:", err)
		}
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	hub, err := server.NewHub(logger, dbConn, statsUpdater)
	if err != nil {
		logger.Fatal("new hub:", err)
	}

	var opts []api.AppOption

	if cfg.RedisAddr != "" {
		profileCache := cache.NewRedisProfileCache(cfg.RedisAddr, 0)
		defer profileCache.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := profileCache.Ping(pingCtx); err != nil {
			logger.Println("redis unavailable, profiles will not be cached:", err)
		} else {
			opts = append(opts, api.WithProfileCache(profileCache))
		}
		cancel()
	}

	listenCtx, stopListening := context.WithCancel(context.Background())
	defer stopListening()

	if cfg.NotifyChannel != "" {
		listener, err := database.NewChangeListener(logger, cfg.DatabaseDSN, cfg.NotifyChannel, hub.Dispatch)
		if err != nil {
			logger.Fatal("change listener:", err)
		}
		defer listener.Close()

		go listener.Run(listenCtx)
		opts = append(opts, api.WithPublisher(database.NewPgNotifier(dbConn, cfg.NotifyChannel)))
		logger.Printf("publishing row changes on channel %q", cfg.NotifyChannel)
	}

	srv := api.NewTripPlannerApp(mux, logger, hub, dbConn, cfg, opts...)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go hub.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	stopListening()

	logger.Println("shutting down hub...")
	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.Println("hub shutdown:", err)
	}

	logger.Println("shutdown complete")
}
