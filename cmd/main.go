package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"fabrics-catalog-service/internal/api"
	"fabrics-catalog-service/internal/catalog"
	"fabrics-catalog-service/internal/config"
	"fabrics-catalog-service/internal/store"
)

const (
	defaultAppName = "FabricsCatalogService"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info(".env file not found or failed to load, relying on system environment")
	}

	app := &cli.App{
		Name:   "fabrics-catalog",
		Usage:  "fabric catalog bot for Messenger, WhatsApp and Telegram backed by Airtable",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP, webhook and gRPC servers",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply the staff registry schema to Postgres",
				Action: migrateDB,
			},
			{
				Name:  "catalog-tree",
				Usage: "print the category hierarchy loaded from Airtable",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print JSON instead of an indented list"},
				},
				Action: printCatalogTree,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("service failed")
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	if cfg.IsDevelopment() {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		return
	}
	log.SetFormatter(&log.JSONFormatter{})
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"app_env": cfg.AppEnv, "log_level": cfg.LogLevel}).Info("Starting service...")

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter)
	registerHealthCheck(httpRouter, comps)
	api.NewHTTPHandler(comps.catalog, comps.reservations).RegisterRoutes(httpRouter)
	comps.webhooks.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		log.WithField("port", cfg.HttpServer.Port).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server ListenAndServe error")
		}
		log.Info("HTTP server has stopped.")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(api.NewGRPCHandler(comps.catalog, comps.engine))
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on port %s: %w", cfg.GrpcServer.Port, err)
	}

	go func() {
		log.WithField("port", cfg.GrpcServer.Port).Info("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.WithError(err).Fatal("gRPC server Serve error")
		}
		log.Info("gRPC server has stopped.")
	}()

	// --- Telegram long polling ---
	pollerDone := make(chan struct{})
	if comps.poller != nil {
		go func() {
			defer close(pollerDone)
			if err := comps.poller.Run(ctx); err != nil {
				log.WithError(err).Error("Telegram poller stopped with error")
			}
		}()
	} else {
		close(pollerDone)
	}

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(httpServer, grpcServer, cancel, pollerDone, comps, shutdownComplete)

	<-shutdownComplete
	log.Info("Service shutdown sequence finished.")
	return nil
}

func migrateDB(*cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Postgres.Enabled() {
		return errors.New("POSTGRES_HOST is not set; nothing to migrate")
	}
	db, err := openDatabase(context.Background(), cfg.Postgres.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := store.Migrate(db)
	if err != nil {
		return err
	}
	log.WithField("version", version).Info("Database schema is up to date")
	return nil
}

func printCatalogTree(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc := catalog.NewService(newAirtableClient(cfg), catalogTables(cfg), nil, 0)
	h, _, err := svc.Hierarchy(c.Context)
	if err != nil {
		return err
	}
	tree := h.BuildTree()

	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	}
	for _, node := range tree {
		fmt.Fprintf(out, "%s (%s)\n", node.Name, node.ID)
		for _, sub := range node.SubCategories {
			fmt.Fprintf(out, "  - %s (%s)\n", sub.Name, sub.ID)
		}
	}
	return nil
}

func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database connection: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func setupBaseMiddleware(router *chi.Mux) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logMiddleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	log.Debug("Base HTTP middleware registered.")
}

func logMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		h.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"url":        r.URL.Path,
			"status":     ww.Status(),
			"remoteAddr": r.RemoteAddr,
			"userAgent":  r.UserAgent(),
			"requestId":  middleware.GetReqID(r.Context()),
			"duration":   time.Since(start).String(),
		}).Info("handled request")
	})
}

func registerHealthCheck(router *chi.Mux, comps *components) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK) // Always 200, but payload indicates detailed status
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"database":    dependencyStatus(ctx, comps.pingDB),
			"cache":       dependencyStatus(ctx, comps.pingCache),
			"channels":    comps.channels,
		})
	})
	log.WithField("path", healthPath).Debug("HTTP health check registered")
}

func dependencyStatus(ctx context.Context, ping func(context.Context) error) string {
	if ping == nil {
		return "disabled"
	}
	if err := ping(ctx); err != nil {
		log.WithError(err).Warn("Health check ping failed")
		return "unhealthy"
	}
	return "healthy"
}

func setupGRPCServer(handler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnaryInterceptor))

	api.RegisterNavigatorServer(s, handler)
	log.Debug("CatalogNavigator gRPC service registered.")

	grpc_health_v1.RegisterHealthServer(s, health.NewServer())
	reflection.Register(s)
	return s
}

func logUnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	entry := log.WithFields(log.Fields{"method": info.FullMethod, "duration": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Warn("gRPC call failed")
	} else {
		entry.Info("handled gRPC call")
	}
	return resp, err
}

func waitForShutdown(
	httpServer *http.Server,
	grpcServer *grpc.Server,
	stopBackground context.CancelFunc,
	pollerDone <-chan struct{},
	comps *components,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-sigChan
	log.WithField("signal", receivedSignal.String()).Info("Received signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stopBackground()

	log.Info("Attempting to gracefully shut down gRPC server...")
	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	log.Info("Attempting to gracefully shut down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server graceful shutdown failed")
	} else {
		log.Info("HTTP server gracefully shut down.")
	}

	select {
	case <-stoppedGrpc:
		log.Info("gRPC server gracefully shut down.")
	case <-shutdownCtx.Done():
		log.WithError(shutdownCtx.Err()).Warn("gRPC server graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}

	select {
	case <-pollerDone:
	case <-shutdownCtx.Done():
		log.Warn("Telegram poller did not stop in time")
	}

	comps.close()
	log.Info("Graceful shutdown sequence completed.")
}
