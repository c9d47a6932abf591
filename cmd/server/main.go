package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/api"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/app"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/config"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/logging"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/mcp"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/services"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/tls"
)

func main() {
	ctx := context.Background()

	// Parse command line flags
	envFile := flag.String("env", "", "Path to .env file")
	migrate := flag.Bool("migrate", false, "Apply the database schema before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	logger := logging.NewLogger(cfg.Log.Level, cfg.LogFormat())
	defer logger.Sync()
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"config_file", cfg.ConfigFile,
		"source", cfg.Source.Owner+"/"+cfg.Source.Repo,
		"chat_model", cfg.AI.ChatModel,
		"embedding_flavor", cfg.AI.Embedding.Flavor,
	)

	if *migrate {
		if err := repository.Migrate(ctx, cfg.DSN()); err != nil {
			logger.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("Database schema applied")
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(services.ServiceName))

	apiServer := api.NewServer(application.Service, logger)
	e.GET("/health", apiServer.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Mount REST API handlers
	apiGroup := e.Group("/api/v1")
	api.RegisterHandlers(apiGroup, apiServer)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(application.Service, app.Version)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp", echo.WrapHandler(mcpHandlers))
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

	logger.Info("MCP protocol handlers mounted")

	e.GET("/openapi.yaml", echo.WrapHandler(http.HandlerFunc(api.SpecHandler)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler("/openapi.yaml")))

	// A full sync can run for minutes.
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		if !cfg.TLS.Enable {
			serverErrors <- server.ListenAndServe()
			return
		}
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			serverErrors <- errors.New("TLS enabled but cert/key file not provided")
			return
		}
		generated, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			logger.Error("failed to generate self-signed cert", "error", err)
		} else if generated {
			logger.Warn("using a generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
		}
		serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			application.Close()
			os.Exit(1)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
}
