package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appchat "llm-gateway/application/chat"
	appembed "llm-gateway/application/embed"
	"llm-gateway/domain/chat"
	"llm-gateway/domain/provider"
	"llm-gateway/infrastructure/anthropic"
	"llm-gateway/infrastructure/openrouter"
	"llm-gateway/infrastructure/registry"
	httpiface "llm-gateway/interfaces/http"
	"llm-gateway/internal/config"
	"llm-gateway/internal/webc"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadYAML("")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	// Configure logging level
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	// Configure logging formatter per environment
	switch cfg.Logging.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetReportCaller(cfg.Logging.ReportCaller)

	logrus.WithFields(logrus.Fields{
		"port": cfg.Server.Port,
		"host": cfg.Server.Host,
	}).Info("Starting LLM Gateway")

	// Transport, optionally wrapped with per-host circuit breakers
	var client webc.Doer = webc.NewClient()
	if cfg.CircuitBreaker.Enabled {
		breakerCfg := webc.BreakerConfig{
			Enabled:          cfg.CircuitBreaker.Enabled,
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
			Timeout:          cfg.CircuitBreaker.Timeout,
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		}
		client = webc.NewBreakerClient(client, breakerCfg)
		logrus.WithFields(logrus.Fields{
			"failure_threshold": breakerCfg.FailureThreshold,
			"timeout":           breakerCfg.Timeout,
		}).Info("Circuit breaker configured")
	}

	reg := registry.New(
		anthropic.New(),
		openrouter.New(cfg.Server.RefererURL, cfg.Server.AppName),
	)

	targets := map[provider.Kind]appchat.TargetConfig{}
	if cfg.Providers.Anthropic.APIKey != "" || cfg.Providers.Anthropic.BaseURL != "" {
		targets[provider.KindAnthropic] = appchat.TargetConfig{
			APIKey:  cfg.Providers.Anthropic.APIKey,
			BaseURL: cfg.Providers.Anthropic.BaseURL,
		}
	}
	if cfg.Providers.OpenRouter.APIKey != "" || cfg.Providers.OpenRouter.BaseURL != "" {
		targets[provider.KindOpenRouter] = appchat.TargetConfig{
			APIKey:  cfg.Providers.OpenRouter.APIKey,
			BaseURL: cfg.Providers.OpenRouter.BaseURL,
		}
	}

	var defaults *chat.Options
	if cfg.Defaults.MaxTokens > 0 || cfg.Defaults.Temperature != nil {
		defaults = &chat.Options{Temperature: cfg.Defaults.Temperature}
		if cfg.Defaults.MaxTokens > 0 {
			defaults.MaxTokens = chat.Int(cfg.Defaults.MaxTokens)
		}
	}

	chatService := appchat.NewService(reg, client, targets, defaults)

	embedService, err := appembed.NewService(reg, client, targets, cfg.Embedding.CacheSize)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize embedding service")
	}

	router := httpiface.NewRouter(chatService, embedService, cfg.Server.CorsOrigins)
	ginRouter := router.SetupRoutes()

	address := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           ginRouter,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to listen for interrupt signal to trigger shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		logrus.WithField("address", address).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-c
	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	} else {
		logrus.Info("Server shutdown complete")
	}
}
