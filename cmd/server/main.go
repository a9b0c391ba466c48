package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/flightassist/skyguard/internal/agent"
	"github.com/flightassist/skyguard/internal/ai"
	"github.com/flightassist/skyguard/internal/ai/gemini"
	"github.com/flightassist/skyguard/internal/ai/pattern"
	"github.com/flightassist/skyguard/internal/api"
	"github.com/flightassist/skyguard/internal/audit"
	"github.com/flightassist/skyguard/internal/config"
	"github.com/flightassist/skyguard/internal/guardrail"
	"github.com/flightassist/skyguard/internal/runway"
	"github.com/flightassist/skyguard/internal/tools"
	"github.com/flightassist/skyguard/internal/weather"
	"github.com/flightassist/skyguard/pkg/logger"
)

// Version is injected at build time.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting skyguard server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := audit.NewSink(cfg.Audit.LogPath, log)

	weatherClient := weather.NewClient(weather.Config{
		APIBaseURL:            cfg.Weather.APIBaseURL,
		RequestTimeoutSeconds: cfg.Weather.RequestTimeoutSeconds,
		MaxRetries:            cfg.Weather.MaxRetries,
		CacheTTLSeconds:       cfg.Weather.CacheTTLSeconds,
	}, log)
	weatherService := weather.NewService(weatherClient, sink, cfg.Weather.CacheTTLSeconds, log)

	catalog := runway.Catalog(cfg.Station.RunwayCatalog)

	registry := tools.NewRegistry()
	registry.Register(tools.FetchMETARDescriptor(weatherService))
	registry.Register(tools.SelectBestRunwayDescriptor(catalog, cfg.Station.DefaultMaxCrosswindKt, cfg.Guardrail.MagneticCorrection()))
	registry.Register(tools.FetchAircraftSpecsDescriptor())
	registry.Register(tools.CalculateFuelBurnDescriptor())
	registry.Register(tools.QueryManualDescriptor())
	registry.Register(tools.GenerateATCPhraseDescriptor())
	registry.Register(tools.LogFlightEventDescriptor(tools.NewMemoryEventLogger()))

	fallbackDecider := pattern.New()

	var primaryDecider ai.Decider
	if cfg.AI.Backend == "gemini" {
		apiKey := os.Getenv(cfg.AI.GeminiAPIKeyEnv)
		if apiKey == "" {
			log.Warn("ai.backend is gemini but the configured API key environment variable is unset, running pattern-only",
				logger.String("env_var", cfg.AI.GeminiAPIKeyEnv))
		} else {
			provider, err := gemini.NewProvider(ctx, apiKey)
			if err != nil {
				log.Error("failed to create gemini provider, running pattern-only", logger.Error(err))
			} else {
				primaryDecider = gemini.NewDecider(provider, cfg.AI.GeminiModel)
			}
		}
	}

	agentCfg := agent.Config{
		MaxLoops:        cfg.Agent.MaxLoops,
		RequestDeadline: time.Duration(cfg.Agent.RequestDeadlineMs) * time.Millisecond,
		CallDeadline:    time.Duration(cfg.Agent.CallDeadlineMs) * time.Millisecond,
		Guardrail: guardrail.Config{
			ToleranceKt:               cfg.Guardrail.ThresholdKt,
			UseGustForVerification:    cfg.Guardrail.UseGustForVerification,
			MagneticCorrectionEnabled: cfg.Guardrail.MagneticCorrection(),
		},
	}
	agentSvc := agent.New(registry, primaryDecider, fallbackDecider, sink, log, agentCfg)

	router := api.NewRouter(agentSvc, weatherService, cfg, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", server.Addr), logger.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")
	cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	go func() {
		defer wg.Done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", logger.Error(err))
		}
	}()
	wg.Wait()

	log.Info("Server fully stopped")
}
