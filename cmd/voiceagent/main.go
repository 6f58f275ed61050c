package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ShivankK26/ai-voice-agent/internal/api/anthropic"
	"github.com/ShivankK26/ai-voice-agent/internal/call"
	"github.com/ShivankK26/ai-voice-agent/internal/config"
	"github.com/ShivankK26/ai-voice-agent/internal/improve"
	"github.com/ShivankK26/ai-voice-agent/internal/llm"
	"github.com/ShivankK26/ai-voice-agent/internal/persona"
	"github.com/ShivankK26/ai-voice-agent/internal/score"
	"github.com/ShivankK26/ai-voice-agent/internal/selftest"
	"github.com/ShivankK26/ai-voice-agent/internal/server"
	"github.com/ShivankK26/ai-voice-agent/internal/telemetry"
	"github.com/ShivankK26/ai-voice-agent/internal/telephony"
	"github.com/ShivankK26/ai-voice-agent/internal/tracker"
	"github.com/ShivankK26/ai-voice-agent/internal/webapi"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("ai-voice-agent", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(os.Getenv("VOICE_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	trk := tracker.New(logger, tracker.WithTTL(cfg.Tracker.SessionTTL))
	defer trk.Close()

	var apiOpts []anthropic.ClientOption
	if cfg.Anthropic.BaseURL != "" {
		apiOpts = append(apiOpts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	completer := llm.NewClient(anthropic.NewClient(cfg.Anthropic.APIKey, apiOpts...), cfg.Anthropic.Model)
	responder := llm.NewResponder(completer)

	dialer := telephony.NewDialer(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber, cfg.Server.BaseURL, logger)
	recorder := call.NewRecorder(trk, responder, logger, cfg.Call.ConfidenceThreshold, cfg.Call.ListenTimeout, cfg.Server.BaseURL)

	generator := persona.NewGenerator(completer, logger)
	simulator := persona.NewSimulator(responder, logger)
	scorer := score.NewScorer(completer, logger)
	improver := improve.NewImprover(completer, logger)

	defaults := selftest.Options{
		MaxIterations:  cfg.SelfTest.MaxIterations,
		TargetScore:    cfg.SelfTest.TargetScore,
		PersonaCount:   cfg.SelfTest.PersonaCount,
		SimulatedTurns: cfg.SelfTest.SimulatedTurns,
	}
	controller := selftest.NewController(generator, simulator, scorer, improver, logger, defaults)

	handler := webapi.NewHandler(dialer, recorder, trk, generator, simulator, scorer, improver, controller, logger, webapi.Config{
		BaseURL:       cfg.Server.BaseURL,
		ListenTimeout: cfg.Call.ListenTimeout,
		WaitPolicy: call.WaitPolicy{
			MinExchanges: cfg.LiveTest.MinExchanges,
			MaxWait:      cfg.LiveTest.MaxWait,
			PollInterval: cfg.LiveTest.PollInterval,
		},
		Defaults: defaults,
	})

	srv := server.New(cfg.Server.Port, logger, server.TimeoutPolicy{
		Default: cfg.Server.RequestTimeout,
		Exempt:  []string{"/testing"},
	})
	handler.Routes(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	logger.Info("voice agent started", slog.Int("port", cfg.Server.Port))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	case <-sigChan:
	}

	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
