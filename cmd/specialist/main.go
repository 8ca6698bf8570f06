package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/greyhaven/game-analyst-agents/internal/adapters/http"
	"github.com/greyhaven/game-analyst-agents/internal/bootstrap"
	"github.com/greyhaven/game-analyst-agents/internal/config"
	"github.com/greyhaven/game-analyst-agents/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewSpecialist(ctx, cfg, logging.NewJSONLogger(cfg.AgentRole, cfg.LogLevel))
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		app.Service,
		app.ServiceName,
		app.Metrics,
		trafficConfig(cfg),
		logging.NewJSONLogger("http", cfg.LogLevel),
	).Handler()

	// Write timeout must outlast the longest agent turn.
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.AgentTurnTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("%s specialist listening on :%s", cfg.AgentRole, cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("specialist server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("specialist shutdown error: %v", err)
	}
}

func trafficConfig(cfg config.Config) httpadapter.TrafficConfig {
	return httpadapter.TrafficConfig{
		RateLimitRPS:     cfg.APIRateLimitRPS,
		RateLimitBurst:   cfg.APIRateLimitBurst,
		MaxInFlight:      cfg.APIMaxInFlight,
		BackpressureWait: time.Duration(cfg.APIBackpressureWaitMillis) * time.Millisecond,
	}
}
