package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shehryarbajwa/cloudbrowser/internal/fakeplane"
	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/internal/ratelimit"
)

func main() {
	log := logging.NewLogger("fakeplane")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using system environment variables")
	}

	addr := flag.String("addr", envOr("FAKEPLANE_ADDR", ":8080"), "listen address")
	apiKey := flag.String("api-key", envOr("CLOUDBROWSER_API_KEY", "sk_test"), "accepted bearer key")
	balance := flag.Float64("balance", envFloat("FAKEPLANE_BALANCE", 25), "starting account balance")
	readyAfter := flag.Int("ready-after", 2, "polls answered \"claimed\" before a session is ready")
	failWith := flag.String("fail-with", "", "make sessions fail with this message")
	blockURL := flag.String("block-url", "", "make sessions report blocked for this URL")
	perHour := flag.Int("rate-per-hour", 0, "per-key request limit; 0 disables it")
	burst := flag.Int("burst", 10, "rate limit burst")
	flag.Parse()

	fake := fakeplane.NewServer(*apiKey, *balance)
	fake.SetScenario(fakeplane.Scenario{
		ReadyAfter:  *readyAfter,
		FailWith:    *failWith,
		BlockURL:    *blockURL,
		BlockStatus: http.StatusForbidden,
	})
	if *perHour > 0 {
		fake.SetRateLimit(ratelimit.NewLimiter(ratelimit.PerHour(*perHour), *burst))
		log.WithField("per_hour", *perHour).Info("rate limit enabled")
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      fake.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", *addr).Info("fake control plane listening, API under /v1")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server stopped")
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
