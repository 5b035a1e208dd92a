/*
main.go - COC engine HTTP server entry point.

Grounded on the teacher's cmd/server/main.go startup sequence (parse
flags, open store, build handler, build router, start with graceful
shutdown); the SQLite store path and zerolog logger setup are new per
SPEC_FULL.md's ambient stack.
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cocrecords/coc-engine/api"
	"github.com/cocrecords/coc-engine/calendar"
	"github.com/cocrecords/coc-engine/clock"
	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/cocrecords/coc-engine/identity"
)

func main() {
	port := flag.String("port", "8080", "HTTP server port")
	dbPath := flag.String("db", "coc.db", "SQLite database path (use :memory: for in-memory)")
	jwtSecret := flag.String("jwt-secret", "", "HMAC secret for bearer-token verification")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	store, err := docstore.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	cfg := coc.DefaultConfig()
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Warn().Err(err).Str("timeZone", cfg.TimeZone).Msg("falling back to UTC")
		loc = time.UTC
	}
	cal := calendar.New(cfg.WeekendDays, loc)
	sysClock := clock.NewSystem(loc)

	handler := api.NewHandler(store, cal, sysClock, log)
	idp := identity.NewProvider([]byte(*jwtSecret))
	router := api.NewRouter(handler, idp)

	scheduler := api.NewExpireSweepScheduler(handler)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("stopped")
}
