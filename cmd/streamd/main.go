package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cinestream/internal/config"
	"cinestream/internal/engine"
	"cinestream/internal/httpapi"
	"cinestream/internal/metrics"
	"cinestream/internal/middleware"
	"cinestream/internal/reaper"
	"cinestream/internal/registry"
	"cinestream/internal/search"
	"cinestream/internal/watch"
)

// openProgressStore connects the optional playback-progress database.
// Returns nil when PG_DSN is unset; the server runs fine without it.
func openProgressStore(ctx context.Context) *watch.Store {
	dsn := config.PostgresDSN()
	if dsn == "" {
		log.Printf("[db] PG_DSN unset, playback progress disabled")
		return nil
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("[db] open: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("[db] ping: %v", err)
	}
	store := watch.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("[db] schema: %v", err)
	}
	log.Println("[db] connected")
	return store
}

func buildAggregator() *search.Aggregator {
	httpClient := &http.Client{Timeout: config.SearchTimeout()}
	var providers []search.Provider
	if config.IndexerURL() != "" && config.IndexerAPIKey() != "" {
		providers = append(providers, &search.Torznab{
			BaseURL: config.IndexerURL(),
			APIKey:  config.IndexerAPIKey(),
			Client:  httpClient,
		})
	}
	providers = append(providers,
		&search.YTS{Mirrors: config.YTSMirrors(), Client: httpClient},
		&search.X1337{Mirrors: config.X1337Mirrors(), Client: httpClient},
	)
	return &search.Aggregator{Providers: providers, Timeout: config.SearchTimeout()}
}

func main() {
	_ = godotenv.Load(".env")

	config.Load()
	config.SetupLogging()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progress := openProgressStore(rootCtx)

	eng, err := engine.New(engine.Options{
		DataDir:      config.DataRoot(),
		TrackersMode: config.TrackersMode(),
		WaitMetadata: config.WaitMetadata(),
		MaxConns:     config.MaxConns(),
	})
	if err != nil {
		log.Fatalf("[boot] engine: %v", err)
	}

	reg := registry.New(eng)
	metrics.Register(prometheus.DefaultRegisterer)

	api := httpapi.NewServer(reg, buildAggregator(), eng, progress, config.PublicBaseURL())
	mux := api.Routes()
	mux.Handle("GET /metrics", promhttp.Handler())

	rp := &reaper.Reaper{Interval: config.ReapInterval(), IdleTimeout: config.IdleTimeout()}
	go rp.Run(rootCtx, reg)

	addr := config.ListenAddr()
	log.Printf("[boot] streamd listening on %s root=%s waitMetadata=%s idleTimeout=%s trackersMode=%s",
		addr, config.DataRoot(), config.WaitMetadata(), config.IdleTimeout(), config.TrackersMode())

	srv := &http.Server{
		Addr:     addr,
		Handler:  middleware.Recover(middleware.CORS(mux)),
		ErrorLog: log.New(log.Writer(), "[http] ", 0),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-rootCtx.Done()
	log.Printf("[boot] shutdown requested")

	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)

	reg.Close()
	eng.Close()

	log.Printf("[boot] shutdown complete")
}
