package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openvtt/tabletop/internal/cache"
	"github.com/openvtt/tabletop/internal/coordinator"
	"github.com/openvtt/tabletop/internal/inspect"
	"github.com/openvtt/tabletop/internal/models"
	"github.com/openvtt/tabletop/internal/render"
	"github.com/openvtt/tabletop/internal/table"
	"github.com/openvtt/tabletop/internal/transport"
)

const assetBucket = "assets"

func main() {
	configPath := flag.String("config", "tabletop.yaml", "path to config file")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("TABLETOP_LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().
		Str("server_url", cfg.Server.URL).
		Str("cache_path", cfg.Cache.Path).
		Msg("starting tabletop client")

	// Open asset cache persistence and restore the previous session's
	// recency stamps.
	bolt, err := cache.OpenBolt(cfg.Cache.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache storage")
	}
	defer bolt.Close()

	clock := clockwork.NewRealClock()
	assets := cache.New[models.Asset](clock, cfg.Cache.MaxEntries, cfg.Cache.MaxAge)
	if err := cache.Load(bolt, assetBucket, assets); err != nil {
		log.Warn().Err(err).Msg("starting with an empty asset cache")
	}
	if evicted := assets.EvictUnused(); evicted > 0 {
		log.Info().Int("evicted", evicted).Msg("evicted stale cached assets")
	}

	// Connect to the sync server.
	tcfg := transport.DefaultConfig()
	tcfg.URL = cfg.Server.URL
	client, err := transport.Dial(tcfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to sync server")
	}
	defer client.Close()

	// Wire the core: registry, render bridge, coordinator, transport.
	registry := table.NewRegistry()
	bridge := render.NewBridge(render.NewHeadless())
	coord := coordinator.New(registry, bridge, client, clock, coordinator.Config{
		DebounceWindow: cfg.Sync.DebounceWindow,
	})
	defer coord.Close()

	client.OnMessage(coord.HandleMessage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)

	// Local state inspector.
	var inspector *http.Server
	if cfg.Inspector.Enabled {
		inspector = inspect.NewServer(cfg.Inspector.Addr, inspect.NewHandler(registry, coord))
		go func() {
			log.Info().Str("addr", inspector.Addr).Msg("state inspector listening")
			if err := inspector.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("state inspector failed")
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if inspector != nil {
		if err := inspector.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("state inspector shutdown failed")
		}
	}

	// Stop the pumps before persisting, so no late inbound message races
	// the final cache write.
	cancel()
	client.Close()
	coord.Close()

	if err := cache.Save(bolt, assetBucket, assets); err != nil {
		log.Error().Err(err).Msg("failed to persist asset cache")
	}

	log.Info().Msg("tabletop client shutdown complete")
}
