package main

import (
	"os"

	"github.com/cameroncuttingedge/scorepad/api"
	"github.com/cameroncuttingedge/scorepad/config"
	"github.com/cameroncuttingedge/scorepad/hub"
	"github.com/cameroncuttingedge/scorepad/scoring"
	"github.com/cameroncuttingedge/scorepad/store"
	"github.com/cameroncuttingedge/scorepad/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	InitializeLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	db, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open game store")
	}
	defer db.Close()

	eventHub := hub.New(hub.Options{})
	defer eventHub.Close()

	service := scoring.NewService(db, eventHub)
	ws := websocket.NewServer(eventHub, db)

	log.Info().Str("addr", cfg.Addr).Msg("Starting App")
	if err := api.New(service, ws).StartAPI(cfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func InitializeLogger() {
	loggingEnabled := os.Getenv("LOGGING")
	if loggingEnabled != "true" {
		log.Logger = log.Output(os.Stdout)
	} else {
		runLogFile, err := os.OpenFile(
			"myapp.log",
			os.O_APPEND|os.O_CREATE|os.O_WRONLY,
			0664,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open log file")
		}
		multi := zerolog.MultiLevelWriter(runLogFile, os.Stdout)
		log.Logger = zerolog.New(multi).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
