// cmd/truthspectrogram/main.go
package main

import (
	"log"
	"log/slog"

	"github.com/jatinpathak/Truth-Spectrogram/internal/config"
	"github.com/jatinpathak/Truth-Spectrogram/internal/detection"
	"github.com/jatinpathak/Truth-Spectrogram/internal/history"
	"github.com/jatinpathak/Truth-Spectrogram/internal/server"
	"github.com/jatinpathak/Truth-Spectrogram/internal/session"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	detector, err := detection.NewClient(&cfg.Detection)
	if err != nil {
		log.Fatalf("failed to create detection client: %v", err)
	}

	sess := session.New(detector)
	if err := sess.SetLanguage(cfg.Detection.DefaultLanguage); err != nil {
		log.Fatalf("invalid default language %q: %v", cfg.Detection.DefaultLanguage, err)
	}
	if cfg.Detection.APIKey != "" {
		sess.SetCredential(cfg.Detection.APIKey)
	}

	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		log.Fatalf("failed to open history store: %v", err)
	}
	defer store.Close()

	srv := server.New(*cfg, sess, store, detector)
	slog.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
