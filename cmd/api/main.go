package main

import (
	"github.com/sirupsen/logrus"

	"github.com/pkgpulse/pkgpulse/internal/config"
	"github.com/pkgpulse/pkgpulse/internal/httpserver"
	"github.com/pkgpulse/pkgpulse/internal/recorder"
	"github.com/pkgpulse/pkgpulse/internal/registry"
	"github.com/pkgpulse/pkgpulse/internal/store"
)

// main boots the service: config → DB → schema → HTTP server.
func main() {
	log := logrus.New()

	// Load runtime config from environment (LISTEN_ADDR, DB_PATH, ...).
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
	}

	// Open durable storage (embedded SQLite) and fail fast if unusable.
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Ensure required tables/indexes exist so a fresh checkout just runs.
	if err := db.EnsureSchema(); err != nil {
		log.Fatal(err)
	}

	rec := recorder.New(db, registry.NewClient(cfg.RegistryURL, log))

	router := httpserver.NewRouter(db, rec, log)

	log.WithField("addr", cfg.ListenAddr).Info("server started")
	log.Fatal(router.Run(cfg.ListenAddr))
}
