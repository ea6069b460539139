package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"

	httpadapter "trackhistory/internal/adapter/http"
	metricsinmem "trackhistory/internal/adapter/metrics/inmemory"
	gormrepo "trackhistory/internal/adapter/repo/gorm"
	memoryrepo "trackhistory/internal/adapter/repo/memory"
	"trackhistory/internal/adapter/source/remote"
	"trackhistory/internal/app/playback"
	"trackhistory/internal/app/ports"
	"trackhistory/internal/app/validate"
	"trackhistory/internal/domain/history"
	"trackhistory/migrations"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/joho/godotenv"
)

// backend is the history store the server plays from.
type backend struct {
	Source    ports.HistorySource
	Sizer     ports.DatasetSizer
	TxManager ports.TxManager
	Name      string
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment variables")
	}
	cfg := loadConfig()
	setupLogging(cfg)

	b, err := buildBackend(context.Background(), cfg)
	if err != nil {
		log.WithError(err).Fatal("build history backend")
	}
	kpiRecorder := metricsinmem.NewRecorder()

	h := httpadapter.Handler{
		PlaybackUC: playback.UseCase{
			Source:    b.Source,
			TxManager: b.TxManager,
			Sessions:  playback.NewSessions(cfg.SessionTTL),
			Metrics:   kpiRecorder,
			Logger:    log.Log,
		},
		ValidateUC: validate.UseCase{
			Sizer:        b.Sizer,
			WarningLimit: cfg.WarningLimit,
			ErrorLimit:   cfg.ErrorLimit,
		},
		KPI: kpiRecorder,
	}

	s := server.Default(server.WithHostPorts(cfg.HTTPAddr))
	h.RegisterRoutes(s)

	log.WithFields(log.Fields{"addr": cfg.HTTPAddr, "backend": b.Name}).Info("trackhistory server listening")
	s.Spin()
}

func setupLogging(cfg config) {
	if cfg.LogFormat == "json" {
		log.SetHandler(jsonhandler.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// buildBackend prefers postgres, then the upstream history API, then an
// in-memory store optionally seeded from a payload file.
func buildBackend(ctx context.Context, cfg config) (backend, error) {
	switch {
	case cfg.DBDSN != "":
		db, err := gormrepo.OpenPostgres(cfg.DBDSN)
		if err != nil {
			return backend{}, fmt.Errorf("open postgres: %w", err)
		}
		if _, err := gormrepo.ApplyMigrations(ctx, db, migrationsFS(cfg), log.Log); err != nil {
			return backend{}, fmt.Errorf("apply migrations: %w", err)
		}
		repo := gormrepo.NewHistoryRepo(db)
		return backend{Source: repo, Sizer: repo, TxManager: gormrepo.NewTxManager(db), Name: "postgres"}, nil
	case cfg.UpstreamURL != "":
		src, err := remote.NewSource(cfg.UpstreamURL, cfg.UpstreamTimeout)
		if err != nil {
			return backend{}, err
		}
		src.Logger = log.Log
		return backend{Source: src, Sizer: src, Name: "upstream"}, nil
	default:
		store := memoryrepo.NewStore()
		repo := memoryrepo.NewHistoryRepo(store)
		if cfg.SeedFile != "" {
			if err := seedFromFile(ctx, repo, cfg.SeedFile); err != nil {
				return backend{}, err
			}
		}
		return backend{Source: repo, Sizer: repo, TxManager: memoryrepo.NewTxManager(store), Name: "memory"}, nil
	}
}

func migrationsFS(cfg config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

// seedFromFile loads a wire payload file into rec.
func seedFromFile(ctx context.Context, rec ports.HistoryRecorder, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var p history.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	var events []history.Event
	for _, group := range history.DecodeRows(p) {
		events = append(events, group...)
	}
	if err := rec.Append(ctx, events); err != nil {
		return fmt.Errorf("seed history: %w", err)
	}
	log.WithFields(log.Fields{"file": path, "events": len(events)}).Info("history seeded")
	return nil
}
