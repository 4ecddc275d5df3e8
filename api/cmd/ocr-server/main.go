package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ffmemes-ocr/api/internal/config"
	"ffmemes-ocr/api/internal/handle"
	"ffmemes-ocr/api/internal/httpserver"
	"ffmemes-ocr/api/internal/logging"
	"ffmemes-ocr/api/internal/ocr"
	"ffmemes-ocr/api/internal/ocr/tesseract"
	"ffmemes-ocr/api/internal/store"
	"ffmemes-ocr/api/internal/volume"
)

func main() {
	cfg := config.Load()
	log := logging.Must(cfg.LogLevel, cfg.LogJSON)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// устройство определяется один раз и общее для обеих моделей
	device := ocr.DetectDevice()
	log.Infow("device detected", "device", device)

	// --- Volume ---
	if cfg.S3Bucket != "" {
		mirror, err := volume.NewS3MirrorFromEnv(ctx, cfg.S3Bucket, cfg.S3Prefix, log)
		if err != nil {
			log.Fatalw("s3 mirror", "err", err)
		}
		pulled, err := mirror.Pull(ctx, cfg.ModelsDir)
		if err != nil {
			log.Fatalw("pull volume", "bucket", cfg.S3Bucket, "err", err)
		}
		log.Infow("volume pulled", "volume", volume.Name, "files", pulled)
	}

	// --- Models ---
	// скачивание выключено, пустой том означает фатальную ошибку старта
	models, err := tesseract.LoadModels(cfg.ModelsDir, device, cfg.Workers, log)
	if err != nil {
		log.Fatalw("load models", "dir", cfg.ModelsDir, "err", err)
	}
	defer func() {
		if err := models.Close(); err != nil {
			log.Warnw("close models", "err", err)
		}
	}()

	opts := []handle.Option{handle.WithMaxImageBytes(cfg.MaxImageBytes)}

	// --- Postgres (optional audit) ---
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalw("db open", "err", err)
		}
		defer db.Close()
		repo := store.NewRecognitionRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalw("db schema", "err", err)
		}
		log.Infow("db connected", "dsn", config.SafeDSNSummary(cfg.DatabaseURL))
		opts = append(opts, handle.WithAuditor(handle.RepoAuditor{Repo: repo}), handle.WithPing(db.PingContext))
		go purgeLoop(ctx, repo, log)
	}

	h := handle.New(models, log, opts...)
	mux := http.NewServeMux()
	h.Register(mux)

	if err := httpserver.Run(ctx, ":"+cfg.Port, mux, log); err != nil {
		log.Errorw("http server", "err", err)
	}
}

// purgeLoop keeps the audit table to the last 30 days.
func purgeLoop(ctx context.Context, repo *store.RecognitionRepo, log *zap.SugaredLogger) {
	t := time.NewTicker(6 * time.Hour)
	defer t.Stop()
	for {
		n, err := repo.PurgeOlderThan(ctx, 30*24*time.Hour)
		if err != nil && ctx.Err() == nil {
			log.Warnw("purge recognitions", "err", err)
		} else if n > 0 {
			log.Infow("purged recognitions", "rows", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
