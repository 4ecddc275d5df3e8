package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ffmemes-ocr/api/internal/config"
	"ffmemes-ocr/api/internal/logging"
	"ffmemes-ocr/api/internal/provision"
	"ffmemes-ocr/api/internal/volume"
)

type flags struct {
	langs     []string
	dir       string
	detect    bool
	recognize bool
	source    string
	s3Bucket  string
	s3Prefix  string
	logLevel  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "download-model",
		Short: "Populate the models volume with OCR weights",
		Long: `Downloads detector and recognizer weights into the models volume.
"ru" fetches the English+Russian model, any other value the English one.
Runs are sequential; the first failure stops the job.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log, err := logging.New(f.logLevel, false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return run(ctx, f, log)
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVar(&f.langs, "lang", []string{"ru", "en"}, "models to provision, in order")
	fl.StringVar(&f.dir, "dir", getEnv("MODELS_DIR", config.DefaultModelsDir), "models volume mount point")
	fl.BoolVar(&f.detect, "detect", false, "re-download the detector even if present")
	fl.BoolVar(&f.recognize, "recognize", false, "re-download the recognizers even if present")
	fl.StringVar(&f.source, "source", provision.DefaultSource, "upstream tessdata base URL")
	fl.StringVar(&f.s3Bucket, "s3-bucket", os.Getenv("MODELS_S3_BUCKET"), "push the volume to this bucket afterwards")
	fl.StringVar(&f.s3Prefix, "s3-prefix", getEnv("MODELS_S3_PREFIX", volume.Name), "key prefix inside the bucket")
	fl.StringVar(&f.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "debug|info|warn|error")
	return cmd
}

func run(ctx context.Context, f *flags, log *zap.SugaredLogger) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("models dir: %w", err)
	}
	p := provision.New(f.source, log)
	opt := provision.Options{Detector: f.detect, Recognizer: f.recognize}

	for _, lang := range f.langs {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		got, err := p.Provision(ctx, lang, f.dir, opt)
		if err != nil {
			log.Errorw("provision failed", "lang", lang, "err", err)
			return err
		}
		log.Infow("provisioned", "lang", lang, "downloaded", got, "volume", volume.Name)
	}

	if f.s3Bucket == "" {
		return nil
	}
	mirror, err := volume.NewS3MirrorFromEnv(ctx, f.s3Bucket, f.s3Prefix, log)
	if err != nil {
		return err
	}
	pushed, err := mirror.Push(ctx, f.dir)
	if err != nil {
		return fmt.Errorf("push volume: %w", err)
	}
	log.Infow("volume pushed", "bucket", f.s3Bucket, "files", pushed)
	return nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
