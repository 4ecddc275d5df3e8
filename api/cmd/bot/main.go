package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ffmemes-ocr/api/internal/client"
	"ffmemes-ocr/api/internal/config"
	"ffmemes-ocr/api/internal/httpserver"
	"ffmemes-ocr/api/internal/logging"
	"ffmemes-ocr/api/internal/telegram"
)

func main() {
	cfg := config.LoadBot()
	log := logging.Must(cfg.LogLevel, cfg.LogJSON)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatalw("telegram", "err", err)
	}
	bot.Debug = false
	log.Infow("telegram authorized", "bot", bot.Self.UserName)

	ocrClient := client.New(cfg.APIURL)
	r := telegram.NewRouter(bot, ocrClient, log)

	// healthz нужен платформе, сам бот работает через polling
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
			hctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			if err := ocrClient.Healthz(hctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("ocr: not ok\n" + err.Error()))
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			if err := httpserver.Run(ctx, "0.0.0.0:"+port, mux, log); err != nil {
				log.Errorw("health server", "err", err)
			}
		}()
	}

	// Устойчивый поллинг с backoff без log.Fatal/os.Exit
	telegram.RunPolling(ctx, bot, r.HandleUpdate, log)
}
