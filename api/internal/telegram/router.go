package telegram

import (
	"context"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"ffmemes-ocr/api/internal/client"
)

// Bot is the subset of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Recognizer is the OCR service as seen from the bot.
type Recognizer interface {
	Predict(ctx context.Context, image []byte, lang string) (client.Response, error)
	Healthz(ctx context.Context) error
}

type Router struct {
	Bot  Bot
	OCR  Recognizer
	Log  *zap.SugaredLogger
	HTTP *http.Client

	// Debounce склеивает альбом: фото одной media group ждут друг друга.
	Debounce time.Duration

	langs   sync.Map // chatID -> string
	batches sync.Map // key -> *photoBatch
}

func NewRouter(bot Bot, ocr Recognizer, log *zap.SugaredLogger) *Router {
	return &Router{
		Bot:      bot,
		OCR:      ocr,
		Log:      log,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
		Debounce: defaultDebounce,
	}
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(upd)
		return
	}
	if len(upd.Message.Photo) > 0 {
		r.acceptPhoto(*upd.Message)
		return
	}
	if upd.Message.Document != nil && isImageDocument(upd.Message.Document) {
		r.acceptDocument(*upd.Message)
		return
	}
	if upd.Message.Text != "" {
		r.send(upd.Message.Chat.ID, "Пришли фото, я распознаю текст. /help — команды.")
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.Warnw("telegram send", "chat", chatID, "err", err)
	}
}

func (r *Router) typing(chatID int64) {
	_, _ = r.Bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
}

func (r *Router) SendResult(chatID int64, resp client.Response) {
	r.send(chatID, formatResult(resp))
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, formatError(err))
}
