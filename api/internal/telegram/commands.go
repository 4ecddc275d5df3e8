package telegram

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ffmemes-ocr/api/internal/ocr"
)

const helpText = "Пришли фото — верну распознанный текст.\n" +
	"Команды:\n/lang ru|en — язык распознавания\n/health — состояние сервиса"

func (r *Router) HandleCommand(upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	switch upd.Message.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.OCR.Healthz(ctx); err != nil {
			r.send(cid, "❌ OCR недоступен: "+err.Error())
			return
		}
		r.send(cid, "✅ OK")
	case "lang":
		r.handleLang(cid, upd.Message.CommandArguments())
	default:
		r.send(cid, "Неизвестная команда")
	}
}

// handleLang показывает или меняет язык чата.
//
//	/lang
//	/lang ru
//	/lang en
func (r *Router) handleLang(chatID int64, args string) {
	arg := strings.ToLower(strings.TrimSpace(args))
	switch arg {
	case "":
		r.send(chatID, "Текущий язык: "+r.chatLang(chatID)+"\nИспользование: /lang ru | /lang en")
	case "ru", "russian", "рус", "русский":
		r.setChatLang(chatID, ocr.LanguageRussian)
		r.send(chatID, "✅ Язык: ru (русский + английский)")
	case "en", "english", "англ":
		r.setChatLang(chatID, ocr.LanguageEnglish)
		r.send(chatID, "✅ Язык: en")
	default:
		r.send(chatID, "Неизвестный язык. Доступны: ru | en")
	}
}
