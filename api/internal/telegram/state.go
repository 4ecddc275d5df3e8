package telegram

import (
	"sync"
	"time"

	"ffmemes-ocr/api/internal/ocr"
)

const defaultDebounce = 1200 * time.Millisecond

// язык чата, по умолчанию как у сервиса
func (r *Router) chatLang(chatID int64) string {
	if v, ok := r.langs.Load(chatID); ok {
		if s, _ := v.(string); s != "" {
			return s
		}
	}
	return string(ocr.DefaultLanguage)
}

func (r *Router) setChatLang(chatID int64, lang ocr.Language) { r.langs.Store(chatID, string(lang)) }

type photoBatch struct {
	ChatID int64
	Key    string // "grp:<mediaGroupID>" | "chat:<chatID>"

	mu     sync.Mutex
	images [][]byte
	timer  *time.Timer
	done   bool // забран processBatch, новые фото идут в новый батч
}
