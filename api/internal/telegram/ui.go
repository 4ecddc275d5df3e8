package telegram

import (
	"fmt"
	"strings"

	"ffmemes-ocr/api/internal/client"
	"ffmemes-ocr/api/internal/util"
)

// Telegram режет сообщения длиннее 4096 символов
const maxReplyRunes = 3900

func formatResult(resp client.Response) string {
	if resp.Failed() {
		return "⚠️ " + resp.Error
	}
	text := strings.TrimSpace(strings.Join(resp.Result.Texts(), "\n"))
	if text == "" {
		return "📝 Текст не найден (пусто)"
	}
	return "📝 Распознанный текст:\n\n" + util.Truncate(text, maxReplyRunes)
}

func formatError(err error) string {
	return fmt.Sprintf("Ошибка OCR: %v", err)
}
