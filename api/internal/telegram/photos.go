package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ffmemes-ocr/api/internal/ocr"
)

// лимит на скачивание одного файла из Telegram
var maxDownloadBytes int64 = 20 << 20

var errFileTooLarge = errors.New("файл слишком большой")

func (r *Router) acceptPhoto(msg tgbotapi.Message) {
	// последний размер самый большой
	ph := msg.Photo[len(msg.Photo)-1]
	r.acceptFile(msg, ph.FileID)
}

func (r *Router) acceptDocument(msg tgbotapi.Message) {
	r.acceptFile(msg, msg.Document.FileID)
}

func isImageDocument(d *tgbotapi.Document) bool {
	return strings.HasPrefix(strings.ToLower(d.MimeType), "image/")
}

func (r *Router) acceptFile(msg tgbotapi.Message, fileID string) {
	cid := msg.Chat.ID
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	imgBytes, err := r.download(url)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	r.enqueue(cid, msg.MediaGroupID, imgBytes)
}

// enqueue копит фото одного альбома и запускает распознавание после паузы.
func (r *Router) enqueue(chatID int64, mediaGroupID string, img []byte) {
	key := fmt.Sprintf("chat:%d", chatID)
	if mediaGroupID != "" {
		key = "grp:" + mediaGroupID
	}

	for {
		bi, _ := r.batches.LoadOrStore(key, &photoBatch{ChatID: chatID, Key: key, images: make([][]byte, 0, 4)})
		b := bi.(*photoBatch)

		b.mu.Lock()
		if b.done {
			// батч уже ушёл в обработку, убираем его и берём новый
			b.mu.Unlock()
			r.batches.CompareAndDelete(key, b)
			continue
		}
		b.images = append(b.images, img)
		if b.timer != nil {
			b.timer.Stop()
		}
		b.timer = time.AfterFunc(r.Debounce, func() { r.processBatch(key, b) })
		b.mu.Unlock()
		return
	}
}

func (r *Router) processBatch(key string, b *photoBatch) {
	r.batches.CompareAndDelete(key, b)

	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.done = true
	images := append([][]byte(nil), b.images...)
	b.mu.Unlock()
	if len(images) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()
	r.recognize(ctx, b.ChatID, images)
}

func (r *Router) recognize(ctx context.Context, chatID int64, images [][]byte) {
	r.typing(chatID)

	payload := images[0]
	if len(images) > 1 {
		merged, err := combineAsOne(images)
		if err != nil {
			r.SendError(chatID, fmt.Errorf("склейка: %w", err))
			return
		}
		payload = merged
	}

	lang := r.chatLang(chatID)
	start := time.Now()
	resp, err := r.OCR.Predict(ctx, payload, lang)
	if err != nil {
		r.Log.Warnw("ocr request failed", "chat", chatID, "lang", lang, "err", err)
		r.SendError(chatID, err)
		return
	}
	r.Log.Infow("ocr reply", "chat", chatID, "lang", lang, "pages", len(images),
		"detections", len(resp.Result), "request_id", resp.RequestID, "elapsed", time.Since(start).Round(time.Millisecond))
	r.SendResult(chatID, resp)
}

// combineAsOne склеивает страницы альбома вертикально в один JPEG.
func combineAsOne(images [][]byte) ([]byte, error) {
	decoded := make([]image.Image, 0, len(images))
	maxW, sumH := 0, 0
	for i, b := range images {
		img, _, err := ocr.DecodeImage(b)
		if err != nil {
			return nil, fmt.Errorf("страница %d: %w", i+1, err)
		}
		decoded = append(decoded, img)
		if w := img.Bounds().Dx(); w > maxW {
			maxW = w
		}
		sumH += img.Bounds().Dy()
	}
	if maxW == 0 || sumH == 0 {
		return nil, fmt.Errorf("пустые изображения")
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxW, sumH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	y := 0
	for _, img := range decoded {
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		x := (maxW - w) / 2
		draw.Draw(dst, image.Rect(x, y, x+w, y+h), img, img.Bounds().Min, draw.Over)
		y += h
	}

	final := image.Image(dst)
	if totalPx := maxW * sumH; totalPx > ocr.MaxPixels {
		scale := math.Sqrt(float64(ocr.MaxPixels) / float64(totalPx))
		newW := max(int(float64(maxW)*scale+0.5), 1)
		newH := max(int(float64(sumH)*scale+0.5), 1)
		final = scaleDownNN(dst, newW, newH)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, final, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func scaleDownNN(src image.Image, newW, newH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	sb := src.Bounds()
	srcW, srcH := sb.Dx(), sb.Dy()
	for y := 0; y < newH; y++ {
		sy := sb.Min.Y + (y*srcH)/newH
		for x := 0; x < newW; x++ {
			sx := sb.Min.X + (x*srcW)/newW
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

func (r *Router) download(url string) ([]byte, error) {
	httpc := r.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > maxDownloadBytes {
		return nil, fmt.Errorf("%w: больше %d МБ", errFileTooLarge, maxDownloadBytes>>20)
	}
	return b, nil
}
