package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"leaf-detect/internal/domain/entity"
)

func photoName(uniqueID string) string {
	if uniqueID == "" {
		return "photo.jpg"
	}
	return "photo_" + uniqueID + ".jpg"
}

// buildCaption перечисляет найденные области в порядке отрисовки
func buildCaption(detections entity.DetectionSet) string {
	if len(detections) == 0 {
		return msgNoDetections
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Detected regions: %d", len(detections))
	for i, d := range detections {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, d.Label())
	}
	return sb.String()
}

// selectionNotice возвращает ответ на выбор изображения. Пустой файл остаётся без ответа.
func selectionNotice(name string, err error) (string, bool) {
	switch {
	case err == nil:
		return fmt.Sprintf(msgSelected, name), true
	case errors.Is(err, entity.ErrInvalidSelection):
		return "", false
	default:
		return msgDownloadError, true
	}
}

// deliveryAction что показать в чате после перехода сценария
type deliveryAction int

const (
	actionNone deliveryAction = iota
	actionProcessing
	actionFailed
	actionOverlay
)

// actionFor выбирает сообщение по переходу. Повтор того же состояния ничего не отправляет.
func actionFor(prev, next entity.FlowState) deliveryAction {
	if prev == next {
		return actionNone
	}
	switch next {
	case entity.StateUploading:
		return actionProcessing
	case entity.StateFailed:
		return actionFailed
	case entity.StateReady:
		return actionOverlay
	default:
		return actionNone
	}
}

// buildKeyboard создаёт по кнопке на каждую область, не больше maxButtons.
// Кнопки привязаны к результату, под которым они отправлены.
func buildKeyboard(resultID string, detections entity.DetectionSet) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(detections) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}

	n := min(len(detections), maxButtons)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, n)
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("%d. %s", i+1, detections[i].Label())
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text, callbackData(resultID, i)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

// callbackData кодирует кнопку как "det:<resultID>:<index>", uuid укладывается в 64 байта Telegram
func callbackData(resultID string, idx int) string {
	return callbackPrefix + resultID + ":" + strconv.Itoa(idx)
}

func parseCallbackData(data string) (string, int, bool) {
	raw, ok := strings.CutPrefix(data, callbackPrefix)
	if !ok {
		return "", 0, false
	}
	resultID, rawIdx, ok := strings.Cut(raw, ":")
	if !ok || resultID == "" {
		return "", 0, false
	}
	idx, err := strconv.Atoi(rawIdx)
	if err != nil || idx < 0 {
		return "", 0, false
	}
	return resultID, idx, true
}

// regionAt находит область по кнопке, если она относится к показанному сейчас результату.
// Результат, сохранённый после неудачного повторного анализа, тоже отвечает.
func regionAt(s entity.FlowSnapshot, resultID string, idx int) (entity.HitRegion, bool) {
	if s.Overlay == nil || s.ResultID == "" || s.ResultID != resultID || idx >= len(s.Overlay.HitRegions) {
		return entity.HitRegion{}, false
	}
	return s.Overlay.HitRegions[idx], true
}
