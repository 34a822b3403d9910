package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "leaf-detect/internal/application"
	"leaf-detect/internal/domain/entity"
	"leaf-detect/internal/infrastructure/vision"
)

const (
	msgStart = `👋 Hi! I detect damage on leaf photos.

📸 Send me a photo of a leaf, then press /analyze.

📋 Commands:
/analyze — detect damage on the selected photo
/help — help
/cancel — forget the selected photo`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Send a leaf photo (as a photo or as an image file)
2️⃣ Send /analyze
3️⃣ You get the photo with detected regions outlined
4️⃣ Tap a button under the photo to see class and confidence

💡 Red outlines are holes, amber outlines are other damage.`

	msgSelected       = "🖼 Image selected: %s\nSend /analyze to detect damage."
	msgSelectFirst    = "Please select an image first!"
	msgProcessing     = "⏳ Processing..."
	msgFailed         = "⚠️ Failed to process image! Send /analyze to try again."
	msgCancelled      = "❌ Selection cleared. Send a new photo to start again."
	msgSendPhoto      = "📸 Please send a leaf photo."
	msgUnknownCommand = "❓ Unknown command. Use /help."
	msgDownloadError  = "⚠️ Could not download the image. Please send it again."
	msgNoDetections   = "✅ No damage detected."
	msgExpired        = "This result is no longer available."

	callbackPrefix = "det:"
	maxButtons     = 20
)

// delivery изменение состояния сценария, которое нужно показать в чате.
type delivery struct {
	chatID int64
	prev   entity.FlowSnapshot
	next   entity.FlowSnapshot
}

// Bot представляет Telegram-бота
type Bot struct {
	api        *tgbotapi.BotAPI
	sessions   *app.SessionService
	animate    bool
	logger     *slog.Logger
	http       *http.Client
	deliveries chan delivery
}

// NewBot создаёт нового бота
func NewBot(token string, sessions *app.SessionService, animate bool, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.Info("authorized", "account", api.Self.UserName)

	return &Bot{
		api:        api,
		sessions:   sessions,
		animate:    animate,
		logger:     logger,
		http:       &http.Client{Timeout: time.Minute},
		deliveries: make(chan delivery, 64),
	}, nil
}

// Run запускает основной цикл обработки сообщений
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	go b.deliverLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			switch {
			case update.CallbackQuery != nil:
				b.handleCallback(update.CallbackQuery)
			case update.Message != nil:
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

// flow возвращает сценарий чата и подписывает бота на его изменения
func (b *Bot) flow(chatID int64) *app.UploadFlow {
	flow, created := b.sessions.Flow(chatID)
	if created {
		if err := flow.AddListener(b.listener(chatID)); err != nil {
			b.logger.Error("add flow listener", "chat_id", chatID, "error", err)
		}
	}
	return flow
}

// listener выполняется в цикле событий сценария, поэтому только ставит доставку в очередь
func (b *Bot) listener(chatID int64) app.FlowListener {
	return func(prev, next entity.FlowSnapshot) {
		if actionFor(prev.State, next.State) == actionNone {
			return
		}
		select {
		case b.deliveries <- delivery{chatID: chatID, prev: prev, next: next}:
		default:
			b.logger.Warn("delivery queue full, dropping update", "chat_id", chatID, "state", next.State)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		// Берём файл с максимальным разрешением
		photo := msg.Photo[len(msg.Photo)-1]
		b.handleImage(ctx, msg.Chat.ID, photo.FileID, photoName(photo.FileUniqueID))
		return
	}

	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		b.handleImage(ctx, msg.Chat.ID, msg.Document.FileID, msg.Document.FileName)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "analyze":
		err := b.flow(chatID).Analyze(ctx)
		switch {
		case err == nil:
		case errors.Is(err, entity.ErrAnalyzeDisabled):
			b.sendMessage(chatID, msgSelectFirst)
		case errors.Is(err, entity.ErrAnalysisInFlight):
			b.sendMessage(chatID, msgProcessing)
		default:
			b.logger.Error("analyze", "chat_id", chatID, "error", err)
			b.sendMessage(chatID, msgFailed)
		}

	case "cancel":
		b.sessions.End(chatID)
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handleImage скачивает изображение и делает его текущим выбором чата
func (b *Bot) handleImage(ctx context.Context, chatID int64, fileID, name string) {
	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.logger.Error("download image", "chat_id", chatID, "error", err)
		b.sendMessage(chatID, msgDownloadError)
		return
	}

	err = b.flow(chatID).Select(ctx, name, data)
	if err != nil && !errors.Is(err, entity.ErrInvalidSelection) {
		b.logger.Warn("select image", "chat_id", chatID, "name", name, "error", err)
	}

	if text, ok := selectionNotice(name, err); ok {
		b.sendMessage(chatID, text)
	}
}

// handleCallback показывает подсказку по нажатой области
func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	text := msgExpired

	if resultID, idx, ok := parseCallbackData(cb.Data); ok && cb.Message != nil {
		if flow, ok := b.sessions.Lookup(cb.Message.Chat.ID); ok {
			if region, ok := regionAt(flow.Snapshot(), resultID, idx); ok {
				text = region.Tooltip.Text()
			}
		}
	}

	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(cb.ID, text)); err != nil {
		b.logger.Error("answer callback", "error", err)
	}
}

func (b *Bot) deliverLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-b.deliveries:
			b.deliver(d)
		}
	}
}

func (b *Bot) deliver(d delivery) {
	switch actionFor(d.prev.State, d.next.State) {
	case actionProcessing:
		b.sendMessage(d.chatID, msgProcessing)
	case actionFailed:
		b.sendMessage(d.chatID, msgFailed)
	case actionOverlay:
		if err := b.sendOverlay(d.chatID, d.next); err != nil {
			b.logger.Error("send overlay", "chat_id", d.chatID, "error", err)
			b.sendMessage(d.chatID, msgFailed)
		}
	}
}

// sendOverlay отправляет отрисованный результат с кнопками подсказок
func (b *Bot) sendOverlay(chatID int64, s entity.FlowSnapshot) error {
	if s.Overlay == nil {
		return errors.New("ready state without overlay")
	}

	caption := buildCaption(s.Detections)
	keyboard, hasButtons := buildKeyboard(s.ResultID, s.Detections)

	if b.animate && s.Appearance != nil {
		frames, err := vision.AppearanceFrames(s.Overlay, *s.Appearance, vision.DefaultFrameCount)
		if err != nil {
			return err
		}
		data, err := vision.EncodeGIF(frames, s.Appearance.Duration)
		if err != nil {
			return err
		}
		anim := tgbotapi.NewAnimation(chatID, tgbotapi.FileBytes{Name: "overlay.gif", Bytes: data})
		anim.Caption = caption
		if hasButtons {
			anim.ReplyMarkup = keyboard
		}
		_, err = b.api.Send(anim)
		return err
	}

	data, err := vision.EncodePNG(s.Overlay)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "overlay.png", Bytes: data})
	photo.Caption = caption
	if hasButtons {
		photo.ReplyMarkup = keyboard
	}
	_, err = b.api.Send(photo)
	return err
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message", "chat_id", chatID, "error", err)
	}
}
