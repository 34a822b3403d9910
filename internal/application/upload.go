package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"leaf-detect/internal/domain/entity"
	"leaf-detect/internal/domain/port"
)

// FlowListener вызывается в цикле событий после каждого изменения состояния.
type FlowListener func(prev, next entity.FlowSnapshot)

// UploadFlow управляет сценарием: выбор изображения -> загрузка -> отрисовка.
// Всё состояние принадлежит одному циклу событий; сетевые вызовы выполняются вне его
// и возвращают результат событием.
type UploadFlow struct {
	logger    *slog.Logger
	images    port.ImageSelector
	client    port.DetectionClient
	renderer  port.OverlayRenderer
	threshold float64

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan any
	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Поля ниже читает и пишет только цикл событий
	state      entity.FlowState
	image      entity.SelectedImage
	detections entity.DetectionSet
	overlay    *entity.Overlay
	resultID   string
	reason     string
	inFlight   string // ID изображения, для которого идёт анализ
	appearance *entity.Appearance
	listeners  []FlowListener

	mu       sync.RWMutex
	snapshot entity.FlowSnapshot
}

// события цикла
type (
	evtSelect struct {
		name  string
		data  []byte
		reply chan error
	}
	evtAnalyze struct {
		reply chan error
	}
	evtAnalyzed struct {
		imageID    string
		detections entity.DetectionSet
		err        error
	}
	evtAddListener struct {
		l     FlowListener
		reply chan error
	}
)

// NewUploadFlow создаёт контроллер и запускает его цикл событий.
func NewUploadFlow(logger *slog.Logger, images port.ImageSelector, client port.DetectionClient, renderer port.OverlayRenderer, threshold float64) *UploadFlow {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &UploadFlow{
		logger:    logger,
		images:    images,
		client:    client,
		renderer:  renderer,
		threshold: threshold,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan any, 16),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
		state:     entity.StateIdle,
	}
	f.snapshot = f.buildSnapshot()
	go f.loop()
	return f
}

// Select выбирает новое изображение. Для пустого файла ErrInvalidSelection без смены состояния.
func (f *UploadFlow) Select(ctx context.Context, name string, data []byte) error {
	reply := make(chan error, 1)
	return f.request(ctx, evtSelect{name: name, data: data, reply: reply}, reply)
}

// Analyze запускает загрузку и предсказание для текущего изображения.
// Возвращает управление сразу после перехода в Uploading; результат приходит слушателям.
func (f *UploadFlow) Analyze(ctx context.Context) error {
	reply := make(chan error, 1)
	return f.request(ctx, evtAnalyze{reply: reply}, reply)
}

// AddListener подписывает слушателя на изменения состояния.
func (f *UploadFlow) AddListener(l FlowListener) error {
	reply := make(chan error, 1)
	return f.request(context.Background(), evtAddListener{l: l, reply: reply}, reply)
}

// Snapshot возвращает последнее опубликованное состояние.
func (f *UploadFlow) Snapshot() entity.FlowSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot
}

// Close прерывает незавершённый запрос, освобождает изображение и останавливает цикл.
func (f *UploadFlow) Close() {
	f.closeOnce.Do(func() {
		f.cancel()
		close(f.stop)
	})
	<-f.stopped
}

func (f *UploadFlow) request(ctx context.Context, ev any, reply chan error) error {
	select {
	case f.events <- ev:
	case <-f.stopped:
		return entity.ErrFlowClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-f.stopped:
		return entity.ErrFlowClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *UploadFlow) post(ev any) {
	select {
	case f.events <- ev:
	case <-f.stopped:
	}
}

func (f *UploadFlow) loop() {
	defer close(f.stopped)
	defer f.images.Release()
	defer recoverLog(f.logger, "upload flow panic")

	for {
		select {
		case <-f.stop:
			return
		case ev := <-f.events:
			f.handle(ev)
		}
	}
}

func (f *UploadFlow) handle(ev any) {
	switch e := ev.(type) {
	case evtSelect:
		e.reply <- f.handleSelect(e.name, e.data)
	case evtAnalyze:
		e.reply <- f.handleAnalyze()
	case evtAnalyzed:
		f.handleAnalyzed(e)
	case evtAddListener:
		f.listeners = append(f.listeners, e.l)
		e.reply <- nil
	}
}

func (f *UploadFlow) handleSelect(name string, data []byte) error {
	if len(data) == 0 {
		f.logger.Debug("empty selection ignored", "state", f.state)
		return entity.ErrInvalidSelection
	}

	img, err := f.images.Select(name, data)
	if err != nil {
		return err
	}

	// Новое изображение сбрасывает прежний результат
	f.image = img
	f.detections = nil
	f.overlay = nil
	f.resultID = ""
	f.reason = ""
	f.appearance = nil
	f.setState(entity.StateHasImage)
	return nil
}

func (f *UploadFlow) handleAnalyze() error {
	if f.image.IsZero() {
		return entity.ErrAnalyzeDisabled
	}
	if f.inFlight != "" {
		return entity.ErrAnalysisInFlight
	}

	img := f.image
	f.inFlight = img.ID
	f.reason = ""
	f.appearance = nil
	f.setState(entity.StateUploading)

	go f.analyze(img)
	return nil
}

// analyze выполняется вне цикла событий.
func (f *UploadFlow) analyze(img entity.SelectedImage) {
	var (
		detections entity.DetectionSet
		err        error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("analysis panic: %v", r)
			}
		}()
		detections, err = f.client.Analyze(f.ctx, img, f.threshold)
	}()

	f.post(evtAnalyzed{imageID: img.ID, detections: detections, err: err})
}

func (f *UploadFlow) handleAnalyzed(e evtAnalyzed) {
	f.inFlight = ""

	// Ответ для уже заменённого изображения не применяем
	if e.imageID != f.image.ID {
		f.logger.Info("discarding stale analysis result", "image_id", e.imageID, "current_id", f.image.ID)
		f.publish()
		return
	}

	if e.err != nil {
		f.logger.Error("analysis failed", "image", f.image.Name, "error", e.err)
		f.reason = e.err.Error()
		f.setState(entity.StateFailed)
		return
	}

	overlay, err := f.renderer.Render(f.image, e.detections)
	if err != nil {
		f.logger.Error("overlay render failed", "image", f.image.Name, "error", err)
		f.reason = fmt.Sprintf("render overlay: %v", err)
		f.setState(entity.StateFailed)
		return
	}

	f.detections = e.detections
	f.overlay = overlay
	f.resultID = uuid.NewString()
	appearance := entity.DefaultAppearance
	f.appearance = &appearance
	f.setState(entity.StateReady)
}

func (f *UploadFlow) setState(next entity.FlowState) {
	f.state = next
	f.publish()
}

// publish обновляет снимок состояния и уведомляет слушателей.
func (f *UploadFlow) publish() {
	next := f.buildSnapshot()

	f.mu.Lock()
	prev := f.snapshot
	f.snapshot = next
	f.mu.Unlock()

	if prev.State != next.State {
		f.logger.Info("flow state changed", "from", prev.State, "to", next.State, "image", next.Image.Name)
	}

	for _, l := range f.listeners {
		f.notify(l, prev, next)
	}
}

func (f *UploadFlow) notify(l FlowListener, prev, next entity.FlowSnapshot) {
	defer recoverLog(f.logger, "flow listener panic")
	l(prev, next)
}

func (f *UploadFlow) buildSnapshot() entity.FlowSnapshot {
	return entity.FlowSnapshot{
		State:      f.state,
		Image:      f.image,
		Detections: f.detections.Clone(),
		Overlay:    f.overlay,
		ResultID:   f.resultID,
		Reason:     f.reason,
		InFlight:   f.inFlight != "",
		Appearance: f.appearance,
	}
}

func recoverLog(logger *slog.Logger, msg string) {
	if r := recover(); r != nil {
		logger.Error(msg, "error", r, "stack", string(debug.Stack()))
	}
}
