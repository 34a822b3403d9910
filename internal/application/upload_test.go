package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"leaf-detect/internal/domain/entity"
	"leaf-detect/internal/infrastructure/storage"
	"leaf-detect/internal/infrastructure/vision"
)

type analyzeResult struct {
	set entity.DetectionSet
	err error
}

// fakeClient отвечает только тогда, когда тест передаст результат в respond.
type fakeClient struct {
	respond chan analyzeResult

	mu         sync.Mutex
	images     []entity.SelectedImage
	thresholds []float64
}

func newFakeClient() *fakeClient {
	return &fakeClient{respond: make(chan analyzeResult)}
}

func (c *fakeClient) Analyze(ctx context.Context, img entity.SelectedImage, threshold float64) (entity.DetectionSet, error) {
	c.mu.Lock()
	c.images = append(c.images, img)
	c.thresholds = append(c.thresholds, threshold)
	c.mu.Unlock()

	select {
	case r := <-c.respond:
		return r.set, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeClient) calls() []entity.SelectedImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.SelectedImage(nil), c.images...)
}

type failingRenderer struct{}

func (failingRenderer) Render(entity.SelectedImage, entity.DetectionSet) (*entity.Overlay, error) {
	return nil, errors.New("decode image: unknown format")
}

// stateRecorder собирает переходы, которые видят слушатели.
type stateRecorder struct {
	mu     sync.Mutex
	states []entity.FlowState
}

func (r *stateRecorder) listen(prev, next entity.FlowSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, next.State)
}

func (r *stateRecorder) seen() []entity.FlowState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.FlowState(nil), r.states...)
}

type flowFixture struct {
	flow    *UploadFlow
	client  *fakeClient
	handles *storage.MemoryHandleStore
}

func newFlowFixture(t *testing.T) *flowFixture {
	handles := storage.NewMemoryHandleStore()
	client := newFakeClient()
	flow := NewUploadFlow(nil, storage.NewSelectionStore(handles), client, vision.NewRenderer(handles), 0)
	t.Cleanup(flow.Close)
	return &flowFixture{flow: flow, client: client, handles: handles}
}

func leafPNG(t *testing.T, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 40, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func waitForState(t *testing.T, flow *UploadFlow, want entity.FlowState) entity.FlowSnapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		s := flow.Snapshot()
		return s.State == want && !s.InFlight
	}, time.Second, 5*time.Millisecond)
	return flow.Snapshot()
}

var holeDetection = entity.Detection{ID: "1", ClassName: "Hole", Confidence: 0.92, X: 10, Y: 20, Width: 30, Height: 40}

func TestUploadFlow_InitialState(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	s := fx.flow.Snapshot()
	require.Equal(t, entity.StateIdle, s.State)
	require.False(t, s.CanAnalyze())

	require.ErrorIs(t, fx.flow.Analyze(ctx), entity.ErrAnalyzeDisabled)
	require.ErrorIs(t, fx.flow.Select(ctx, "empty.jpg", nil), entity.ErrInvalidSelection)
	require.Equal(t, entity.StateIdle, fx.flow.Snapshot().State)
	require.Zero(t, fx.handles.Len())
}

func TestUploadFlow_Scenario(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()
	rec := &stateRecorder{}
	require.NoError(t, fx.flow.AddListener(rec.listen))

	require.NoError(t, fx.flow.Select(ctx, "leaf1.jpg", leafPNG(t, 200, 100)))
	s := fx.flow.Snapshot()
	require.Equal(t, entity.StateHasImage, s.State)
	require.Equal(t, "leaf1.jpg", s.Image.Name)
	require.True(t, s.CanAnalyze())

	require.NoError(t, fx.flow.Analyze(ctx))
	s = fx.flow.Snapshot()
	require.Equal(t, entity.StateUploading, s.State)
	require.False(t, s.CanAnalyze())
	require.ErrorIs(t, fx.flow.Analyze(ctx), entity.ErrAnalysisInFlight)

	fx.client.respond <- analyzeResult{set: entity.DetectionSet{holeDetection}}
	s = waitForState(t, fx.flow, entity.StateReady)

	require.Equal(t, entity.DetectionSet{holeDetection}, s.Detections)
	require.NotNil(t, s.Overlay)
	require.Equal(t, 200, s.Overlay.Width())
	require.Len(t, s.Overlay.HitRegions, 1)
	require.Equal(t, image.Rect(10, 20, 40, 60), s.Overlay.HitRegions[0].Bounds)
	require.Equal(t, color.NRGBA{R: 0xEF, G: 0x44, B: 0x44, A: 0xFF}, s.Overlay.Drawing.NRGBAAt(10, 40))
	require.NotNil(t, s.Appearance)
	require.Equal(t, entity.DefaultAppearance, *s.Appearance)
	require.True(t, s.CanAnalyze())
	require.Empty(t, s.Reason)
	require.NotEmpty(t, s.ResultID)

	want := []entity.FlowState{entity.StateHasImage, entity.StateUploading, entity.StateReady}
	require.Eventually(t, func() bool { return len(rec.seen()) == len(want) }, time.Second, 5*time.Millisecond)
	require.Equal(t, want, rec.seen())

	calls := fx.client.calls()
	require.Len(t, calls, 1)
	require.Equal(t, s.Image.ID, calls[0].ID)
}

func TestUploadFlow_PassesThreshold(t *testing.T) {
	handles := storage.NewMemoryHandleStore()
	client := newFakeClient()
	flow := NewUploadFlow(nil, storage.NewSelectionStore(handles), client, vision.NewRenderer(handles), 0.35)
	t.Cleanup(flow.Close)
	ctx := context.Background()

	require.NoError(t, flow.Select(ctx, "leaf.png", leafPNG(t, 8, 8)))
	require.NoError(t, flow.Analyze(ctx))
	client.respond <- analyzeResult{set: entity.DetectionSet{}}
	s := waitForState(t, flow, entity.StateReady)
	require.Empty(t, s.Detections)
	require.Empty(t, s.Overlay.HitRegions)

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Equal(t, []float64{0.35}, client.thresholds)
}

func TestUploadFlow_FailureAllowsRetry(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.Select(ctx, "leaf1.jpg", leafPNG(t, 50, 50)))
	require.NoError(t, fx.flow.Analyze(ctx))
	fx.client.respond <- analyzeResult{err: &entity.AnalysisError{Stage: "predict", Err: entity.ErrServiceError}}

	s := waitForState(t, fx.flow, entity.StateFailed)
	require.Empty(t, s.Detections)
	require.Nil(t, s.Overlay)
	require.Nil(t, s.Appearance)
	require.Contains(t, s.Reason, "predict")
	require.True(t, s.CanAnalyze())

	require.NoError(t, fx.flow.Analyze(ctx))
	require.Equal(t, entity.StateUploading, fx.flow.Snapshot().State)
	fx.client.respond <- analyzeResult{set: entity.DetectionSet{holeDetection}}
	waitForState(t, fx.flow, entity.StateReady)
}

func TestUploadFlow_FailureKeepsPreviousResult(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.Select(ctx, "leaf1.jpg", leafPNG(t, 100, 100)))
	require.NoError(t, fx.flow.Analyze(ctx))
	fx.client.respond <- analyzeResult{set: entity.DetectionSet{holeDetection}}
	ready := waitForState(t, fx.flow, entity.StateReady)

	require.NoError(t, fx.flow.Analyze(ctx))
	fx.client.respond <- analyzeResult{err: &entity.AnalysisError{Stage: "store", Err: entity.ErrTransportFailure}}
	s := waitForState(t, fx.flow, entity.StateFailed)

	require.Equal(t, ready.Detections, s.Detections)
	require.Same(t, ready.Overlay, s.Overlay)
	require.Equal(t, ready.ResultID, s.ResultID)

	require.NoError(t, fx.flow.Analyze(ctx))
	fx.client.respond <- analyzeResult{set: entity.DetectionSet{holeDetection}}
	again := waitForState(t, fx.flow, entity.StateReady)
	require.NotEqual(t, ready.ResultID, again.ResultID)
}

func TestUploadFlow_RenderFailure(t *testing.T) {
	handles := storage.NewMemoryHandleStore()
	client := newFakeClient()
	flow := NewUploadFlow(nil, storage.NewSelectionStore(handles), client, failingRenderer{}, 0)
	t.Cleanup(flow.Close)
	ctx := context.Background()

	require.NoError(t, flow.Select(ctx, "leaf.jpg", []byte("raw")))
	require.NoError(t, flow.Analyze(ctx))
	client.respond <- analyzeResult{set: entity.DetectionSet{holeDetection}}

	s := waitForState(t, flow, entity.StateFailed)
	require.Contains(t, s.Reason, "render overlay")
	require.Empty(t, s.Detections)
}

func TestUploadFlow_StaleResponseDiscarded(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.Select(ctx, "first.png", leafPNG(t, 20, 20)))
	require.NoError(t, fx.flow.Analyze(ctx))

	require.NoError(t, fx.flow.Select(ctx, "second.png", leafPNG(t, 30, 30)))
	s := fx.flow.Snapshot()
	require.Equal(t, entity.StateHasImage, s.State)
	require.Equal(t, "second.png", s.Image.Name)
	require.True(t, s.InFlight)
	require.False(t, s.CanAnalyze())
	require.Equal(t, 1, fx.handles.Len())

	fx.client.respond <- analyzeResult{set: entity.DetectionSet{holeDetection}}
	s = waitForState(t, fx.flow, entity.StateHasImage)
	require.Equal(t, "second.png", s.Image.Name)
	require.Empty(t, s.Detections)
	require.Nil(t, s.Overlay)
	require.True(t, s.CanAnalyze())
}

func TestUploadFlow_SelectClearsResult(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.Select(ctx, "leaf1.jpg", leafPNG(t, 60, 60)))
	require.NoError(t, fx.flow.Analyze(ctx))
	fx.client.respond <- analyzeResult{set: entity.DetectionSet{holeDetection}}
	waitForState(t, fx.flow, entity.StateReady)

	require.ErrorIs(t, fx.flow.Select(ctx, "empty.jpg", []byte{}), entity.ErrInvalidSelection)
	require.Equal(t, entity.StateReady, fx.flow.Snapshot().State)

	require.NoError(t, fx.flow.Select(ctx, "leaf2.jpg", leafPNG(t, 10, 10)))
	s := fx.flow.Snapshot()
	require.Equal(t, entity.StateHasImage, s.State)
	require.Nil(t, s.Detections)
	require.Nil(t, s.Overlay)
	require.Nil(t, s.Appearance)
	require.Empty(t, s.ResultID)
	require.Equal(t, 1, fx.handles.Len())
}

func TestUploadFlow_Close(t *testing.T) {
	handles := storage.NewMemoryHandleStore()
	client := newFakeClient()
	flow := NewUploadFlow(nil, storage.NewSelectionStore(handles), client, vision.NewRenderer(handles), 0)
	ctx := context.Background()

	require.NoError(t, flow.Select(ctx, "leaf.png", leafPNG(t, 10, 10)))
	require.NoError(t, flow.Analyze(ctx))
	require.Equal(t, 1, handles.Len())

	done := make(chan struct{})
	go func() {
		flow.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	require.Zero(t, handles.Len())
	require.ErrorIs(t, flow.Select(ctx, "leaf.png", leafPNG(t, 10, 10)), entity.ErrFlowClosed)
	require.ErrorIs(t, flow.Analyze(ctx), entity.ErrFlowClosed)
	flow.Close()
}

func TestUploadFlow_ListenerPanicDoesNotStopFlow(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.flow.AddListener(func(prev, next entity.FlowSnapshot) {
		panic("listener")
	}))

	require.NoError(t, fx.flow.Select(ctx, "leaf.png", leafPNG(t, 10, 10)))
	require.NoError(t, fx.flow.Analyze(ctx))
	require.Equal(t, entity.StateUploading, fx.flow.Snapshot().State)
}
