package container

import (
	"io"
	"log/slog"

	"leaf-detect/config"
	app "leaf-detect/internal/application"
	"leaf-detect/internal/domain/port"
	"leaf-detect/internal/infrastructure/detection"
	"leaf-detect/internal/infrastructure/storage"
	"leaf-detect/internal/infrastructure/vision"
)

type Container struct {
	Handles        *storage.MemoryHandleStore
	Client         port.DetectionClient
	Renderer       port.OverlayRenderer
	SessionService *app.SessionService
	AnimateResult  bool
}

func New(cfg *config.Config, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	handles := storage.NewMemoryHandleStore()
	client := detection.NewHTTPClient(cfg.BackendURL, cfg.HTTPTimeout, logger.With("component", "detection"))
	renderer := newRenderer(cfg.RenderBackend, handles, logger)

	flowLogger := logger.With("component", "upload_flow")
	sessions := app.NewSessionService(func() *app.UploadFlow {
		// У каждого чата свой текущий выбор, реестр handle-ов общий
		return app.NewUploadFlow(flowLogger, storage.NewSelectionStore(handles), client, renderer, cfg.ScoreThreshold)
	})

	return &Container{
		Handles:        handles,
		Client:         client,
		Renderer:       renderer,
		SessionService: sessions,
		AnimateResult:  cfg.AnimateResult,
	}
}

func newRenderer(backend string, handles port.HandleStore, logger *slog.Logger) port.OverlayRenderer {
	if backend == config.RenderGoCV {
		if vision.GoCVAvailable {
			return vision.NewGoCVRenderer(handles)
		}
		logger.Warn("gocv renderer requested but binary built without gocv tag, using native renderer")
	}
	return vision.NewRenderer(handles)
}

func (c *Container) Close() {
	c.SessionService.Close()
}
