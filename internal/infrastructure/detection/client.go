package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"leaf-detect/internal/domain/entity"
	"leaf-detect/internal/domain/port"
)

const (
	defaultFilename = "image.jpg"
	maxBodySize     = 32 << 20
	maxErrorExcerpt = 512
)

// HTTPClient клиент сервиса детекции: POST /upload, затем POST /predict
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient создаёт клиента с базовым URL сервиса и таймаутом на каждый запрос
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// NormalizePath приводит разделители пути сервиса к "/".
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Analyze загружает изображение и запрашивает детекции.
// Ошибка любого шага возвращается как *entity.AnalysisError без частичного результата.
func (c *HTTPClient) Analyze(ctx context.Context, img entity.SelectedImage, threshold float64) (entity.DetectionSet, error) {
	imagePath, err := c.Store(ctx, img.Name, img.Raw)
	if err != nil {
		return nil, &entity.AnalysisError{Stage: "store", Err: err}
	}

	detections, err := c.Predict(ctx, NormalizePath(imagePath), threshold)
	if err != nil {
		return nil, &entity.AnalysisError{Stage: "predict", Err: err}
	}

	return detections, nil
}

// Store отправляет байты изображения и возвращает путь, назначенный сервисом
func (c *HTTPClient) Store(ctx context.Context, filename string, raw []byte) (string, error) {
	if filename == "" {
		filename = defaultFilename
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(raw); err != nil {
		return "", fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}

	var result uploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: decode upload response: %v", entity.ErrMalformedResponse, err)
	}
	if result.ImagePath == "" {
		return "", fmt.Errorf("%w: empty image_path", entity.ErrMalformedResponse)
	}

	c.logger.Debug("image stored", "filename", filename, "image_path", result.ImagePath)
	return result.ImagePath, nil
}

// Predict запрашивает детекции для ранее загруженного изображения
func (c *HTTPClient) Predict(ctx context.Context, imagePath string, threshold float64) (entity.DetectionSet, error) {
	payload, err := json.Marshal(predictRequest{
		ImagePath:      imagePath,
		ScoreThreshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	detections, err := decodeDetections(respBody)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("predictions received", "image_path", imagePath, "count", len(detections))
	return detections, nil
}

// do выполняет запрос и возвращает тело успешного ответа
func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", entity.ErrTransportFailure, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %w", entity.ErrTransportFailure, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := data
		if len(excerpt) > maxErrorExcerpt {
			excerpt = excerpt[:maxErrorExcerpt]
		}
		c.logger.Warn("detection service error",
			"path", req.URL.Path,
			"status", resp.StatusCode,
			"body", string(excerpt),
		)
		return nil, fmt.Errorf("%w: %s returned status %d", entity.ErrServiceError, req.URL.Path, resp.StatusCode)
	}

	return data, nil
}

// Проверка реализации интерфейса
var _ port.DetectionClient = (*HTTPClient)(nil)
