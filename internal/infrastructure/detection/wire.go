package detection

import (
	"encoding/json"
	"fmt"
	"strconv"

	"leaf-detect/internal/domain/entity"
)

// uploadResponse ответ POST /upload
type uploadResponse struct {
	ImagePath string `json:"image_path"`
}

// predictRequest тело POST /predict
type predictRequest struct {
	ImagePath      string  `json:"image_path"`
	ScoreThreshold float64 `json:"score_threshold"`
}

// wireDetection элемент массива ответа POST /predict.
// Указатели нужны, чтобы отличить отсутствующее поле от нулевого значения.
type wireDetection struct {
	DetectionID any      `json:"detection_id"`
	Class       *string  `json:"class"`
	Confidence  *float64 `json:"confidence"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Width       *float64 `json:"width"`
	Height      *float64 `json:"height"`
}

// decodeDetections разбирает массив детекций и проверяет его форму.
func decodeDetections(body []byte) (entity.DetectionSet, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrMalformedResponse, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected JSON array", entity.ErrMalformedResponse)
	}

	set := make(entity.DetectionSet, 0, len(raw))
	for i, item := range raw {
		var w wireDetection
		if err := json.Unmarshal(item, &w); err != nil {
			return nil, fmt.Errorf("%w: detection #%d: %v", entity.ErrMalformedResponse, i, err)
		}
		d, err := w.toEntity(i)
		if err != nil {
			return nil, fmt.Errorf("%w: detection #%d: %v", entity.ErrMalformedResponse, i, err)
		}
		set = append(set, d)
	}

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrMalformedResponse, err)
	}

	return set, nil
}

func (w wireDetection) toEntity(index int) (entity.Detection, error) {
	switch {
	case w.Class == nil:
		return entity.Detection{}, fmt.Errorf("missing class")
	case w.Confidence == nil:
		return entity.Detection{}, fmt.Errorf("missing confidence")
	case w.X == nil || w.Y == nil:
		return entity.Detection{}, fmt.Errorf("missing position")
	case w.Width == nil || w.Height == nil:
		return entity.Detection{}, fmt.Errorf("missing size")
	}

	id, err := detectionID(w.DetectionID, index)
	if err != nil {
		return entity.Detection{}, err
	}

	return entity.Detection{
		ID:         id,
		ClassName:  *w.Class,
		Confidence: *w.Confidence,
		X:          *w.X,
		Y:          *w.Y,
		Width:      *w.Width,
		Height:     *w.Height,
	}, nil
}

// detectionID принимает строковый или числовой идентификатор.
// Если сервис его не прислал, используется позиция в ответе.
func detectionID(v any, index int) (string, error) {
	switch id := v.(type) {
	case nil:
		return strconv.Itoa(index), nil
	case string:
		return id, nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported detection_id type %T", v)
	}
}
