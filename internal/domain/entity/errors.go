package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSelection файл не выбран или пустой.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrTransportFailure сеть недоступна или истёк таймаут.
	ErrTransportFailure = errors.New("transport failure")
	// ErrServiceError сервис ответил не 2xx.
	ErrServiceError = errors.New("service error")
	// ErrMalformedResponse тело ответа не совпадает с ожидаемой формой.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrServiceError)
	// ErrHandleReleased handle изображения уже освобождён.
	ErrHandleReleased = errors.New("display handle released")
	// ErrAnalyzeDisabled анализ недоступен, изображение не выбрано.
	ErrAnalyzeDisabled = errors.New("analyze is disabled: no image selected")
	// ErrAnalysisInFlight предыдущий анализ ещё не завершён.
	ErrAnalysisInFlight = errors.New("analysis already in flight")
	// ErrFlowClosed контроллер остановлен.
	ErrFlowClosed = errors.New("upload flow closed")
)

// AnalysisError ошибка анализа целиком (AnalysisFailed) с указанием шага.
type AnalysisError struct {
	Stage string // "store" или "predict"
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed at %s: %v", e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
