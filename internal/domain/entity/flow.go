package entity

// FlowState состояние сценария загрузки и анализа
type FlowState string

const (
	StateIdle      FlowState = "idle"      // Изображение не выбрано
	StateHasImage  FlowState = "has_image" // Изображение выбрано, можно анализировать
	StateUploading FlowState = "uploading" // Идёт загрузка и предсказание
	StateReady     FlowState = "ready"     // Результат отрисован
	StateFailed    FlowState = "failed"    // Анализ завершился ошибкой
)

// FlowSnapshot опубликованное состояние контроллера загрузки.
type FlowSnapshot struct {
	State      FlowState
	Image      SelectedImage // текущее изображение (нулевое в Idle)
	Detections DetectionSet  // последний успешный набор детекций
	Overlay    *Overlay      // отрисовка последнего успешного набора
	ResultID   string        // идентификатор последнего успешного результата
	Reason     string        // причина ошибки в Failed
	InFlight   bool          // есть незавершённый запрос анализа
	Appearance *Appearance   // анимация появления, только в Ready
}

// CanAnalyze сообщает, доступно ли действие анализа.
func (s FlowSnapshot) CanAnalyze() bool {
	return !s.Image.IsZero() && !s.InFlight
}
