package entity

import (
	"image"
	"time"
)

// Tooltip содержимое подсказки для области детекции.
type Tooltip struct {
	ClassName  string
	Confidence string // "92.0%"
}

// Text возвращает текст подсказки в две строки.
func (t Tooltip) Text() string {
	return "Class: " + t.ClassName + "\nConfidence: " + t.Confidence
}

// HitRegion интерактивная область, совпадающая с прямоугольником детекции.
type HitRegion struct {
	DetectionID string
	Bounds      image.Rectangle
	Tooltip     Tooltip
}

// NewHitRegion строит область по детекции.
func NewHitRegion(d Detection) HitRegion {
	return HitRegion{
		DetectionID: d.ID,
		Bounds:      d.Bounds(),
		Tooltip: Tooltip{
			ClassName:  d.ClassName,
			Confidence: d.ConfidencePercent(),
		},
	}
}

// Overlay результат отрисовки: картинка в координатах исходника и области подсказок.
type Overlay struct {
	Drawing    *image.NRGBA
	HitRegions []HitRegion
}

// Width возвращает ширину рисунка.
func (o *Overlay) Width() int {
	if o == nil || o.Drawing == nil {
		return 0
	}
	return o.Drawing.Bounds().Dx()
}

// Height возвращает высоту рисунка.
func (o *Overlay) Height() int {
	if o == nil || o.Drawing == nil {
		return 0
	}
	return o.Drawing.Bounds().Dy()
}

// HitTest возвращает верхнюю область под точкой (x, y).
// Области рисуются по порядку, поэтому верхней считается последняя подходящая.
func (o *Overlay) HitTest(x, y int) (HitRegion, bool) {
	if o == nil {
		return HitRegion{}, false
	}
	pt := image.Pt(x, y)
	for i := len(o.HitRegions) - 1; i >= 0; i-- {
		if pt.In(o.HitRegions[i].Bounds) {
			return o.HitRegions[i], true
		}
	}
	return HitRegion{}, false
}

// Appearance описывает анимацию появления отрисованного результата.
type Appearance struct {
	FromOpacity float64       // начальная прозрачность
	FromOffsetY int           // начальный сдвиг вниз в пикселях
	Duration    time.Duration // длительность
}

// DefaultAppearance плавное появление снизу за одну секунду.
var DefaultAppearance = Appearance{
	FromOpacity: 0,
	FromOffsetY: 50,
	Duration:    time.Second,
}
