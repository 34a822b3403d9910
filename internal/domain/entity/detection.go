package entity

import (
	"fmt"
	"image"
	"math"
	"strconv"
)

// HoleClass класс детекции, который рисуется красным. Все остальные классы рисуются янтарным.
const HoleClass = "Hole"

// Detection представляет одну область, найденную сервисом детекции.
// Координаты заданы в пикселях исходного изображения.
type Detection struct {
	ID         string  // detection_id от сервиса
	ClassName  string  // класс (Hole, Infected, ...)
	Confidence float64 // уверенность в диапазоне [0, 1]
	X          float64 // координата X левого верхнего угла
	Y          float64 // координата Y левого верхнего угла
	Width      float64 // ширина области
	Height     float64 // высота области
}

// DetectionSet упорядоченный список детекций в порядке ответа сервиса.
type DetectionSet []Detection

// Validate проверяет инварианты детекции.
func (d Detection) Validate() error {
	if isBad(d.X) || isBad(d.Y) || isBad(d.Width) || isBad(d.Height) || isBad(d.Confidence) {
		return fmt.Errorf("detection %q: non-finite value", d.ID)
	}
	if d.Width < 0 || d.Height < 0 {
		return fmt.Errorf("detection %q: negative size %gx%g", d.ID, d.Width, d.Height)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("detection %q: confidence %g outside [0,1]", d.ID, d.Confidence)
	}
	return nil
}

// IsHole сообщает, относится ли детекция к классу Hole.
func (d Detection) IsHole() bool {
	return d.ClassName == HoleClass
}

// ConfidencePercent возвращает уверенность в процентах с одним знаком после запятой: 0.873 -> "87.3%".
// Половина округляется вверх: 0.3125 -> "31.3%".
func (d Detection) ConfidencePercent() string {
	percent := d.Confidence * 100
	rounded := math.Round(percent*10) / 10
	return strconv.FormatFloat(rounded, 'f', 1, 64) + "%"
}

// Label возвращает подпись над прямоугольником: "Hole (92.0%)".
func (d Detection) Label() string {
	return d.ClassName + " (" + d.ConfidencePercent() + ")"
}

// Bounds возвращает прямоугольник детекции, округлённый до пикселей.
func (d Detection) Bounds() image.Rectangle {
	x0 := int(math.Round(d.X))
	y0 := int(math.Round(d.Y))
	x1 := int(math.Round(d.X + d.Width))
	y1 := int(math.Round(d.Y + d.Height))
	return image.Rect(x0, y0, x1, y1)
}

// Validate проверяет все детекции набора.
func (s DetectionSet) Validate() error {
	for i, d := range s {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("detection #%d: %w", i, err)
		}
	}
	return nil
}

// Clone возвращает копию набора, чтобы владелец не делил срез с вызывающим кодом.
func (s DetectionSet) Clone() DetectionSet {
	if s == nil {
		return nil
	}
	out := make(DetectionSet, len(s))
	copy(out, s)
	return out
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
