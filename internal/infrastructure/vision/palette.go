package vision

import (
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"

	"leaf-detect/internal/domain/entity"
)

var (
	holeColor       = mustHex("#EF4444") // красный
	otherColor      = mustHex("#F59E0B") // янтарный
	backgroundColor = mustHex("#111827") // фон анимации появления
)

// StrokeColor возвращает цвет рамки и подписи для класса.
// Любой класс, кроме Hole, рисуется янтарным.
func StrokeColor(className string) color.NRGBA {
	if className == entity.HoleClass {
		return holeColor
	}
	return otherColor
}

func mustHex(hex string) color.NRGBA {
	c, err := colorful.Hex(hex)
	if err != nil {
		panic(err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
