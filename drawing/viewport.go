package drawing

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/units"
)

// Viewport 描述画布的缩放与标签原点在屏幕上的位置（像素）。
type Viewport struct {
	Zoom   float64
	Origin r2.Vec
}

// ToLabel 将屏幕像素坐标换算为标签坐标（mm），结果对齐到 1µm。
func (v Viewport) ToLabel(screen r2.Vec) (label.Point, error) {
	d, err := units.ToLabelUnits(r2.Sub(screen, v.Origin), v.Zoom, units.UnitMM)
	if err != nil {
		return label.Point{}, err
	}
	return label.Point{X: snap(d.X), Y: snap(d.Y)}, nil
}

// ToScreen 将标签坐标（mm）换算为屏幕像素坐标。
func (v Viewport) ToScreen(p label.Point) (r2.Vec, error) {
	s, err := units.ToScreenUnits(units.Vec{X: p.X, Y: p.Y, Unit: units.UnitMM}, v.Zoom)
	if err != nil {
		return r2.Vec{}, err
	}
	return r2.Add(s, v.Origin), nil
}

func snap(mm float64) float64 { return math.Round(mm*1e6) / 1e6 }
