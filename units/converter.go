package units

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ScreenDPI 是缩放为 1 时画布的像素密度（CSS 像素）。
const ScreenDPI = 96.0

// ErrInvalidScale 表示缩放比例不是正的有限数值。
var ErrInvalidScale = errors.New("units: 缩放比例必须为正数")

// Vec is a label-space vector tagged with the unit its components are expressed in.
type Vec struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Unit Unit    `json:"unit"`
}

// MM returns the vector in millimeters.
func (v Vec) MM() r2.Vec {
	return r2.Vec{X: ToMM(v.X, v.Unit), Y: ToMM(v.Y, v.Unit)}
}

// In re-expresses the vector in unit u without changing the length it denotes.
func (v Vec) In(u Unit) Vec {
	mm := v.MM()
	return Vec{X: FromMM(mm.X, u), Y: FromMM(mm.Y, u), Unit: u}
}

// PixelsPerMM returns how many screen pixels one label millimeter covers at the given zoom.
func PixelsPerMM(zoom float64) (float64, error) {
	if err := checkScale(zoom); err != nil {
		return 0, err
	}
	return zoom * ScreenDPI / MMPerInch, nil
}

// ToLabelUnits converts a screen-space delta (pixels) to a label-space delta in unit.
func ToLabelUnits(screenDelta r2.Vec, zoom float64, unit Unit) (Vec, error) {
	ppmm, err := PixelsPerMM(zoom)
	if err != nil {
		return Vec{}, err
	}
	if unit == UnitNone {
		unit = UnitMM
	}
	mm := r2.Scale(1/ppmm, screenDelta)
	return Vec{X: FromMM(mm.X, unit), Y: FromMM(mm.Y, unit), Unit: unit}, nil
}

// ToScreenUnits converts a label-space point or delta to screen pixels.
func ToScreenUnits(label Vec, zoom float64) (r2.Vec, error) {
	ppmm, err := PixelsPerMM(zoom)
	if err != nil {
		return r2.Vec{}, err
	}
	return r2.Scale(ppmm, label.MM()), nil
}

func checkScale(zoom float64) error {
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return ErrInvalidScale
	}
	return nil
}
