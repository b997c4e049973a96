package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// This file defines unit-safe types and helpers for lengths on the label.
// Geometry is always stored in millimeters; other units are display concerns.

// Unit represents the unit a length was authored or displayed in.
type Unit int

const (
	UnitNone Unit = iota // unit-less numbers like factors
	UnitMM               // millimeters
	UnitCM               // centimeters
	UnitIN               // inches
	UnitPT               // points
)

// Conversion constants.
const (
	MMPerInch = 25.4
	PtToMm    = MMPerInch / 72
	MmToPt    = 1.0 / PtToMm
)

// String returns a short string for a Unit value.
func (u Unit) String() string {
	switch u {
	case UnitMM:
		return "mm"
	case UnitCM:
		return "cm"
	case UnitIN:
		return "in"
	case UnitPT:
		return "pt"
	default:
		return ""
	}
}

// ParseUnit 解析 "mm"/"cm"/"in"/"pt"（大小写不敏感，允许 "inch"）。
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mm":
		return UnitMM, nil
	case "cm":
		return UnitCM, nil
	case "in", "inch", "inches":
		return UnitIN, nil
	case "pt":
		return UnitPT, nil
	default:
		return UnitNone, fmt.Errorf("units: 无法识别的单位 %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so settings files carry "mm"/"in".
func (u Unit) MarshalText() ([]byte, error) {
	if u == UnitNone {
		return nil, fmt.Errorf("units: 单位为空")
	}
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *Unit) UnmarshalText(text []byte) error {
	parsed, err := ParseUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ToMM converts v expressed in unit u to millimeters. UnitNone is treated as mm.
func ToMM(v float64, u Unit) float64 {
	switch u {
	case UnitCM:
		return v * 10
	case UnitIN:
		return v * MMPerInch
	case UnitPT:
		return v * PtToMm
	default:
		return v
	}
}

// FromMM converts millimeters to unit u. UnitNone is treated as mm.
func FromMM(mm float64, u Unit) float64 {
	switch u {
	case UnitCM:
		return mm / 10
	case UnitIN:
		return mm / MMPerInch
	case UnitPT:
		return mm * MmToPt
	default:
		return mm
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// ToMM converts the length to millimeters; bare numbers are taken as mm.
func (l Length) ToMM() float64 { return ToMM(l.Value, l.Unit) }

// To converts the length to unit u.
func (l Length) To(u Unit) float64 { return FromMM(l.ToMM(), u) }

// String formats the length the way the .label format writes it, e.g. "12.5mm".
func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + l.Unit.String()
}

// ParseLength parses a length string such as "5mm", "1.5in" or "12pt", preserving its unit.
// A bare number is returned with UnitNone; callers decide what that means.
func ParseLength(value string) (Length, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return Length{}, fmt.Errorf("units: 长度为空")
	}
	lower := strings.ToLower(v)
	unit := UnitNone
	num := lower
	for _, suf := range []struct {
		s string
		u Unit
	}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}} {
		if strings.HasSuffix(lower, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(lower, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, fmt.Errorf("units: 无法解析长度 %q: %w", value, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Length{}, fmt.Errorf("units: 长度 %q 不是有限数值", value)
	}
	return Length{Value: f, Unit: unit}, nil
}

// LineHeightKind distinguishes factor-based vs absolute line-height specification.
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// LineHeightSpec preserves author intent: either a factor (e.g., 1.2x) or an absolute length (e.g., 18pt).
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// ParseLineHeight 解析 "1.2x"、"1.2" 或 "5mm" 形式的行高。
func ParseLineHeight(value string) (LineHeightSpec, error) {
	v := strings.TrimSpace(strings.ToLower(value))
	if strings.HasSuffix(v, "x") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64)
		if err != nil {
			return LineHeightSpec{}, fmt.Errorf("units: 无法解析行高 %q: %w", value, err)
		}
		return LineHeightSpec{Kind: LineHeightFactor, Factor: f}, nil
	}
	l, err := ParseLength(v)
	if err != nil {
		return LineHeightSpec{}, err
	}
	if l.Unit == UnitNone {
		return LineHeightSpec{Kind: LineHeightFactor, Factor: l.Value}, nil
	}
	return LineHeightSpec{Kind: LineHeightAbsolute, Len: l}, nil
}

// Resolve computes the absolute line height in target unit using the given fontSize (which carries its unit).
func (s LineHeightSpec) Resolve(fontSize Length, target Unit) float64 {
	switch s.Kind {
	case LineHeightFactor:
		if s.Factor <= 0 {
			return fontSize.To(target) * 1.2
		}
		return fontSize.To(target) * s.Factor
	case LineHeightAbsolute:
		return s.Len.To(target)
	default:
		return fontSize.To(target) * 1.2
	}
}
