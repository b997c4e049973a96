package label

import (
	"fmt"
	"sort"
	"strings"
)

// 该文件定义元素的封闭联合类型：Text、Line、Table、Barcode、Image、Shape。

// ElementID 是文档内唯一且永不复用的元素标识。
type ElementID uint64

func (id ElementID) String() string { return fmt.Sprintf("el-%d", id) }

// Kind 标识元素种类。
type Kind int

const (
	KindText Kind = iota
	KindLine
	KindTable
	KindBarcode
	KindImage
	KindShape
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindLine:
		return "line"
	case KindTable:
		return "table"
	case KindBarcode:
		return "barcode"
	case KindImage:
		return "image"
	case KindShape:
		return "shape"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Point is a label-space position in millimeters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a label-space extent in millimeters.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect 由左上角与尺寸组成（单位：mm）。
type Rect struct {
	Point
	Size
}

// RectFromPoints 返回两个对角点张成的规范化矩形。
func RectFromPoints(a, b Point) Rect {
	x0, x1 := a.X, b.X
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	y0, y1 := a.Y, b.Y
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return Rect{Point: Point{X: x0, Y: y0}, Size: Size{Width: x1 - x0, Height: y1 - y0}}
}

// Element 是文档中的一个已放置元素。Z 由文档根据堆叠顺序填写。
type Element struct {
	ID       ElementID `json:"id"`
	Position Point     `json:"position"`
	Size     Size      `json:"size"`
	Z        int       `json:"z"`
	Payload  Payload   `json:"payload"`
}

// Kind returns the kind of the element's payload.
func (e Element) Kind() Kind { return e.Payload.Kind() }

func (e Element) clone() Element {
	out := e
	if e.Payload != nil {
		out.Payload = e.Payload.clone()
	}
	return out
}

// Payload is the kind-specific part of an element. The set of implementations is closed.
type Payload interface {
	Kind() Kind
	validate() error
	clone() Payload
}

// Align 为文本水平对齐方式。
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Text 为文本元素。Style 引用文档中的命名样式，未命名时使用 DefaultStyleName。
type Text struct {
	Content string `json:"content"`
	Style   string `json:"style,omitempty"`
	Align   Align  `json:"align,omitempty"`
}

func (Text) Kind() Kind { return KindText }

func (t Text) validate() error {
	switch t.Align {
	case "", AlignLeft, AlignCenter, AlignRight:
		return nil
	default:
		return fmt.Errorf("%w: 未知的对齐方式 %q", ErrInvalidPayload, t.Align)
	}
}

func (t Text) clone() Payload { return t }

// Line 为直线元素，端点以 mm 表示。
type Line struct {
	Start       Point   `json:"start"`
	End         Point   `json:"end"`
	StrokeWidth float64 `json:"strokeWidth"` // mm，0 表示使用默认线宽
	Color       string  `json:"color,omitempty"`
}

func (Line) Kind() Kind { return KindLine }

func (l Line) validate() error {
	if l.StrokeWidth < 0 {
		return fmt.Errorf("%w: 线宽不能为负", ErrInvalidPayload)
	}
	return nil
}

func (l Line) clone() Payload { return l }

// Cell 表示表格中的一个单元格坐标（从 0 开始）。
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Table 为表格元素。ColumnWidths 为空时按元素宽度平均分配。
type Table struct {
	Rows         int             `json:"rows"`
	Cols         int             `json:"cols"`
	Cells        map[Cell]string `json:"-"`
	ColumnWidths []float64       `json:"columnWidths,omitempty"`
	Style        string          `json:"style,omitempty"`
}

func (Table) Kind() Kind { return KindTable }

func (t Table) validate() error {
	if t.Rows < 1 || t.Cols < 1 {
		return fmt.Errorf("%w: 表格行列数必须至少为 1", ErrInvalidPayload)
	}
	for c := range t.Cells {
		if c.Row < 0 || c.Row >= t.Rows || c.Col < 0 || c.Col >= t.Cols {
			return fmt.Errorf("%w: 单元格 (%d,%d) 超出 %dx%d 表格", ErrInvalidPayload, c.Row, c.Col, t.Rows, t.Cols)
		}
	}
	if len(t.ColumnWidths) != 0 && len(t.ColumnWidths) != t.Cols {
		return fmt.Errorf("%w: 列宽数量 %d 与列数 %d 不一致", ErrInvalidPayload, len(t.ColumnWidths), t.Cols)
	}
	for _, w := range t.ColumnWidths {
		if w <= 0 {
			return fmt.Errorf("%w: 列宽必须为正数", ErrInvalidPayload)
		}
	}
	return nil
}

func (t Table) clone() Payload {
	out := t
	if t.Cells != nil {
		out.Cells = make(map[Cell]string, len(t.Cells))
		for k, v := range t.Cells {
			out.Cells[k] = v
		}
	}
	if t.ColumnWidths != nil {
		out.ColumnWidths = append([]float64(nil), t.ColumnWidths...)
	}
	return out
}

// CellText returns the content of a cell, or "" when unset.
func (t Table) CellText(row, col int) string { return t.Cells[Cell{Row: row, Col: col}] }

// SortedCells 按行优先顺序返回已填写的单元格，便于确定性输出。
func (t Table) SortedCells() []Cell {
	cells := make([]Cell, 0, len(t.Cells))
	for c := range t.Cells {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
	return cells
}

// Symbology 为条码编码标准。
type Symbology string

const (
	CODE128    Symbology = "CODE128"
	CODE39     Symbology = "CODE39"
	EAN13      Symbology = "EAN13"
	EAN8       Symbology = "EAN8"
	UPC        Symbology = "UPC"
	QR         Symbology = "QR"
	DATAMATRIX Symbology = "DATAMATRIX"
	PDF417     Symbology = "PDF417"
	AZTEC      Symbology = "AZTEC"
)

// Symbologies lists every supported symbology in palette order.
var Symbologies = []Symbology{CODE128, CODE39, EAN13, EAN8, UPC, QR, DATAMATRIX, PDF417, AZTEC}

// ParseSymbology 解析条码类型名称（大小写不敏感，忽略 "-" 与 "_"）。
func ParseSymbology(s string) (Symbology, error) {
	key := strings.ToUpper(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	if key == "UPCA" {
		key = "UPC"
	}
	for _, sym := range Symbologies {
		if string(sym) == key {
			return sym, nil
		}
	}
	return "", fmt.Errorf("%w: 未知的条码类型 %q", ErrInvalidPayload, s)
}

// IsTwoDimensional reports whether the symbology is a matrix/stacked code.
func (s Symbology) IsTwoDimensional() bool {
	switch s {
	case QR, DATAMATRIX, PDF417, AZTEC:
		return true
	default:
		return false
	}
}

// Barcode 为条码元素。Value 在入库前会去除首尾空白。
// 具体条码类型的可编码性（如 EAN13 仅限数字）由渲染/打印端校验。
type Barcode struct {
	Symbology Symbology `json:"symbology"`
	Value     string    `json:"value"`
	ShowText  bool      `json:"showText"`
}

func (Barcode) Kind() Kind { return KindBarcode }

func (b Barcode) validate() error {
	if _, err := ParseSymbology(string(b.Symbology)); err != nil {
		return err
	}
	if strings.TrimSpace(b.Value) == "" {
		return ErrEmptyValue
	}
	return nil
}

func (b Barcode) clone() Payload { return b }

// Image 为图片元素。Source 是不透明的资源引用，由打印端解析。
type Image struct {
	Source      string  `json:"source"`
	AspectRatio float64 `json:"aspectRatio,omitempty"` // width / height，0 表示未知
}

func (Image) Kind() Kind { return KindImage }

func (i Image) validate() error {
	if strings.TrimSpace(i.Source) == "" {
		return fmt.Errorf("%w: 图片缺少资源引用", ErrInvalidPayload)
	}
	if i.AspectRatio < 0 {
		return fmt.Errorf("%w: 图片宽高比不能为负", ErrInvalidPayload)
	}
	return nil
}

func (i Image) clone() Payload { return i }

// ShapeKind 为形状种类，开放集合；渲染端不认识的种类按矩形处理。
type ShapeKind string

const (
	ShapeRectangle        ShapeKind = "rectangle"
	ShapeEllipse          ShapeKind = "ellipse"
	ShapeRoundedRectangle ShapeKind = "rounded-rectangle"
	ShapeTriangle         ShapeKind = "triangle"
)

// Shape 为形状元素。Fill/Stroke 为颜色标记：#RGB/#RRGGBB 或文档中的命名颜色，Fill 为空表示不填充。
type Shape struct {
	Shape        ShapeKind `json:"shape"`
	Fill         string    `json:"fill,omitempty"`
	Stroke       string    `json:"stroke,omitempty"`
	StrokeWidth  float64   `json:"strokeWidth"`
	CornerRadius float64   `json:"cornerRadius,omitempty"`
}

func (Shape) Kind() Kind { return KindShape }

func (s Shape) validate() error {
	if strings.TrimSpace(string(s.Shape)) == "" {
		return fmt.Errorf("%w: 形状种类为空", ErrInvalidPayload)
	}
	if s.StrokeWidth < 0 || s.CornerRadius < 0 {
		return fmt.Errorf("%w: 线宽与圆角不能为负", ErrInvalidPayload)
	}
	return nil
}

func (s Shape) clone() Payload { return s }

// normalize 返回入库前的规范化副本（例如去除条码值首尾空白）。
func normalize(p Payload) Payload {
	switch v := p.(type) {
	case Barcode:
		v.Value = strings.TrimSpace(v.Value)
		if sym, err := ParseSymbology(string(v.Symbology)); err == nil {
			v.Symbology = sym
		}
		return v
	case Shape:
		v.Shape = ShapeKind(strings.ToLower(strings.TrimSpace(string(v.Shape))))
		return v
	default:
		return p.clone()
	}
}

// Validate 检查载荷是否可以进入文档。
func Validate(p Payload) error {
	if p == nil {
		return fmt.Errorf("%w: 载荷为空", ErrInvalidPayload)
	}
	return p.validate()
}
