package drawing

import "github.com/ByLCY/labelcanvas/label"

// Mode 是当前唯一生效的交互模式。实现集合是封闭的：
// Idle、DrawingLine、DrawingBarcode、DrawingShape、PlacingTable。
type Mode interface {
	Name() string
	mode()
}

// Idle 表示没有进行中的手势。
type Idle struct{}

// DrawingLine 等待按下确定锚点，松开时提交直线。
type DrawingLine struct {
	Anchor   label.Point
	Anchored bool
	Current  label.Point
}

// DrawingBarcode 通过拖拽确定放置矩形，随后进入等待输入的子状态。
type DrawingBarcode struct {
	Symbology label.Symbology
	ShowText  bool
	Start     label.Point
	Dragging  bool
	Current   label.Point

	// Awaiting 为 true 时放置矩形已确定，正在等待外部输入条码值。
	Awaiting  bool
	Placement label.Rect
	// PendingValue 记录最近一次被拒绝的输入，供重新打开的输入框回填。
	PendingValue string
}

// DrawingShape 通过拖拽确定形状的外接矩形。
type DrawingShape struct {
	Shape    label.ShapeKind
	Start    label.Point
	Dragging bool
	Current  label.Point
}

// PlacingTable 在下一次点击处放置表格。
type PlacingTable struct {
	Rows int
	Cols int
}

func (Idle) Name() string           { return "idle" }
func (DrawingLine) Name() string    { return "drawing-line" }
func (DrawingBarcode) Name() string { return "drawing-barcode" }
func (DrawingShape) Name() string   { return "drawing-shape" }
func (PlacingTable) Name() string   { return "placing-table" }

func (Idle) mode()           {}
func (DrawingLine) mode()    {}
func (DrawingBarcode) mode() {}
func (DrawingShape) mode()   {}
func (PlacingTable) mode()   {}

// IsIdle reports whether m is the Idle mode.
func IsIdle(m Mode) bool {
	_, ok := m.(Idle)
	return ok
}
