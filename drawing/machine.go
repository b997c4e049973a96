package drawing

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/tools"
)

const (
	// DefaultMinLineLength 为直线的最短长度（mm），更短的手势被丢弃。
	DefaultMinLineLength = 0.5
	// degenerateExtent 以下的拖拽宽或高视为零面积。
	degenerateExtent = 1e-6
)

var (
	// ErrDegenerateGesture 表示零长度直线或零面积拖拽；该手势被静默丢弃。
	ErrDegenerateGesture = errors.New("drawing: 手势过小，已丢弃")
	// ErrNotAwaiting 表示在没有等待中的条码输入时收到了 ConfirmValue。
	ErrNotAwaiting = errors.New("drawing: 当前没有等待确认的条码")
	// ErrUnknownTool 表示调色板传入了未注册的工具。
	ErrUnknownTool = errors.New("drawing: 未知工具")
)

// Defaults 保存各工具激活时使用的初始参数。
type Defaults struct {
	TextContent string
	TextStyle   string
	Shape       label.ShapeKind
	ShapeStroke string
	Rows        int
	Cols        int
	Symbology   label.Symbology
	ShowText    bool
	LineWidth   float64 // mm
	// Origin 是即时添加且没有拖放位置时元素的放置点（mm）。
	Origin label.Point
}

// DefaultDefaults 返回内置的工具参数。
func DefaultDefaults() Defaults {
	return Defaults{
		TextContent: "Text",
		TextStyle:   label.DefaultStyleName,
		Shape:       label.ShapeRectangle,
		ShapeStroke: "#000000",
		Rows:        2,
		Cols:        2,
		Symbology:   label.CODE128,
		ShowText:    true,
		LineWidth:   0.3,
		Origin:      label.Point{X: 5, Y: 5},
	}
}

// Options 配置状态机。
type Options struct {
	Viewport      Viewport
	Prompter      ValuePrompter
	Logger        *slog.Logger
	MinLineLength float64
	Defaults      *Defaults
}

// Outcome 描述一次指令的结果。Created 非零表示提交了一个新元素；
// Rejected 非空表示手势被丢弃或输入被拒绝（不是调用错误）。
type Outcome struct {
	Created  label.ElementID
	Rejected error
}

// Committed reports whether the command created an element.
func (o Outcome) Committed() bool { return o.Created != 0 }

// Machine 是绘制模式状态机。它由 UI 事件循环单线程驱动，不做内部加锁。
type Machine struct {
	doc      *label.Document
	viewport Viewport
	prompter ValuePrompter
	log      *slog.Logger
	minLine  float64
	defaults Defaults
	mode     Mode
}

// New 创建处于 Idle 模式的状态机。
func New(doc *label.Document, opts Options) (*Machine, error) {
	if doc == nil {
		return nil, fmt.Errorf("drawing: 文档为空")
	}
	vp := opts.Viewport
	if vp.Zoom == 0 {
		vp.Zoom = 1
	}
	if _, err := vp.ToLabel(r2.Vec{}); err != nil {
		return nil, err
	}
	m := &Machine{
		doc:      doc,
		viewport: vp,
		prompter: opts.Prompter,
		log:      opts.Logger,
		minLine:  opts.MinLineLength,
		defaults: DefaultDefaults(),
		mode:     Idle{},
	}
	if opts.Defaults != nil {
		m.defaults = *opts.Defaults
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.minLine <= 0 {
		m.minLine = DefaultMinLineLength
	}
	return m, nil
}

// Mode 返回当前模式的副本。
func (m *Machine) Mode() Mode { return m.mode }

// Viewport returns the current viewport.
func (m *Machine) Viewport() Viewport { return m.viewport }

// SetViewport 更新缩放与原点；缩放不合法时返回 units.ErrInvalidScale 且保持原值。
func (m *Machine) SetViewport(v Viewport) error {
	if _, err := v.ToLabel(r2.Vec{}); err != nil {
		return err
	}
	m.viewport = v
	return nil
}

// Dispatch 处理一条指令：至多一次状态转换加至多一次文档修改，然后立即返回。
func (m *Machine) Dispatch(cmd Command) (Outcome, error) {
	switch c := cmd.(type) {
	case SelectTool:
		return m.selectTool(c)
	case PointerDown:
		return m.pointerDown(c.At)
	case PointerMove:
		return Outcome{}, m.pointerMove(c.At)
	case PointerUp:
		return m.pointerUp(c.At)
	case ConfirmValue:
		return m.confirm(c.Value)
	case Cancel:
		m.reset("cancel")
		return Outcome{}, nil
	case FocusLost:
		// 条码输入框打开时焦点本就不在画布上，保持等待状态。
		if bc, ok := m.mode.(DrawingBarcode); ok && bc.Awaiting {
			return Outcome{}, nil
		}
		m.reset("focus-lost")
		return Outcome{}, nil
	case ConfigureShape:
		return Outcome{}, m.configureShape(c)
	case ConfigureTable:
		return Outcome{}, m.configureTable(c)
	case ConfigureBarcode:
		return Outcome{}, m.configureBarcode(c)
	case nil:
		return Outcome{}, fmt.Errorf("drawing: 指令为空")
	default:
		return Outcome{}, fmt.Errorf("drawing: 未知指令 %T", cmd)
	}
}

func (m *Machine) transition(next Mode, reason string) {
	prev := m.mode
	m.mode = next
	if prev.Name() != next.Name() {
		m.log.Debug("drawing: 模式切换", "from", prev.Name(), "to", next.Name(), "reason", reason)
	}
}

// reset 回到 Idle 并丢弃进行中的手势。
func (m *Machine) reset(reason string) { m.transition(Idle{}, reason) }

func (m *Machine) selectTool(c SelectTool) (Outcome, error) {
	desc, ok := tools.Lookup(c.Tool)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownTool, c.Tool)
	}
	// 激活新工具会隐式取消进行中的手势，不会提交任何半成品。
	m.reset("select-tool")

	if desc.Interaction == tools.InstantAdd {
		return m.instantAdd(c)
	}
	switch desc.ID {
	case tools.Line:
		m.transition(DrawingLine{}, "select-tool")
	case tools.Barcode:
		m.transition(DrawingBarcode{Symbology: m.defaults.Symbology, ShowText: m.defaults.ShowText}, "select-tool")
	case tools.Shape:
		m.transition(DrawingShape{Shape: m.defaults.Shape}, "select-tool")
	case tools.Table:
		m.transition(PlacingTable{Rows: m.defaults.Rows, Cols: m.defaults.Cols}, "select-tool")
	default:
		return Outcome{}, fmt.Errorf("%w: %q 没有对应的绘制模式", ErrUnknownTool, c.Tool)
	}
	return Outcome{}, nil
}

func (m *Machine) instantAdd(c SelectTool) (Outcome, error) {
	pos := m.defaults.Origin
	if c.Drop != nil {
		p, err := m.viewport.ToLabel(*c.Drop)
		if err != nil {
			return Outcome{}, err
		}
		pos = p
	}
	var payload label.Payload
	switch c.Tool {
	case tools.Text:
		payload = label.Text{Content: m.defaults.TextContent, Style: m.defaults.TextStyle, Align: label.AlignLeft}
	case tools.Image:
		payload = label.Image{Source: c.Source, AspectRatio: c.AspectRatio}
	default:
		return Outcome{}, fmt.Errorf("%w: %q 不是即时添加工具", ErrUnknownTool, c.Tool)
	}
	id, err := m.doc.AddElement(payload, pos)
	if err != nil {
		return Outcome{}, err
	}
	m.log.Debug("drawing: 即时添加元素", "tool", string(c.Tool), "id", id.String())
	return Outcome{Created: id}, nil
}

func (m *Machine) pointerDown(at r2.Vec) (Outcome, error) {
	p, err := m.viewport.ToLabel(at)
	if err != nil {
		return Outcome{}, err
	}
	switch mode := m.mode.(type) {
	case DrawingLine:
		mode.Anchor, mode.Anchored, mode.Current = p, true, p
		m.mode = mode
	case DrawingBarcode:
		if mode.Awaiting {
			return Outcome{}, nil
		}
		mode.Start, mode.Dragging, mode.Current = p, true, p
		m.mode = mode
	case DrawingShape:
		mode.Start, mode.Dragging, mode.Current = p, true, p
		m.mode = mode
	}
	return Outcome{}, nil
}

func (m *Machine) pointerMove(at r2.Vec) error {
	p, err := m.viewport.ToLabel(at)
	if err != nil {
		return err
	}
	switch mode := m.mode.(type) {
	case DrawingLine:
		if mode.Anchored {
			mode.Current = p
			m.mode = mode
		}
	case DrawingBarcode:
		if mode.Dragging {
			mode.Current = p
			m.mode = mode
		}
	case DrawingShape:
		if mode.Dragging {
			mode.Current = p
			m.mode = mode
		}
	}
	return nil
}

func (m *Machine) pointerUp(at r2.Vec) (Outcome, error) {
	p, err := m.viewport.ToLabel(at)
	if err != nil {
		return Outcome{}, err
	}
	switch mode := m.mode.(type) {
	case DrawingLine:
		if !mode.Anchored {
			return Outcome{}, nil
		}
		return m.commitLine(mode.Anchor, p)
	case DrawingBarcode:
		if !mode.Dragging || mode.Awaiting {
			return Outcome{}, nil
		}
		rect := label.RectFromPoints(mode.Start, p)
		if degenerate(rect) {
			return m.reject("barcode")
		}
		mode.Dragging = false
		mode.Current = p
		mode.Awaiting = true
		mode.Placement = rect
		m.mode = mode
		m.requestValue(mode, nil)
		return Outcome{}, nil
	case DrawingShape:
		if !mode.Dragging {
			return Outcome{}, nil
		}
		rect := label.RectFromPoints(mode.Start, p)
		if degenerate(rect) {
			return m.reject("shape")
		}
		shape := label.Shape{Shape: mode.Shape, Stroke: m.defaults.ShapeStroke, StrokeWidth: m.defaults.LineWidth}
		return m.commit(shape, rect)
	case PlacingTable:
		table := label.Table{Rows: mode.Rows, Cols: mode.Cols}
		return m.commit(table, label.Rect{Point: p, Size: label.DefaultSize(table)})
	}
	return Outcome{}, nil
}

func (m *Machine) commitLine(from, to label.Point) (Outcome, error) {
	dist := r2.Norm(r2.Sub(r2.Vec{X: to.X, Y: to.Y}, r2.Vec{X: from.X, Y: from.Y}))
	if dist < m.minLine {
		return m.reject("line")
	}
	ln := label.Line{Start: from, End: to, StrokeWidth: m.defaults.LineWidth}
	id, err := m.doc.AddElement(ln, from)
	m.reset("commit")
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Created: id}, nil
}

// commit 提交元素并回到 Idle。失败时文档保持不变。
func (m *Machine) commit(p label.Payload, rect label.Rect) (Outcome, error) {
	id, err := m.doc.AddElementRect(p, rect)
	m.reset("commit")
	if err != nil {
		return Outcome{}, err
	}
	m.log.Debug("drawing: 提交元素", "kind", p.Kind().String(), "id", id.String())
	return Outcome{Created: id}, nil
}

func (m *Machine) reject(what string) (Outcome, error) {
	m.log.Debug("drawing: 丢弃过小的手势", "gesture", what)
	m.reset("degenerate")
	return Outcome{Rejected: ErrDegenerateGesture}, nil
}

func (m *Machine) confirm(value string) (Outcome, error) {
	mode, ok := m.mode.(DrawingBarcode)
	if !ok || !mode.Awaiting {
		return Outcome{}, ErrNotAwaiting
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		// 输入框重新打开，手势不取消。
		mode.PendingValue = value
		m.mode = mode
		m.requestValue(mode, label.ErrEmptyValue)
		return Outcome{Rejected: label.ErrEmptyValue}, nil
	}
	bc := label.Barcode{Symbology: mode.Symbology, Value: trimmed, ShowText: mode.ShowText}
	return m.commit(bc, mode.Placement)
}

func (m *Machine) requestValue(mode DrawingBarcode, reason error) {
	if m.prompter == nil {
		m.log.Warn("drawing: 未配置条码输入协作方，等待 ConfirmValue 指令")
		return
	}
	m.prompter.RequestValue(PromptRequest{
		Symbology: mode.Symbology,
		Placement: mode.Placement,
		Previous:  mode.PendingValue,
		Reason:    reason,
	})
}

func (m *Machine) configureShape(c ConfigureShape) error {
	kind := label.ShapeKind(strings.ToLower(strings.TrimSpace(string(c.Shape))))
	if kind == "" {
		return fmt.Errorf("drawing: 形状种类为空")
	}
	m.defaults.Shape = kind
	if mode, ok := m.mode.(DrawingShape); ok {
		mode.Shape = kind
		m.mode = mode
	}
	return nil
}

func (m *Machine) configureTable(c ConfigureTable) error {
	if c.Rows < 1 || c.Cols < 1 {
		return fmt.Errorf("drawing: 表格行列数必须至少为 1 (%dx%d)", c.Rows, c.Cols)
	}
	m.defaults.Rows, m.defaults.Cols = c.Rows, c.Cols
	if _, ok := m.mode.(PlacingTable); ok {
		m.mode = PlacingTable{Rows: c.Rows, Cols: c.Cols}
	}
	return nil
}

func (m *Machine) configureBarcode(c ConfigureBarcode) error {
	sym, err := label.ParseSymbology(string(c.Symbology))
	if err != nil {
		return err
	}
	m.defaults.Symbology, m.defaults.ShowText = sym, c.ShowText
	if mode, ok := m.mode.(DrawingBarcode); ok {
		mode.Symbology, mode.ShowText = sym, c.ShowText
		m.mode = mode
	}
	return nil
}

// Preview 返回进行中手势的示意元素（不在文档中，ID 为 0），用于橡皮筋绘制。
func (m *Machine) Preview() (label.Element, bool) {
	switch mode := m.mode.(type) {
	case DrawingLine:
		if !mode.Anchored {
			return label.Element{}, false
		}
		ln := label.Line{Start: mode.Anchor, End: mode.Current, StrokeWidth: m.defaults.LineWidth}
		return label.Element{Position: mode.Anchor, Payload: ln}, true
	case DrawingBarcode:
		rect := mode.Placement
		if !mode.Awaiting {
			if !mode.Dragging {
				return label.Element{}, false
			}
			rect = label.RectFromPoints(mode.Start, mode.Current)
		}
		return label.Element{Position: rect.Point, Size: rect.Size, Payload: label.Barcode{Symbology: mode.Symbology, ShowText: mode.ShowText}}, true
	case DrawingShape:
		if !mode.Dragging {
			return label.Element{}, false
		}
		rect := label.RectFromPoints(mode.Start, mode.Current)
		return label.Element{Position: rect.Point, Size: rect.Size, Payload: label.Shape{Shape: mode.Shape}}, true
	}
	return label.Element{}, false
}

func degenerate(r label.Rect) bool {
	return r.Width < degenerateExtent || r.Height < degenerateExtent
}
