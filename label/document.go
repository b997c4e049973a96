package label

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/ByLCY/labelcanvas/units"
)

// Direction 为调整堆叠顺序的方向。
type Direction int

const (
	ToFront Direction = iota
	ToBack
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case ToFront:
		return "front"
	case ToBack:
		return "back"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Document 是唯一拥有全部元素的标签文档。几何数据始终以毫米保存，
// Unit 仅影响显示与输入换算。
type Document struct {
	ID     uuid.UUID
	Name   string
	Width  float64 // mm
	Height float64 // mm
	Unit   units.Unit
	Styles map[string]TextStyle
	Colors map[string]string

	elements map[ElementID]*Element
	order    []ElementID // 下标即 z-index
	nextID   ElementID
}

// NewDocument 创建一个空白标签，宽高以毫米给出。
func NewDocument(name string, width, height float64, unit units.Unit) *Document {
	if unit == units.UnitNone {
		unit = units.UnitMM
	}
	return &Document{
		ID:       uuid.New(),
		Name:     name,
		Width:    width,
		Height:   height,
		Unit:     unit,
		Styles:   map[string]TextStyle{},
		Colors:   map[string]string{},
		elements: map[ElementID]*Element{},
		nextID:   1,
	}
}

func (d *Document) init() {
	if d.elements == nil {
		d.elements = map[ElementID]*Element{}
	}
	if d.nextID == 0 {
		d.nextID = 1
	}
}

// SetUnit 切换显示单位，不会改动任何已保存的几何数据。
func (d *Document) SetUnit(u units.Unit) error {
	if u == units.UnitNone {
		return fmt.Errorf("label: 显示单位不能为空")
	}
	d.Unit = u
	return nil
}

// FromDisplay 将文档显示单位下的坐标换算为毫米。
func (d *Document) FromDisplay(p Point) Point {
	return Point{X: units.ToMM(p.X, d.Unit), Y: units.ToMM(p.Y, d.Unit)}
}

// ToDisplay 将毫米坐标换算为文档显示单位。
func (d *Document) ToDisplay(p Point) Point {
	return Point{X: units.FromMM(p.X, d.Unit), Y: units.FromMM(p.Y, d.Unit)}
}

// Style 返回命名样式叠加在默认样式上的结果。
func (d *Document) Style(name string) TextStyle {
	base := DefaultTextStyle()
	if s, ok := d.Styles[DefaultStyleName]; ok {
		base = base.Merge(s)
	}
	if name == "" || name == DefaultStyleName {
		return base
	}
	if s, ok := d.Styles[name]; ok {
		return base.Merge(s)
	}
	return base
}

// DefaultSize 返回各类元素在未指定尺寸时的默认大小（mm）。
func DefaultSize(p Payload) Size {
	switch v := p.(type) {
	case Text:
		return Size{Width: 40, Height: 8}
	case Table:
		return Size{Width: 15 * float64(max(v.Cols, 1)), Height: 6 * float64(max(v.Rows, 1))}
	case Barcode:
		if v.Symbology.IsTwoDimensional() {
			return Size{Width: 20, Height: 20}
		}
		return Size{Width: 40, Height: 15}
	case Image:
		if v.AspectRatio > 0 {
			return Size{Width: 20, Height: 20 / v.AspectRatio}
		}
		return Size{Width: 20, Height: 20}
	case Shape:
		return Size{Width: 20, Height: 20}
	default:
		return Size{}
	}
}

// AddElement 以默认尺寸在 pos 处放置元素并返回新标识。
// 对直线而言，pos 是起点：端点整体平移使起点落在 pos。
func (d *Document) AddElement(p Payload, pos Point) (ElementID, error) {
	if p == nil {
		return 0, fmt.Errorf("%w: 载荷为空", ErrInvalidPayload)
	}
	if ln, ok := p.(Line); ok {
		dx, dy := pos.X-ln.Start.X, pos.Y-ln.Start.Y
		ln.Start = Point{X: ln.Start.X + dx, Y: ln.Start.Y + dy}
		ln.End = Point{X: ln.End.X + dx, Y: ln.End.Y + dy}
		return d.AddElementRect(ln, Rect{Point: pos})
	}
	return d.AddElementRect(p, Rect{Point: pos, Size: DefaultSize(p)})
}

// AddElementRect 以给定外接矩形放置元素。直线忽略 r，几何由端点决定。
func (d *Document) AddElementRect(p Payload, r Rect) (ElementID, error) {
	d.init()
	el, err := d.prepare(p, r)
	if err != nil {
		return 0, err
	}
	el.ID = d.nextID
	d.insert(el)
	return el.ID, nil
}

func (d *Document) prepare(p Payload, r Rect) (Element, error) {
	if err := Validate(p); err != nil {
		return Element{}, err
	}
	el := Element{Payload: normalize(p)}
	if ln, ok := el.Payload.(Line); ok {
		if !finite(ln.Start.X, ln.Start.Y, ln.End.X, ln.End.Y) {
			return Element{}, fmt.Errorf("%w: 直线端点不是有限数值", ErrInvalidPayload)
		}
		syncLine(&el, ln)
		return el, nil
	}
	if err := checkRect(r); err != nil {
		return Element{}, err
	}
	el.Position = r.Point
	el.Size = r.Size
	return el, nil
}

func (d *Document) insert(el Element) {
	stored := el.clone()
	d.elements[el.ID] = &stored
	d.order = append(d.order, el.ID)
	if el.ID >= d.nextID {
		d.nextID = el.ID + 1
	}
}

// Patch 描述一次用户编辑；nil 字段保持不变。
type Patch struct {
	Position *Point
	Size     *Size
	Payload  Payload
}

// UpdateElement 原子地应用 patch：要么全部生效，要么文档保持不变。
func (d *Document) UpdateElement(id ElementID, patch Patch) error {
	d.init()
	cur, ok := d.elements[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := cur.clone()
	if patch.Payload != nil {
		if patch.Payload.Kind() != cur.Kind() {
			return fmt.Errorf("%w: %s -> %s", ErrKindMismatch, cur.Kind(), patch.Payload.Kind())
		}
		if err := Validate(patch.Payload); err != nil {
			return err
		}
		next.Payload = normalize(patch.Payload)
		if ln, ok := next.Payload.(Line); ok {
			syncLine(&next, ln)
		}
	}
	if patch.Position != nil {
		pos := *patch.Position
		if !finite(pos.X, pos.Y) {
			return fmt.Errorf("%w: 位置不是有限数值", ErrInvalidPayload)
		}
		if ln, ok := next.Payload.(Line); ok {
			dx, dy := pos.X-ln.Start.X, pos.Y-ln.Start.Y
			ln.Start = Point{X: ln.Start.X + dx, Y: ln.Start.Y + dy}
			ln.End = Point{X: ln.End.X + dx, Y: ln.End.Y + dy}
			next.Payload = ln
			syncLine(&next, ln)
		} else {
			next.Position = pos
		}
	}
	if patch.Size != nil {
		if next.Kind() == KindLine {
			return fmt.Errorf("%w: 直线尺寸由端点决定", ErrInvalidPayload)
		}
		if err := checkRect(Rect{Point: next.Position, Size: *patch.Size}); err != nil {
			return err
		}
		next.Size = *patch.Size
	}
	*cur = next
	return nil
}

// RemoveElement 删除元素，其上方元素的 z-index 各减一以保持连续。
func (d *Document) RemoveElement(id ElementID) error {
	d.init()
	idx := d.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(d.elements, id)
	d.order = append(d.order[:idx], d.order[idx+1:]...)
	return nil
}

// Reorder 调整元素在堆叠顺序中的位置。已在顶端/底端时为空操作。
func (d *Document) Reorder(id ElementID, dir Direction) error {
	d.init()
	idx := d.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	last := len(d.order) - 1
	switch dir {
	case ToFront:
		d.move(idx, last)
	case ToBack:
		d.move(idx, 0)
	case Forward:
		if idx < last {
			d.order[idx], d.order[idx+1] = d.order[idx+1], d.order[idx]
		}
	case Backward:
		if idx > 0 {
			d.order[idx], d.order[idx-1] = d.order[idx-1], d.order[idx]
		}
	default:
		return fmt.Errorf("label: 未知的层级方向 %d", int(dir))
	}
	return nil
}

func (d *Document) move(from, to int) {
	if from == to {
		return
	}
	id := d.order[from]
	d.order = append(d.order[:from], d.order[from+1:]...)
	d.order = append(d.order[:to], append([]ElementID{id}, d.order[to:]...)...)
}

func (d *Document) indexOf(id ElementID) int {
	for i, cur := range d.order {
		if cur == id {
			return i
		}
	}
	return -1
}

// Elements 按 z-index 升序返回全部元素的深拷贝。
func (d *Document) Elements() []Element {
	out := make([]Element, 0, len(d.order))
	for z, id := range d.order {
		el := d.elements[id].clone()
		el.Z = z
		out = append(out, el)
	}
	return out
}

// Element 返回单个元素的拷贝。
func (d *Document) Element(id ElementID) (Element, bool) {
	idx := d.indexOf(id)
	if idx < 0 {
		return Element{}, false
	}
	el := d.elements[id].clone()
	el.Z = idx
	return el, true
}

// Len 返回元素数量。
func (d *Document) Len() int { return len(d.order) }

// NextID 返回下一个将被分配的标识，用于持久化。
func (d *Document) NextID() ElementID {
	d.init()
	return d.nextID
}

// AdvanceIDs 确保之后分配的标识不小于 next，使已删除元素的标识在重新加载后也不会被复用。
func (d *Document) AdvanceIDs(next ElementID) {
	d.init()
	if next > d.nextID {
		d.nextID = next
	}
}

// Restore 按原标识把元素放到最上层，用于从文件恢复文档。
// 标识必须不小于 NextID，否则可能复用已删除元素的标识。
func (d *Document) Restore(el Element) error {
	d.init()
	if el.ID == 0 || el.ID < d.nextID {
		return fmt.Errorf("%w: 标识 %s 已被使用或保留", ErrInvalidPayload, el.ID)
	}
	prepared, err := d.prepare(el.Payload, Rect{Point: el.Position, Size: el.Size})
	if err != nil {
		return err
	}
	prepared.ID = el.ID
	d.insert(prepared)
	return nil
}

func syncLine(el *Element, ln Line) {
	el.Position = ln.Start
	el.Size = Size{Width: math.Abs(ln.End.X - ln.Start.X), Height: math.Abs(ln.End.Y - ln.Start.Y)}
}

func checkRect(r Rect) error {
	if !finite(r.X, r.Y, r.Width, r.Height) {
		return fmt.Errorf("%w: 几何数据不是有限数值", ErrInvalidPayload)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: 尺寸必须为正数 (%gx%g)", ErrInvalidPayload, r.Width, r.Height)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
