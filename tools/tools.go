// Package tools 提供调色板使用的静态工具目录。
package tools

import "github.com/ByLCY/labelcanvas/label"

// ID 标识一个工具。
type ID string

const (
	Text    ID = "text"
	Image   ID = "image"
	Table   ID = "table"
	Line    ID = "line"
	Barcode ID = "barcode"
	Shape   ID = "shape"
)

// Interaction 描述选择工具后的交互方式。
type Interaction int

const (
	// InstantAdd 点击（或拖放完成）后立即以默认尺寸创建元素。
	InstantAdd Interaction = iota
	// ModeActivate 仅切换绘制模式，随后的手势完成时才创建元素。
	ModeActivate
)

func (i Interaction) String() string {
	switch i {
	case InstantAdd:
		return "instant-add"
	case ModeActivate:
		return "mode-activate"
	default:
		return "unknown"
	}
}

// Descriptor 描述一个工具。
type Descriptor struct {
	ID          ID
	Name        string
	Interaction Interaction
	Produces    label.Kind
}

var catalog = []Descriptor{
	{ID: Text, Name: "Text", Interaction: InstantAdd, Produces: label.KindText},
	{ID: Line, Name: "Line", Interaction: ModeActivate, Produces: label.KindLine},
	{ID: Table, Name: "Table", Interaction: ModeActivate, Produces: label.KindTable},
	{ID: Barcode, Name: "Barcode", Interaction: ModeActivate, Produces: label.KindBarcode},
	{ID: Image, Name: "Image", Interaction: InstantAdd, Produces: label.KindImage},
	{ID: Shape, Name: "Shape", Interaction: ModeActivate, Produces: label.KindShape},
}

// List 按调色板顺序返回全部工具。返回值是副本。
func List() []Descriptor {
	return append([]Descriptor(nil), catalog...)
}

// Lookup 按标识查找工具。
func Lookup(id ID) (Descriptor, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}
