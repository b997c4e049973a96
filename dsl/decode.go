package dsl

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/google/uuid"

	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/units"
)

// FormatVersion 是当前写出的文件版本。
const FormatVersion = "v1"

// ErrFormat 表示文件结构合法但内容无法还原为标签文档。
var ErrFormat = errors.New("dsl: 标签文件内容无效")

// Decode 把语法树还原为标签文档：保留元素标识、下一个标识、单位、尺寸、样式与颜色，
// 元素按文件顺序自下而上堆叠。
func Decode(doc *Document) (*label.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: 文档为空", ErrFormat)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: 不支持的版本 %q", ErrFormat, doc.Version)
	}
	out := label.NewDocument(string(doc.Name), 0, 0, units.UnitMM)
	var (
		next     label.ElementID
		elements []*Command
	)
	for _, sec := range doc.Sections {
		switch {
		case sec.Meta != nil:
			n, err := decodeMeta(out, sec.Meta.Block)
			if err != nil {
				return nil, err
			}
			next = n
		case sec.Styles != nil:
			if err := decodeStyles(out, sec.Styles.Block); err != nil {
				return nil, err
			}
		case sec.Elements != nil:
			for _, st := range sec.Elements.Block.Statements {
				if st.Command == nil {
					return nil, fmt.Errorf("%w: elements 中只能出现元素声明", ErrFormat)
				}
				elements = append(elements, st.Command)
			}
		}
	}
	if out.Width <= 0 || out.Height <= 0 {
		return nil, fmt.Errorf("%w: 标签尺寸必须为正数 (%gx%g)", ErrFormat, out.Width, out.Height)
	}
	decoded := make([]label.Element, 0, len(elements))
	for _, cmd := range elements {
		el, err := decodeElement(cmd)
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, el)
	}
	// 标识必须递增恢复，随后按文件顺序逐个置顶以还原堆叠顺序。
	byID := slices.Clone(decoded)
	slices.SortFunc(byID, func(a, b label.Element) int { return cmp.Compare(a.ID, b.ID) })
	for _, el := range byID {
		if err := out.Restore(el); err != nil {
			return nil, fmt.Errorf("dsl: 元素 %s: %w", el.ID, err)
		}
	}
	for _, el := range decoded {
		if err := out.Reorder(el.ID, label.ToFront); err != nil {
			return nil, err
		}
	}
	out.AdvanceIDs(next)
	return out, nil
}

func decodeMeta(doc *label.Document, block *Block) (label.ElementID, error) {
	var next label.ElementID
	for _, st := range block.Statements {
		a := st.Assignment
		if a == nil {
			continue
		}
		raw := valueText(a.Value)
		var err error
		switch a.Key {
		case "id":
			doc.ID, err = uuid.Parse(raw)
		case "unit":
			doc.Unit, err = units.ParseUnit(raw)
		case "width":
			doc.Width, err = lengthMM(raw)
		case "height":
			doc.Height, err = lengthMM(raw)
		case "next":
			var n uint64
			n, err = strconv.ParseUint(raw, 10, 64)
			next = label.ElementID(n)
		default:
			return 0, fmt.Errorf("%w: meta 中未知的键 %q", ErrFormat, a.Key)
		}
		if err != nil {
			return 0, fmt.Errorf("%w: meta.%s: %v", ErrFormat, a.Key, err)
		}
	}
	return next, nil
}

func decodeStyles(doc *label.Document, block *Block) error {
	for _, st := range block.Statements {
		cmd := st.Command
		if cmd == nil || len(cmd.Args) == 0 {
			return fmt.Errorf("%w: styles 中只能出现 style 或 color 声明", ErrFormat)
		}
		name := cmd.Args[0].Value
		switch cmd.Name {
		case "color":
			if len(cmd.Args) != 2 {
				return fmt.Errorf("%w: %s: color 需要名称与取值", ErrFormat, cmd.Pos)
			}
			doc.Colors[name] = cmd.Args[1].Value
		case "style":
			if cmd.Block == nil {
				return fmt.Errorf("%w: %s: style %s 缺少定义", ErrFormat, cmd.Pos, name)
			}
			var s label.TextStyle
			for _, inner := range cmd.Block.Statements {
				a := inner.Assignment
				if a == nil {
					continue
				}
				v := valueText(a.Value)
				switch a.Key {
				case "font":
					s.Font = v
				case "size":
					s.Size = v
				case "weight":
					s.Weight = v
				case "italic":
					s.Italic = v == "true"
				case "color":
					s.Color = v
				case "lineHeight":
					s.LineHeight = v
				default:
					return fmt.Errorf("%w: style %s 中未知的键 %q", ErrFormat, name, a.Key)
				}
			}
			doc.Styles[name] = s
		default:
			return fmt.Errorf("%w: %s: 未知的样式声明 %q", ErrFormat, cmd.Pos, cmd.Name)
		}
	}
	return nil
}

// fields 收集元素块中的赋值、裸字符串与子命令。
type fields struct {
	pos    lexer.Position
	values map[string]*Value
	texts  []string
	subs   []*Command
}

func collect(cmd *Command) fields {
	f := fields{pos: cmd.Pos, values: map[string]*Value{}}
	if cmd.Block == nil {
		return f
	}
	for _, st := range cmd.Block.Statements {
		switch {
		case st.Assignment != nil:
			f.values[st.Assignment.Key] = st.Assignment.Value
		case st.Text != nil:
			f.texts = append(f.texts, string(st.Text.Value))
		case st.Command != nil:
			f.subs = append(f.subs, st.Command)
		}
	}
	return f
}

func (f fields) str(key string) string {
	v, ok := f.values[key]
	if !ok {
		return ""
	}
	return valueText(v)
}

func (f fields) num(key string) (float64, error) {
	raw := f.str(key)
	if raw == "" {
		return 0, nil
	}
	v, err := lengthMM(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s: %v", ErrFormat, f.pos, key, err)
	}
	return v, nil
}

func (f fields) integer(key string) (int, error) {
	raw := f.str(key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s 需要整数，收到 %q", ErrFormat, f.pos, key, raw)
	}
	return n, nil
}

func (f fields) point(key string) (label.Point, error) {
	v, ok := f.values[key]
	if !ok || v.Array == nil || len(v.Array.Values) != 2 {
		return label.Point{}, fmt.Errorf("%w: %s: %s 需要 [x, y]", ErrFormat, f.pos, key)
	}
	x, err := lengthMM(valueText(v.Array.Values[0]))
	if err != nil {
		return label.Point{}, fmt.Errorf("%w: %s: %s: %v", ErrFormat, f.pos, key, err)
	}
	y, err := lengthMM(valueText(v.Array.Values[1]))
	if err != nil {
		return label.Point{}, fmt.Errorf("%w: %s: %s: %v", ErrFormat, f.pos, key, err)
	}
	return label.Point{X: x, Y: y}, nil
}

func (f fields) rect() (label.Rect, error) {
	var r label.Rect
	var err error
	for _, kv := range []struct {
		key string
		dst *float64
	}{{"x", &r.X}, {"y", &r.Y}, {"width", &r.Width}, {"height", &r.Height}} {
		if *kv.dst, err = f.num(kv.key); err != nil {
			return label.Rect{}, err
		}
	}
	return r, nil
}

func decodeElement(cmd *Command) (label.Element, error) {
	if len(cmd.Args) != 1 {
		return label.Element{}, fmt.Errorf("%w: %s: %s 需要且只需要一个标识", ErrFormat, cmd.Pos, cmd.Name)
	}
	id, err := strconv.ParseUint(cmd.Args[0].Value, 10, 64)
	if err != nil || id == 0 {
		return label.Element{}, fmt.Errorf("%w: %s: 无效的元素标识 %q", ErrFormat, cmd.Pos, cmd.Args[0].Raw)
	}
	f := collect(cmd)
	rect, err := f.rect()
	if err != nil {
		return label.Element{}, err
	}
	el := label.Element{ID: label.ElementID(id), Position: rect.Point, Size: rect.Size}

	switch cmd.Name {
	case "text":
		el.Payload = label.Text{Content: strings.Join(f.texts, "\n"), Style: f.str("style"), Align: label.Align(f.str("align"))}
	case "line":
		ln := label.Line{Color: f.str("color")}
		if ln.Start, err = f.point("start"); err != nil {
			return el, err
		}
		if ln.End, err = f.point("end"); err != nil {
			return el, err
		}
		if ln.StrokeWidth, err = f.num("stroke"); err != nil {
			return el, err
		}
		el.Payload = ln
	case "table":
		el.Payload, err = decodeTable(f)
	case "barcode":
		el.Payload = label.Barcode{
			Symbology: label.Symbology(f.str("symbology")),
			Value:     f.str("value"),
			ShowText:  f.str("showText") == "true",
		}
	case "image":
		img := label.Image{Source: f.str("source")}
		if raw := f.str("aspect"); raw != "" {
			img.AspectRatio, err = strconv.ParseFloat(raw, 64)
		}
		el.Payload = img
	case "shape":
		sh := label.Shape{Shape: label.ShapeKind(f.str("shape")), Fill: f.str("fill"), Stroke: f.str("stroke")}
		if sh.StrokeWidth, err = f.num("strokeWidth"); err != nil {
			return el, err
		}
		sh.CornerRadius, err = f.num("radius")
		el.Payload = sh
	default:
		return el, fmt.Errorf("%w: %s: 未知的元素种类 %q", ErrFormat, cmd.Pos, cmd.Name)
	}
	if err != nil {
		return el, fmt.Errorf("dsl: %s: %w", cmd.Pos, err)
	}
	return el, nil
}

func decodeTable(f fields) (label.Table, error) {
	var (
		t   label.Table
		err error
	)
	if t.Rows, err = f.integer("rows"); err != nil {
		return t, err
	}
	if t.Cols, err = f.integer("cols"); err != nil {
		return t, err
	}
	t.Style = f.str("style")
	if v, ok := f.values["widths"]; ok && v.Array != nil {
		for _, w := range v.Array.Values {
			mm, err := lengthMM(valueText(w))
			if err != nil {
				return t, err
			}
			t.ColumnWidths = append(t.ColumnWidths, mm)
		}
	}
	for _, sub := range f.subs {
		if sub.Name != "cell" || len(sub.Args) != 3 {
			return t, fmt.Errorf("%w: %s: 表格中只能出现 cell 行 列 \"内容\"", ErrFormat, sub.Pos)
		}
		row, errRow := strconv.Atoi(sub.Args[0].Value)
		col, errCol := strconv.Atoi(sub.Args[1].Value)
		if errRow != nil || errCol != nil {
			return t, fmt.Errorf("%w: %s: 单元格坐标必须为整数", ErrFormat, sub.Pos)
		}
		if t.Cells == nil {
			t.Cells = map[label.Cell]string{}
		}
		t.Cells[label.Cell{Row: row, Col: col}] = sub.Args[2].Value
	}
	return t, nil
}

// valueText 返回标量值的文本：字符串取去掉引号后的内容，表达式按原样拼接。
func valueText(v *Value) string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Expr != nil:
		var b strings.Builder
		for _, p := range v.Expr.Parts {
			b.WriteString(p.Raw)
		}
		return b.String()
	default:
		return ""
	}
}

// lengthMM 解析长度，裸数字按毫米处理。
func lengthMM(raw string) (float64, error) {
	l, err := units.ParseLength(raw)
	if err != nil {
		return 0, err
	}
	return l.ToMM(), nil
}

// Load parses r and decodes it into a label document.
func Load(r io.Reader) (*label.Document, error) {
	ast, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dsl: 解析失败: %w", err)
	}
	return Decode(ast)
}
