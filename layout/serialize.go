package layout

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/labelcanvas/binding"
	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/units"
)

const (
	// DefaultStrokeWidth 为未指定线宽的直线、形状与表格边框使用的线宽（mm）。
	DefaultStrokeWidth = 0.3
	defaultImageFit    = "contain"
)

var (
	// ErrEmptyDocument 表示严格模式下序列化了没有元素的文档。
	ErrEmptyDocument = errors.New("layout: 文档中没有元素")
	// ErrUnresolvedStyle 表示严格模式下遇到无法解析的颜色、字号或行高标记。
	ErrUnresolvedStyle = errors.New("layout: 无法解析的样式标记")
	// ErrUnboundPlaceholder 表示严格模式下 ${path} 在数据中找不到且没有默认值。
	ErrUnboundPlaceholder = errors.New("layout: 占位符没有对应的数据")
)

var (
	defaultTextColor = Color{R: 30, G: 30, B: 30}
	black            = Color{}
)

// namedColors 是文档未定义时仍可使用的基础颜色名。
var namedColors = map[string]Color{
	"black": {0, 0, 0},
	"white": {255, 255, 255},
	"red":   {255, 0, 0},
	"green": {0, 128, 0},
	"blue":  {0, 0, 255},
	"gray":  {128, 128, 128},
}

// Serialize 按 z-index 升序把文档中的每个元素转换为规范化记录。
// 同一文档状态与相同 Options 两次序列化得到的 Bytes 完全一致。
func Serialize(doc *label.Document, opts Options) (*Payload, error) {
	if doc == nil {
		return nil, fmt.Errorf("layout: 文档为空")
	}
	elements := doc.Elements()
	if len(elements) == 0 && opts.Strict {
		return nil, ErrEmptyDocument
	}
	s := &serializer{doc: doc, opts: opts, log: opts.Logger}
	if s.log == nil {
		s.log = slog.Default()
	}

	p := &Payload{
		Version: PayloadVersion,
		Meta:    DocumentMeta{ID: doc.ID.String(), Name: norm.NFC.String(doc.Name), Language: opts.Language},
		Width:   round(doc.Width),
		Height:  round(doc.Height),
		Records: make([]Record, 0, len(elements)),
	}
	for _, el := range elements {
		rec, err := s.record(el)
		if err != nil {
			return nil, fmt.Errorf("layout: 元素 %s: %w", el.ID, err)
		}
		p.Records = append(p.Records, rec)
	}
	return p, nil
}

type serializer struct {
	doc  *label.Document
	opts Options
	log  *slog.Logger
}

func (s *serializer) record(el label.Element) (Record, error) {
	rec := Record{
		ID:     el.ID.String(),
		Kind:   el.Kind().String(),
		Z:      el.Z,
		X:      round(el.Position.X),
		Y:      round(el.Position.Y),
		Width:  round(el.Size.Width),
		Height: round(el.Size.Height),
	}
	switch v := el.Payload.(type) {
	case label.Text:
		tb, err := s.text(v, el.Size.Width)
		if err != nil {
			return Record{}, err
		}
		rec.Text = &tb
	case label.Line:
		color, err := s.color(v.Color, black)
		if err != nil {
			return Record{}, err
		}
		rec.Line = &Line{
			X1: round(v.Start.X), Y1: round(v.Start.Y),
			X2: round(v.End.X), Y2: round(v.End.Y),
			Color: color,
			Width: round(strokeOrDefault(v.StrokeWidth)),
		}
	case label.Table:
		tb, err := s.table(v, el.Size)
		if err != nil {
			return Record{}, err
		}
		rec.Table = &tb
	case label.Barcode:
		bb, err := s.barcode(v)
		if err != nil {
			return Record{}, err
		}
		rec.Barcode = &bb
	case label.Image:
		rec.Image = &ImageBox{Source: v.Source, Fit: defaultImageFit}
	case label.Shape:
		sb, err := s.shape(v)
		if err != nil {
			return Record{}, err
		}
		rec.Shape = &sb
	default:
		return Record{}, fmt.Errorf("%w: 未知的元素类型 %T", label.ErrInvalidPayload, el.Payload)
	}
	return rec, nil
}

func (s *serializer) text(v label.Text, width float64) (TextBox, error) {
	font, color, lineHeight, err := s.style(v.Style)
	if err != nil {
		return TextBox{}, err
	}
	content, err := s.bind(v.Content)
	if err != nil {
		return TextBox{}, err
	}
	lines, err := layoutLines(content, width, font, lineHeight, s.opts.Typesetter)
	if err != nil {
		return TextBox{}, err
	}

	total := 0.0
	leading := math.Max(lineHeight-font.Size, 0)
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = font.Size
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else if lines[i].GapBefore <= 0 {
			lines[i].GapBefore = leading
		}
		lines[i].Width = round(lines[i].Width)
		lines[i].Height = round(lines[i].Height)
		lines[i].GapBefore = round(lines[i].GapBefore)
		total += lines[i].GapBefore + lines[i].Height
	}

	align := string(v.Align)
	if align == "" {
		align = string(label.AlignLeft)
	}
	return TextBox{
		Content:    content,
		Font:       font,
		Color:      color,
		Align:      align,
		LineHeight: round(lineHeight),
		Lines:      lines,
		Height:     round(total),
	}, nil
}

func (s *serializer) table(v label.Table, size label.Size) (TableBox, error) {
	font, color, _, err := s.style(v.Style)
	if err != nil {
		return TableBox{}, err
	}
	widths := make([]float64, v.Cols)
	if len(v.ColumnWidths) == v.Cols {
		for i, w := range v.ColumnWidths {
			widths[i] = round(w)
		}
	} else {
		for i := range widths {
			widths[i] = round(size.Width / float64(v.Cols))
		}
	}
	cells := make([][]string, v.Rows)
	for r := range cells {
		cells[r] = make([]string, v.Cols)
	}
	for _, c := range v.SortedCells() {
		text, err := s.bind(v.CellText(c.Row, c.Col))
		if err != nil {
			return TableBox{}, fmt.Errorf("单元格 (%d,%d): %w", c.Row, c.Col, err)
		}
		cells[c.Row][c.Col] = text
	}
	return TableBox{
		Rows:         v.Rows,
		Cols:         v.Cols,
		ColumnWidths: widths,
		RowHeight:    round(size.Height / float64(v.Rows)),
		Cells:        cells,
		Font:         font,
		Color:        color,
		BorderColor:  black,
		BorderWidth:  DefaultStrokeWidth,
	}, nil
}

func (s *serializer) barcode(v label.Barcode) (BarcodeBox, error) {
	value, err := s.bind(v.Value)
	if err != nil {
		return BarcodeBox{}, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return BarcodeBox{}, label.ErrEmptyValue
	}
	font, _, _, err := s.style(label.DefaultStyleName)
	if err != nil {
		return BarcodeBox{}, err
	}
	return BarcodeBox{
		Symbology: string(v.Symbology),
		Value:     value,
		ShowText:  v.ShowText,
		Font:      font,
		Color:     black,
	}, nil
}

func (s *serializer) shape(v label.Shape) (ShapeBox, error) {
	stroke, err := s.color(v.Stroke, black)
	if err != nil {
		return ShapeBox{}, err
	}
	sb := ShapeBox{
		Shape:        string(v.Shape),
		Stroke:       stroke,
		StrokeWidth:  round(strokeOrDefault(v.StrokeWidth)),
		CornerRadius: round(v.CornerRadius),
	}
	if strings.TrimSpace(v.Fill) != "" {
		fill, err := s.color(v.Fill, black)
		if err != nil {
			return ShapeBox{}, err
		}
		sb.Fill = &fill
	}
	return sb, nil
}

// style 把命名样式解析为字体、颜色与行高（mm）。
func (s *serializer) style(name string) (Font, Color, float64, error) {
	st := s.doc.Style(name)
	def := label.DefaultTextStyle()

	size, err := parseFontSize(st.Size)
	if err != nil {
		if err := s.soft(err); err != nil {
			return Font{}, Color{}, 0, err
		}
		size, _ = parseFontSize(def.Size)
	}
	weight, err := parseWeight(st.Weight)
	if err != nil {
		if err := s.soft(err); err != nil {
			return Font{}, Color{}, 0, err
		}
		weight = "regular"
	}
	color, err := s.color(st.Color, defaultTextColor)
	if err != nil {
		return Font{}, Color{}, 0, err
	}
	lh, err := units.ParseLineHeight(st.LineHeight)
	if err != nil {
		if err := s.soft(fmt.Errorf("%w: 行高 %q", ErrUnresolvedStyle, st.LineHeight)); err != nil {
			return Font{}, Color{}, 0, err
		}
		lh, _ = units.ParseLineHeight(def.LineHeight)
	}
	family := strings.ToLower(strings.TrimSpace(st.Font))
	if family == "" {
		family = def.Font
	}

	font := Font{Family: family, Weight: weight, Italic: st.Italic, Size: round(size.ToMM())}
	return font, color, lh.Resolve(size, units.UnitMM), nil
}

// color 解析颜色标记：空串返回 def；否则依次查找文档命名颜色、内置颜色名与 #RGB/#RRGGBB。
func (s *serializer) color(token string, def Color) (Color, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return def, nil
	}
	if v, ok := s.doc.Colors[token]; ok {
		token = strings.TrimSpace(v)
	}
	if c, ok := namedColors[strings.ToLower(token)]; ok {
		return c, nil
	}
	if strings.HasPrefix(token, "#") {
		if c, err := parseColor(token); err == nil {
			return c, nil
		}
	}
	if err := s.soft(fmt.Errorf("%w: 颜色 %q", ErrUnresolvedStyle, token)); err != nil {
		return Color{}, err
	}
	return def, nil
}

// bind 替换占位符并做 NFC 规范化。
func (s *serializer) bind(text string) (string, error) {
	if s.opts.Data != nil {
		out, missing := binding.Resolve(text, s.opts.Data)
		if len(missing) > 0 {
			if err := s.soft(fmt.Errorf("%w: %s", ErrUnboundPlaceholder, strings.Join(missing, ", "))); err != nil {
				return "", err
			}
		}
		text = out
	}
	return norm.NFC.String(text), nil
}

// soft 在严格模式下原样返回 err，否则记录警告并返回 nil 以回退到默认值。
func (s *serializer) soft(err error) error {
	if s.opts.Strict {
		return err
	}
	s.log.Warn("layout: 使用默认值", "err", err)
	return nil
}

func layoutLines(content string, width float64, font Font, lineHeight float64, ts Typesetter) ([]TextLine, error) {
	if ts == nil {
		lines := strings.Split(content, "\n")
		out := make([]TextLine, 0, len(lines))
		leading := math.Max(lineHeight-font.Size, 0)
		for _, l := range lines {
			out = append(out, TextLine{Content: l, Width: width, Height: font.Size, GapBefore: leading})
		}
		out[0].GapBefore = 0
		return out, nil
	}
	lines, err := ts.LayoutLines(content, width, font, lineHeight)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		lines = []TextLine{{Content: "", Width: width, Height: font.Size}}
	}
	lines[0].GapBefore = 0
	return lines, nil
}

// parseFontSize 解析字号；不带单位的数值按 pt 处理。
func parseFontSize(value string) (units.Length, error) {
	l, err := units.ParseLength(value)
	if err != nil || l.Value <= 0 {
		return units.Length{}, fmt.Errorf("%w: 字号 %q", ErrUnresolvedStyle, value)
	}
	if l.Unit == units.UnitNone {
		l.Unit = units.UnitPT
	}
	return l, nil
}

func parseWeight(value string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "", "regular", "normal":
		return "regular", nil
	case "bold":
		return "bold", nil
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
		if n >= 600 {
			return "bold", nil
		}
		return "regular", nil
	}
	return "", fmt.Errorf("%w: 字重 %q", ErrUnresolvedStyle, value)
}

func parseColor(value string) (Color, error) {
	value = strings.TrimPrefix(value, "#")
	switch len(value) {
	case 3:
		r, err1 := hexByte(strings.Repeat(string(value[0]), 2))
		g, err2 := hexByte(strings.Repeat(string(value[1]), 2))
		b, err3 := hexByte(strings.Repeat(string(value[2]), 2))
		if err := errors.Join(err1, err2, err3); err != nil {
			return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
		}
		return Color{R: r, G: g, B: b}, nil
	case 6, 8:
		r, err1 := hexByte(value[0:2])
		g, err2 := hexByte(value[2:4])
		b, err3 := hexByte(value[4:6])
		if err := errors.Join(err1, err2, err3); err != nil {
			return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
		}
		return Color{R: r, G: g, B: b}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func hexByte(s string) (int, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	return int(v), err
}

func strokeOrDefault(w float64) float64 {
	if w <= 0 {
		return DefaultStrokeWidth
	}
	return w
}

// round 对齐到 1µm，并把 -0 规范为 0，保证输出字节稳定。
func round(mm float64) float64 {
	r := math.Round(mm*1000) / 1000
	if r == 0 {
		return 0
	}
	return r
}
