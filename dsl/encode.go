package dsl

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ByLCY/labelcanvas/label"
)

// Encode 以 .label 格式写出文档。长度统一以毫米写出，元素按堆叠顺序自下而上排列。
// 输出经 Parse 与 Decode 后得到等价的文档。
func Encode(w io.Writer, doc *label.Document) error {
	if doc == nil {
		return fmt.Errorf("dsl: 文档为空")
	}
	for _, name := range append(sortedKeys(doc.Colors), sortedKeys(doc.Styles)...) {
		if !identPattern.MatchString(name) {
			return fmt.Errorf("dsl: 样式或颜色名称 %q 不是合法的标识符", name)
		}
	}
	e := &encoder{w: bufio.NewWriter(w)}
	e.line(0, "label %s %s {", strconv.Quote(doc.Name), FormatVersion)

	e.line(1, "meta {")
	e.line(2, "id: %s", strconv.Quote(doc.ID.String()))
	e.line(2, "unit: %s", strconv.Quote(doc.Unit.String()))
	e.line(2, "width: %s", num(doc.Width))
	e.line(2, "height: %s", num(doc.Height))
	e.line(2, "next: %d", uint64(doc.NextID()))
	e.line(1, "}")

	if len(doc.Styles) > 0 || len(doc.Colors) > 0 {
		e.line(1, "styles {")
		for _, name := range sortedKeys(doc.Colors) {
			e.line(2, "color %s %s", name, strconv.Quote(doc.Colors[name]))
		}
		for _, name := range sortedKeys(doc.Styles) {
			e.style(name, doc.Styles[name])
		}
		e.line(1, "}")
	}

	e.line(1, "elements {")
	for _, el := range doc.Elements() {
		e.element(el)
	}
	e.line(1, "}")
	e.line(0, "}")

	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) line(depth int, format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (e *encoder) quoted(depth int, key, value string) {
	if value != "" {
		e.line(depth, "%s: %s", key, strconv.Quote(value))
	}
}

func (e *encoder) style(name string, s label.TextStyle) {
	e.line(2, "style %s {", name)
	e.quoted(3, "font", s.Font)
	e.quoted(3, "size", s.Size)
	e.quoted(3, "weight", s.Weight)
	if s.Italic {
		e.line(3, "italic: true")
	}
	e.quoted(3, "color", s.Color)
	e.quoted(3, "lineHeight", s.LineHeight)
	e.line(2, "}")
}

func (e *encoder) element(el label.Element) {
	e.line(2, "%s %d {", el.Kind(), uint64(el.ID))
	if el.Kind() != label.KindLine {
		e.line(3, "x: %s", num(el.Position.X))
		e.line(3, "y: %s", num(el.Position.Y))
		e.line(3, "width: %s", num(el.Size.Width))
		e.line(3, "height: %s", num(el.Size.Height))
	}
	switch p := el.Payload.(type) {
	case label.Text:
		e.line(3, "%s", strconv.Quote(p.Content))
		e.quoted(3, "style", p.Style)
		e.quoted(3, "align", string(p.Align))
	case label.Line:
		e.line(3, "start: [%s, %s]", num(p.Start.X), num(p.Start.Y))
		e.line(3, "end: [%s, %s]", num(p.End.X), num(p.End.Y))
		if p.StrokeWidth > 0 {
			e.line(3, "stroke: %s", num(p.StrokeWidth))
		}
		e.quoted(3, "color", p.Color)
	case label.Table:
		e.line(3, "rows: %d", p.Rows)
		e.line(3, "cols: %d", p.Cols)
		if len(p.ColumnWidths) > 0 {
			widths := make([]string, len(p.ColumnWidths))
			for i, w := range p.ColumnWidths {
				widths[i] = num(w)
			}
			e.line(3, "widths: [%s]", strings.Join(widths, ", "))
		}
		e.quoted(3, "style", p.Style)
		for _, c := range p.SortedCells() {
			e.line(3, "cell %d %d %s", c.Row, c.Col, strconv.Quote(p.Cells[c]))
		}
	case label.Barcode:
		e.quoted(3, "symbology", string(p.Symbology))
		e.quoted(3, "value", p.Value)
		if p.ShowText {
			e.line(3, "showText: true")
		}
	case label.Image:
		e.quoted(3, "source", p.Source)
		if p.AspectRatio > 0 {
			e.line(3, "aspect: %s", num(p.AspectRatio))
		}
	case label.Shape:
		e.quoted(3, "shape", string(p.Shape))
		e.quoted(3, "fill", p.Fill)
		e.quoted(3, "stroke", p.Stroke)
		if p.StrokeWidth > 0 {
			e.line(3, "strokeWidth: %s", num(p.StrokeWidth))
		}
		if p.CornerRadius > 0 {
			e.line(3, "radius: %s", num(p.CornerRadius))
		}
	}
	e.line(2, "}")
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
