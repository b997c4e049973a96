package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/units"
)

// stubTypesetter 按空格拆词，每行两个词，仅用于测试，避免引入 renderer 造成循环依赖。
type stubTypesetter struct{}

func (stubTypesetter) LayoutLines(content string, width float64, font Font, lineHeight float64) ([]TextLine, error) {
	words := strings.Fields(content)
	var lines []TextLine
	for i := 0; i < len(words); i += 2 {
		end := min(i+2, len(words))
		lines = append(lines, TextLine{Content: strings.Join(words[i:end], " "), Width: width / 2, Height: font.Size})
	}
	return lines, nil
}

func mustAdd(t *testing.T, d *label.Document, p label.Payload, pos label.Point) label.ElementID {
	t.Helper()
	id, err := d.AddElement(p, pos)
	if err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	return id
}

func TestSerializePositionsInMillimeters(t *testing.T) {
	d := label.NewDocument("mixed", 200, 200, units.UnitIN)
	mustAdd(t, d, label.Text{Content: "hello"}, d.FromDisplay(label.Point{X: 5, Y: 5}))
	if err := d.SetUnit(units.UnitMM); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, d, label.Barcode{Symbology: label.CODE128, Value: "123"}, d.FromDisplay(label.Point{X: 1, Y: 1}))

	p, err := Serialize(d, Options{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(p.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(p.Records))
	}
	text, bc := p.Records[0], p.Records[1]
	if text.Kind != "text" || text.X != 127 || text.Y != 127 {
		t.Fatalf("5in should serialize as 127mm: %+v", text)
	}
	if bc.Kind != "barcode" || bc.X != 1 || bc.Y != 1 || bc.Z != 1 {
		t.Fatalf("barcode should stay at 1mm: %+v", bc)
	}
	if bc.Barcode == nil || bc.Barcode.Value != "123" || bc.Text != nil {
		t.Fatalf("unexpected barcode body: %+v", bc)
	}
}

func TestSerializeEmptyDocument(t *testing.T) {
	d := label.NewDocument("empty", 50, 30, units.UnitMM)
	if _, err := Serialize(d, Options{Strict: true}); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	p, err := Serialize(d, Options{})
	if err != nil {
		t.Fatalf("non-strict Serialize: %v", err)
	}
	if !p.Empty() {
		t.Fatalf("expected empty payload, got %d records", len(p.Records))
	}
	b, _ := p.Bytes()
	if !bytes.Contains(b, []byte(`"records":[]`)) {
		t.Fatalf("empty payload should encode records as []: %s", b)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	d := label.NewDocument("det", 100, 60, units.UnitMM)
	mustAdd(t, d, label.Table{Rows: 2, Cols: 2, Cells: map[label.Cell]string{
		{Row: 1, Col: 1}: "d", {Row: 0, Col: 0}: "a", {Row: 0, Col: 1}: "b",
	}}, label.Point{X: 1, Y: 1})
	mustAdd(t, d, label.Shape{Shape: label.ShapeEllipse, Fill: "#eee"}, label.Point{X: 3, Y: 3})
	mustAdd(t, d, label.Line{End: label.Point{X: 10, Y: 0}}, label.Point{X: 0, Y: 40})

	first, err := Serialize(d, Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Serialize(d, Options{})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := first.Bytes()
	b, _ := second.Bytes()
	if !bytes.Equal(a, b) {
		t.Fatalf("payloads differ:\n%s\n%s", a, b)
	}
	da, _ := first.Digest()
	db, _ := second.Digest()
	if da != db || len(da) != 64 {
		t.Fatalf("digests differ or malformed: %s %s", da, db)
	}

	mustAdd(t, d, label.Text{Content: "x"}, label.Point{})
	third, _ := Serialize(d, Options{})
	if dc, _ := third.Digest(); dc == da {
		t.Fatalf("digest should change when the document changes")
	}
}

func TestSerializeResolvesStyles(t *testing.T) {
	d := label.NewDocument("styles", 100, 60, units.UnitMM)
	d.Colors["brand"] = "#f00"
	d.Styles["title"] = label.TextStyle{Size: "12pt", Weight: "700", Color: "brand", LineHeight: "6mm", Font: "GoMono"}
	mustAdd(t, d, label.Text{Content: "Title", Style: "title", Align: label.AlignCenter}, label.Point{})

	p, err := Serialize(d, Options{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	tb := p.Records[0].Text
	if tb.Font.Family != "gomono" || tb.Font.Weight != "bold" || tb.Font.Size != 4.233 {
		t.Fatalf("unexpected font: %+v", tb.Font)
	}
	if tb.Color != (Color{R: 255}) || tb.LineHeight != 6 || tb.Align != "center" {
		t.Fatalf("unexpected text style: %+v", tb)
	}

	d.Styles["title"] = label.TextStyle{Color: "no-such-color"}
	if _, err := Serialize(d, Options{Strict: true}); !errors.Is(err, ErrUnresolvedStyle) {
		t.Fatalf("expected ErrUnresolvedStyle in strict mode, got %v", err)
	}
	p, err = Serialize(d, Options{})
	if err != nil {
		t.Fatalf("non-strict mode should fall back: %v", err)
	}
	if p.Records[0].Text.Color != defaultTextColor {
		t.Fatalf("expected default color fallback, got %+v", p.Records[0].Text.Color)
	}
}

func TestSerializeBindsData(t *testing.T) {
	d := label.NewDocument("bind", 100, 60, units.UnitMM)
	mustAdd(t, d, label.Barcode{Symbology: label.QR, Value: "${sku}"}, label.Point{})
	mustAdd(t, d, label.Text{Content: "Lot ${lot|none}"}, label.Point{})

	p, err := Serialize(d, Options{Strict: true, Data: map[string]any{"sku": "A-1"}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Records[0].Barcode.Value != "A-1" || p.Records[1].Text.Content != "Lot none" {
		t.Fatalf("placeholders not bound: %+v %+v", p.Records[0].Barcode, p.Records[1].Text)
	}

	if _, err := Serialize(d, Options{Strict: true, Data: map[string]any{}}); !errors.Is(err, ErrUnboundPlaceholder) {
		t.Fatalf("expected ErrUnboundPlaceholder, got %v", err)
	}
	if _, err := Serialize(d, Options{Data: map[string]any{"sku": "  "}}); !errors.Is(err, label.ErrEmptyValue) {
		t.Fatalf("a barcode bound to blank data should fail, got %v", err)
	}
}

func TestSerializeBindsNumericData(t *testing.T) {
	d := label.NewDocument("numbers", 100, 60, units.UnitMM)
	mustAdd(t, d, label.Barcode{Symbology: label.CODE128, Value: "${sku}"}, label.Point{})
	mustAdd(t, d, label.Barcode{Symbology: label.EAN13, Value: "${ean}"}, label.Point{})

	var data any
	dec := json.NewDecoder(strings.NewReader(`{"sku":12345678,"ean":4006381333931}`))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		t.Fatal(err)
	}
	floats := map[string]any{"sku": 12345678.0, "ean": 4006381333931.0}
	for _, in := range []any{data, floats} {
		p, err := Serialize(d, Options{Strict: true, Data: in})
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		if got := p.Records[0].Barcode.Value; got != "12345678" {
			t.Fatalf("sku bound as %q", got)
		}
		if got := p.Records[1].Barcode.Value; got != "4006381333931" {
			t.Fatalf("ean bound as %q", got)
		}
	}
}

func TestSerializeTextLayout(t *testing.T) {
	d := label.NewDocument("text", 100, 60, units.UnitMM)
	mustAdd(t, d, label.Text{Content: "café one two three"}, label.Point{X: 1.23456789, Y: 2})

	p, err := Serialize(d, Options{Typesetter: stubTypesetter{}})
	if err != nil {
		t.Fatal(err)
	}
	rec := p.Records[0]
	if rec.X != 1.235 {
		t.Fatalf("positions should be rounded to 1µm, got %v", rec.X)
	}
	tb := rec.Text
	if !strings.HasPrefix(tb.Content, "café") || len(tb.Lines) != 2 {
		t.Fatalf("unexpected text box: %+v", tb)
	}
	total := 0.0
	for _, ln := range tb.Lines {
		total += ln.GapBefore + ln.Height
	}
	if diff := total - tb.Height; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("height invariant broken: lines=%g height=%g", total, tb.Height)
	}
	if tb.Lines[0].GapBefore != 0 || tb.Lines[1].GapBefore <= 0 {
		t.Fatalf("unexpected leading: %+v", tb.Lines)
	}
}

func TestSerializeTableAndShapes(t *testing.T) {
	d := label.NewDocument("grid", 100, 60, units.UnitMM)
	d.Colors["ink"] = "#112233"
	id := mustAdd(t, d, label.Table{Rows: 2, Cols: 3, Cells: map[label.Cell]string{{Row: 1, Col: 2}: "x"}}, label.Point{})
	mustAdd(t, d, label.Shape{Shape: label.ShapeTriangle, Stroke: "ink"}, label.Point{})
	mustAdd(t, d, label.Image{Source: "built-in:logo"}, label.Point{})

	p, err := Serialize(d, Options{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	tbl := p.Records[0].Table
	el, _ := d.Element(id)
	if tbl.Rows != 2 || tbl.Cols != 3 || len(tbl.Cells) != 2 || len(tbl.Cells[0]) != 3 {
		t.Fatalf("table should be a dense grid: %+v", tbl)
	}
	if tbl.Cells[1][2] != "x" || tbl.Cells[0][0] != "" {
		t.Fatalf("unexpected cells: %v", tbl.Cells)
	}
	if tbl.ColumnWidths[0] != round(el.Size.Width/3) || tbl.RowHeight != round(el.Size.Height/2) {
		t.Fatalf("unexpected grid geometry: %+v", tbl)
	}
	sh := p.Records[1].Shape
	if sh.Stroke != (Color{R: 0x11, G: 0x22, B: 0x33}) || sh.Fill != nil || sh.StrokeWidth != DefaultStrokeWidth {
		t.Fatalf("unexpected shape: %+v", sh)
	}
	if img := p.Records[2].Image; img.Source != "built-in:logo" {
		t.Fatalf("image source must pass through untouched: %+v", img)
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	d := label.NewDocument("dump", 100, 60, units.UnitMM)
	mustAdd(t, d, label.Text{Content: "x"}, label.Point{X: 1, Y: 1})
	p, err := Serialize(d, Options{})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "payload.json")
	if err := WriteJSON(p, path); err != nil {
		t.Fatal(err)
	}
	back, err := ReadJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := p.Digest()
	got, _ := back.Digest()
	if want != got {
		t.Fatalf("digest changed after dump/load")
	}
}
