package canvasrenderer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/layout"
	"github.com/ByLCY/labelcanvas/units"
)

func bodyFont() layout.Font {
	return layout.Font{Family: "go", Weight: "regular", Size: 12 * units.PtToMm}
}

func TestLayoutLinesGreedyWrapsText(t *testing.T) {
	r := NewRenderer(".")
	font := bodyFont()
	lines, err := r.LayoutLines("hello world again", 10, font, font.Size*1.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("expected wrapping into multiple lines, got %d", len(lines))
	}
}

func TestGreedyWrapHonorsNewlines(t *testing.T) {
	r := NewRenderer(".")
	font := bodyFont()
	lines, err := r.LayoutLines("foo\n\nbar", 100, font, font.Size*1.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines including blank, got %d", len(lines))
	}
	if lines[1].Content != "" {
		t.Fatalf("expected middle line to be blank, got %q", lines[1].Content)
	}
}

// TestLineHeightsInvariant 验证：首行 GapBefore 为 0，其余行 GapBefore ≈ max(lineHeight - textHeight, 0)。
func TestLineHeightsInvariant(t *testing.T) {
	r := NewRenderer(".")
	font := bodyFont()
	lineHeight := font.Size * 1.3

	content := "longlonglong longlonglong longlonglong longlonglong longlonglong"
	lines, err := r.LayoutLines(content, 40, font, lineHeight)
	if err != nil {
		t.Fatalf("LayoutLines error: %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("expected multiple lines for invariant test, got %d", len(lines))
	}
	textHeight := lines[0].Height
	if textHeight <= 0 {
		t.Fatalf("invalid text height: %g", textHeight)
	}
	wantLeading := math.Max(lineHeight-textHeight, 0)
	if lines[0].GapBefore != 0 {
		t.Fatalf("first line GapBefore must be 0, got %g", lines[0].GapBefore)
	}
	const eps = 1e-6
	for i := 1; i < len(lines); i++ {
		if diff := math.Abs(lines[i].GapBefore - wantLeading); diff > eps {
			t.Fatalf("line %d GapBefore mismatch: got=%g want=%g", i, lines[i].GapBefore, wantLeading)
		}
		if diff := math.Abs(lines[i].Height - textHeight); diff > eps {
			t.Fatalf("line %d Height mismatch: got=%g want=%g", i, lines[i].Height, textHeight)
		}
	}
}

// TestGreedyWrapWidthLimit 验证每行宽度不超过限制（mm）。
func TestGreedyWrapWidthLimit(t *testing.T) {
	r := NewRenderer(".")
	font := bodyFont()
	limit := 30.0
	lines, err := r.LayoutLines("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", limit, font, font.Size*1.2)
	if err != nil {
		t.Fatalf("LayoutLines error: %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("expected the long word to be split, got %d lines", len(lines))
	}
	for i, ln := range lines {
		if ln.Width-limit > 1e-6 {
			t.Fatalf("line %d width exceeds limit: width=%g limit=%g", i, ln.Width, limit)
		}
	}
}

// 当第一行宽度与容器宽度恰好相等且后面紧跟一个显式换行时，不应产生额外的空行。
func TestNoBlankLineWhenEqualWidthThenNewline(t *testing.T) {
	r := NewRenderer(".")
	font := bodyFont()
	first := "SAMPLE-A"
	measured, err := r.LayoutLines(first, 1e6, font, font.Size*1.2)
	if err != nil || len(measured) != 1 {
		t.Fatalf("measure failed: %v %d", err, len(measured))
	}
	lines, err := r.LayoutLines(first+"\nSAMPLE-B", measured[0].Width, font, font.Size*1.2)
	if err != nil {
		t.Fatalf("LayoutLines error: %v", err)
	}
	if len(lines) != 2 || lines[0].Content != first || lines[1].Content != "SAMPLE-B" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestEncodeBarcode(t *testing.T) {
	cases := []struct {
		sym   label.Symbology
		value string
		ok    bool
	}{
		{label.CODE128, "ABC-123", true},
		{label.CODE39, "abc123", true},
		{label.EAN13, "590123412345", true},
		{label.EAN13, "5901234123457", true},
		{label.EAN13, "5901234123450", false}, // 校验位错误
		{label.EAN13, "123456", false},
		{label.EAN13, "59012341234X", false},
		{label.EAN8, "9638507", true},
		{label.EAN8, "96385074", true},
		{label.UPC, "03600029145", true},
		{label.UPC, "0360002914", false},
		{label.QR, "https://example.com/label", true},
		{label.DATAMATRIX, "LOT-42", true},
		{label.PDF417, "PDF417 payload", true},
		{label.AZTEC, "aztec", true},
		{label.Symbology("ITF"), "1234", false},
	}
	for _, tc := range cases {
		err := ValidateBarcode(tc.sym, tc.value)
		if tc.ok && err != nil {
			t.Fatalf("%s %q: unexpected error %v", tc.sym, tc.value, err)
		}
		if !tc.ok && !errors.Is(err, ErrNotEncodable) {
			t.Fatalf("%s %q: expected ErrNotEncodable, got %v", tc.sym, tc.value, err)
		}
	}
}

func samplePayload(t *testing.T) *layout.Payload {
	t.Helper()
	d := label.NewDocument("sample", 60, 40, units.UnitMM)
	add := func(p label.Payload, pos label.Point) {
		if _, err := d.AddElement(p, pos); err != nil {
			t.Fatalf("AddElement: %v", err)
		}
	}
	add(label.Shape{Shape: label.ShapeRoundedRectangle, Fill: "#eee"}, label.Point{X: 1, Y: 1})
	add(label.Shape{Shape: label.ShapeTriangle}, label.Point{X: 30, Y: 1})
	add(label.Shape{Shape: "hexagon"}, label.Point{X: 30, Y: 20})
	add(label.Text{Content: "Sample label text", Align: label.AlignCenter}, label.Point{X: 2, Y: 2})
	add(label.Line{End: label.Point{X: 50, Y: 0}}, label.Point{X: 2, Y: 12})
	add(label.Table{Rows: 2, Cols: 2, Cells: map[label.Cell]string{{Row: 0, Col: 0}: "Qty", {Row: 0, Col: 1}: "3"}}, label.Point{X: 2, Y: 14})
	add(label.Barcode{Symbology: label.CODE128, Value: "LC-0001", ShowText: true}, label.Point{X: 2, Y: 24})
	add(label.Barcode{Symbology: label.QR, Value: "LC-0001"}, label.Point{X: 40, Y: 18})
	add(label.Image{Source: "built-in:dot"}, label.Point{X: 45, Y: 2})

	r := NewRenderer("")
	p, err := layout.Serialize(d, layout.Options{Strict: true, Typesetter: r})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return p
}

func dotPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRenderPDF(t *testing.T) {
	p := samplePayload(t)
	r := NewRendererWithOptions(Options{Images: map[string]Resource{"dot": {Bytes: dotPNG(t)}}})
	out, err := r.Render(p)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF: %q", out[:min(len(out), 16)])
	}
}

func TestRenderSurfacesEncodabilityErrors(t *testing.T) {
	d := label.NewDocument("bad", 50, 30, units.UnitMM)
	if _, err := d.AddElement(label.Barcode{Symbology: label.EAN13, Value: "not digits"}, label.Point{}); err != nil {
		t.Fatalf("the document accepts any non-empty value: %v", err)
	}
	p, err := layout.Serialize(d, layout.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewRenderer("").Render(p); !errors.Is(err, ErrNotEncodable) {
		t.Fatalf("expected ErrNotEncodable, got %v", err)
	}
}

func TestRenderMissingImage(t *testing.T) {
	p := samplePayload(t)
	if _, err := NewRenderer("").Render(p); err == nil {
		t.Fatalf("unresolved built-in image should fail")
	}
	if _, err := NewRenderer("").Render(nil); err == nil {
		t.Fatalf("nil payload should fail")
	}
}
