package engine

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/ByLCY/labelcanvas/config"
	"github.com/ByLCY/labelcanvas/drawing"
	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/layout"
	"github.com/ByLCY/labelcanvas/printer"
	"github.com/ByLCY/labelcanvas/tools"
	"github.com/ByLCY/labelcanvas/units"
)

type stubRenderer struct{ err error }

func (s stubRenderer) Render(p *layout.Payload) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-stub"), nil
}

type events struct {
	mu  sync.Mutex
	all []printer.StatusEvent
}

func (e *events) add(ev printer.StatusEvent) {
	e.mu.Lock()
	e.all = append(e.all, ev)
	e.mu.Unlock()
}

func (e *events) last() printer.StatusEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.all[len(e.all)-1]
}

func (e *events) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.all)
}

func localHost(t *testing.T, render error) printer.Host {
	t.Helper()
	host, err := printer.NewLocalHost(printer.LocalOptions{Renderer: stubRenderer{err: render}, SpoolDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	return host
}

func newEngine(t *testing.T, render error, opts Options) (*Engine, *label.Document) {
	t.Helper()
	doc := label.NewDocument("engine", 80, 40, units.UnitMM)
	opts.Host = localHost(t, render)
	e, err := New(doc, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e, doc
}

func drawLine(t *testing.T, e *Engine, from, to label.Point) {
	t.Helper()
	vp := e.Machine().Viewport()
	a, _ := vp.ToScreen(from)
	b, _ := vp.ToScreen(to)
	for _, cmd := range []drawing.Command{
		drawing.SelectTool{Tool: tools.Line},
		drawing.PointerDown{At: a},
		drawing.PointerUp{At: b},
	} {
		if _, err := e.Dispatch(cmd); err != nil {
			t.Fatalf("Dispatch(%T): %v", cmd, err)
		}
	}
}

func TestDrawThenPrint(t *testing.T) {
	e, doc := newEngine(t, nil, Options{Strict: true})
	rec := &events{}
	e.OnPrintStatus(rec.add)

	drawLine(t, e, label.Point{X: 5, Y: 20}, label.Point{X: 75, Y: 20})
	if doc.Len() != 1 {
		t.Fatalf("expected one element, got %d", doc.Len())
	}

	id, err := e.Print(context.Background(), printer.SpoolPrinterName)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	e.Wait()
	last := rec.last()
	if last.Job != id || last.State != printer.Done {
		t.Fatalf("unexpected final event %+v", last)
	}
	p, err := layout.ReadJSON(last.Output)
	if err != nil {
		t.Fatalf("spooled payload: %v", err)
	}
	if len(p.Records) != 1 || p.Records[0].Line == nil || p.Records[0].Line.X2 != 75 {
		t.Fatalf("unexpected spooled records %+v", p.Records)
	}
}

func TestFailedPrintLeavesDocumentUntouched(t *testing.T) {
	boom := errors.New("toner low")
	e, doc := newEngine(t, boom, Options{})
	rec := &events{}
	e.OnPrintStatus(rec.add)
	if _, err := doc.AddElement(label.Text{Content: "keep me"}, label.Point{X: 1, Y: 1}); err != nil {
		t.Fatal(err)
	}
	before := doc.Elements()

	if _, err := e.ExportPDF(context.Background(), filepath.Join(t.TempDir(), "out.pdf")); err != nil {
		t.Fatalf("ExportPDF should hand off the job, got %v", err)
	}
	e.Wait()
	last := rec.last()
	if last.State != printer.Failed || !errors.Is(last.Err, boom) {
		t.Fatalf("expected failure event carrying the render error, got %+v", last)
	}
	after := doc.Elements()
	if len(after) != len(before) || after[0].ID != before[0].ID || after[0].Payload != before[0].Payload {
		t.Fatalf("document changed after a failed print: %+v", after)
	}
}

func TestPrintEmptyDocumentStrict(t *testing.T) {
	e, _ := newEngine(t, nil, Options{Strict: true})
	rec := &events{}
	e.OnPrintStatus(rec.add)
	if _, err := e.Print(context.Background(), ""); !errors.Is(err, layout.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if rec.len() != 0 {
		t.Fatalf("no job should be queued for an invalid payload")
	}
}

func TestPayloadBindsData(t *testing.T) {
	e, doc := newEngine(t, nil, Options{Strict: true})
	if _, err := doc.AddElement(label.Text{Content: "SKU ${item.sku}"}, label.Point{}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Payload(); err == nil {
		t.Fatalf("unbound placeholder should fail in strict mode")
	}
	e.SetData(map[string]any{"item": map[string]any{"sku": "A-17"}})
	p, err := e.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if got := p.Records[0].Text.Content; got != "SKU A-17" {
		t.Fatalf("expected bound content, got %q", got)
	}
}

func TestFields(t *testing.T) {
	e, doc := newEngine(t, nil, Options{})
	add := func(p label.Payload) {
		t.Helper()
		if _, err := doc.AddElement(p, label.Point{}); err != nil {
			t.Fatal(err)
		}
	}
	add(label.Text{Content: "${item.name} ${item.price|0}"})
	add(label.Table{Rows: 2, Cols: 2, Cells: map[label.Cell]string{
		{Row: 1, Col: 0}: "${lot}",
		{Row: 0, Col: 1}: "${item.name}",
	}})
	add(label.Barcode{Symbology: label.CODE128, Value: "${item.ean}"})
	add(label.Text{Content: "static"})

	want := []string{"item.name", "item.price", "lot", "item.ean"}
	if got := e.Fields(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
}

func TestNewDocumentFromSettings(t *testing.T) {
	s := config.Default()
	s.Unit = units.UnitIN
	s.LabelWidth, s.LabelHeight = 62, 29
	s.Language = "en-GB"
	doc := NewDocument("blank", s)
	if doc.Width != 62 || doc.Height != 29 || doc.Unit != units.UnitIN || doc.Len() != 0 {
		t.Fatalf("document does not follow settings: %+v", doc)
	}
	opts := OptionsFromSettings(s)
	opts.Host = localHost(t, nil)
	e, err := New(doc, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()
	if _, err := doc.AddElement(label.Text{Content: "x"}, label.Point{}); err != nil {
		t.Fatal(err)
	}
	p, err := e.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if p.Meta.Language != "en-GB" || p.Width != 62 {
		t.Fatalf("unexpected payload meta %+v width %g", p.Meta, p.Width)
	}
}

func TestCloseAbandonsGesture(t *testing.T) {
	e, doc := newEngine(t, nil, Options{})
	vp := e.Machine().Viewport()
	at, _ := vp.ToScreen(label.Point{X: 3, Y: 3})
	if _, err := e.Dispatch(drawing.SelectTool{Tool: tools.Shape}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Dispatch(drawing.PointerDown{At: at}); err != nil {
		t.Fatal(err)
	}
	e.Close()
	if !drawing.IsIdle(e.Machine().Mode()) || doc.Len() != 0 {
		t.Fatalf("close should discard the gesture, mode=%s len=%d", e.Machine().Mode().Name(), doc.Len())
	}
	if _, err := doc.AddElement(label.Text{Content: "x"}, label.Point{}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Print(context.Background(), ""); !errors.Is(err, printer.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOptionsFromSettings(t *testing.T) {
	s := config.Default()
	s.Zoom = 3
	s.StrictPayload = true
	s.SpoolDir = t.TempDir()
	s.DefaultPrinter = printer.SpoolPrinterName
	doc := label.NewDocument("settings", s.LabelWidth, s.LabelHeight, s.Unit)
	e, err := New(doc, OptionsFromSettings(s))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()
	if e.Machine().Viewport().Zoom != 3 {
		t.Fatalf("zoom not applied: %+v", e.Machine().Viewport())
	}
	if _, err := e.Payload(); !errors.Is(err, layout.ErrEmptyDocument) {
		t.Fatalf("strict payload setting not applied: %v", err)
	}
	printers, err := e.Host().Printers(context.Background())
	if err != nil || !printers[1].IsDefault {
		t.Fatalf("default printer not applied: %+v %v", printers, err)
	}
}
