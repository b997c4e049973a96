package printer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/layout"
	"github.com/ByLCY/labelcanvas/units"
)

// fakeHost 记录收到的作业；gate 非空时作业会阻塞直到 gate 被关闭。
type fakeHost struct {
	LocalHost
	gate chan struct{}
	fail error

	mu     sync.Mutex
	jobs   []string
	output string
}

func (f *fakeHost) PrintLabel(ctx context.Context, printer string, p *layout.Payload) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.jobs = append(f.jobs, printer)
	f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	return f.output, nil
}

func (f *fakeHost) PrintToPDF(ctx context.Context, p *layout.Payload, opts PDFOptions) (string, error) {
	return f.PrintLabel(ctx, PDFPrinterName, p)
}

// stubRenderer 返回固定字节，避免在打印测试中依赖字体与 PDF 后端。
type stubRenderer struct{ err error }

func (s stubRenderer) Render(p *layout.Payload) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-stub"), nil
}

func samplePayload(t *testing.T) *layout.Payload {
	t.Helper()
	d := label.NewDocument("job", 50, 30, units.UnitMM)
	if _, err := d.AddElement(label.Text{Content: "hi"}, label.Point{X: 1, Y: 1}); err != nil {
		t.Fatal(err)
	}
	p, err := layout.Serialize(d, layout.Options{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

type recorder struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (r *recorder) add(ev StatusEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) states(job JobID) []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, ev := range r.events {
		if ev.Job == job {
			out = append(out, ev.State)
		}
	}
	return out
}

func TestSubmitDoesNotBlock(t *testing.T) {
	host := &fakeHost{gate: make(chan struct{}), output: "/spool/x.pdf"}
	sp := NewSpooler(host, nil)
	rec := &recorder{}
	sub := sp.OnPrintStatus(rec.add)
	defer sub.Unsubscribe()

	payload := samplePayload(t)
	done := make(chan JobID, 1)
	go func() {
		id, err := sp.Submit(context.Background(), Request{Printer: "Label-1", Payload: payload})
		if err != nil {
			t.Errorf("Submit: %v", err)
		}
		done <- id
	}()

	var id JobID
	select {
	case id = <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Submit blocked while the host was busy")
	}
	if got := rec.states(id); len(got) == 0 || got[0] != Queued {
		t.Fatalf("Queued must be published before Submit returns, got %v", got)
	}

	close(host.gate)
	sp.Wait()
	got := rec.states(id)
	if len(got) != 3 || got[1] != Printing || got[2] != Done {
		t.Fatalf("unexpected state sequence %v", got)
	}
	rec.mu.Lock()
	last := rec.events[len(rec.events)-1]
	rec.mu.Unlock()
	if last.Output != "/spool/x.pdf" || last.Printer != "Label-1" || last.At.IsZero() {
		t.Fatalf("unexpected final event %+v", last)
	}
}

func TestFailedJobReportsError(t *testing.T) {
	boom := errors.New("paper jam")
	sp := NewSpooler(&fakeHost{fail: boom}, nil)
	rec := &recorder{}
	sp.OnPrintStatus(rec.add)

	id, err := sp.Submit(context.Background(), Request{Payload: samplePayload(t)})
	if err != nil {
		t.Fatalf("a host failure must not surface from Submit: %v", err)
	}
	sp.Wait()
	got := rec.states(id)
	if len(got) != 3 || got[2] != Failed || !got[2].Terminal() {
		t.Fatalf("unexpected states %v", got)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !errors.Is(rec.events[2].Err, boom) {
		t.Fatalf("failure event should carry the host error, got %v", rec.events[2].Err)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	sp := NewSpooler(&fakeHost{}, nil)
	var mu sync.Mutex
	calls := 0
	sub := sp.OnPrintStatus(func(StatusEvent) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	keep := &recorder{}
	sp.OnPrintStatus(keep.add)

	sub.Unsubscribe()
	sub.Unsubscribe()
	var nilSub *Subscription
	nilSub.Unsubscribe()

	id, err := sp.Submit(context.Background(), Request{Payload: samplePayload(t)})
	if err != nil {
		t.Fatal(err)
	}
	sp.Wait()
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("unsubscribed callback was called %d times", calls)
	}
	if len(keep.states(id)) != 3 {
		t.Fatalf("remaining subscriber should still receive events")
	}
}

func TestSubmitAfterClose(t *testing.T) {
	sp := NewSpooler(&fakeHost{}, nil)
	sp.Close()
	sp.Close()
	if _, err := sp.Submit(context.Background(), Request{Payload: samplePayload(t)}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := NewSpooler(&fakeHost{}, nil).Submit(context.Background(), Request{}); err == nil {
		t.Fatalf("nil payload should be rejected")
	}
}

func TestLocalHostPrinting(t *testing.T) {
	dir := t.TempDir()
	h, err := NewLocalHost(LocalOptions{Renderer: stubRenderer{}, SpoolDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	p := samplePayload(t)

	pdfPath, err := h.PrintLabel(ctx, "", p)
	if err != nil {
		t.Fatalf("PrintLabel default: %v", err)
	}
	if filepath.Dir(pdfPath) != dir || !strings.HasSuffix(pdfPath, ".pdf") {
		t.Fatalf("unexpected pdf path %s", pdfPath)
	}
	if data, _ := os.ReadFile(pdfPath); string(data) != "%PDF-stub" {
		t.Fatalf("unexpected pdf content %q", data)
	}

	jsonPath, err := h.PrintLabel(ctx, SpoolPrinterName, p)
	if err != nil {
		t.Fatalf("PrintLabel spool: %v", err)
	}
	back, err := layout.ReadJSON(jsonPath)
	if err != nil || len(back.Records) != 1 {
		t.Fatalf("spooled payload unreadable: %v", err)
	}

	out := filepath.Join(dir, "nested", "label.pdf")
	if got, err := h.PrintToPDF(ctx, p, PDFOptions{Path: out}); err != nil || got != out {
		t.Fatalf("PrintToPDF: %v %s", err, got)
	}

	if _, err := h.PrintLabel(ctx, "Zebra", p); !errors.Is(err, ErrUnknownPrinter) {
		t.Fatalf("expected ErrUnknownPrinter, got %v", err)
	}
	failing, _ := NewLocalHost(LocalOptions{Renderer: stubRenderer{err: errors.New("bad barcode")}, SpoolDir: dir})
	if _, err := failing.PrintToPDF(ctx, p, PDFOptions{}); err == nil {
		t.Fatalf("render failures must be returned")
	}
}

func TestRepeatedPrintKeepsEveryJob(t *testing.T) {
	dir := t.TempDir()
	h, err := NewLocalHost(LocalOptions{Renderer: stubRenderer{}, SpoolDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	sp := NewSpooler(h, nil)
	defer sp.Close()
	rec := &recorder{}
	sub := sp.OnPrintStatus(rec.add)
	defer sub.Unsubscribe()

	p := samplePayload(t)
	for _, req := range []Request{
		{Printer: SpoolPrinterName, Payload: p},
		{Printer: SpoolPrinterName, Payload: p},
		{Payload: p, PDF: &PDFOptions{}},
		{Payload: p, PDF: &PDFOptions{}},
	} {
		if _, err := sp.Submit(context.Background(), req); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	sp.Wait()

	outputs := map[string]bool{}
	rec.mu.Lock()
	for _, ev := range rec.events {
		if ev.State == Failed {
			t.Errorf("job %s failed: %v", ev.Job, ev.Err)
		}
		if ev.State == Done {
			outputs[ev.Output] = true
		}
	}
	rec.mu.Unlock()
	if len(outputs) != 4 {
		t.Fatalf("expected 4 distinct job files, got %v", outputs)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 files in the spool directory, got %d", len(entries))
	}
	for path := range outputs {
		if strings.HasSuffix(path, ".json") {
			if back, err := layout.ReadJSON(path); err != nil || len(back.Records) != 1 {
				t.Fatalf("spooled job %s unreadable: %v", path, err)
			}
		}
	}
}

func TestLocalHostManagement(t *testing.T) {
	ctx := context.Background()
	h, err := NewLocalHost(LocalOptions{Renderer: stubRenderer{}, SpoolDir: t.TempDir(), DefaultPrinter: SpoolPrinterName})
	if err != nil {
		t.Fatal(err)
	}
	printers, _ := h.Printers(ctx)
	if len(printers) != 2 || printers[0].IsDefault || !printers[1].IsDefault {
		t.Fatalf("unexpected printers %+v", printers)
	}
	if err := h.SetDefaultPrinter(ctx, "nope"); !errors.Is(err, ErrUnknownPrinter) {
		t.Fatalf("expected ErrUnknownPrinter, got %v", err)
	}
	if d, err := h.PrinterDetails(ctx, PDFPrinterName); err != nil || d.Options["spoolDir"] != h.SpoolDir() {
		t.Fatalf("unexpected details %+v %v", d, err)
	}
	info, err := h.SystemInfo(ctx)
	if err != nil || info.Platform == "" || info.Arch == "" {
		t.Fatalf("unexpected system info %+v %v", info, err)
	}
	if err := h.OpenPrinterProperties(ctx, PDFPrinterName); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if err := h.OpenExternal(ctx, "https://example.com"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if err := h.OpenExternal(ctx, "file:///etc/passwd"); err == nil || errors.Is(err, ErrUnsupported) {
		t.Fatalf("non-web schemes should be refused, got %v", err)
	}
	if _, err := NewLocalHost(LocalOptions{}); err == nil {
		t.Fatalf("a renderer is required")
	}
}
