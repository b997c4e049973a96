// Package engine 把标签文档、绘制状态机与打印队列组合为编辑器使用的单一入口。
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ByLCY/labelcanvas/binding"
	"github.com/ByLCY/labelcanvas/config"
	"github.com/ByLCY/labelcanvas/drawing"
	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/layout"
	"github.com/ByLCY/labelcanvas/printer"
	canvasrenderer "github.com/ByLCY/labelcanvas/renderer/canvas"
)

// Options 配置引擎。Host 为空时使用以 canvas 渲染器为后端的 LocalHost。
type Options struct {
	Drawing drawing.Options
	// Strict 为真时空文档、未解析的样式与未绑定的占位符都会导致序列化失败。
	Strict bool
	// Data 绑定到文本、单元格与条码值中的 ${path} 占位符。
	Data any
	// Language 是写入打印载荷与 PDF 的文档语言。
	Language string

	Host           printer.Host
	Typesetter     layout.Typesetter
	BaseDir        string // 解析相对图片路径
	SpoolDir       string
	DefaultPrinter string
	Logger         *slog.Logger
}

// OptionsFromSettings 把用户设置映射为引擎选项。
func OptionsFromSettings(s config.Settings) Options {
	return Options{
		Drawing: drawing.Options{
			Viewport:      drawing.Viewport{Zoom: s.Zoom},
			MinLineLength: s.MinLineLength,
		},
		Strict:         s.StrictPayload,
		Language:       s.Language,
		SpoolDir:       s.SpoolDir,
		DefaultPrinter: s.DefaultPrinter,
	}
}

// NewDocument 按设置中的默认标签尺寸与显示单位创建空白文档。
func NewDocument(name string, s config.Settings) *label.Document {
	return label.NewDocument(name, s.LabelWidth, s.LabelHeight, s.Unit)
}

// Engine 由 UI 事件循环单线程驱动；只有打印作业在后台运行，且从不修改文档。
type Engine struct {
	doc        *label.Document
	machine    *drawing.Machine
	host       printer.Host
	spooler    *printer.Spooler
	typesetter layout.Typesetter
	strict     bool
	data       any
	language   string
	log        *slog.Logger
}

// New 创建引擎。doc 为空时返回错误。
func New(doc *label.Document, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Drawing.Logger == nil {
		opts.Drawing.Logger = logger
	}
	machine, err := drawing.New(doc, opts.Drawing)
	if err != nil {
		return nil, err
	}

	var r *canvasrenderer.Renderer
	if opts.Host == nil || opts.Typesetter == nil {
		r = canvasrenderer.NewRenderer(opts.BaseDir)
	}
	host := opts.Host
	if host == nil {
		local, err := printer.NewLocalHost(printer.LocalOptions{
			Renderer:       r,
			SpoolDir:       opts.SpoolDir,
			DefaultPrinter: opts.DefaultPrinter,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
		host = local
	}
	ts := opts.Typesetter
	if ts == nil {
		ts = r
	}

	return &Engine{
		doc:        doc,
		machine:    machine,
		host:       host,
		spooler:    printer.NewSpooler(host, logger),
		typesetter: ts,
		strict:     opts.Strict,
		data:       opts.Data,
		language:   opts.Language,
		log:        logger,
	}, nil
}

// Document returns the label document owned by the engine.
func (e *Engine) Document() *label.Document { return e.doc }

// Machine returns the drawing-mode state machine.
func (e *Engine) Machine() *drawing.Machine { return e.machine }

// Host returns the privileged host collaborator.
func (e *Engine) Host() printer.Host { return e.host }

// Dispatch 把指令交给绘制状态机。
func (e *Engine) Dispatch(cmd drawing.Command) (drawing.Outcome, error) {
	return e.machine.Dispatch(cmd)
}

// SetData 替换模板数据，影响之后的 Payload、Print 与 ExportPDF。
func (e *Engine) SetData(data any) { e.data = data }

// Fields 按 z-index 顺序列出文档中文本、单元格与条码值引用的占位符路径（去重），
// 供界面提示需要准备哪些打印数据。
func (e *Engine) Fields() []string {
	var out []string
	seen := map[string]bool{}
	collect := func(text string) {
		for _, path := range binding.Placeholders(text) {
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
		}
	}
	for _, el := range e.doc.Elements() {
		switch v := el.Payload.(type) {
		case label.Text:
			collect(v.Content)
		case label.Table:
			for _, c := range v.SortedCells() {
				collect(v.CellText(c.Row, c.Col))
			}
		case label.Barcode:
			collect(v.Value)
		}
	}
	return out
}

// Payload 按当前文档生成打印载荷。
func (e *Engine) Payload() (*layout.Payload, error) {
	return layout.Serialize(e.doc, layout.Options{
		Strict:     e.strict,
		Data:       e.data,
		Typesetter: e.typesetter,
		Language:   e.language,
		Logger:     e.log,
	})
}

// Print 序列化文档并提交打印作业，不等待作业完成。序列化错误同步返回；
// 打印失败只通过 OnPrintStatus 报告。printerName 为空时使用宿主默认打印机。
func (e *Engine) Print(ctx context.Context, printerName string) (printer.JobID, error) {
	p, err := e.Payload()
	if err != nil {
		return "", fmt.Errorf("engine: 生成打印载荷失败: %w", err)
	}
	return e.spooler.Submit(ctx, printer.Request{Printer: printerName, Payload: p})
}

// ExportPDF 与 Print 相同，但导出到 path（为空时由宿主决定位置）。
func (e *Engine) ExportPDF(ctx context.Context, path string) (printer.JobID, error) {
	p, err := e.Payload()
	if err != nil {
		return "", fmt.Errorf("engine: 生成打印载荷失败: %w", err)
	}
	return e.spooler.Submit(ctx, printer.Request{Payload: p, PDF: &printer.PDFOptions{Path: path}})
}

// OnPrintStatus 订阅打印状态事件。
func (e *Engine) OnPrintStatus(cb func(printer.StatusEvent)) *printer.Subscription {
	return e.spooler.OnPrintStatus(cb)
}

// Wait 等待所有已提交的作业结束。
func (e *Engine) Wait() { e.spooler.Wait() }

// Close 放弃进行中的手势并等待打印作业结束，之后不再接受打印。
func (e *Engine) Close() {
	if !drawing.IsIdle(e.machine.Mode()) {
		if _, err := e.machine.Dispatch(drawing.Cancel{}); err != nil {
			e.log.Warn("engine: 取消手势失败", "err", err)
		}
	}
	e.spooler.Close()
}
