package printer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ByLCY/labelcanvas/layout"
	"github.com/ByLCY/labelcanvas/renderer"
)

const (
	// PDFPrinterName 是把作业渲染为 PDF 写入假脱机目录的虚拟打印机。
	PDFPrinterName = "PDF"
	// SpoolPrinterName 是把打印载荷 JSON 写入假脱机目录、交给外部驱动处理的虚拟打印机。
	SpoolPrinterName = "Spool"
)

// LocalOptions 配置 LocalHost。
type LocalOptions struct {
	Renderer       renderer.Renderer
	SpoolDir       string
	DefaultPrinter string
	Logger         *slog.Logger
}

// LocalHost 是不依赖系统打印服务的 Host 实现，适用于命令行与无界面环境。
type LocalHost struct {
	renderer renderer.Renderer
	spoolDir string
	log      *slog.Logger

	mu             sync.Mutex
	defaultPrinter string
}

var _ Host = (*LocalHost)(nil)

// NewLocalHost 创建本地宿主。SpoolDir 为空时使用系统临时目录下的 labelcanvas-spool。
func NewLocalHost(opts LocalOptions) (*LocalHost, error) {
	if opts.Renderer == nil {
		return nil, fmt.Errorf("printer: 缺少渲染器")
	}
	h := &LocalHost{
		renderer:       opts.Renderer,
		spoolDir:       opts.SpoolDir,
		log:            opts.Logger,
		defaultPrinter: PDFPrinterName,
	}
	if h.spoolDir == "" {
		h.spoolDir = filepath.Join(os.TempDir(), "labelcanvas-spool")
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if opts.DefaultPrinter != "" {
		if err := h.SetDefaultPrinter(context.Background(), opts.DefaultPrinter); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// SpoolDir returns the directory print jobs are written to.
func (h *LocalHost) SpoolDir() string { return h.spoolDir }

func (h *LocalHost) SystemInfo(ctx context.Context) (SystemInfo, error) {
	info := SystemInfo{
		Arch:      runtime.GOARCH,
		Platform:  runtime.GOOS,
		OSVersion: osVersion(),
	}
	if home, err := os.UserHomeDir(); err == nil {
		info.Homedir = home
	}
	if name, err := os.Hostname(); err == nil {
		info.Hostname = name
	}
	return info, nil
}

func (h *LocalHost) Printers(ctx context.Context) ([]Printer, error) {
	h.mu.Lock()
	def := h.defaultPrinter
	h.mu.Unlock()
	return []Printer{
		{Name: PDFPrinterName, Description: "渲染为 PDF 并写入假脱机目录", IsDefault: def == PDFPrinterName, Virtual: true},
		{Name: SpoolPrinterName, Description: "写入打印载荷 JSON，交给外部驱动", IsDefault: def == SpoolPrinterName, Virtual: true},
	}, nil
}

func (h *LocalHost) PrinterDetails(ctx context.Context, name string) (PrinterDetails, error) {
	printers, _ := h.Printers(ctx)
	for _, p := range printers {
		if p.Name == name {
			return PrinterDetails{Printer: p, Options: map[string]string{"spoolDir": h.spoolDir}}, nil
		}
	}
	return PrinterDetails{}, fmt.Errorf("%w: %q", ErrUnknownPrinter, name)
}

func (h *LocalHost) SetDefaultPrinter(ctx context.Context, name string) error {
	if name != PDFPrinterName && name != SpoolPrinterName {
		return fmt.Errorf("%w: %q", ErrUnknownPrinter, name)
	}
	h.mu.Lock()
	h.defaultPrinter = name
	h.mu.Unlock()
	return nil
}

func (h *LocalHost) OpenPrinterProperties(ctx context.Context, name string) error {
	return fmt.Errorf("%w: 打印机属性窗口", ErrUnsupported)
}

func (h *LocalHost) OpenPrinterPreferences(ctx context.Context, name string) error {
	return fmt.Errorf("%w: 打印首选项窗口", ErrUnsupported)
}

func (h *LocalHost) OpenSettings(ctx context.Context, page string) error {
	return fmt.Errorf("%w: 系统设置 %q", ErrUnsupported, page)
}

// PrintLabel 按打印机类型写出作业文件并返回其路径。printer 为空时使用默认打印机。
func (h *LocalHost) PrintLabel(ctx context.Context, printer string, p *layout.Payload) (string, error) {
	if printer == "" {
		h.mu.Lock()
		printer = h.defaultPrinter
		h.mu.Unlock()
	}
	switch printer {
	case PDFPrinterName:
		return h.PrintToPDF(ctx, p, PDFOptions{})
	case SpoolPrinterName:
		path, err := h.spoolPath(p, ".json")
		if err != nil {
			return "", err
		}
		if err := layout.WriteJSON(p, path); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("printer: 写入假脱机文件失败: %w", err)
		}
		h.log.Info("printer: 作业已写入假脱机目录", "printer", printer, "path", path)
		return path, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPrinter, printer)
	}
}

// PrintToPDF 渲染载荷并写入 opts.Path（为空时写入假脱机目录）。
func (h *LocalHost) PrintToPDF(ctx context.Context, p *layout.Payload, opts PDFOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := h.renderer.Render(p)
	if err != nil {
		return "", fmt.Errorf("printer: 渲染失败: %w", err)
	}
	path := opts.Path
	if path == "" {
		if path, err = h.spoolPath(p, ".pdf"); err != nil {
			return "", err
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("printer: 写入 PDF 失败: %w", err)
	}
	h.log.Info("printer: 已导出 PDF", "path", path, "bytes", len(data))
	return path, nil
}

func (h *LocalHost) OpenExternal(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("printer: 无效的链接 %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "mailto":
	default:
		return fmt.Errorf("printer: 不允许打开 %q 协议的链接", u.Scheme)
	}
	return fmt.Errorf("%w: 打开外部链接", ErrUnsupported)
}

// spoolPath 为每个作业在假脱机目录中占用一个新文件，命名为 <摘要前缀>-<序号><ext>。
// 文件以 O_EXCL 创建，同一载荷重复打印或并发作业都不会互相覆盖。
func (h *LocalHost) spoolPath(p *layout.Payload, ext string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("printer: 打印载荷为空")
	}
	digest, err := p.Digest()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(h.spoolDir, 0o755); err != nil {
		return "", fmt.Errorf("printer: 创建假脱机目录失败: %w", err)
	}
	for n := 1; ; n++ {
		path := filepath.Join(h.spoolDir, fmt.Sprintf("%s-%d%s", digest[:16], n, ext))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("printer: 创建作业文件失败: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return path, nil
	}
}
