// Package printer 是与特权宿主进程之间的边界：系统信息、打印机管理、
// 打印与导出 PDF，以及不阻塞调用方的异步打印队列。
package printer

import (
	"context"
	"errors"

	"github.com/ByLCY/labelcanvas/layout"
)

var (
	// ErrUnsupported 表示宿主不提供该操作（例如无界面环境下打开打印机属性窗口）。
	ErrUnsupported = errors.New("printer: 宿主不支持该操作")
	// ErrUnknownPrinter 表示打印机名称不存在。
	ErrUnknownPrinter = errors.New("printer: 未知的打印机")
	// ErrClosed 表示打印队列已关闭，不再接受作业。
	ErrClosed = errors.New("printer: 打印队列已关闭")
)

// SystemInfo 仅用于展示。
type SystemInfo struct {
	Homedir   string `json:"homedir"`
	OSVersion string `json:"osVersion"`
	Arch      string `json:"arch"`
	Platform  string `json:"platform"`
	Hostname  string `json:"hostname"`
}

// Printer 描述一台可用打印机。
type Printer struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"isDefault"`
	Virtual     bool   `json:"virtual,omitempty"`
}

// PrinterDetails 在 Printer 的基础上附带驱动相关的选项。
type PrinterDetails struct {
	Printer
	Options map[string]string `json:"options,omitempty"`
}

// PDFOptions 配置导出 PDF。Path 为空时由宿主决定输出位置。
type PDFOptions struct {
	Path string
}

// Host 抽象特权宿主进程。打印与导出的输入只有打印载荷；
// 实现可以阻塞，调用方应通过 Spooler 异步提交。
type Host interface {
	SystemInfo(ctx context.Context) (SystemInfo, error)
	Printers(ctx context.Context) ([]Printer, error)
	PrinterDetails(ctx context.Context, name string) (PrinterDetails, error)
	SetDefaultPrinter(ctx context.Context, name string) error
	OpenPrinterProperties(ctx context.Context, name string) error
	OpenPrinterPreferences(ctx context.Context, name string) error
	OpenSettings(ctx context.Context, page string) error
	PrintLabel(ctx context.Context, printer string, p *layout.Payload) (string, error)
	PrintToPDF(ctx context.Context, p *layout.Payload, opts PDFOptions) (string, error)
	OpenExternal(ctx context.Context, url string) error
}
