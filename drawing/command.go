package drawing

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/tools"
)

// Command 是调色板与画布发送给状态机的显式指令。坐标均为画布屏幕像素。
type Command interface {
	command()
}

// SelectTool 选择调色板中的工具。对即时添加类工具，Drop 为拖放位置（可空），
// Source/AspectRatio 仅用于图片。
type SelectTool struct {
	Tool        tools.ID
	Drop        *r2.Vec
	Source      string
	AspectRatio float64
}

// PointerDown 在画布上按下指针。
type PointerDown struct{ At r2.Vec }

// PointerMove 移动指针（拖拽中）。
type PointerMove struct{ At r2.Vec }

// PointerUp 在画布上松开指针。
type PointerUp struct{ At r2.Vec }

// ConfirmValue 由外部输入框确认条码值。
type ConfirmValue struct{ Value string }

// Cancel 取消当前手势（例如 Esc，或输入框被取消）。
type Cancel struct{}

// FocusLost 表示画布失去焦点。
type FocusLost struct{}

// ConfigureShape 设置形状种类，作用于当前形状模式及之后的激活。
type ConfigureShape struct{ Shape label.ShapeKind }

// ConfigureTable 设置表格行列数。
type ConfigureTable struct{ Rows, Cols int }

// ConfigureBarcode 设置条码类型与是否显示可读文本。
type ConfigureBarcode struct {
	Symbology label.Symbology
	ShowText  bool
}

func (SelectTool) command()       {}
func (PointerDown) command()      {}
func (PointerMove) command()      {}
func (PointerUp) command()        {}
func (ConfirmValue) command()     {}
func (Cancel) command()           {}
func (FocusLost) command()        {}
func (ConfigureShape) command()   {}
func (ConfigureTable) command()   {}
func (ConfigureBarcode) command() {}

// PromptRequest 描述一次条码值输入请求。
type PromptRequest struct {
	Symbology label.Symbology
	Placement label.Rect
	Previous  string
	// Reason 非空时表示上一次输入被拒绝的原因。
	Reason error
}

// ValuePrompter 是外部的条码值输入协作方。RequestValue 不得阻塞：
// 结果通过 ConfirmValue 或 Cancel 指令异步送回状态机。
type ValuePrompter interface {
	RequestValue(req PromptRequest)
}
