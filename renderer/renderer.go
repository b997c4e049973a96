// Package renderer 定义把打印载荷输出为最终文件的后端接口。
package renderer

import "github.com/ByLCY/labelcanvas/layout"

// Renderer 将打印载荷输出为最终文件，例如 PDF。
// Render 返回生成的二进制数据（例如 PDF 字节切片）以及可能的错误。
type Renderer interface {
	Render(p *layout.Payload) ([]byte, error)
}
