package layout

import "log/slog"

// Options 配置序列化阶段所需的依赖与策略。
type Options struct {
	// Strict 为 true 时，空文档、无法解析的样式标记与未绑定的占位符都视为错误；
	// 否则空文档返回空载荷，其余情况回退到默认值。
	Strict bool
	// Data 用于替换文本、单元格与条码值中的 ${path} 占位符；为空时不做替换。
	Data any
	// Typesetter 为空时文本只按换行符拆行。
	Typesetter Typesetter
	// Language 写入载荷元信息，PDF 输出据此设置文档语言。
	Language string
	Logger   *slog.Logger
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。
type Typesetter interface {
	LayoutLines(content string, width float64, font Font, lineHeight float64) ([]TextLine, error)
}
