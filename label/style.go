package label

// DefaultStyleName 是未指定样式的文本与表格使用的样式名。
const DefaultStyleName = "body"

// TextStyle 描述可被文本与表格引用的字体样式。各字段均为未解析的标记，
// 例如 Size: "10pt"、LineHeight: "1.2x"、Color: "#333" 或命名颜色。
type TextStyle struct {
	Font       string `json:"font,omitempty"`
	Size       string `json:"size,omitempty"`
	Weight     string `json:"weight,omitempty"`
	Italic     bool   `json:"italic,omitempty"`
	Color      string `json:"color,omitempty"`
	LineHeight string `json:"lineHeight,omitempty"`
}

// DefaultTextStyle 在文档未定义 body 样式时使用。
func DefaultTextStyle() TextStyle {
	return TextStyle{Font: "go", Size: "10pt", Weight: "regular", Color: "#1e1e1e", LineHeight: "1.2x"}
}

// Merge 用 override 中的非空字段覆盖 s。
func (s TextStyle) Merge(override TextStyle) TextStyle {
	if override.Font != "" {
		s.Font = override.Font
	}
	if override.Size != "" {
		s.Size = override.Size
	}
	if override.Weight != "" {
		s.Weight = override.Weight
	}
	if override.Italic {
		s.Italic = true
	}
	if override.Color != "" {
		s.Color = override.Color
	}
	if override.LineHeight != "" {
		s.LineHeight = override.LineHeight
	}
	return s
}
