package layout

// 该文件定义打印载荷（PrintPayload）的结构，供序列化、渲染、打印与调试 JSON 共用。
// 所有长度均以毫米为单位，并已对齐到 1µm。

// PayloadVersion 是载荷 JSON 结构的版本号。
const PayloadVersion = 1

// Payload 是交给打印/PDF 协作方的规范化标签描述。
type Payload struct {
	Version int          `json:"version"`
	Meta    DocumentMeta `json:"meta"`
	Width   float64      `json:"width"`
	Height  float64      `json:"height"`
	Records []Record     `json:"records"`
}

// DocumentMeta 记录来源文档的信息，用于展示、作业命名与 PDF 文档属性。
type DocumentMeta struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"` // BCP 47 标签，如 zh-CN
}

// Record 是一个元素的规范化记录。Kind 决定哪一个主体字段非空。
type Record struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"`
	Z      int     `json:"z"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Text    *TextBox    `json:"text,omitempty"`
	Line    *Line       `json:"line,omitempty"`
	Table   *TableBox   `json:"table,omitempty"`
	Barcode *BarcodeBox `json:"barcode,omitempty"`
	Image   *ImageBox   `json:"image,omitempty"`
	Shape   *ShapeBox   `json:"shape,omitempty"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Font 是解析后的字体：Family 为内置字体族名，Size 以毫米表示。
type Font struct {
	Family string  `json:"family"`
	Weight string  `json:"weight"` // regular | bold
	Italic bool    `json:"italic,omitempty"`
	Size   float64 `json:"size"`
}

// TextBox 表示一个已经排好行的文本块，坐标取所在 Record。
type TextBox struct {
	Content    string     `json:"content"`
	Font       Font       `json:"font"`
	Color      Color      `json:"color"`
	Align      string     `json:"align"`
	LineHeight float64    `json:"lineHeight"`
	Lines      []TextLine `json:"lines"`
	Height     float64    `json:"height"` // Σ(GapBefore + Height)
}

// TextLine 表示排版后的一行文本内容及其宽高。
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// Line 表示一条线段，端点为标签坐标。
type Line struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Color Color   `json:"color"`
	Width float64 `json:"width"`
}

// TableBox 是展开为稠密网格的表格。Cells[row][col] 缺省为空串。
type TableBox struct {
	Rows         int        `json:"rows"`
	Cols         int        `json:"cols"`
	ColumnWidths []float64  `json:"columnWidths"`
	RowHeight    float64    `json:"rowHeight"`
	Cells        [][]string `json:"cells"`
	Font         Font       `json:"font"`
	Color        Color      `json:"color"`
	BorderColor  Color      `json:"borderColor"`
	BorderWidth  float64    `json:"borderWidth"`
}

// BarcodeBox 描述条码；可编码性由渲染端校验。
type BarcodeBox struct {
	Symbology string `json:"symbology"`
	Value     string `json:"value"`
	ShowText  bool   `json:"showText"`
	Font      Font   `json:"font"`
	Color     Color  `json:"color"`
}

// ImageBox 的 Source 是不透明的资源标识，由打印端解析。
type ImageBox struct {
	Source string `json:"source"`
	Fit    string `json:"fit"`
}

// ShapeBox 描述形状；Fill 为空表示不填充。
type ShapeBox struct {
	Shape        string  `json:"shape"`
	Fill         *Color  `json:"fill,omitempty"`
	Stroke       Color   `json:"stroke"`
	StrokeWidth  float64 `json:"strokeWidth"`
	CornerRadius float64 `json:"cornerRadius,omitempty"`
}
