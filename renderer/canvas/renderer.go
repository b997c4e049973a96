package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/labelcanvas/fonts"
	"github.com/ByLCY/labelcanvas/layout"
	"github.com/ByLCY/labelcanvas/renderer"
	"github.com/ByLCY/labelcanvas/units"
)

const cellPadding = 0.8

// Renderer draws print payloads via github.com/tdewolff/canvas.
type Renderer struct {
	baseDir    string
	imageBlobs map[string][]byte // by unique name

	fontMu       sync.Mutex
	fontFamilies map[string]*fontFamilyEntry
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Images  map[string]Resource // built-in images accessible via built-in:<name>
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving image sources.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		baseDir:      opts.BaseDir,
		imageBlobs:   map[string][]byte{},
		fontFamilies: map[string]*fontFamilyEntry{},
	}
	for name, res := range opts.Images {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			r.imageBlobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, _ := os.ReadFile(res.Path) // 读取失败在实际使用时报错
			if len(data) > 0 {
				r.imageBlobs[name] = data
			}
		}
	}
	return r
}

// Render renders the payload into a single-page PDF sized to the label.
func (r *Renderer) Render(p *layout.Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("打印载荷为空")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("标签尺寸无效：%gx%g", p.Width, p.Height)
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, p.Width, p.Height, nil)
	writer.SetInfo(p.Meta.Name, "", "", "", "labelcanvas")
	if p.Meta.Language != "" {
		writer.SetLang(p.Meta.Language)
	}

	c := canvas.New(p.Width, p.Height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与载荷保持左上角为原点

	// 记录已按 z-index 升序排列，后绘制者在上层。
	for _, rec := range p.Records {
		if err := r.drawRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("绘制元素 %s 失败: %w", rec.ID, err)
		}
	}
	c.RenderTo(writer)

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawRecord(ctx *canvas.Context, rec layout.Record) error {
	switch {
	case rec.Text != nil:
		return r.drawTextBox(ctx, rec.X, rec.Y, rec.Width, *rec.Text)
	case rec.Line != nil:
		drawLine(ctx, *rec.Line)
		return nil
	case rec.Table != nil:
		return r.drawTable(ctx, rec.X, rec.Y, *rec.Table)
	case rec.Barcode != nil:
		return r.drawBarcode(ctx, rec)
	case rec.Image != nil:
		return r.drawImage(ctx, rec.X, rec.Y, rec.Width, rec.Height, *rec.Image)
	case rec.Shape != nil:
		drawShape(ctx, rec.X, rec.Y, rec.Width, rec.Height, *rec.Shape)
		return nil
	default:
		return fmt.Errorf("记录 %s 缺少 %s 主体", rec.ID, rec.Kind)
	}
}

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 约定：宽度、字号与行高均为毫米（mm）。与字体系统交互使用 pt，并在边界做 mm↔pt 换算。
func (r *Renderer) LayoutLines(content string, width float64, font layout.Font, lineHeight float64) ([]layout.TextLine, error) {
	face, err := r.fontFace(font, layout.Color{R: 30, G: 30, B: 30})
	if err != nil {
		return nil, err
	}

	lines := greedyWrapTokens(content, width, face)
	textHeight := face.Metrics().LineHeight
	if textHeight <= 0 {
		textHeight = lineHeight
	}
	leading := max(lineHeight-textHeight, 0)
	if len(lines) == 0 {
		lines = []layout.TextLine{{Content: "", Width: 0, Height: textHeight}}
	}
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = textHeight
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

func (r *Renderer) drawTextBox(ctx *canvas.Context, x, y, width float64, tb layout.TextBox) error {
	face, err := r.fontFace(tb.Font, tb.Color)
	if err != nil {
		return err
	}

	lines := tb.Lines
	if len(lines) == 0 {
		lines = []layout.TextLine{{Content: tb.Content, Width: width, Height: tb.LineHeight}}
	}

	var textAlign canvas.TextAlign
	var anchorX float64
	switch strings.ToLower(tb.Align) {
	case "center":
		textAlign = canvas.Center
		anchorX = x + width/2
	case "right":
		textAlign = canvas.Right
		anchorX = x + width
	default:
		textAlign = canvas.Left
		anchorX = x
	}

	ascent := face.Metrics().Ascent
	cursorY := y
	for _, line := range lines {
		cursorY += line.GapBefore
		lineHeight := line.Height
		if lineHeight <= 0 {
			lineHeight = tb.Font.Size
		}
		// 基线位置：行顶部加上字体上升部
		ctx.DrawText(anchorX, cursorY+ascent, canvas.NewTextLine(face, line.Content, textAlign))
		cursorY += lineHeight
	}
	return nil
}

func (r *Renderer) drawTable(ctx *canvas.Context, x, y float64, table layout.TableBox) error {
	face, err := r.fontFace(table.Font, table.Color)
	if err != nil {
		return err
	}
	ascent := face.Metrics().Ascent
	border := table.BorderWidth
	if border <= 0 {
		border = layout.DefaultStrokeWidth
	}

	rowY := y
	for row := 0; row < table.Rows; row++ {
		cellX := x
		for col := 0; col < table.Cols; col++ {
			w := table.ColumnWidths[min(col, len(table.ColumnWidths)-1)]
			ctx.SetFillColor(canvas.White)
			ctx.SetStrokeColor(colorFromLayout(table.BorderColor))
			ctx.SetStrokeWidth(border)
			ctx.DrawPath(cellX, rowY, canvas.Rectangle(w, table.RowHeight))

			if text := table.Cells[row][col]; text != "" {
				// 单元格内只绘制一行，垂直居中。
				top := rowY + max((table.RowHeight-face.Metrics().LineHeight)/2, 0)
				ctx.DrawText(cellX+cellPadding, top+ascent, canvas.NewTextLine(face, text, canvas.Left))
			}
			cellX += w
		}
		rowY += table.RowHeight
	}
	return nil
}

func (r *Renderer) drawImage(ctx *canvas.Context, x, y, w, h float64, img layout.ImageBox) error {
	src, err := r.loadImage(img.Source)
	if err != nil {
		return err
	}
	px := src.Bounds()
	if px.Dx() <= 0 || px.Dy() <= 0 || w <= 0 || h <= 0 {
		return nil
	}
	// contain：等比缩放到元素框内并居中。
	dpmm := max(float64(px.Dx())/w, float64(px.Dy())/h)
	dw, dh := float64(px.Dx())/dpmm, float64(px.Dy())/dpmm
	ctx.DrawImage(x+(w-dw)/2, y+(h-dh)/2, src, canvas.DPMM(dpmm))
	return nil
}

func (r *Renderer) loadImage(orig string) (image.Image, error) {
	if strings.HasPrefix(orig, "built-in:") || strings.HasPrefix(orig, "builtin:") {
		name := strings.TrimPrefix(strings.TrimPrefix(orig, "built-in:"), "builtin:")
		blob, ok := r.imageBlobs[name]
		if !ok {
			return nil, fmt.Errorf("找不到内置图片资源 built-in:%s", name)
		}
		img, _, err := image.Decode(bytes.NewReader(blob))
		if err != nil {
			return nil, fmt.Errorf("解码内置图片 built-in:%s 失败: %w", name, err)
		}
		return img, nil
	}
	if r.baseDir == "" && !filepath.IsAbs(orig) {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用路径：%s（请改用 built-in:）", orig)
	}
	path := orig
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", orig, err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", orig, err)
	}
	return img, nil
}

func drawLine(ctx *canvas.Context, ln layout.Line) {
	w := ln.Width
	if w <= 0 {
		w = layout.DefaultStrokeWidth
	}
	ctx.SetStrokeColor(colorFromLayout(ln.Color))
	ctx.SetStrokeWidth(w)
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(ln.X2-ln.X1, ln.Y2-ln.Y1)
	ctx.DrawPath(ln.X1, ln.Y1, p)
}

func drawShape(ctx *canvas.Context, x, y, w, h float64, sh layout.ShapeBox) {
	sw := sh.StrokeWidth
	if sw <= 0 {
		sw = layout.DefaultStrokeWidth
	}
	if sh.Fill != nil {
		ctx.SetFillColor(colorFromLayout(*sh.Fill))
	} else {
		ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
	}
	ctx.SetStrokeColor(colorFromLayout(sh.Stroke))
	ctx.SetStrokeWidth(sw)

	switch sh.Shape {
	case "ellipse":
		ctx.DrawPath(x+w/2, y+h/2, canvas.Ellipse(w/2, h/2))
	case "rounded-rectangle":
		radius := sh.CornerRadius
		if radius <= 0 {
			radius = min(w, h) / 8
		}
		ctx.DrawPath(x, y, canvas.RoundedRectangle(w, h, min(radius, min(w, h)/2)))
	case "triangle":
		p := &canvas.Path{}
		p.MoveTo(w/2, 0)
		p.LineTo(w, h)
		p.LineTo(0, h)
		p.Close()
		ctx.DrawPath(x, y, p)
	default:
		// 未知形状按矩形绘制
		ctx.DrawPath(x, y, canvas.Rectangle(w, h))
	}
}

func (r *Renderer) fontFace(font layout.Font, col layout.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	size := font.Size
	if size <= 0 {
		size = 10 * units.PtToMm
	}
	return family.Face(toPt(size), colorFromLayout(col), style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.Font) (*canvas.FontFamily, canvas.FontStyle, error) {
	name := font.Family
	if !fonts.Has(name) {
		name = fonts.DefaultFamily
	}
	bold := font.Weight == "bold"
	key := fmt.Sprintf("%s|%t|%t", name, bold, font.Italic)

	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := canvas.FontRegular
	if bold {
		style = canvas.FontBold
	}
	if font.Italic {
		style |= canvas.FontItalic
	}
	data, err := fonts.Load(name, bold, font.Italic)
	if err != nil {
		return nil, canvas.FontRegular, err
	}
	family := canvas.NewFontFamily(key)
	if err := family.LoadFont(data, 0, style); err != nil {
		return nil, canvas.FontRegular, fmt.Errorf("加载字体 %s 失败: %w", key, err)
	}
	r.fontFamilies[key] = &fontFamilyEntry{family: family, style: style}
	return family, style, nil
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}

// toPt 将毫米(mm)转换为点(pt)。
func toPt(mm float64) float64 { return mm * units.MmToPt }
