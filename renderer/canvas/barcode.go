package canvasrenderer

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/aztec"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/datamatrix"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/pdf417"
	"github.com/boombuler/barcode/qr"
	"github.com/tdewolff/canvas"

	"github.com/ByLCY/labelcanvas/label"
	"github.com/ByLCY/labelcanvas/layout"
)

// ErrNotEncodable 表示条码值不符合所选条码标准的字符集或长度要求。
var ErrNotEncodable = errors.New("canvasrenderer: 条码值无法按该标准编码")

// captionGap 为条码与下方人眼可读文本之间的间距（mm）。
const captionGap = 0.5

// EncodeBarcode 按条码标准编码 value，返回逐模块的位图（一个像素即一个模块）。
// EAN13 接受 12 或 13 位数字，EAN8 接受 7 或 8 位，UPC 接受 11 或 12 位；缺省的校验位会自动补齐。
func EncodeBarcode(sym label.Symbology, value string) (barcode.Barcode, error) {
	var (
		bc  barcode.Barcode
		err error
	)
	switch sym {
	case label.CODE128:
		bc, err = code128.Encode(value)
	case label.CODE39:
		bc, err = code39.Encode(strings.ToUpper(value), false, false)
	case label.EAN13:
		if err := digits(value, 12, 13); err != nil {
			return nil, err
		}
		bc, err = ean.Encode(value)
	case label.EAN8:
		if err := digits(value, 7, 8); err != nil {
			return nil, err
		}
		bc, err = ean.Encode(value)
	case label.UPC:
		// UPC-A 等价于首位为 0 的 EAN-13。
		if err := digits(value, 11, 12); err != nil {
			return nil, err
		}
		bc, err = ean.Encode("0" + value)
	case label.QR:
		bc, err = qr.Encode(value, qr.M, qr.Auto)
	case label.DATAMATRIX:
		bc, err = datamatrix.Encode(value)
	case label.PDF417:
		bc, err = pdf417.Encode(value, 2)
	case label.AZTEC:
		bc, err = aztec.Encode([]byte(value), aztec.DEFAULT_EC_PERCENT, aztec.DEFAULT_LAYERS)
	default:
		return nil, fmt.Errorf("%w: 未知的条码类型 %q", ErrNotEncodable, sym)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", ErrNotEncodable, sym, value, err)
	}
	return bc, nil
}

// ValidateBarcode reports whether value can be encoded with sym.
func ValidateBarcode(sym label.Symbology, value string) error {
	_, err := EncodeBarcode(sym, value)
	return err
}

func digits(value string, lengths ...int) error {
	for _, r := range value {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: 只能包含数字，收到 %q", ErrNotEncodable, value)
		}
	}
	for _, n := range lengths {
		if len(value) == n {
			return nil
		}
	}
	return fmt.Errorf("%w: 长度应为 %v 位，收到 %d 位", ErrNotEncodable, lengths, len(value))
}

// drawBarcode 以矢量矩形绘制条码模块：一维码铺满元素宽度，二维码保持正方形模块并居中。
func (r *Renderer) drawBarcode(ctx *canvas.Context, rec layout.Record) error {
	bb := *rec.Barcode
	sym, err := label.ParseSymbology(bb.Symbology)
	if err != nil {
		return err
	}
	bc, err := EncodeBarcode(sym, bb.Value)
	if err != nil {
		return err
	}
	bounds := bc.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return fmt.Errorf("%w: 编码结果为空", ErrNotEncodable)
	}

	codeHeight := rec.Height
	var face *canvas.FontFace
	if bb.ShowText {
		face, err = r.fontFace(bb.Font, bb.Color)
		if err != nil {
			return err
		}
		codeHeight -= face.Metrics().LineHeight + captionGap
		if codeHeight <= 0 {
			codeHeight = rec.Height
			face = nil
		}
	}

	ctx.SetFillColor(colorFromLayout(bb.Color))
	ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
	ctx.SetStrokeWidth(0)

	if bc.Metadata().Dimensions == 1 {
		module := rec.Width / float64(cols)
		// 连续的深色模块合并为一个矩形
		for x := 0; x < cols; {
			if !dark(bc, bounds.Min.X+x, bounds.Min.Y) {
				x++
				continue
			}
			start := x
			for x < cols && dark(bc, bounds.Min.X+x, bounds.Min.Y) {
				x++
			}
			ctx.DrawPath(rec.X+float64(start)*module, rec.Y, canvas.Rectangle(float64(x-start)*module, codeHeight))
		}
	} else {
		module := min(rec.Width/float64(cols), codeHeight/float64(rows))
		offX := rec.X + (rec.Width-module*float64(cols))/2
		offY := rec.Y + (codeHeight-module*float64(rows))/2
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				if dark(bc, bounds.Min.X+x, bounds.Min.Y+y) {
					ctx.DrawPath(offX+float64(x)*module, offY+float64(y)*module, canvas.Rectangle(module, module))
				}
			}
		}
	}

	if face != nil {
		caption := bc.Content()
		baseline := rec.Y + codeHeight + captionGap + face.Metrics().Ascent
		ctx.DrawText(rec.X+rec.Width/2, baseline, canvas.NewTextLine(face, caption, canvas.Center))
	}
	return nil
}

func dark(bc barcode.Barcode, x, y int) bool {
	r, g, b, _ := bc.At(x, y).RGBA()
	return r+g+b < 3*0x8000
}
