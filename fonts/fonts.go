// Package fonts 提供渲染器使用的内置字体（Go 字体家族）。
package fonts

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultFamily 是样式未指定或指定了未知字体族时使用的字体族。
const DefaultFamily = "go"

// 下标为 bold<<1 | italic。
var builtin = map[string][4][]byte{
	"go":     {goregular.TTF, goitalic.TTF, gobold.TTF, gobolditalic.TTF},
	"gomono": {gomono.TTF, gomonoitalic.TTF, gomonobold.TTF, gomonobolditalic.TTF},
}

// Load 返回内置字体的 TTF 字节。family 不区分大小写，"embed:" 与 "built-in:" 前缀会被忽略。
func Load(family string, bold, italic bool) ([]byte, error) {
	key := normalize(family)
	faces, ok := builtin[key]
	if !ok {
		return nil, fmt.Errorf("fonts: 未知的内置字体 %q", family)
	}
	idx := 0
	if bold {
		idx |= 2
	}
	if italic {
		idx |= 1
	}
	return faces[idx], nil
}

// Has reports whether family names a built-in font family.
func Has(family string) bool {
	_, ok := builtin[normalize(family)]
	return ok
}

// Families 返回全部内置字体族名（已排序）。
func Families() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(family string) string {
	f := strings.TrimSpace(strings.ToLower(family))
	f = strings.TrimPrefix(f, "embed:")
	f = strings.TrimPrefix(f, "built-in:")
	f = strings.TrimPrefix(f, "builtin:")
	return strings.ReplaceAll(f, " ", "")
}
