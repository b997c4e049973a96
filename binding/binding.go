// Package binding 把标签模板中的 ${path} 占位符替换为打印数据。
package binding

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Resolve 将文本中的 ${path.to.value} 或 ${path|默认值} 替换为 data 中的值，
// 并返回未能解析且没有默认值的路径（按出现顺序，去重），这些占位符原样保留。
func Resolve(text string, data any) (string, []string) {
	var missing []string
	seen := map[string]bool{}
	out := exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := exprPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		path, fallback := splitExpr(groups[1])
		if path == "" {
			return match
		}
		if val, ok := resolvePath(data, path); ok && val != nil {
			return format(val)
		}
		if fallback != nil {
			return *fallback
		}
		if !seen[path] {
			seen[path] = true
			missing = append(missing, path)
		}
		return match
	})
	return out, missing
}

// Placeholders 返回文本中出现的全部占位符路径（按出现顺序，去重）。
func Placeholders(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, groups := range exprPattern.FindAllStringSubmatch(text, -1) {
		path, _ := splitExpr(groups[1])
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}

// format 以十进制输出数字，避免 SKU、EAN 等长数字变成 1.2345678e+07。
func format(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func splitExpr(expr string) (string, *string) {
	path, fallback, ok := strings.Cut(expr, "|")
	path = strings.TrimSpace(path)
	if !ok {
		return path, nil
	}
	return path, &fallback
}

func resolvePath(data any, path string) (any, bool) {
	current := data
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		name, indexes := parseSegment(segment)
		if name != "" {
			var ok bool
			current, ok = descendMap(current, name)
			if !ok {
				return nil, false
			}
		}
		for _, idxStr := range indexes {
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, false
			}
			var ok bool
			current, ok = descendArray(current, idx)
			if !ok {
				return nil, false
			}
		}
	}
	return current, true
}

func parseSegment(segment string) (string, []string) {
	name := segment
	indexes := []string{}
	if i := strings.Index(segment, "["); i != -1 {
		name = segment[:i]
		rest := segment[i:]
		for len(rest) > 0 {
			if rest[0] != '[' {
				break
			}
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				break
			}
			indexes = append(indexes, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return name, indexes
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[key]
		return val, ok
	case map[string]string:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}

func descendArray(current any, idx int) (any, bool) {
	switch c := current.(type) {
	case []any:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	case []string:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}
