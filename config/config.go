// Package config 读写 TOML 格式的用户设置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"

	"github.com/ByLCY/labelcanvas/units"
)

// FileName 是设置文件在配置目录下的文件名。
const FileName = "settings.toml"

// Settings 保存编辑器与打印相关的用户设置。长度均以毫米表示。
type Settings struct {
	Unit           units.Unit `toml:"unit"`
	Language       string     `toml:"language"`
	Zoom           float64    `toml:"zoom"`
	MinLineLength  float64    `toml:"min_line_length"`
	StrictPayload  bool       `toml:"strict_payload"`
	DefaultPrinter string     `toml:"default_printer"`
	SpoolDir       string     `toml:"spool_dir,omitempty"`
	LabelWidth     float64    `toml:"label_width"`
	LabelHeight    float64    `toml:"label_height"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Unit:           units.UnitMM,
		Language:       "zh-CN",
		Zoom:           1,
		MinLineLength:  0.5,
		StrictPayload:  true,
		DefaultPrinter: "PDF",
		LabelWidth:     100,
		LabelHeight:    50,
	}
}

// DefaultPath 返回 os.UserConfigDir()/labelcanvas/settings.toml。
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: 无法确定配置目录: %w", err)
	}
	return filepath.Join(dir, "labelcanvas", FileName), nil
}

// Load 读取设置文件；文件不存在时返回默认设置。文件中缺省的键保持默认值。
func Load(path string) (Settings, error) {
	s := Default()
	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("config: 解析 %s 失败: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("config: %s 中有未知的键 %v", path, undecoded)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save 校验后写入设置文件，必要时创建目录。
func (s Settings) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: 创建目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return fmt.Errorf("config: 写入 %s 失败: %w", path, err)
	}
	return f.Close()
}

// Validate 检查各字段取值范围，并把语言标签规范化（例如 zh-cn -> zh-CN）。
func (s *Settings) Validate() error {
	if s.Unit == units.UnitNone {
		return fmt.Errorf("config: 显示单位不能为空")
	}
	tag, err := language.Parse(s.Language)
	if err != nil {
		return fmt.Errorf("config: 无效的语言标签 %q: %w", s.Language, err)
	}
	s.Language = tag.String()
	if !positive(s.Zoom) {
		return fmt.Errorf("config: zoom 必须为正数: %w", units.ErrInvalidScale)
	}
	if !positive(s.MinLineLength) {
		return fmt.Errorf("config: min_line_length 必须为正数")
	}
	if !positive(s.LabelWidth) || !positive(s.LabelHeight) {
		return fmt.Errorf("config: 标签尺寸必须为正数 (%gx%g)", s.LabelWidth, s.LabelHeight)
	}
	return nil
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) }
