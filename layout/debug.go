package layout

import (
	"encoding/json"
	"os"
)

// WriteJSON 将载荷以缩进 JSON 输出，便于调试或可视化。
func WriteJSON(p *Payload, path string) error {
	if p == nil {
		return nil
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON 读取 WriteJSON 或打印假脱机目录中的载荷文件。
func ReadJSON(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
