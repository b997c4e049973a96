package layout

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Bytes 返回载荷的规范 JSON 编码（紧凑、字段顺序固定）。
func (p *Payload) Bytes() ([]byte, error) {
	return json.Marshal(p)
}

// Digest 返回规范 JSON 的 blake2b-256 十六进制摘要，用作打印作业键与确定性校验。
func (p *Payload) Digest() (string, error) {
	b, err := p.Bytes()
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Empty reports whether the payload has no records.
func (p *Payload) Empty() bool { return p == nil || len(p.Records) == 0 }
