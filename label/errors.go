package label

import "errors"

var (
	// ErrNotFound 表示引用的元素不存在（或已被删除）。
	ErrNotFound = errors.New("label: 元素不存在")
	// ErrEmptyValue 表示条码值在去除空白后为空。
	ErrEmptyValue = errors.New("label: 条码值为空")
	// ErrInvalidPayload 表示元素载荷或尺寸不合法。
	ErrInvalidPayload = errors.New("label: 元素数据无效")
	// ErrKindMismatch 表示更新时试图改变元素种类。
	ErrKindMismatch = errors.New("label: 不能改变元素种类")
)
