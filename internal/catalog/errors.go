package catalog

import (
	"errors"
	"fmt"
)

// ErrIndexUnavailable 表示索引无法使用：对象缺失、解压失败或 JSON 结构不符。
var ErrIndexUnavailable = errors.New("index unavailable")

// ErrIndexNotFound 表示两种索引对象都不存在，属于 ErrIndexUnavailable。
var ErrIndexNotFound = fmt.Errorf("%w: no index object in store", ErrIndexUnavailable)

func unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrIndexUnavailable, fmt.Sprintf(format, args...))
}
