package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// KeyHasher 将缓存 key 转换为定长文件名，由 hasher 包实现。
type KeyHasher interface {
	Hash(key string) string
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// IOError 包装除 ErrNotFound 外的所有文件系统错误，保留操作名与 key 便于日志定位。
type IOError struct {
	Op  string
	Key string
	Err error
}

func (e *IOError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func newIOError(op, key string, err error) error {
	return &IOError{Op: op, Key: key, Err: err}
}

// tempPrefix 标记尚未 rename 的写入临时文件。宽限期内的临时文件属于进行中的写入，
// ResetAll 与 sweeper 都不会触碰；超期的才被视为崩溃遗留并回收。
const tempPrefix = ".tmp-"

// resetTempGrace 是 ResetAll 跳过临时文件的时间窗口。
const resetTempGrace = time.Minute

// IsTempName 判断目录中的文件名是否为写入临时文件。
func IsTempName(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}
