package election

import (
	"errors"
	"fmt"
)

var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("election: config is required")

	// ErrNilLocker 锁为空.
	ErrNilLocker = errors.New("election: locker is required")

	// ErrEmptyKey 选举键为空.
	ErrEmptyKey = errors.New("election: key is required")

	// ErrUnsupportedBackend 不支持的后端.
	ErrUnsupportedBackend = errors.New("election: unsupported backend")
)

// ConfigError 配置错误.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("election config error [%s]: %s", e.Field, e.Message)
}
