package lock

import "errors"

var (
	// ErrLockNotAcquired 无法获取锁.
	ErrLockNotAcquired = errors.New("lock: failed to acquire lock")

	// ErrLockNotHeld 锁未被持有（释放或延长时）.
	ErrLockNotHeld = errors.New("lock: lock not held")

	// ErrLockExpired 锁已过期.
	ErrLockExpired = errors.New("lock: lock expired")

	// ErrNilClient 客户端为空.
	ErrNilClient = errors.New("lock: client is required")

	// ErrNilStore 存储为空.
	ErrNilStore = errors.New("lock: store is required")

	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("lock: config is required")

	// ErrEmptyAddr 地址为空.
	ErrEmptyAddr = errors.New("lock: redis addr is required")
)
