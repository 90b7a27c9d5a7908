package election

import (
	"sync/atomic"
	"time"
)

// Manual 手动切换的选举.
//
// Release 不改变领导状态，适用于单节点部署.
type Manual struct {
	leader   atomic.Bool
	timeout  time.Duration
	releases atomic.Int64
}

// NewManual 创建手动选举.
func NewManual(timeout time.Duration, leader bool) *Manual {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := &Manual{timeout: timeout}
	m.leader.Store(leader)
	return m
}

// SetLeader 设置领导状态.
func (m *Manual) SetLeader(leader bool) {
	m.leader.Store(leader)
}

// IsLeader 返回当前实例是否为领导者.
func (m *Manual) IsLeader() bool {
	return m.leader.Load()
}

// Timeout 返回选举超时时间.
func (m *Manual) Timeout() time.Duration {
	return m.timeout
}

// Release 记录释放次数.
func (m *Manual) Release() error {
	m.releases.Add(1)
	return nil
}

// Releases 返回 Release 被调用的次数.
func (m *Manual) Releases() int64 {
	return m.releases.Load()
}
