package scheduler

import (
	"fmt"
	"sync/atomic"
)

// Category 轮询统计类别.
type Category int

const (
	// NoMatch 领导者轮询时任务未到期.
	NoMatch Category = iota
	// ProcessedJob 领导者轮询时任务到期并已派发.
	ProcessedJob
	// SleepSlave 非领导者轮询，进入退避.
	SleepSlave

	categoryCount
)

var categoryNames = [categoryCount]string{
	NoMatch:      "no_match",
	ProcessedJob: "processed_job",
	SleepSlave:   "sleep_slave",
}

// String 返回类别名称.
func (c Category) String() string {
	if c < 0 || c >= categoryCount {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Categories 返回全部统计类别.
func Categories() []Category {
	return []Category{NoMatch, ProcessedJob, SleepSlave}
}

// Stats 并发安全的计数器集合，类别固定，计数只增不减.
type Stats struct {
	counters [categoryCount]atomic.Int64
}

// NewStats 创建计数器集合.
func NewStats() *Stats {
	return &Stats{}
}

// Increment 递增指定类别的计数并返回新值.
//
// 未知类别属于编程错误，会触发 panic.
func (s *Stats) Increment(c Category) int64 {
	return s.counter(c).Add(1)
}

// Count 读取指定类别的计数.
func (s *Stats) Count(c Category) int64 {
	return s.counter(c).Load()
}

// Snapshot 返回全部计数的快照.
func (s *Stats) Snapshot() map[string]int64 {
	out := make(map[string]int64, categoryCount)
	for _, c := range Categories() {
		out[c.String()] = s.Count(c)
	}
	return out
}

func (s *Stats) counter(c Category) *atomic.Int64 {
	if c < 0 || c >= categoryCount {
		panic(fmt.Sprintf("scheduler: unknown stats category %d", int(c)))
	}
	return &s.counters[c]
}
