package app

import (
	"context"
	"sort"

	"github.com/Tsukikage7/elected-scheduler/logger"
)

// CleanupFunc 清理函数.
type CleanupFunc func(ctx context.Context) error

// Cleanup 清理任务，Priority 越小越先执行，相同优先级按注册顺序执行.
type Cleanup struct {
	Name     string
	Fn       CleanupFunc
	Priority int
}

// cleanups 按优先级排序的清理任务列表.
type cleanups []Cleanup

// sorted 返回按优先级稳定排序的副本.
func (cs cleanups) sorted() cleanups {
	out := make(cleanups, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// run 依次执行清理任务，单个失败只记录日志，返回失败数.
func (cs cleanups) run(ctx context.Context, log logger.Logger) (failed int) {
	if len(cs) == 0 {
		return 0
	}
	log.With(logger.Int("count", len(cs))).Debug("[App] running cleanups")

	for _, c := range cs.sorted() {
		if err := c.Fn(ctx); err != nil {
			failed++
			log.With(logger.String("cleanup", c.Name), logger.Err(err)).Error("[App] cleanup failed")
			continue
		}
		log.With(logger.String("cleanup", c.Name)).Debug("[App] cleanup done")
	}
	return failed
}
