package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/Tsukikage7/elected-scheduler/logger"
)

// maxStackFrames 失败日志中保留的调用栈帧数.
const maxStackFrames = 10

// JobFunc 任务执行函数.
type JobFunc func(ctx context.Context) error

// Job 调度任务.
//
// 任务由唯一名称标识，挂载的多个时间模式之间为"或"关系.
// 回调和时间模式应在 Poller 启动前设置完毕.
type Job struct {
	name string

	mu        sync.RWMutex
	handler   JobFunc
	schedules []*Schedule
	logger    logger.Logger
}

// NewJob 创建任务，可选地同时指定处理函数.
func NewJob(name string, fn ...JobFunc) *Job {
	j := &Job{name: name}
	if len(fn) > 0 {
		j.handler = fn[0]
	}
	return j
}

// Name 返回任务名称.
func (j *Job) Name() string {
	return j.name
}

// Run 设置处理函数，替换已有的处理函数.
func (j *Job) Run(fn JobFunc) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.handler = fn
	return j
}

// Handler 返回当前处理函数.
func (j *Job) Handler() JobFunc {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.handler
}

// At 按字段描述添加时间模式.
func (j *Job) At(at At) *Job {
	return j.AddSchedule(NewSchedule(at))
}

// Cron 按 Cron 表达式添加时间模式.
func (j *Job) Cron(expr string) (*Job, error) {
	s, err := ParseCron(expr)
	if err != nil {
		return j, err
	}
	return j.AddSchedule(s), nil
}

// AddSchedule 添加时间模式，与已有模式相同时忽略.
func (j *Job) AddSchedule(s *Schedule) *Job {
	if s == nil {
		return j
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, existing := range j.schedules {
		if existing.Equal(s) {
			return j
		}
	}
	j.schedules = append(j.schedules, s)
	return j
}

// Schedules 返回已挂载的时间模式副本.
func (j *Job) Schedules() []*Schedule {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]*Schedule, len(j.schedules))
	copy(out, j.schedules)
	return out
}

// WithLogger 设置任务日志记录器.
func (j *Job) WithLogger(log logger.Logger) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logger = log
	return j
}

// adoptLogger 在任务未设置日志记录器时使用 Poller 的日志记录器.
func (j *Job) adoptLogger(log logger.Logger) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.logger == nil {
		j.logger = log
	}
}

func (j *Job) log() logger.Logger {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.logger == nil {
		return logger.NewNop()
	}
	return j.logger
}

// Matches 判断任务在给定时间是否到期，任一时间模式匹配即可.
func (j *Job) Matches(t time.Time) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, s := range j.schedules {
		if s.Matches(t) {
			return true
		}
	}
	return false
}

// Execute 执行处理函数.
//
// 处理函数返回的错误和 panic 都在此处被捕获，以 error 级别记录类型、消息和
// 最多 10 帧调用栈后返回 false；成功时返回 true 且不记录日志.
func (j *Job) Execute(ctx context.Context) (ok bool) {
	handler := j.Handler()
	if handler == nil {
		j.log().Errorf("[Job] 任务执行失败: %s [error:%v]", j.name, ErrHandlerNil)
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			j.logFailure(fmt.Sprintf("%T", r), fmt.Sprint(r), panicFrames())
			ok = false
		}
	}()

	if err := handler(ctx); err != nil {
		j.logFailure(fmt.Sprintf("%T", err), err.Error(), errorFrames(err))
		return false
	}
	return true
}

func (j *Job) logFailure(typ, msg string, frames []string) {
	j.log().With(
		logger.String("job", j.name),
		logger.String("type", typ),
	).Errorf("[Job] 任务执行失败: %s [%s: %s]\n  %s", j.name, typ, msg, strings.Join(frames, "\n  "))
}

// String 返回任务的调试表示.
func (j *Job) String() string {
	schedules := j.Schedules()
	rendered := make([]string, len(schedules))
	for i, s := range schedules {
		rendered[i] = s.String()
	}
	return fmt.Sprintf("Job{name=%q schedules=%q}", j.name, rendered)
}

// stackTracer github.com/pkg/errors 创建的错误携带的调用栈.
type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// errorFrames 优先使用错误自带的调用栈，否则使用当前调用栈.
func errorFrames(err error) []string {
	var st stackTracer
	if errors.As(err, &st) {
		trace := st.StackTrace()
		if len(trace) > maxStackFrames {
			trace = trace[:maxStackFrames]
		}
		frames := make([]string, len(trace))
		for i, f := range trace {
			frames[i] = fmt.Sprintf("%n (%s:%d)", f, f, f)
		}
		return frames
	}
	return callerFrames(3, false)
}

// panicFrames 返回 panic 发生处的调用栈.
func panicFrames() []string {
	return callerFrames(3, true)
}

// callerFrames 收集调用栈. afterPanic 为 true 时从 runtime.gopanic 之后开始截取.
func callerFrames(skip int, afterPanic bool) []string {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip, pcs)
	iter := runtime.CallersFrames(pcs[:n])

	var all []runtime.Frame
	for {
		frame, more := iter.Next()
		all = append(all, frame)
		if !more {
			break
		}
	}

	if afterPanic {
		for i, f := range all {
			if f.Function == "runtime.gopanic" {
				all = all[i+1:]
				break
			}
		}
	}

	var frames []string
	for _, f := range all {
		if len(frames) == maxStackFrames {
			break
		}
		frames = append(frames, fmt.Sprintf("%s (%s:%d)", f.Function, shortFile(f.File), f.Line))
	}
	return frames
}

func shortFile(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		if j := strings.LastIndex(path[:i], "/"); j >= 0 {
			return path[j+1:]
		}
	}
	return path
}
