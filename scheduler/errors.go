package scheduler

import "errors"

// 预定义错误.
var (
	// ErrNoJobs 没有可运行的任务.
	ErrNoJobs = errors.New("scheduler: no jobs to run")

	// ErrNotStopped 调度器不处于 stopped 状态.
	ErrNotStopped = errors.New("scheduler: poller is not stopped")

	// ErrNotRunning 调度器不处于 running 状态.
	ErrNotRunning = errors.New("scheduler: poller is not running")

	// ErrTransition 状态切换过程中发生异常.
	ErrTransition = errors.New("scheduler: state transition failed")

	// ErrKeyEmpty 调度键为空.
	ErrKeyEmpty = errors.New("scheduler: poller key is required")

	// ErrElectorNil 选举器为空.
	ErrElectorNil = errors.New("scheduler: elector is required")

	// ErrJobNameEmpty 任务名称为空.
	ErrJobNameEmpty = errors.New("scheduler: job name is required")

	// ErrHandlerNil 任务处理函数为空.
	ErrHandlerNil = errors.New("scheduler: job handler is required")

	// ErrScheduleInvalid 无效的调度表达式.
	ErrScheduleInvalid = errors.New("scheduler: invalid schedule expression")
)
