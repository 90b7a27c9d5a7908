// Package scheduler 提供基于领导者选举的定时任务调度功能.
//
// 特性：
//   - 六字段时间模式（秒 分 时 日 月 周），支持数值、名称、区间和嵌套组合
//   - 一个任务可挂载多个时间模式，任一匹配即触发
//   - 仅在持有领导权时执行任务，同一调度键下同一时刻最多一个实例执行
//   - 非领导者按超时时间的比例退避，避免频繁访问选举后端
//   - 任务异步派发，单个任务失败或阻塞不影响轮询循环
//
// 示例：
//
//	elector := election.NewLockElector(lock.NewRedis(client), "reports", 5*time.Second)
//	p, _ := scheduler.NewPoller("reports", elector, scheduler.WithLogger(log))
//
//	p.Add(scheduler.NewJob("daily-report", sendReport).
//	    At(scheduler.At{Minutes: 15, Hours: scheduler.Range(8, 10), Dows: scheduler.Range(1, 5)}),
//	)
//
//	p.Start()
//	defer p.Stop()
package scheduler

import "time"

// Elector 领导者选举接口.
//
// 每个调度键对应一个 Elector，由 Poller 在 Start 与 Stop 之间独占.
type Elector interface {
	// IsLeader 返回当前实例是否为领导者，不能阻塞.
	IsLeader() bool

	// Timeout 返回选举超时时间，用于计算非领导者的退避时长.
	Timeout() time.Duration

	// Release 释放当前实例持有的选举资源，可重复调用.
	Release() error
}

// MetricsRecorder 指标记录接口.
type MetricsRecorder interface {
	// IncOutcome 记录一次轮询结果（no_match/processed_job/sleep_slave）.
	IncOutcome(key, category string)

	// ObserveExecution 记录一次任务执行结果与耗时.
	ObserveExecution(key, job string, ok bool, d time.Duration)

	// SetLeader 记录当前实例是否为领导者.
	SetLeader(key string, leader bool)
}
