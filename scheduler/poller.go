package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Status 调度器状态.
type Status int32

const (
	// StatusStopped 已停止.
	StatusStopped Status = iota
	// StatusStarting 启动中.
	StatusStarting
	// StatusRunning 运行中.
	StatusRunning
	// StatusStopping 停止中.
	StatusStopping
)

// String 返回状态字符串.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Poller 轮询调度器.
//
// 后台循环每秒轮询一次：持有领导权时用同一时间点评估全部任务并异步派发到期任务，
// 否则按选举超时的比例退避. 状态流转为 stopped → starting → running → stopping → stopped.
type Poller struct {
	key     string
	elector Elector
	opts    *options
	stats   *Stats

	mu   sync.RWMutex
	jobs map[string]*Job

	// lifecycle 串行化 Start/Stop
	lifecycle sync.Mutex
	status    atomic.Int32
	stopCh    chan struct{}
	doneCh    chan struct{}

	ticks    atomic.Int64
	leader   atomic.Bool
	inflight sync.WaitGroup
	running  atomic.Int64
}

// NewPoller 创建轮询调度器.
func NewPoller(key string, elector Elector, opts ...Option) (*Poller, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	if elector == nil {
		return nil, ErrElectorNil
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Poller{
		key:     key,
		elector: elector,
		opts:    o,
		stats:   NewStats(),
		jobs:    make(map[string]*Job),
	}, nil
}

// MustNewPoller 创建轮询调度器，失败时 panic.
func MustNewPoller(key string, elector Elector, opts ...Option) *Poller {
	p, err := NewPoller(key, elector, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Key 返回调度键.
func (p *Poller) Key() string {
	return p.key
}

// Timeout 返回选举超时时间.
func (p *Poller) Timeout() time.Duration {
	return p.elector.Timeout()
}

// Stats 返回轮询统计.
func (p *Poller) Stats() *Stats {
	return p.stats
}

// Add 添加任务，同名任务会被替换.
func (p *Poller) Add(job *Job) *Poller {
	if job == nil {
		return p
	}
	job.adoptLogger(p.opts.logger)

	p.mu.Lock()
	p.jobs[job.Name()] = job
	p.mu.Unlock()

	p.logDebugf("%s 任务已添加: %s", p.label(0), job)
	return p
}

// Job 按名称获取任务.
func (p *Poller) Job(name string) (*Job, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	job, ok := p.jobs[name]
	return job, ok
}

// Jobs 返回按名称排序的任务列表.
func (p *Poller) Jobs() []*Job {
	p.mu.RLock()
	jobs := make([]*Job, 0, len(p.jobs))
	for _, job := range p.jobs {
		jobs = append(jobs, job)
	}
	p.mu.RUnlock()

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name() < jobs[k].Name() })
	return jobs
}

// Status 返回当前状态.
func (p *Poller) Status() Status {
	return Status(p.status.Load())
}

// Running 检查是否运行中.
func (p *Poller) Running() bool {
	return p.Status() == StatusRunning
}

// Stopped 检查是否已停止.
func (p *Poller) Stopped() bool {
	return p.Status() == StatusStopped
}

// Leader 返回最近一次轮询时是否为领导者.
func (p *Poller) Leader() bool {
	return p.leader.Load()
}

// InFlight 返回正在执行的任务数.
func (p *Poller) InFlight() int64 {
	return p.running.Load()
}

// Start 启动轮询循环并返回新状态.
//
// 非 stopped 状态下调用返回 ErrNotStopped，没有任务时返回 ErrNoJobs，均不改变状态.
// 启动过程是事务性的：BeforeStart 钩子失败或发生 panic 时回滚到 stopped 并返回 ErrTransition.
func (p *Poller) Start() (status Status, err error) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if !p.Stopped() {
		p.logDebugf("%s 非 stopped 状态，忽略启动", p.label(0))
		return p.Status(), ErrNotStopped
	}

	jobs := p.Jobs()
	if len(jobs) == 0 {
		return p.Status(), ErrNoJobs
	}
	for _, job := range jobs {
		if job.Name() == "" {
			return p.Status(), ErrJobNameEmpty
		}
		if job.Handler() == nil {
			return p.Status(), fmt.Errorf("%w: %s", ErrHandlerNil, job.Name())
		}
	}

	p.logDebugf("%s 启动中 ...", p.label(0))
	p.setStatus(StatusStarting)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrTransition, r)
		}
		if err != nil {
			p.logErrorf("%s 启动失败，回滚到 stopped [error:%v]", p.label(0), err)
			p.stopLoop()
			p.setStatus(StatusStopped)
			status = StatusStopped
		}
	}()

	if err := p.opts.hooks.runBeforeStart(p.opts.ctx, p); err != nil {
		return StatusStopped, fmt.Errorf("%w: %w", ErrTransition, err)
	}

	p.startLoop()
	p.setStatus(StatusRunning)
	p.logDebugf("%s 轮询已启动 [jobs:%d]", p.label(0), len(jobs))
	return StatusRunning, nil
}

// Stop 停止轮询循环、释放选举资源并返回新状态.
//
// 非 running 状态下调用返回 ErrNotRunning 且不改变状态.
// Stop 会等待当前轮询结束，但不会取消已派发的任务.
func (p *Poller) Stop() (Status, error) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if !p.Running() {
		p.logWarnf("%s 未运行，忽略停止", p.label(0))
		return p.Status(), ErrNotRunning
	}

	p.logDebugf("%s 停止中 ...", p.label(0))
	p.setStatus(StatusStopping)
	p.stopLoop()

	if err := p.elector.Release(); err != nil {
		p.logErrorf("%s 释放选举资源失败 [error:%v]", p.label(0), err)
	}
	p.setLeader(false)

	if err := p.opts.hooks.runAfterStop(p.opts.ctx, p); err != nil {
		p.logErrorf("%s 停止后钩子执行失败 [error:%v]", p.label(0), err)
	}

	p.setStatus(StatusStopped)
	p.logDebugf("%s 轮询已停止", p.label(0))
	return StatusStopped, nil
}

// Shutdown 优雅关闭：停止轮询并等待已派发的任务执行完毕.
func (p *Poller) Shutdown(ctx context.Context) error {
	if p.Running() {
		if _, err := p.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logDebugf("%s 优雅关闭完成", p.label(0))
		return nil
	case <-ctx.Done():
		p.logWarnf("%s 等待任务完成超时 [in_flight:%d]", p.label(0), p.InFlight())
		return ctx.Err()
	}
}

// String 返回调度器的调试表示.
func (p *Poller) String() string {
	p.mu.RLock()
	n := len(p.jobs)
	p.mu.RUnlock()
	return fmt.Sprintf("Poller{key=%q timeout=%q jobs=%d}", p.key, p.Timeout(), n)
}

func (p *Poller) setStatus(s Status) {
	p.status.Store(int32(s))
}

func (p *Poller) setLeader(leader bool) {
	p.leader.Store(leader)
	if p.opts.metrics != nil {
		p.opts.metrics.SetLeader(p.key, leader)
	}
}

// startLoop 启动后台轮询协程.
func (p *Poller) startLoop() {
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.loop(p.stopCh, p.doneCh)
}

// stopLoop 通知轮询协程退出并等待其结束.
func (p *Poller) stopLoop() {
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	<-p.doneCh
	p.stopCh, p.doneCh = nil, nil
}

// loop 轮询循环：每次轮询后对齐到下一个整秒.
func (p *Poller) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		tick := p.ticks.Add(1)
		p.safePoll(tick, stop)

		if !p.waitNextTick(stop) {
			return
		}
	}
}

// safePoll 执行一次轮询，单次轮询中的 panic 不会终止循环.
func (p *Poller) safePoll(tick int64, stop <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			p.logErrorf("%s 轮询异常: %T : %v\n%s", p.label(tick), r, r, debug.Stack())
		}
	}()
	p.pollOnce(tick, stop)
}

// pollOnce 领导者评估并派发到期任务，非领导者退避.
func (p *Poller) pollOnce(tick int64, stop <-chan struct{}) {
	if !p.elector.IsLeader() {
		p.setLeader(false)
		p.record(SleepSlave)
		p.logDebugf("%s 非领导者，退避中 ...", p.label(tick))
		p.sleepForFollower(stop)
		return
	}

	p.setLeader(true)
	now := p.opts.clock.Now()
	for _, job := range p.Jobs() {
		if !job.Matches(now) {
			p.record(NoMatch)
			continue
		}
		p.record(ProcessedJob)
		p.dispatch(job, now)
	}
}

func (p *Poller) record(c Category) {
	p.stats.Increment(c)
	if p.opts.metrics != nil {
		p.opts.metrics.IncOutcome(p.key, c.String())
	}
}

// dispatch 在独立协程中执行任务，不等待其完成.
func (p *Poller) dispatch(job *Job, tick time.Time) {
	p.inflight.Add(1)
	p.running.Add(1)

	go func() {
		defer p.inflight.Done()
		defer p.running.Add(-1)

		ctx := p.opts.ctx
		start := p.opts.clock.Now()
		ok := job.Execute(ctx)

		jc := &JobContext{
			Key:       p.key,
			Job:       job,
			Tick:      tick,
			StartTime: start,
			Duration:  p.opts.clock.Since(start),
			Success:   ok,
		}
		if p.opts.metrics != nil {
			p.opts.metrics.ObserveExecution(p.key, job.Name(), ok, jc.Duration)
		}
		p.runJobHooks(ctx, jc)
	}()
}

// runJobHooks 执行任务钩子，钩子中的 panic 只记录日志.
func (p *Poller) runJobHooks(ctx context.Context, jc *JobContext) {
	defer func() {
		if r := recover(); r != nil {
			p.logErrorf("%s 任务钩子异常 [job:%s] [panic:%v]", p.label(0), jc.Job.Name(), r)
		}
	}()
	if !jc.Success {
		p.opts.hooks.runErrorHooks(ctx, jc)
	}
	p.opts.hooks.runAfterHooks(ctx, jc)
}

// waitNextTick 等待到下一个整秒，收到停止信号时返回 false.
func (p *Poller) waitNextTick(stop <-chan struct{}) bool {
	now := p.opts.clock.Now()
	next := now.Truncate(time.Second).Add(time.Second)
	return p.sleep(next.Sub(now), stop)
}

// sleepForFollower 非领导者退避，时长为选举超时乘以退避比例.
func (p *Poller) sleepForFollower(stop <-chan struct{}) {
	d := time.Duration(float64(p.Timeout()) * p.opts.followerBackoff)
	if d <= 0 {
		return
	}
	p.sleep(d, stop)
}

func (p *Poller) sleep(d time.Duration, stop <-chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-p.opts.clock.After(d):
		return true
	}
}

// label 日志前缀，例如 [reports:running:12].
func (p *Poller) label(tick int64) string {
	if tick > 0 {
		return fmt.Sprintf("[%s:%s:%d]", p.key, p.Status(), tick)
	}
	return fmt.Sprintf("[%s:%s]", p.key, p.Status())
}

// 日志辅助方法.

func (p *Poller) logDebugf(format string, args ...any) {
	p.opts.logger.Debugf("[Poller] "+format, args...)
}

func (p *Poller) logWarnf(format string, args ...any) {
	p.opts.logger.Warnf("[Poller] "+format, args...)
}

func (p *Poller) logErrorf(format string, args ...any) {
	p.opts.logger.Errorf("[Poller] "+format, args...)
}
