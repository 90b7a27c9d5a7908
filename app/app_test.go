package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Tsukikage7/elected-scheduler/election"
	"github.com/Tsukikage7/elected-scheduler/logger"
	"github.com/Tsukikage7/elected-scheduler/scheduler"
)

// recorder 记录事件顺序.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// fakeComponent 测试组件.
type fakeComponent struct {
	name     string
	startErr error
	started  atomic.Bool
	stopped  atomic.Bool
}

func (c *fakeComponent) Start(ctx context.Context) error {
	c.started.Store(true)
	if c.startErr != nil {
		return c.startErr
	}
	<-ctx.Done()
	return nil
}

func (c *fakeComponent) Stop(context.Context) error {
	c.stopped.Store(true)
	return nil
}

func (c *fakeComponent) Name() string { return c.name }

// AppTestSuite 应用测试套件.
type AppTestSuite struct {
	suite.Suite
}

func TestAppSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}

func (s *AppTestSuite) newApp(opts ...Option) *Application {
	return New(append([]Option{Logger(logger.NewNop()), GracefulTimeout(time.Second)}, opts...)...)
}

func (s *AppTestSuite) runAsync(a *Application) <-chan error {
	done := make(chan error, 1)
	go func() { done <- a.Run() }()
	return done
}

func (s *AppTestSuite) wait(done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		s.FailNow("application did not stop")
		return nil
	}
}

func (s *AppTestSuite) TestNew_RequiresLogger() {
	s.Panics(func() { New() })
}

func (s *AppTestSuite) TestDefaults() {
	a := s.newApp()
	s.Equal("elected-scheduler", a.Name())
	s.Equal("dev", a.Version())

	a = s.newApp(Name("reports"), Version("1.2.3"))
	s.Equal("reports", a.Name())
	s.Equal("1.2.3", a.Version())
}

func (s *AppTestSuite) TestRun_StopsComponents() {
	c := &fakeComponent{name: "a"}
	a := s.newApp().Use(c)

	done := s.runAsync(a)
	s.Eventually(c.started.Load, time.Second, 5*time.Millisecond)

	a.Stop()
	s.NoError(s.wait(done))
	s.True(c.stopped.Load())
	s.Error(a.Context().Err())
}

func (s *AppTestSuite) TestRun_ComponentStartError() {
	boom := errors.New("listen failed")
	healthy := &fakeComponent{name: "healthy"}
	broken := &fakeComponent{name: "broken", startErr: boom}
	a := s.newApp().Use(healthy, broken)

	err := s.wait(s.runAsync(a))
	s.ErrorIs(err, boom)
	s.True(healthy.stopped.Load())
	s.True(broken.stopped.Load())
}

func (s *AppTestSuite) TestRun_AlreadyRunning() {
	c := &fakeComponent{name: "a"}
	a := s.newApp().Use(c)

	done := s.runAsync(a)
	s.Eventually(c.started.Load, time.Second, 5*time.Millisecond)
	s.ErrorIs(a.Run(), ErrRunning)

	a.Stop()
	s.NoError(s.wait(done))
}

func (s *AppTestSuite) TestRun_NoComponents() {
	a := s.newApp()
	a.Stop()
	s.NoError(a.Run())
}

func (s *AppTestSuite) TestHooksAndCleanups() {
	rec := &recorder{}
	hook := func(name string) Hook {
		return func(context.Context) error {
			rec.add(name)
			return nil
		}
	}
	cleanup := func(name string) CleanupFunc {
		return func(context.Context) error {
			rec.add(name)
			return nil
		}
	}

	hooks := NewHooks().
		BeforeStart(hook("before_start")).
		AfterStart(hook("after_start")).
		BeforeStop(hook("before_stop")).
		AfterStop(hook("after_stop")).
		Build()

	a := s.newApp(
		SetHooks(hooks),
		RegisterCleanup("late", cleanup("cleanup:late"), 10),
		RegisterCleanup("early", cleanup("cleanup:early"), 1),
		RegisterCloser("closer", closerFunc(func() error {
			rec.add("cleanup:closer")
			return errors.New("close failed")
		}), 5),
	)
	a.Stop()
	s.Require().NoError(a.Run())

	s.Equal([]string{
		"before_start",
		"after_start",
		"before_stop",
		"cleanup:early",
		"cleanup:closer",
		"cleanup:late",
		"after_stop",
	}, rec.list())
}

func (s *AppTestSuite) TestBeforeStartError() {
	boom := errors.New("not ready")
	c := &fakeComponent{name: "a"}
	hooks := NewHooks().BeforeStart(func(context.Context) error { return boom }).Build()
	a := s.newApp(SetHooks(hooks)).Use(c)

	err := a.Run()
	s.ErrorIs(err, boom)
	s.Contains(err.Error(), "before start hook")
	s.False(c.started.Load())

	// 失败后可以重新运行
	a.opts.hooks = nil
	a.Stop()
	s.NoError(a.Run())
}

func (s *AppTestSuite) TestPollerComponent() {
	if testing.Short() {
		s.T().Skip("uses the real clock")
	}

	var runs atomic.Int64
	p := scheduler.MustNewPoller("app_test", election.NewManual(time.Second, true))
	p.Add(scheduler.NewJob("tick", func(context.Context) error {
		runs.Add(1)
		return nil
	}).At(scheduler.At{Seconds: scheduler.All}))

	comp := NewPollerComponent(p)
	s.Equal("poller:app_test", comp.Name())

	a := s.newApp().Use(comp)
	done := s.runAsync(a)

	s.Eventually(func() bool { return runs.Load() > 0 }, 3*time.Second, 10*time.Millisecond)
	s.True(p.Running())

	a.Stop()
	s.NoError(s.wait(done))
	s.True(p.Stopped())
}

func (s *AppTestSuite) TestPollerComponent_StartError() {
	p := scheduler.MustNewPoller("empty", election.NewManual(time.Second, true))
	a := s.newApp().Use(NewPollerComponent(p))

	err := s.wait(s.runAsync(a))
	s.ErrorIs(err, scheduler.ErrNoJobs)
	s.True(p.Stopped())
}

func (s *AppTestSuite) newTickPoller(key string, elector scheduler.Elector) *scheduler.Poller {
	p := scheduler.MustNewPoller(key, elector)
	p.Add(scheduler.NewJob("noop", func(context.Context) error { return nil }).At(scheduler.At{}))
	return p
}

func (s *AppTestSuite) TestPollerComponent_StopBeforeStart() {
	elector := election.NewManual(time.Second, true)
	p := s.newTickPoller("late_start", elector)
	comp := NewPollerComponent(p)

	s.Require().NoError(comp.Stop(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.ErrorIs(comp.Start(ctx), context.Canceled)

	s.True(p.Stopped())
	s.False(p.Leader())
	s.Zero(elector.Releases(), "never started, nothing to release")
}

func (s *AppTestSuite) TestPollerComponent_StopsOnCancel() {
	elector := election.NewManual(time.Second, true)
	p := s.newTickPoller("cancel", elector)
	comp := NewPollerComponent(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- comp.Start(ctx) }()

	s.Eventually(p.Running, time.Second, time.Millisecond)
	cancel()
	s.NoError(s.wait(done))

	s.True(p.Stopped())
	s.EqualValues(1, elector.Releases())

	// 随后的 Stop 不会重复释放
	s.NoError(comp.Stop(context.Background()))
	s.EqualValues(1, elector.Releases())
}

// slowComponent Start 延迟后才进入运行.
type slowComponent struct {
	fakeComponent
	delay        time.Duration
	returned     atomic.Bool
	stoppedEarly atomic.Bool
}

func (c *slowComponent) Start(ctx context.Context) error {
	time.Sleep(c.delay)
	err := c.fakeComponent.Start(ctx)
	c.returned.Store(true)
	return err
}

func (c *slowComponent) Stop(ctx context.Context) error {
	if !c.returned.Load() {
		c.stoppedEarly.Store(true)
	}
	return c.fakeComponent.Stop(ctx)
}

func (s *AppTestSuite) TestShutdownWaitsForStart() {
	c := &slowComponent{fakeComponent: fakeComponent{name: "slow"}, delay: 50 * time.Millisecond}
	a := s.newApp().Use(c)

	a.Stop()
	s.Require().NoError(a.Run())

	s.True(c.started.Load())
	s.True(c.stopped.Load())
	s.False(c.stoppedEarly.Load())
}

func (s *AppTestSuite) TestShutdownDuringStartup_PollerStopped() {
	elector := election.NewManual(time.Second, true)
	p := s.newTickPoller("startup", elector)
	a := s.newApp().Use(NewPollerComponent(p))

	a.Stop()
	s.Require().NoError(a.Run())
	s.True(p.Stopped())
	s.False(p.Leader())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
