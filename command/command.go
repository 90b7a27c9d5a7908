// Package command 将外部命令包装为调度任务.
package command

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Tsukikage7/elected-scheduler/config"
	"github.com/Tsukikage7/elected-scheduler/logger"
	"github.com/Tsukikage7/elected-scheduler/scheduler"
)

const (
	// maxOutput 错误信息中保留的输出长度上限.
	maxOutput = 512

	// waitDelay 命令被终止后等待输出管道关闭的时间.
	waitDelay = time.Second
)

// Runner 执行单个外部命令.
type Runner struct {
	name    string
	args    []string
	dir     string
	env     []string
	timeout time.Duration
	logger  logger.Logger
}

// NewRunner 根据任务配置创建命令执行器.
func NewRunner(cfg *config.JobConfig, log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{
		name:    cfg.Name,
		args:    cfg.Command,
		dir:     cfg.Dir,
		env:     cfg.Env,
		timeout: cfg.Timeout,
		logger:  log,
	}
}

// Run 执行命令，非零退出码或超时返回错误.
func (r *Runner) Run(ctx context.Context) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.args[0], r.args[1:]...)
	cmd.Dir = r.dir
	cmd.WaitDelay = waitDelay
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(ctx.Err(), "command %s timed out after %s", r.name, r.timeout)
	}
	if err != nil {
		if out := tail(stderr.String()); out != "" {
			return errors.Wrapf(err, "command %s failed: %s", r.name, out)
		}
		return errors.Wrapf(err, "command %s failed", r.name)
	}

	r.logger.With(
		logger.String("job", r.name),
		logger.Duration("elapsed", time.Since(start)),
	).Debugf("[Command] 命令执行完成 [output:%s]", tail(stdout.String()))
	return nil
}

// NewJob 根据任务配置创建调度任务.
func NewJob(cfg *config.JobConfig, log logger.Logger) (*scheduler.Job, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, errors.Errorf("command: job %s has no command", cfg.Name)
	}
	schedules, err := cfg.Schedules()
	if err != nil {
		return nil, errors.Wrapf(err, "command: job %s", cfg.Name)
	}

	job := scheduler.NewJob(cfg.Name, NewRunner(cfg, log).Run)
	for _, s := range schedules {
		job.AddSchedule(s)
	}
	if log != nil {
		job.WithLogger(log)
	}
	return job, nil
}

// tail 返回去除首尾空白后的输出末尾部分.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutput {
		return "..." + s[len(s)-maxOutput:]
	}
	return s
}
