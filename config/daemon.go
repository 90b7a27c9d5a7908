package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Tsukikage7/elected-scheduler/election"
	"github.com/Tsukikage7/elected-scheduler/logger"
	"github.com/Tsukikage7/elected-scheduler/metrics"
	"github.com/Tsukikage7/elected-scheduler/scheduler"
)

// DefaultKey 默认的选举键.
const DefaultKey = "elected_scheduler_poller"

// DefaultFollowerBackoff 默认的跟随者退避系数.
const DefaultFollowerBackoff = 0.25

// Config 守护进程配置.
type Config struct {
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Election  election.Config `json:"election" yaml:"election" mapstructure:"election"`
	Logger    logger.Config   `json:"logger" yaml:"logger" mapstructure:"logger"`
	Metrics   metrics.Config  `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Jobs      []JobConfig     `json:"jobs" yaml:"jobs" mapstructure:"jobs"`
}

// SchedulerConfig 轮询器配置.
type SchedulerConfig struct {
	// Key 选举键，同一键下的轮询器共享领导权.
	Key string `json:"key" yaml:"key" mapstructure:"key"`

	// FollowerBackoff 非领导者每次轮询后休眠 timeout*FollowerBackoff.
	FollowerBackoff float64 `json:"follower_backoff" yaml:"follower_backoff" mapstructure:"follower_backoff"`
}

// JobConfig 命令任务配置，Env 为 KEY=VALUE 形式的附加环境变量.
type JobConfig struct {
	Name    string        `json:"name" yaml:"name" mapstructure:"name"`
	Cron    []string      `json:"cron" yaml:"cron" mapstructure:"cron"`
	Command []string      `json:"command" yaml:"command" mapstructure:"command"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Dir     string        `json:"dir" yaml:"dir" mapstructure:"dir"`
	Env     []string      `json:"env" yaml:"env" mapstructure:"env"`
}

// Schedules 解析任务的全部 cron 表达式.
func (j *JobConfig) Schedules() ([]*scheduler.Schedule, error) {
	schedules := make([]*scheduler.Schedule, 0, len(j.Cron))
	for _, expr := range j.Cron {
		s, err := scheduler.ParseCron(expr)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	if c.Scheduler.Key == "" {
		return &ConfigError{Field: "scheduler.key", Message: "key is required"}
	}
	if c.Scheduler.FollowerBackoff < 0 {
		return &ConfigError{Field: "scheduler.follower_backoff", Message: "follower backoff cannot be negative"}
	}

	if err := c.Election.Validate(); err != nil {
		return err
	}
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}

	if len(c.Jobs) == 0 {
		return &ConfigError{Field: "jobs", Message: "at least one job is required"}
	}

	seen := make(map[string]struct{}, len(c.Jobs))
	for i := range c.Jobs {
		job := &c.Jobs[i]
		field := fmt.Sprintf("jobs[%d]", i)

		if job.Name == "" {
			return &ConfigError{Field: field + ".name", Message: "name is required"}
		}
		if _, ok := seen[job.Name]; ok {
			return &ConfigError{Field: field + ".name", Message: "duplicate job name: " + job.Name}
		}
		seen[job.Name] = struct{}{}

		if len(job.Command) == 0 || job.Command[0] == "" {
			return &ConfigError{Field: field + ".command", Message: "command is required"}
		}
		for _, kv := range job.Env {
			if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
				return &ConfigError{Field: field + ".env", Message: "env must be KEY=VALUE: " + kv}
			}
		}
		if job.Timeout < 0 {
			return &ConfigError{Field: field + ".timeout", Message: "timeout cannot be negative"}
		}
		if _, err := job.Schedules(); err != nil {
			return &ConfigError{Field: field + ".cron", Message: err.Error()}
		}
	}

	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Scheduler.Key == "" {
		c.Scheduler.Key = DefaultKey
	}
	c.Election.ApplyDefaults()
	c.Logger.ApplyDefaults()
	c.Metrics.ApplyDefaults()
}

// Defaults 返回守护进程配置的 viper 默认值.
func Defaults() map[string]any {
	return map[string]any{
		"scheduler.key":              DefaultKey,
		"scheduler.follower_backoff": DefaultFollowerBackoff,
		"election.timeout":           election.DefaultTimeout,
	}
}

// LoadConfig 加载守护进程配置，环境变量前缀为 ELECTED.
func LoadConfig(path string, opts ...Option) (*Config, error) {
	opts = append([]Option{WithEnvPrefix(EnvPrefix), WithDefaults(Defaults())}, opts...)
	return Load[Config](path, opts...)
}
