package election

import (
	"time"

	"github.com/Tsukikage7/elected-scheduler/lock"
)

// Config 选举配置.
type Config struct {
	// Backend 后端类型: redis, memory, consul, kubernetes, manual.
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Timeout 选举超时时间，默认 5s.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// Identity 实例标识，默认主机名.
	Identity string `json:"identity" yaml:"identity" mapstructure:"identity"`

	// Leader manual 后端的初始领导状态.
	Leader bool `json:"leader" yaml:"leader" mapstructure:"leader"`

	Redis      lock.RedisConfig `json:"redis" yaml:"redis" mapstructure:"redis"`
	Consul     ConsulConfig     `json:"consul" yaml:"consul" mapstructure:"consul"`
	Kubernetes KubernetesConfig `json:"kubernetes" yaml:"kubernetes" mapstructure:"kubernetes"`
}

// ConsulConfig Consul 配置.
type ConsulConfig struct {
	Addr      string `json:"addr" yaml:"addr" mapstructure:"addr"`
	Token     string `json:"token" yaml:"token" mapstructure:"token"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" mapstructure:"key_prefix"`
}

// KubernetesConfig Kubernetes 配置.
type KubernetesConfig struct {
	Namespace  string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
	Kubeconfig string `json:"kubeconfig" yaml:"kubeconfig" mapstructure:"kubeconfig"`
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	switch c.Backend {
	case "", BackendRedis, BackendMemory, BackendConsul, BackendKubernetes, BackendManual:
	default:
		return &ConfigError{Field: "backend", Message: "unsupported backend: " + c.Backend}
	}

	if c.Timeout < 0 {
		return &ConfigError{Field: "timeout", Message: "timeout cannot be negative"}
	}
	if c.Timeout > 0 && c.Timeout < time.Second {
		return &ConfigError{Field: "timeout", Message: "timeout must be at least 1s"}
	}

	if (c.Backend == "" || c.Backend == BackendRedis) && c.Redis.Addr == "" {
		return &ConfigError{Field: "redis.addr", Message: "redis addr is required"}
	}

	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendRedis
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Backend == BackendRedis {
		c.Redis.ApplyDefaults()
	}
	if c.Consul.KeyPrefix == "" {
		c.Consul.KeyPrefix = "elected-scheduler/"
	}
	if c.Kubernetes.Namespace == "" {
		c.Kubernetes.Namespace = "default"
	}
}

// DefaultConfig 返回默认配置（manual 后端，单节点）.
func DefaultConfig() *Config {
	c := &Config{Backend: BackendManual, Leader: true}
	c.ApplyDefaults()
	return c
}
