package metrics

import (
	"fmt"
	"regexp"
	"strings"
)

// Config 指标监控配置.
type Config struct {
	// Enabled 是否启用指标服务
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// Addr 指标服务监听地址，默认 :9090
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
	// Path 指标暴露路径，默认 /metrics
	Path string `json:"path" yaml:"path" mapstructure:"path"`
	// Namespace 指标命名空间，默认 elected_scheduler
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
}

// ConfigError 配置错误.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("metrics config error [%s]: %s", e.Field, e.Message)
}

var namespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		return &ConfigError{Field: "path", Message: "path must start with /"}
	}
	if c.Namespace != "" && !namespacePattern.MatchString(c.Namespace) {
		return &ConfigError{Field: "namespace", Message: "invalid namespace: " + c.Namespace}
	}
	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":9090"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if c.Namespace == "" {
		c.Namespace = "elected_scheduler"
	}
}

// DefaultConfig 返回默认配置.
func DefaultConfig() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}
