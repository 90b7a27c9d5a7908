package metrics

import "errors"

var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("metrics: config is nil")

	// ErrRegisterMetric 注册指标失败.
	ErrRegisterMetric = errors.New("metrics: failed to register metric")
)
