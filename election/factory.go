package election

import (
	"context"
	"fmt"

	"github.com/Tsukikage7/elected-scheduler/lock"
)

// New 根据配置创建选举，返回的 cleanup 用于关闭底层客户端.
func New(ctx context.Context, config *Config, key string, opts ...Option) (Elector, func(), error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	if key == "" {
		return nil, nil, ErrEmptyKey
	}
	config.ApplyDefaults()

	if config.Identity != "" {
		opts = append(opts, WithIdentity(config.Identity))
	}
	o := applyOptions(opts)
	noop := func() {}

	switch config.Backend {
	case BackendManual:
		return NewManual(config.Timeout, config.Leader), noop, nil

	case BackendMemory:
		e, err := NewLockElector(lock.NewMemory(lock.NewMemoryStore(), lockOptions(o)...), key, config.Timeout, opts...)
		if err != nil {
			return nil, nil, err
		}
		return e, noop, nil

	case BackendRedis:
		client, err := lock.NewRedisClient(ctx, &config.Redis, o.logger)
		if err != nil {
			return nil, nil, err
		}
		locker := lock.NewRedis(client, append(lockOptions(o), lock.WithKeyPrefix(config.Redis.KeyPrefix))...)
		e, err := NewLockElector(locker, key, config.Timeout, opts...)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return e, func() { _ = client.Close() }, nil

	case BackendConsul:
		client, err := NewConsulClient(&config.Consul)
		if err != nil {
			return nil, nil, fmt.Errorf("election: create consul client: %w", err)
		}
		e, err := NewConsul(client, config.Consul.KeyPrefix+key, config.Timeout, opts...)
		if err != nil {
			return nil, nil, err
		}
		return e, noop, nil

	case BackendKubernetes:
		client, err := NewKubernetesClient(config.Kubernetes.Kubeconfig)
		if err != nil {
			return nil, nil, err
		}
		e, err := NewKubernetes(client, config.Kubernetes.Namespace, key, config.Timeout, opts...)
		if err != nil {
			return nil, nil, err
		}
		return e, noop, nil
	}

	return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, config.Backend)
}

// lockOptions 将实例标识用作锁持有者 ID.
func lockOptions(o *options) []lock.Option {
	if o.identity == "" {
		return nil
	}
	return []lock.Option{lock.WithOwnerID(o.identity)}
}
