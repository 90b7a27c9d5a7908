package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tsukikage7/elected-scheduler/logger"
)

// 只有持有者能释放锁，-1 表示锁不存在，0 表示被其他持有者占用.
var releaseScript = redis.NewScript(`
	local v = redis.call("get", KEYS[1])
	if not v then
		return -1
	end
	if v ~= ARGV[1] then
		return 0
	end
	return redis.call("del", KEYS[1])
`)

// 只有持有者能续期，返回值含义同 releaseScript.
var refreshScript = redis.NewScript(`
	local v = redis.call("get", KEYS[1])
	if not v then
		return -1
	end
	if v ~= ARGV[1] then
		return 0
	end
	return redis.call("pexpire", KEYS[1], ARGV[2])
`)

// redisStore Redis 锁存储.
type redisStore struct {
	client redis.UniversalClient
}

// NewRedis 创建基于 Redis 的分布式锁.
//
// 使用 SET NX PX 获取锁，Lua 脚本保证释放与续期时的持有者校验是原子的.
func NewRedis(client redis.UniversalClient, opts ...Option) *Mutex {
	if client == nil {
		panic(ErrNilClient)
	}
	return newMutex(&redisStore{client: client}, opts...)
}

func (r *redisStore) acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, owner, ttl).Result()
}

func (r *redisStore) release(ctx context.Context, key, owner string) (outcome, error) {
	n, err := releaseScript.Run(ctx, r.client, []string{key}, owner).Int64()
	if err != nil {
		return outcomeMissing, err
	}
	return toOutcome(n), nil
}

func (r *redisStore) refresh(ctx context.Context, key, owner string, ttl time.Duration) (outcome, error) {
	n, err := refreshScript.Run(ctx, r.client, []string{key}, owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return outcomeMissing, err
	}
	return toOutcome(n), nil
}

func toOutcome(n int64) outcome {
	switch {
	case n < 0:
		return outcomeMissing
	case n == 0:
		return outcomeForeign
	default:
		return outcomeOK
	}
}

// RedisConfig Redis 连接配置.
type RedisConfig struct {
	Addr         string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	Password     string        `json:"password" yaml:"password" mapstructure:"password"`
	DB           int           `json:"db" yaml:"db" mapstructure:"db"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	KeyPrefix    string        `json:"key_prefix" yaml:"key_prefix" mapstructure:"key_prefix"`
}

// Validate 验证配置.
func (c *RedisConfig) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Addr == "" {
		return ErrEmptyAddr
	}
	return nil
}

// ApplyDefaults 应用默认值.
func (c *RedisConfig) ApplyDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "lock:"
	}
}

// NewRedisClient 创建 Redis 客户端并测试连接.
func NewRedisClient(ctx context.Context, config *RedisConfig, log logger.Logger) (redis.UniversalClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		MaxRetries:   config.MaxRetries,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Errorf("[Lock] Redis 连接失败: addr=%s, err=%v", config.Addr, err)
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}

	log.Debugf("[Lock] redis connected: addr=%s, db=%d", config.Addr, config.DB)
	return client, nil
}
