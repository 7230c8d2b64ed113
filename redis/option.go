package redis

import (
	"context"
	"fmt"

	"github.com/gocrud/ioc/artifact"
	cfgredis "github.com/gocrud/ioc/configure/redis"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	goredis "github.com/redis/go-redis/v9"
)

// 类型转发，调用方只需引入本包
type (
	Builder            = cfgredis.Builder
	RedisClientOptions = cfgredis.RedisClientOptions
	RedisClientFactory = cfgredis.RedisClientFactory
)

// BuilderOption 用于配置 Redis Builder
type BuilderOption func(*Builder)

// WithClient 添加 Redis 客户端配置
func WithClient(name string, opts ...func(*RedisClientOptions)) BuilderOption {
	return func(b *Builder) {
		var configure func(*RedisClientOptions)
		if len(opts) > 0 {
			configure = func(o *RedisClientOptions) {
				for _, opt := range opts {
					opt(o)
				}
			}
		}
		b.AddClient(name, configure)
	}
}

// New 启用 Redis 能力
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := cfgredis.NewBuilder()
		for _, opt := range opts {
			opt(builder)
		}

		factory, err := builder.Build(logging.NewNopLogger())
		if err != nil {
			return err
		}
		if factory == nil {
			return nil
		}

		// 注册工厂
		rt.Container.RegisterResolvableDependency(artifact.TypeOf[*RedisClientFactory](), factory)

		// 注册各个客户端
		var regErr error
		factory.Each(func(name string, client *goredis.Client) {
			if err := rt.Container.RegisterDefinition(name, artifact.WithInstance(client)); err != nil {
				regErr = err
				return
			}
			if name == "default" {
				rt.Container.RegisterResolvableDependency(artifact.TypeOf[*goredis.Client](), client)
			}
		})
		if regErr != nil {
			return fmt.Errorf("redis: failed to register client: %w", regErr)
		}

		// 注册清理钩子
		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			return factory.Close()
		})

		return nil
	}
}
