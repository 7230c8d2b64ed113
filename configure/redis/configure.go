package redis

import (
	"github.com/gocrud/ioc/artifact"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	"github.com/redis/go-redis/v9"
)

// Configure 返回 Redis 配置器
// 使用示例: builder.Configure(redis.Configure(func(b *redis.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		// 构建 redis factory
		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build redis clients",
				logging.Field{Key: "error", Value: err.Error()})
		}

		// 注册 factory 到容器
		if factory != nil {
			c := ctx.Container()
			c.RegisterResolvableDependency(artifact.TypeOf[*RedisClientFactory](), factory)

			// 注册所有客户端为命名工件
			factory.Each(func(name string, client *redis.Client) {
				if err := c.RegisterDefinition(name, artifact.WithInstance(client)); err != nil {
					ctx.GetLogger().Error("Failed to register redis client",
						logging.Field{Key: "name", Value: name},
						logging.Field{Key: "error", Value: err.Error()})
					return
				}
				ctx.GetLogger().Info("Redis client registered",
					logging.Field{Key: "name", Value: name})

				// 默认客户端按类型直达
				if name == "default" {
					c.RegisterResolvableDependency(artifact.TypeOf[*redis.Client](), client)
					ctx.GetLogger().Info("Default redis client registered (unnamed)")
				}
			})

			// 注册清理函数
			ctx.SetCleanup("redis", func() {
				ctx.GetLogger().Info("Closing redis clients")
				if err := factory.Close(); err != nil {
					ctx.GetLogger().Error("Failed to close redis clients",
						logging.Field{Key: "error", Value: err.Error()})
				}
			})
		}
	}
}
