package etcd

import (
	"github.com/gocrud/ioc/artifact"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Configure 返回 Etcd 配置器
// 使用示例: builder.Configure(etcd.Configure(func(b *etcd.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		// 构建 etcd factory
		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build etcd clients",
				logging.Field{Key: "error", Value: err.Error()})
		}

		// 注册 factory 到容器
		if factory != nil {
			c := ctx.Container()
			c.RegisterResolvableDependency(artifact.TypeOf[*EtcdClientFactory](), factory)

			// 注册所有客户端为命名工件
			factory.Each(func(name string, client *clientv3.Client) {
				if err := c.RegisterDefinition(name, artifact.WithInstance(client)); err != nil {
					ctx.GetLogger().Error("Failed to register etcd client",
						logging.Field{Key: "name", Value: name},
						logging.Field{Key: "error", Value: err.Error()})
					return
				}
				ctx.GetLogger().Info("Etcd client registered",
					logging.Field{Key: "name", Value: name})

				// 默认客户端按类型直达
				if name == "default" {
					c.RegisterResolvableDependency(artifact.TypeOf[*clientv3.Client](), client)
					ctx.GetLogger().Info("Default etcd client registered (unnamed)")
				}
			})

			// 注册清理函数
			ctx.SetCleanup("etcd", func() {
				ctx.GetLogger().Info("Closing etcd clients")
				if err := factory.Close(); err != nil {
					ctx.GetLogger().Error("Failed to close etcd clients",
						logging.Field{Key: "error", Value: err.Error()})
				}
			})
		}
	}
}
