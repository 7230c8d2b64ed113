package mongodb

import (
	"github.com/gocrud/ioc/artifact"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	"github.com/gocrud/mgo"
)

// Configure 返回 MongoDB 配置器
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build mongodb clients",
				logging.Field{Key: "error", Value: err.Error()})
		}

		if factory != nil {
			c := ctx.Container()

			// 注册 Factory
			c.RegisterResolvableDependency(artifact.TypeOf[*MongoFactory](), factory)

			// 注册 Client 实例为命名工件
			factory.Each(func(name string, client *mgo.Client) {
				if err := c.RegisterDefinition(name, artifact.WithInstance(client)); err != nil {
					ctx.GetLogger().Error("Failed to register mongo client",
						logging.Field{Key: "name", Value: name},
						logging.Field{Key: "error", Value: err.Error()})
					return
				}
				ctx.GetLogger().Info("Mongo client registered",
					logging.Field{Key: "name", Value: name})

				// 默认实例兼容性
				if name == "default" {
					c.RegisterResolvableDependency(artifact.TypeOf[*mgo.Client](), client)
					ctx.GetLogger().Info("Default mongo client registered (unnamed)")
				}
			})

			// 注册清理
			ctx.SetCleanup("mongodb", func() {
				ctx.GetLogger().Info("Closing mongo clients")
				if err := factory.Close(); err != nil {
					ctx.GetLogger().Error("Failed to close mongo clients",
						logging.Field{Key: "error", Value: err.Error()})
				}
			})
		}
	}
}
