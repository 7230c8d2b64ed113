package database

import (
	"github.com/gocrud/ioc/artifact"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	"gorm.io/gorm"
)

// Configure 返回数据库配置器
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		// 注入 Context
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build databases",
				logging.Field{Key: "error", Value: err.Error()})
		}

		if factory != nil {
			c := ctx.Container()

			// 注册工厂
			c.RegisterResolvableDependency(artifact.TypeOf[*DatabaseFactory](), factory)

			// 注册所有实例为命名工件
			factory.Each(func(name string, db *gorm.DB) {
				if err := c.RegisterDefinition(name, artifact.WithInstance(db)); err != nil {
					ctx.GetLogger().Error("Failed to register database",
						logging.Field{Key: "name", Value: name},
						logging.Field{Key: "error", Value: err.Error()})
					return
				}
				ctx.GetLogger().Info("Database client registered",
					logging.Field{Key: "name", Value: name})

				// 默认实例兼容性：按类型直达
				if name == "default" {
					c.RegisterResolvableDependency(artifact.TypeOf[*gorm.DB](), db)
					ctx.GetLogger().Info("Default database registered (unnamed)")
				}
			})

			// 注册清理
			ctx.SetCleanup("database", func() {
				ctx.GetLogger().Info("Closing database connections")
				if err := factory.Close(); err != nil {
					ctx.GetLogger().Error("Failed to close databases",
						logging.Field{Key: "error", Value: err.Error()})
				}
			})
		}
	}
}
