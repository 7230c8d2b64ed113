package web

import (
	"github.com/gin-gonic/gin"
	"github.com/gocrud/ioc/artifact"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
)

// Configure 返回 Web 配置器
// 使用示例: builder.Configure(web.Configure(func(b *web.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx.GetLogger())
		if options != nil {
			options(builder)
		}

		c := ctx.Container()

		// 控制器先进容器，Host 启动时再解析
		if err := builder.RegisterServices(c); err != nil {
			ctx.GetLogger().Fatal("Failed to register web controllers",
				logging.Field{Key: "error", Value: err.Error()})
		}

		// Engine 按类型可解析，便于中间件和测试定制
		c.RegisterResolvableDependency(artifact.TypeOf[*gin.Engine](), builder.Engine())

		webHost := builder.Build(c)

		// 直接添加到托管服务列表
		ctx.AddHostedService(webHost)

		ctx.GetLogger().Info("Web host configured",
			logging.Field{Key: "port", Value: webHost.port})
	}
}
