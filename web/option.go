package web

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/ioc/artifact"
	cfgweb "github.com/gocrud/ioc/configure/web"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
)

// 类型转发，调用方只需引入本包
type (
	Builder    = cfgweb.Builder
	Host       = cfgweb.Host
	Controller = cfgweb.Controller
)

// BuilderOption 用于配置 Web Builder
type BuilderOption func(*Builder)

// WithPort 设置端口
func WithPort(port int) BuilderOption {
	return func(b *Builder) {
		b.UsePort(port)
	}
}

// WithControllers 添加控制器
func WithControllers(controllers ...any) BuilderOption {
	return func(b *Builder) {
		b.AddControllers(controllers...)
	}
}

// New 启用 Web 能力
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := cfgweb.NewBuilder(logging.NewNopLogger())

		// 应用选项
		for _, opt := range opts {
			opt(builder)
		}

		// 注册为 Feature
		rt.Features.Set(builder)

		// 控制器立即进容器，Host 启动时才解析
		if err := builder.RegisterServices(rt.Container); err != nil {
			return fmt.Errorf("web: failed to register services: %w", err)
		}

		// Engine 按类型可解析
		rt.Container.RegisterResolvableDependency(artifact.TypeOf[*gin.Engine](), builder.Engine())

		// 注册 Host 为 HostedService
		// 使用工厂函数延迟创建 Host
		hostFactory := func() *Host {
			host := builder.Build(rt.Container)
			// 在创建实例时，顺便注册为 Feature，以便测试或其他组件获取
			rt.Features.Set(host)
			return host
		}

		// 使用 core.WithHostedService 自动管理生命周期 (Start/Stop)
		return core.WithHostedService(hostFactory)(rt)
	}
}
