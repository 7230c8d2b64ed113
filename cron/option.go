package cron

import (
	"context"

	cfgcron "github.com/gocrud/ioc/configure/cron"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
)

// Builder 类型转发，调用方只需引入本包
type Builder = cfgcron.Builder

// BuilderOption 用于配置 Cron Builder
type BuilderOption func(*Builder)

// WithSeconds 启用秒级精度
func WithSeconds() BuilderOption {
	return func(b *Builder) {
		b.WithSeconds()
	}
}

// WithLocation 设置时区
func WithLocation(location string) BuilderOption {
	return func(b *Builder) {
		b.WithLocation(location)
	}
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() BuilderOption {
	return func(b *Builder) {
		b.EnableCronLogger()
	}
}

// AddJob 添加任务，参数按类型从容器解析
func AddJob(spec, name string, handler any) BuilderOption {
	return func(b *Builder) {
		b.AddJobWithDI(spec, name, handler)
	}
}

// New 启用 Cron 能力
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := cfgcron.NewBuilder()
		for _, opt := range opts {
			opt(builder)
		}

		// 任务参数在触发时才解析，这里直接传入容器即可
		svc, err := builder.BuildService(rt.Container, logging.NewNopLogger())
		if err != nil {
			return err
		}

		var svcCtx context.Context
		var svcCancel context.CancelFunc

		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			svcCtx, svcCancel = context.WithCancel(context.Background())
			go func() {
				if err := svc.Start(svcCtx); err != nil {
					if rt.ErrorHandler != nil {
						rt.ErrorHandler(err)
					}
					rt.Shutdown()
				}
			}()
			return nil
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if svcCancel != nil {
				svcCancel()
			}
			return svc.Stop(ctx)
		})

		// 注册为特性，便于测试或其他组件获取
		rt.Features.Set(svc)

		return nil
	}
}
