package database

import (
	"context"
	"fmt"

	"github.com/gocrud/ioc/artifact"
	cfgdb "github.com/gocrud/ioc/configure/database"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	"gorm.io/gorm"
)

// 类型转发，调用方只需引入本包
type (
	Builder         = cfgdb.Builder
	DatabaseOptions = cfgdb.DatabaseOptions
	DatabaseFactory = cfgdb.DatabaseFactory
)

// BuilderOption 用于配置 Database Builder
type BuilderOption func(*Builder)

// WithDatabase 添加数据库配置
func WithDatabase(name string, dialector gorm.Dialector, opts ...func(*DatabaseOptions)) BuilderOption {
	return func(b *Builder) {
		var configure func(*DatabaseOptions)
		if len(opts) > 0 {
			configure = func(o *DatabaseOptions) {
				for _, opt := range opts {
					opt(o)
				}
			}
		}
		b.Add(name, dialector, configure)
	}
}

// New 启用数据库能力
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := cfgdb.NewBuilder(nil)
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
		rt.Container.RegisterResolvableDependency(artifact.TypeOf[*DatabaseFactory](), factory)

		// 注册各个数据库实例
		var regErr error
		factory.Each(func(name string, db *gorm.DB) {
			if err := rt.Container.RegisterDefinition(name, artifact.WithInstance(db)); err != nil {
				regErr = err
				return
			}
			if name == "default" {
				rt.Container.RegisterResolvableDependency(artifact.TypeOf[*gorm.DB](), db)
			}
		})
		if regErr != nil {
			return fmt.Errorf("database: failed to register instance: %w", regErr)
		}

		// 注册清理钩子
		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			return factory.Close()
		})

		return nil
	}
}
