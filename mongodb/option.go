package mongodb

import (
	"context"
	"fmt"

	"github.com/gocrud/ioc/artifact"
	cfgmongo "github.com/gocrud/ioc/configure/mongodb"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	"github.com/gocrud/mgo"
)

// 类型转发，调用方只需引入本包
type (
	Builder      = cfgmongo.Builder
	MongoOptions = cfgmongo.MongoOptions
	MongoFactory = cfgmongo.MongoFactory
)

// BuilderOption 用于配置 MongoDB Builder
type BuilderOption func(*Builder)

// WithClient 添加 MongoDB 客户端配置
func WithClient(name string, uri string, opts ...func(*MongoOptions)) BuilderOption {
	return func(b *Builder) {
		var configure func(*MongoOptions)
		if len(opts) > 0 {
			configure = func(o *MongoOptions) {
				for _, opt := range opts {
					opt(o)
				}
			}
		}
		b.Add(name, uri, configure)
	}
}

// New 启用 MongoDB 能力
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := cfgmongo.NewBuilder(nil)
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

		// 注册 Factory
		rt.Container.RegisterResolvableDependency(artifact.TypeOf[*MongoFactory](), factory)

		// 注册 Client 实例
		var regErr error
		factory.Each(func(name string, client *mgo.Client) {
			if err := rt.Container.RegisterDefinition(name, artifact.WithInstance(client)); err != nil {
				regErr = err
				return
			}
			if name == "default" {
				rt.Container.RegisterResolvableDependency(artifact.TypeOf[*mgo.Client](), client)
			}
		})
		if regErr != nil {
			return fmt.Errorf("mongodb: failed to register client: %w", regErr)
		}

		// 注册清理
		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			return factory.Close()
		})

		return nil
	}
}
