package etcd

import (
	"context"
	"fmt"

	"github.com/gocrud/ioc/artifact"
	cfgetcd "github.com/gocrud/ioc/configure/etcd"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// 类型转发，调用方只需引入本包
type (
	Builder           = cfgetcd.Builder
	EtcdClientOptions = cfgetcd.EtcdClientOptions
	EtcdClientFactory = cfgetcd.EtcdClientFactory
)

// BuilderOption 用于配置 Etcd Builder
type BuilderOption func(*Builder)

// WithClient 添加 Etcd 客户端配置
func WithClient(name string, opts ...func(*EtcdClientOptions)) BuilderOption {
	return func(b *Builder) {
		var configure func(*EtcdClientOptions)
		if len(opts) > 0 {
			configure = func(o *EtcdClientOptions) {
				for _, opt := range opts {
					opt(o)
				}
			}
		}
		b.AddClient(name, configure)
	}
}

// New 启用 Etcd 能力
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := cfgetcd.NewBuilder(nil)
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

		// 注册 factory 到容器
		rt.Container.RegisterResolvableDependency(artifact.TypeOf[*EtcdClientFactory](), factory)

		// 注册各个客户端
		var regErr error
		factory.Each(func(name string, client *clientv3.Client) {
			if err := rt.Container.RegisterDefinition(name, artifact.WithInstance(client)); err != nil {
				regErr = err
				return
			}
			if name == "default" {
				rt.Container.RegisterResolvableDependency(artifact.TypeOf[*clientv3.Client](), client)
			}
		})
		if regErr != nil {
			return fmt.Errorf("etcd: failed to register client: %w", regErr)
		}

		// 注册清理钩子
		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			return factory.Close()
		})

		return nil
	}
}
