package etcd_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gocrud/ioc/artifact"
	"github.com/gocrud/ioc/configure/etcd"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// MockService 模拟依赖 Etcd 客户端的服务
type MockService struct {
	Master *clientv3.Client `di:"master"`
	Slave  *clientv3.Client `di:"slave,?"`
}

// requireEtcd 本地无 etcd 服务时跳过集成测试
func requireEtcd(t *testing.T) {
	conn, err := net.DialTimeout("tcp", "localhost:2379", time.Second)
	if err != nil {
		t.Skipf("etcd not available: %v", err)
	}
	conn.Close()
}

func TestEtcdConfiguration(t *testing.T) {
	requireEtcd(t)

	builder := core.NewApplicationBuilder()

	// Configure Etcd
	configurator := etcd.Configure(func(b *etcd.Builder) {
		b.AddClient("master", func(o *etcd.EtcdClientOptions) {
			o.Endpoints = []string{"localhost:2379"}
		})
	})
	builder.Configure(func(ctx *core.BuildContext) {
		configurator(ctx)
	})

	// Register MockService
	builder.Configure(func(ctx *core.BuildContext) {
		if err := ctx.Container().RegisterDefinition("mockService",
			artifact.Typed[*MockService]()); err != nil {
			t.Fatalf("Failed to register mock service: %v", err)
		}
	})

	// Build the application
	app := builder.Build()

	// Resolve Service
	var svc *MockService
	app.GetService(&svc)

	// Verify Injection
	if svc.Master == nil {
		t.Error("Master client should not be nil")
	}
	if svc.Slave != nil {
		t.Error("Slave client should be nil")
	}

	// Verify named resolution from container directly
	master, err := artifact.Resolve[*clientv3.Client](app.Services(), "master")
	if err != nil {
		t.Errorf("Failed to resolve named client 'master': %v", err)
	}
	if master == nil {
		t.Error("Resolved 'master' client is nil")
	}
}

func TestEtcdBuilder_Errors(t *testing.T) {
	logger := logging.NewLogger()
	// AddClient 不依赖 Context，隔离测试可以传 nil
	builder := etcd.NewBuilder(nil)

	// 添加无效配置
	builder.AddClient("invalid", func(o *etcd.EtcdClientOptions) {
		o.Endpoints = nil // 必填项缺失
	})

	// 添加重复配置
	builder.AddClient("duplicate", nil)
	builder.AddClient("duplicate", nil)

	_, err := builder.Build(logger)
	if err == nil {
		t.Fatal("Expected error from invalid configuration, got nil")
	}

	t.Logf("Got expected error: %v", err)
}

// Functional test for Cleanup (mocking context cancellation/app stop)
func TestEtcdCleanup(t *testing.T) {
	requireEtcd(t)

	builder := core.NewApplicationBuilder()

	configurator := etcd.Configure(func(b *etcd.Builder) {
		b.AddClient("test-cleanup", func(o *etcd.EtcdClientOptions) {
			o.Endpoints = []string{"localhost:2379"}
		})
	})
	builder.Configure(func(ctx *core.BuildContext) {
		configurator(ctx)
	})

	app := builder.Build()

	if err := app.Stop(context.Background()); err != nil {
		t.Errorf("Failed to stop app: %v", err)
	}
}
