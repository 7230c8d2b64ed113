package redis_test

import (
	"net"
	"testing"
	"time"

	"github.com/gocrud/ioc/artifact"
	"github.com/gocrud/ioc/configure/redis"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	goredis "github.com/redis/go-redis/v9"
)

// MockRedisService 模拟依赖 Redis 客户端的服务
type MockRedisService struct {
	Cache *goredis.Client `di:"cache"`
	Queue *goredis.Client `di:"queue,?"`
}

// requireRedis 本地无 Redis 服务时跳过集成测试
func requireRedis(t *testing.T) {
	conn, err := net.DialTimeout("tcp", "localhost:6379", time.Second)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	conn.Close()
}

func TestRedisConfiguration(t *testing.T) {
	requireRedis(t)

	builder := core.NewApplicationBuilder()

	// 配置 Redis
	configurator := redis.Configure(func(b *redis.Builder) {
		// 添加 cache 客户端
		b.AddClient("cache", func(o *redis.RedisClientOptions) {
			o.Addr = "localhost:6379"
		})
	})
	builder.Configure(func(ctx *core.BuildContext) {
		configurator(ctx)
	})

	// 注册模拟服务
	builder.Configure(func(ctx *core.BuildContext) {
		if err := ctx.Container().RegisterDefinition("mockRedisService",
			artifact.Typed[*MockRedisService]()); err != nil {
			t.Fatalf("Failed to register mock service: %v", err)
		}
	})

	// 构建应用
	app := builder.Build()

	// 解析服务
	var svc *MockRedisService
	app.GetService(&svc)

	// 验证注入
	if svc.Cache == nil {
		t.Error("Cache client should not be nil")
	}
	if svc.Queue != nil {
		t.Error("Queue client should be nil (optional and not configured)")
	}

	// 验证显式解析
	cache, err := artifact.Resolve[*goredis.Client](app.Services(), "cache")
	if err != nil {
		t.Errorf("Failed to resolve named client 'cache': %v", err)
	}
	if cache == nil {
		t.Error("Resolved 'cache' client is nil")
	}
}

func TestRedisBuilder_Errors(t *testing.T) {
	logger := logging.NewLogger()
	builder := redis.NewBuilder()

	// 添加无效配置
	builder.AddClient("invalid", func(o *redis.RedisClientOptions) {
		o.Addr = "" // 必填项缺失
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
