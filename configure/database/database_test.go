package database_test

import (
	"testing"

	"github.com/gocrud/ioc/artifact"
	"github.com/gocrud/ioc/config"
	"github.com/gocrud/ioc/configure/database"
	"github.com/gocrud/ioc/core"
	"github.com/gocrud/ioc/logging"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name string
}

type MockDBService struct {
	Master *gorm.DB `di:"master"`
	Slave  *gorm.DB `di:"slave,?"`
}

// DBConfig 模拟用户定义的配置结构
type DBConfig struct {
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
}

func TestDatabaseConfiguration(t *testing.T) {
	builder := core.NewApplicationBuilder()

	// 1. 配置内存配置源
	builder.ConfigureConfiguration(func(cb *config.ConfigurationBuilder) {
		cb.AddInMemory(map[string]any{
			"db": map[string]any{
				"master": map[string]any{
					"dsn":            "file::memory:?cache=shared",
					"max_open_conns": 5,
				},
			},
		})
	})

	// 2. 配置 Database (演示 config.Load 的使用)
	configurator := database.Configure(func(b *database.Builder) {
		// 使用 config.Load 从 Context 获取强类型配置
		dbConf, err := config.Load[DBConfig](b.ConfigContext().GetConfiguration(), "db.master")
		if err != nil {
			b.Add("config_error", nil, nil) // 触发 builder 错误
			return
		}

		b.Add("master", sqlite.Open(dbConf.DSN), func(o *database.DatabaseOptions) {
			o.MaxOpenConns = dbConf.MaxOpenConns
			o.AutoMigrate = []any{&User{}}
		})
	})

	builder.Configure(func(ctx *core.BuildContext) {
		configurator(ctx)
	})

	// 注册模拟服务，字段按 di 标签注入
	builder.Configure(func(ctx *core.BuildContext) {
		if err := ctx.Container().RegisterDefinition("mockDBService",
			artifact.Typed[*MockDBService]()); err != nil {
			t.Fatalf("Failed to register mock service: %v", err)
		}
	})

	app := builder.Build()

	// Resolve Service
	var svc *MockDBService
	app.GetService(&svc)

	if svc.Master == nil {
		t.Fatal("Master DB should not be nil")
	}
	if svc.Slave != nil {
		t.Error("Slave DB should be nil (optional and not configured)")
	}

	// Verify config was applied
	sqlDB, _ := svc.Master.DB()
	stats := sqlDB.Stats()
	if stats.MaxOpenConnections != 5 {
		t.Errorf("Expected MaxOpenConns 5, got %d", stats.MaxOpenConnections)
	}

	// Test DB interaction
	if err := svc.Master.Create(&User{Name: "test"}).Error; err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	// 命名解析
	master, err := artifact.Resolve[*gorm.DB](app.Services(), "master")
	if err != nil {
		t.Fatalf("Failed to resolve named database 'master': %v", err)
	}
	if master == nil {
		t.Error("Resolved 'master' database is nil")
	}
}

func TestDatabaseBuilder_Errors(t *testing.T) {
	logger := logging.NewLogger()
	// Add 不依赖 Context，隔离测试可以传 nil
	builder := database.NewBuilder(nil)

	// Missing dialector
	builder.Add("invalid", nil, nil)

	// Duplicate
	builder.Add("dup", sqlite.Open("file::memory:"), nil)
	builder.Add("dup", sqlite.Open("file::memory:"), nil)

	_, err := builder.Build(logger)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	t.Logf("Got expected error: %v", err)
}
