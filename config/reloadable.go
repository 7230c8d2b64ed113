package config

import (
	"context"
	"fmt"
	"strings"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// WatchableSource 支持变更监听的配置源
// 实现此接口的配置源在应用运行期间可以触发配置重载
type WatchableSource interface {
	ConfigurationSource

	// StartWatch 启动变更监听，配置源发生变更时调用 onChange
	StartWatch(ctx context.Context, onChange func()) error

	// StopWatch 停止变更监听
	StopWatch()
}

// GetSources 返回已添加的配置源
func (b *ConfigurationBuilder) GetSources() []ConfigurationSource {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]ConfigurationSource(nil), b.sources...)
}

// ReloadableConfiguration 可重载配置
// 持有构建器引用，Reload 时重新加载所有配置源并原子替换数据。
// 读操作委托给当前快照，重载对并发读者透明。
type ReloadableConfiguration struct {
	builder   *ConfigurationBuilder
	current   Configuration
	callbacks []func()
	mu        sync.RWMutex
}

// BuildReloadable 构建可重载配置
func (b *ConfigurationBuilder) BuildReloadable() (*ReloadableConfiguration, error) {
	cfg, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &ReloadableConfiguration{
		builder: b,
		current: cfg,
	}, nil
}

// Reload 重新加载所有配置源
func (r *ReloadableConfiguration) Reload() error {
	cfg, err := r.builder.Build()
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	r.mu.Lock()
	r.current = cfg
	callbacks := append(([]func())(nil), r.callbacks...)
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return nil
}

// OnReload 注册配置重载后的回调
func (r *ReloadableConfiguration) OnReload(callback func()) {
	r.mu.Lock()
	r.callbacks = append(r.callbacks, callback)
	r.mu.Unlock()
}

func (r *ReloadableConfiguration) snapshot() Configuration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Get 实现 Configuration
func (r *ReloadableConfiguration) Get(key string) string {
	return r.snapshot().Get(key)
}

// GetWithDefault 实现 Configuration
func (r *ReloadableConfiguration) GetWithDefault(key, defaultValue string) string {
	return r.snapshot().GetWithDefault(key, defaultValue)
}

// GetInt 实现 Configuration
func (r *ReloadableConfiguration) GetInt(key string) (int, error) {
	return r.snapshot().GetInt(key)
}

// GetBool 实现 Configuration
func (r *ReloadableConfiguration) GetBool(key string) (bool, error) {
	return r.snapshot().GetBool(key)
}

// GetSection 实现 Configuration
func (r *ReloadableConfiguration) GetSection(key string) Configuration {
	return r.snapshot().GetSection(key)
}

// Bind 实现 Configuration
func (r *ReloadableConfiguration) Bind(key string, target any) error {
	return r.snapshot().Bind(key, target)
}

// GetAll 实现 Configuration
func (r *ReloadableConfiguration) GetAll() map[string]any {
	return r.snapshot().GetAll()
}

// StartWatch 实现 WatchableSource：监听前缀下的键变更
func (s *EtcdSource) StartWatch(ctx context.Context, onChange func()) error {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create etcd watch client: %w", err)
	}

	prefix := s.Options.Prefix
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchMu.Lock()
	s.watchClient = cli
	s.watchCancel = cancel
	s.watchMu.Unlock()

	watchCh := cli.Watch(watchCtx, prefix, clientv3.WithPrefix())
	go func() {
		for resp := range watchCh {
			if resp.Err() != nil {
				continue
			}
			if len(resp.Events) > 0 {
				onChange()
			}
		}
	}()
	return nil
}

// StopWatch 实现 WatchableSource
func (s *EtcdSource) StopWatch() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watchClient != nil {
		s.watchClient.Close()
		s.watchClient = nil
	}
}
