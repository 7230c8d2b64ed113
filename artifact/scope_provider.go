package artifact

import "sync"

// ObjectFactory 作用域提供者按需创建实例的回调。
type ObjectFactory func() (any, error)

// ScopeProvider 自定义作用域的外部契约。
// 容器将作用域特定的缓存委托给提供者，但仍在调用前后执行
// 原型式的创建登记（循环检测等）。
type ScopeProvider interface {
	// Get 返回作用域内名称对应的实例，不存在时通过 factory 创建。
	Get(name string, factory ObjectFactory) (any, error)

	// Remove 从作用域移除实例，返回被移除的实例（不触发销毁回调）。
	Remove(name string) any

	// RegisterDestructionCallback 登记作用域结束时执行的销毁回调。
	RegisterDestructionCallback(name string, callback func())
}

// SimpleScopeProvider 进程内的基础作用域提供者实现，
// 可直接使用，也可作为自定义提供者的样板。
type SimpleScopeProvider struct {
	mu        sync.Mutex
	instances map[string]any
	callbacks map[string]func()
}

// NewSimpleScopeProvider 创建基础作用域提供者。
func NewSimpleScopeProvider() *SimpleScopeProvider {
	return &SimpleScopeProvider{
		instances: make(map[string]any),
		callbacks: make(map[string]func()),
	}
}

// Get 实现 ScopeProvider。
func (s *SimpleScopeProvider) Get(name string, factory ObjectFactory) (any, error) {
	s.mu.Lock()
	if obj, ok := s.instances[name]; ok {
		s.mu.Unlock()
		return obj, nil
	}
	s.mu.Unlock()

	obj, err := factory()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.instances[name]; ok {
		// 并发创建竞争：保留先到者
		s.mu.Unlock()
		return existing, nil
	}
	s.instances[name] = obj
	s.mu.Unlock()
	return obj, nil
}

// Remove 实现 ScopeProvider。
func (s *SimpleScopeProvider) Remove(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.instances[name]
	delete(s.instances, name)
	delete(s.callbacks, name)
	return obj
}

// RegisterDestructionCallback 实现 ScopeProvider。
func (s *SimpleScopeProvider) RegisterDestructionCallback(name string, callback func()) {
	s.mu.Lock()
	s.callbacks[name] = callback
	s.mu.Unlock()
}

// Close 结束作用域，执行全部销毁回调并清空实例。
func (s *SimpleScopeProvider) Close() {
	s.mu.Lock()
	callbacks := s.callbacks
	s.callbacks = make(map[string]func())
	s.instances = make(map[string]any)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}
