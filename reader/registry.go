package reader

import (
	"reflect"
	"sync"

	"github.com/gocrud/ioc/artifact"
)

// TypeRegistry 逻辑类型名到 Go 类型的映射表
// YAML 定义中的 type 字段通过它解析
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewTypeRegistry 创建类型注册表
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types: make(map[string]reflect.Type),
	}
}

// RegisterType 以逻辑名注册类型 T
// 结构体类型自动提升为指针类型，保证属性填充和字段注入可用
func RegisterType[T any](r *TypeRegistry, name string) {
	typ := artifact.TypeOf[T]()
	if typ.Kind() == reflect.Struct {
		typ = reflect.PointerTo(typ)
	}
	r.Register(name, typ)
}

// Register 以逻辑名注册一个反射类型
func (r *TypeRegistry) Register(name string, typ reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = typ
}

// Resolve 按逻辑名查找类型
// 签名与容器的类型解析钩子一致，可直接传给 SetTypeResolver
func (r *TypeRegistry) Resolve(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.types[name]
	return typ, ok
}
