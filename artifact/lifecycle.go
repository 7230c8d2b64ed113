package artifact

import "reflect"

// Initializer 工件的后置构造钩子。
// 实现该接口的实例在属性注入完成后被调用。
type Initializer interface {
	AfterInit() error
}

// Disposable 工件的销毁钩子。
// 实现该接口的单例在容器关闭或显式销毁时被调用。
type Disposable interface {
	Dispose()
}

// 容器扩展钩子。按能力分别存放类型化的回调列表，
// 调用点不做动态类型探测。

// MergedDefinitionHook 合并定义产生后的回调，
// 可用于缓存每个名称的派生元数据。
type MergedDefinitionHook func(name string, md *MergedDefinition)

// MergedResetHook 合并缓存失效时的回调，
// 观察者在此丢弃对应名称的缓存元数据。
type MergedResetHook func(name string)

// EarlyReferenceHook 提前暴露引用前的回调，
// 返回值替换暴露给循环引用消费方的对象。
type EarlyReferenceHook func(name string, obj any) any

// InitHook 初始化前/后的回调，返回值替换工件实例。
type InitHook func(name string, obj any) (any, error)

// DestructionHook 销毁感知回调，在工件销毁回调之前执行。
type DestructionHook func(name string, obj any)

// hooks 容器的扩展钩子集合。
type hooks struct {
	mergedDefinition []MergedDefinitionHook
	mergedReset      []MergedResetHook
	earlyReference   []EarlyReferenceHook
	beforeInit       []InitHook
	afterInit        []InitHook
	destruction      []DestructionHook
}

// PriorityExtractor 可选的优先级提取钩子。
// 返回候选实例的优先级（数值越小越优先）与是否声明了优先级。
type PriorityExtractor func(candidate any) (int, bool)

// disposalAdapter 把工件实例和其全部销毁语义（销毁感知钩子、
// 定义上的 DestroyFunc、Disposable 接口）适配成单个销毁回调。
func disposalAdapter(name string, obj any, md *MergedDefinition, destructionHooks []DestructionHook) func() {
	return func() {
		for _, hook := range destructionHooks {
			hook(name, obj)
		}
		if md != nil && md.DestroyFunc != nil {
			md.DestroyFunc(obj)
		}
		if d, ok := obj.(Disposable); ok {
			d.Dispose()
		}
	}
}

// requiresDestruction 报告实例是否需要登记销毁回调。
func requiresDestruction(obj any, md *MergedDefinition, destructionHooks []DestructionHook) bool {
	if obj == nil {
		return false
	}
	if md != nil && md.DestroyFunc != nil {
		return true
	}
	if _, ok := obj.(Disposable); ok {
		return true
	}
	return len(destructionHooks) > 0
}

// errorType 供反射调用检查的 error 接口类型。
var errorType = reflect.TypeOf((*error)(nil)).Elem()
