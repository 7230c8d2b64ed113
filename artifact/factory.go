package artifact

import (
	"reflect"

	"github.com/gocrud/ioc/logging"
)

// Factory 工厂工件接口。
// 实现该接口的工件，其 Product 产品（而非工厂实例本身）才是
// 消费方收到的值，类型匹配也以产品类型为目标。
// 以 FactoryPrefix 前缀请求名称可取得工厂实例本身。
type Factory interface {
	// Product 返回工厂的产品。
	Product() (any, error)

	// ProductType 返回产品的声明类型，未知时返回 nil。
	ProductType() reflect.Type
}

// EagerFactory 声明产品需要在预实例化扫描时急切创建的工厂工件。
type EagerFactory interface {
	Factory
	EagerInit() bool
}

var factoryMarkerType = reflect.TypeOf((*Factory)(nil)).Elem()

// nullProduct 区分"产品为 nil"与"尚未解析"的缓存哨兵。
var nullProduct any = &struct{ marker string }{"null product"}

// isFactoryType 报告名称对应的定义是否为工厂工件：
// 预测的原始类型可赋值给工厂标记接口。结果缓存在合并定义上。
func (c *Container) isFactoryType(name string, md *MergedDefinition) bool {
	if md.isFactory != nil {
		return *md.isFactory
	}
	typ := c.predictType(name, md)
	result := typ != nil && typ.Implements(factoryMarkerType)
	md.isFactory = &result
	return result
}

// isFactoryArtifactInstance 报告名称下已创建的单例是否为工厂工件。
func (c *Container) isFactoryArtifactInstance(name string) bool {
	obj, ok := c.singletons.Get(name, false)
	if !ok {
		return false
	}
	_, isFactory := obj.(Factory)
	return isFactory
}

// predictType 预测定义的原始类型（工厂工件为工厂自身类型）。
// 结果缓存在合并定义上。
func (c *Container) predictType(name string, md *MergedDefinition) reflect.Type {
	if md.resolvedType != nil {
		return md.resolvedType
	}

	var typ reflect.Type
	switch {
	case md.HasInstance && md.Instance != nil:
		typ = reflect.TypeOf(md.Instance)
	case md.Type != nil:
		typ = md.Type
	case md.TypeName != "" && c.typeResolver != nil:
		if resolved, ok := c.typeResolver(md.TypeName); ok {
			typ = resolved
		}
	case md.Constructor != nil:
		fnType := reflect.TypeOf(md.Constructor)
		if fnType.Kind() == reflect.Func && fnType.NumOut() > 0 {
			typ = fnType.Out(0)
		}
	case md.FactoryName != "":
		typ = c.predictFactoryMethodType(md)
	}

	if typ != nil {
		md.resolvedType = typ
	}
	return typ
}

// predictFactoryMethodType 解析工厂方法的首个返回值类型。
func (c *Container) predictFactoryMethodType(md *MergedDefinition) reflect.Type {
	factoryMd, err := c.getMerged(c.canonicalName(md.FactoryName))
	if err != nil {
		return nil
	}
	factoryType := c.predictType(md.FactoryName, factoryMd)
	if factoryType == nil {
		return nil
	}
	method, ok := factoryType.MethodByName(md.FactoryMethod)
	if !ok || method.Type.NumOut() == 0 {
		return nil
	}
	return method.Type.Out(0)
}

// ExposedType 返回名称对外暴露的类型：普通工件为原始类型，
// 工厂工件为产品类型。
// 优先读取工厂声明的产品类型属性（无需实例化）；缺失且
// allowInit 为 true 且作用域为 singleton 时，实例化工厂
// （走常规创建路径，标记为仅类型检查）并查询其产品类型。
// 循环引用时序导致的错误被抑制并记录（类型检查绝不在引导
// 期间自行触发硬失败）。
func (c *Container) ExposedType(name string, md *MergedDefinition, allowInit bool) reflect.Type {
	if !c.isFactoryType(name, md) {
		return c.predictType(name, md)
	}

	// 已有工厂实例：直接询问
	if obj, ok := c.singletons.Get(name, false); ok {
		if factory, isFactory := obj.(Factory); isFactory {
			return factory.ProductType()
		}
	}

	if !allowInit || !md.IsSingleton() {
		return nil
	}

	// 仅类型检查的实例化：豁免创建中检查，失败只记录不传播
	c.singletons.ExcludeFromCreationCheck(name)
	defer c.singletons.IncludeInCreationCheck(name)

	obj, err := c.Get(FactoryPrefix + name)
	if err != nil {
		c.logger.Debug("Suppressed error during factory type check",
			logging.Field{Key: "name", Value: name},
			logging.Field{Key: "error", Value: err.Error()})
		return nil
	}
	if factory, ok := obj.(Factory); ok {
		return factory.ProductType()
	}
	return nil
}

// unwrapFactory 工厂工件的解包层。
// 调用方显式请求工厂本身（解引用请求）时返回原始工厂实例
// （非工厂实例则报 NotAFactoryError）；否则若实例是工厂，
// 取得（并在非合成的单例定义下缓存）其产品并返回。
func (c *Container) unwrapFactory(requestedName, canonical string, obj any, md *MergedDefinition) (any, error) {
	if isDereference(requestedName) {
		if _, ok := obj.(Factory); !ok {
			return nil, &NotAFactoryError{Name: canonical, Type: reflect.TypeOf(obj)}
		}
		return obj, nil
	}

	factory, ok := obj.(Factory)
	if !ok {
		return obj, nil
	}

	if md == nil && c.registry.Contains(canonical) {
		md, _ = c.getMerged(canonical)
	}
	cacheable := md != nil && !md.Synthetic && md.IsSingleton() && c.singletons.Contains(canonical)
	return c.productFor(canonical, factory, cacheable)
}

// productFor 取得工厂产品，可缓存时缓存。
// nil 产品以哨兵对象入缓存，向调用方呈现为 nil。
func (c *Container) productFor(name string, factory Factory, cacheable bool) (any, error) {
	if cacheable {
		c.productsMu.Lock()
		if cached, ok := c.factoryProducts[name]; ok {
			c.productsMu.Unlock()
			if cached == nullProduct {
				return nil, nil
			}
			return cached, nil
		}
		c.productsMu.Unlock()
	}

	product, err := factory.Product()
	if err != nil {
		return nil, wrapCreationError(name, "factory product", err, nil)
	}

	// 产品同样经过初始化后回调
	for _, hook := range c.snapshotHooks().afterInit {
		replaced, hookErr := hook(name, product)
		if hookErr != nil {
			return nil, wrapCreationError(name, "factory product", hookErr, nil)
		}
		if replaced != nil {
			product = replaced
		}
	}

	if cacheable {
		c.productsMu.Lock()
		if cached, ok := c.factoryProducts[name]; ok {
			// 并发竞争：保留先到者
			c.productsMu.Unlock()
			if cached == nullProduct {
				return nil, nil
			}
			return cached, nil
		}
		if product == nil {
			c.factoryProducts[name] = nullProduct
		} else {
			c.factoryProducts[name] = product
		}
		c.productsMu.Unlock()
	}
	return product, nil
}
