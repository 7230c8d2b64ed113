package artifact

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// Get 按名称解析工件。
// 这是消费方的主要入口：经过别名规范化、合并定义、依赖解析、
// 作用域分派与工厂解包，返回完全初始化的实例。
func (c *Container) Get(name string) (any, error) {
	return c.doGet(name, newCreationContext())
}

// GetAs 按名称解析工件并确保与目标类型兼容，
// 不兼容时尝试类型转换，失败报 NotOfRequiredTypeError。
func (c *Container) GetAs(name string, typ reflect.Type) (any, error) {
	obj, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	if typ == nil || obj == nil {
		return obj, nil
	}
	actual := reflect.TypeOf(obj)
	if actual.AssignableTo(typ) {
		return obj, nil
	}
	converted, convErr := c.converter.Convert(obj, typ)
	if convErr != nil {
		return nil, &NotOfRequiredTypeError{Name: name, Required: typ, Actual: actual}
	}
	return converted, nil
}

// doGet 创建/查找的内部入口，创建上下文随调用链显式传递。
func (c *Container) doGet(name string, cc *creationContext) (any, error) {
	canonical := c.canonicalName(name)

	// 快路径：已有单例（或创建中的提前引用，用于循环引用解析）
	if obj, ok := c.singletons.Get(canonical, true); ok {
		return c.unwrapFactory(name, canonical, obj, nil)
	}

	// 本链正在创建同名原型：循环原型依赖，快速失败
	if _, creating := cc.prototypes[canonical]; creating {
		return nil, &CurrentlyInCreationError{Name: canonical}
	}

	// 本地没有定义时向父容器委托（保留解引用前缀）
	if !c.registry.Contains(canonical) {
		if c.parent != nil {
			return c.parent.doGet(name, cc)
		}
		return nil, &NoSuchDefinitionError{Name: canonical}
	}

	md, err := c.getMerged(canonical)
	if err != nil {
		return nil, err
	}
	if md.Abstract {
		return nil, &AbstractDefinitionError{Name: canonical}
	}

	// depends-on 目标先于依赖方创建；依赖边登记用于销毁排序
	for _, dep := range md.DependsOn {
		depCanonical := c.canonicalName(dep)
		if c.singletons.HasDependent(canonical, depCanonical) {
			return nil, wrapCreationError(canonical, "depends-on",
				fmt.Errorf("circular depends-on relationship between %q and %q", canonical, depCanonical), nil)
		}
		c.singletons.RegisterDependent(depCanonical, canonical)
		if _, err := c.doGet(depCanonical, cc); err != nil {
			return nil, wrapCreationError(canonical, "depends-on", err, nil)
		}
	}

	switch scope := md.ResolvedScope(); scope {
	case ScopeSingleton:
		obj, err := c.singletons.GetOrCreate(canonical, cc, func() (any, error) {
			return c.createArtifact(canonical, md, cc)
		})
		if err != nil {
			return nil, err
		}
		return c.unwrapFactory(name, canonical, obj, md)

	case ScopePrototype:
		if err := cc.beforePrototypeCreation(canonical); err != nil {
			return nil, err
		}
		obj, err := c.createArtifact(canonical, md, cc)
		cc.afterPrototypeCreation(canonical)
		if err != nil {
			return nil, wrapCreationError(canonical, "", err, cc.takeSuppressed())
		}
		return c.unwrapFactory(name, canonical, obj, md)

	default:
		sp, ok := c.Scope(scope)
		if !ok {
			return nil, fmt.Errorf("artifact: no scope provider registered for scope %q (artifact %q)", scope, canonical)
		}
		obj, err := sp.Get(canonical, func() (any, error) {
			// 自定义作用域创建沿用原型式的创建前后登记
			if err := cc.beforePrototypeCreation(canonical); err != nil {
				return nil, err
			}
			defer cc.afterPrototypeCreation(canonical)
			return c.createArtifact(canonical, md, cc)
		})
		if err != nil {
			return nil, wrapCreationError(canonical, "", err, cc.takeSuppressed())
		}
		return c.unwrapFactory(name, canonical, obj, md)
	}
}

// createArtifact 工件创建流水线：实例化、提前暴露、属性填充、
// 初始化回调、销毁登记。
func (c *Container) createArtifact(name string, md *MergedDefinition, cc *creationContext) (any, error) {
	var obj any
	if md.HasInstance {
		obj = md.Instance
	} else {
		instance, err := c.instantiate(name, md, cc)
		if err != nil {
			return nil, wrapCreationError(name, "instantiation", err, nil)
		}
		obj = instance
	}

	// 提前暴露：单例在创建中即可借出半成品引用，打破属性环
	raw := obj
	earlyExposed := md.IsSingleton() && c.allowCircularReferences && c.singletons.IsInCreation(name)
	if earlyExposed {
		earlyHooks := c.snapshotHooks().earlyReference
		c.singletons.AddEarlyFactory(name, func() any {
			exposed := raw
			for _, hook := range earlyHooks {
				if replaced := hook(name, exposed); replaced != nil {
					exposed = replaced
				}
			}
			return exposed
		})
	}

	if err := c.populate(name, md, obj, cc); err != nil {
		return nil, wrapCreationError(name, "population", err, nil)
	}

	initialized, err := c.initialize(name, md, obj)
	if err != nil {
		return nil, wrapCreationError(name, "initialization", err, nil)
	}
	obj = initialized

	// 提前引用已被借出时，最终实例必须与暴露的引用一致，
	// 否则循环引用的消费方持有的是被替换前的原始对象
	if earlyExposed {
		if early, ok := c.singletons.Get(name, false); ok {
			if sameObject(obj, raw) {
				obj = early
			} else if !sameObject(early, obj) {
				return nil, wrapCreationError(name, "initialization",
					fmt.Errorf("early reference to %q was consumed before the instance was replaced by an initialization hook", name), nil)
			}
		}
	}

	c.registerDisposableIfNeeded(name, obj, md)
	return obj, nil
}

// sameObject 接口恒等比较，不可比较类型视为不同对象。
func sameObject(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// instantiate 选择构造入口并委托给实例化策略。
func (c *Container) instantiate(name string, md *MergedDefinition, cc *creationContext) (any, error) {
	// 工厂方法：实例来自另一个工件的方法
	if md.FactoryName != "" {
		factoryObj, err := c.doGet(md.FactoryName, cc)
		if err != nil {
			return nil, err
		}
		c.singletons.RegisterDependent(c.canonicalName(md.FactoryName), name)

		method := reflect.ValueOf(factoryObj).MethodByName(md.FactoryMethod)
		if !method.IsValid() {
			return nil, &InstantiationError{Name: name,
				Cause: fmt.Errorf("factory artifact %q has no method %q", md.FactoryName, md.FactoryMethod)}
		}
		args, err := c.resolveCallArgs(name, md, method.Type(), cc)
		if err != nil {
			return nil, err
		}
		return c.strategy.InstantiateWithMethod(md, name, factoryObj, md.FactoryMethod, args)
	}

	// 构造函数
	if md.Constructor != nil {
		fnType := reflect.TypeOf(md.Constructor)
		if fnType.Kind() != reflect.Func {
			return nil, &InstantiationError{Name: name,
				Cause: fmt.Errorf("constructor must be a function, got %T", md.Constructor)}
		}
		args, err := c.resolveCallArgs(name, md, fnType, cc)
		if err != nil {
			return nil, err
		}
		return c.strategy.Instantiate(md, name, args)
	}

	// 结构体类型：延迟解析类型名后零值分配
	if md.Type == nil && md.TypeName != "" {
		if c.typeResolver == nil {
			return nil, &InstantiationError{Name: name,
				Cause: fmt.Errorf("type name %q cannot be resolved without a type resolver", md.TypeName)}
		}
		typ, ok := c.typeResolver(md.TypeName)
		if !ok {
			return nil, &InstantiationError{Name: name,
				Cause: fmt.Errorf("unknown type name %q", md.TypeName)}
		}
		md.Type = typ
	}
	return c.strategy.Instantiate(md, name, nil)
}

// resolveCallArgs 解析构造函数/工厂方法的调用参数。
// 显式参数覆盖前若干个形参，其余形参按类型自动装配。
// 构造单例依赖链上的环在 GetOrCreate 处以
// CurrentlyInCreationError 快速失败（构造注入无法提前暴露）。
func (c *Container) resolveCallArgs(name string, md *MergedDefinition, fnType reflect.Type, cc *creationContext) ([]reflect.Value, error) {
	numIn := fnType.NumIn()
	if fnType.IsVariadic() {
		numIn--
	}
	explicit := md.ConstructorArgs

	args := make([]reflect.Value, 0, numIn)
	for i := 0; i < numIn; i++ {
		paramType := fnType.In(i)

		if i < len(explicit) {
			val, err := c.evaluateValue(name, md, explicit[i], paramType, cc)
			if err != nil {
				return nil, fmt.Errorf("constructor argument %d: %w", i, err)
			}
			args = append(args, valueFor(val, paramType))
			continue
		}

		resolved, err := c.resolveDependency(DependencyDescriptor{
			Type:     paramType,
			Required: true,
		}, name, cc)
		if err != nil {
			return nil, fmt.Errorf("constructor argument %d: %w", i, err)
		}
		args = append(args, valueFor(resolved, paramType))
	}
	return args, nil
}

// valueFor 把解析结果包装为形参可用的 reflect.Value。
func valueFor(val any, typ reflect.Type) reflect.Value {
	if val == nil {
		return reflect.Zero(typ)
	}
	return reflect.ValueOf(val)
}

// evaluateValue 求值一个声明式的值：
// RefValue 解析为目标工件、NestedValue 创建匿名内部工件、
// 字面量经类型转换器转换。
func (c *Container) evaluateValue(requestingName string, containing *MergedDefinition, raw any, targetType reflect.Type, cc *creationContext) (any, error) {
	switch v := raw.(type) {
	case RefValue:
		obj, err := c.doGet(v.Name, cc)
		if err != nil {
			return nil, err
		}
		c.singletons.RegisterDependent(c.canonicalName(v.Name), requestingName)
		if targetType != nil && obj != nil && !reflect.TypeOf(obj).AssignableTo(targetType) {
			return nil, &NotOfRequiredTypeError{
				Name:     v.Name,
				Required: targetType,
				Actual:   reflect.TypeOf(obj),
			}
		}
		return obj, nil

	case NestedValue:
		return c.createNested(requestingName, containing, v.Definition, cc)

	default:
		if targetType == nil {
			return raw, nil
		}
		return c.converter.Convert(raw, targetType)
	}
}

// createNested 创建匿名嵌套工件。
// 嵌套定义每次重新合并（永不缓存），实例作为外层工件的内部
// 对象登记包含关系，随外层一起销毁。
func (c *Container) createNested(outerName string, containing *MergedDefinition, def *Definition, cc *creationContext) (any, error) {
	innerMd, err := c.mergeNested(def, containing)
	if err != nil {
		return nil, err
	}

	c.nestedMu.Lock()
	c.nestedCounter++
	innerName := fmt.Sprintf("(inner artifact)#%s#%d", outerName, c.nestedCounter)
	c.nestedMu.Unlock()

	obj, err := c.createArtifact(innerName, innerMd, cc)
	if err != nil {
		return nil, err
	}
	if innerMd.IsSingleton() {
		c.singletons.RegisterContained(innerName, outerName)
	}

	// 嵌套工件不经登记表，解包在此完成
	if factory, ok := obj.(Factory); ok {
		return c.productFor(innerName, factory, false)
	}
	return obj, nil
}

// populate 属性填充阶段：先应用定义声明的属性值，
// 再对带 di 标签的字段执行基于解析器的自动装配。
func (c *Container) populate(name string, md *MergedDefinition, obj any, cc *creationContext) error {
	if obj == nil {
		return nil
	}
	rv := reflect.ValueOf(obj)
	isStructPtr := rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct

	if len(md.Properties) > 0 {
		if !isStructPtr {
			return fmt.Errorf("artifact: property values on %q require a struct pointer instance, got %T", name, obj)
		}
		elem := rv.Elem()
		for _, pv := range md.Properties {
			field := elem.FieldByName(fieldNameFor(pv.Name))
			if !field.IsValid() || !field.CanSet() {
				return fmt.Errorf("artifact: %q has no settable field for property %q", name, pv.Name)
			}
			val, err := c.evaluateValue(name, md, pv.Value, field.Type(), cc)
			if err != nil {
				return fmt.Errorf("property %q: %w", pv.Name, err)
			}
			field.Set(valueFor(val, field.Type()))
		}
	}

	if md.InjectFields && isStructPtr {
		if err := c.injectTaggedFields(name, rv.Elem(), cc); err != nil {
			return err
		}
	}
	return nil
}

// fieldNameFor 把属性名映射到导出字段名（首字母大写）。
func fieldNameFor(property string) string {
	if property == "" {
		return property
	}
	runes := []rune(property)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// injectTaggedFields 对带 di 标签的字段执行自动装配。
// 标签语法: di:"name,optional"，name 为声明的依赖名
// （名称命中已注册定义/别名时直接按名称解析，否则按类型解析），
// optional（或 ?）标记依赖为可选。
func (c *Container) injectTaggedFields(name string, structVal reflect.Value, cc *creationContext) error {
	structType := structVal.Type()
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		tagValue, hasTag := field.Tag.Lookup("di")
		if !hasTag {
			continue
		}

		depName, optional := parseInjectTag(tagValue)

		// 名称直达：声明名命中注册名/别名
		if depName != "" && c.Contains(depName) {
			obj, err := c.doGet(depName, cc)
			if err != nil {
				if optional {
					continue
				}
				return fmt.Errorf("field %s: %w", field.Name, err)
			}
			c.singletons.RegisterDependent(c.canonicalName(depName), name)
			if obj != nil && !reflect.TypeOf(obj).AssignableTo(field.Type) {
				return &NotOfRequiredTypeError{
					Name:     depName,
					Required: field.Type,
					Actual:   reflect.TypeOf(obj),
				}
			}
			structVal.Field(i).Set(valueFor(obj, field.Type))
			continue
		}

		resolved, err := c.resolveDependency(DependencyDescriptor{
			Type:     field.Type,
			Name:     depName,
			Required: !optional,
		}, name, cc)
		if err != nil {
			if optional {
				continue
			}
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		if resolved == nil {
			continue
		}
		structVal.Field(i).Set(valueFor(resolved, field.Type))
	}
	return nil
}

// parseInjectTag 解析 di 标签: "name,option1,option2"。
func parseInjectTag(tag string) (name string, optional bool) {
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	if name == "?" || name == "optional" {
		name = ""
		optional = true
	}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "optional" || part == "?" {
			optional = true
		}
	}
	return name, optional
}

// initialize 初始化阶段：初始化前回调、Initializer 接口、
// 定义上的 InitFunc、初始化后回调。回调可替换实例。
func (c *Container) initialize(name string, md *MergedDefinition, obj any) (any, error) {
	hks := c.snapshotHooks()

	for _, hook := range hks.beforeInit {
		replaced, err := hook(name, obj)
		if err != nil {
			return nil, err
		}
		if replaced != nil {
			obj = replaced
		}
	}

	if initializer, ok := obj.(Initializer); ok {
		if err := initializer.AfterInit(); err != nil {
			return nil, err
		}
	}
	if md.InitFunc != nil {
		if err := md.InitFunc(obj); err != nil {
			return nil, err
		}
	}

	for _, hook := range hks.afterInit {
		replaced, err := hook(name, obj)
		if err != nil {
			return nil, err
		}
		if replaced != nil {
			obj = replaced
		}
	}
	return obj, nil
}

// registerDisposableIfNeeded 为需要销毁语义的非原型实例登记销毁回调。
// 原型实例的销毁由调用方负责。
func (c *Container) registerDisposableIfNeeded(name string, obj any, md *MergedDefinition) {
	scope := md.ResolvedScope()
	if scope == ScopePrototype {
		return
	}
	destructionHooks := c.snapshotHooks().destruction
	if !requiresDestruction(obj, md, destructionHooks) {
		return
	}
	adapter := disposalAdapter(name, obj, md, destructionHooks)
	if scope == ScopeSingleton {
		c.singletons.RegisterDisposable(name, adapter)
		return
	}
	if sp, ok := c.Scope(scope); ok {
		sp.RegisterDestructionCallback(name, adapter)
	}
}
