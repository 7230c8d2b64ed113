package artifact

import "fmt"

// getMerged 返回名称对应的合并定义，缓存新鲜时直接命中。
// 对同一名称，在配置未变化期间恰好缓存一个合并实例（引用稳定）。
func (c *Container) getMerged(name string) (*MergedDefinition, error) {
	c.mergedMu.RLock()
	entry, ok := c.merged[name]
	c.mergedMu.RUnlock()
	if ok && !entry.stale {
		return entry.md, nil
	}

	def, err := c.registry.Get(name)
	if err != nil {
		return nil, err
	}

	md, err := c.mergeDefinition(name, def, nil, nil)
	if err != nil {
		return nil, err
	}

	c.mergedMu.Lock()
	// 双重检查：并发重合并时保持引用稳定，保留先到者
	if current, exists := c.merged[name]; exists && !current.stale {
		c.mergedMu.Unlock()
		return current.md, nil
	}
	if ok && entry.md != nil && md.sameTypeIdentity(entry.md) {
		// 类型/工厂标识未变：派生缓存条件性前移，避免重复反射
		md.resolvedType = entry.md.resolvedType
		md.isFactory = entry.md.isFactory
	}
	c.merged[name] = &mergedEntry{md: md}
	c.mergedMu.Unlock()

	for _, hook := range c.snapshotHooks().mergedDefinition {
		hook(name, md)
	}
	return md, nil
}

// mergeNested 合并匿名嵌套定义。嵌套定义永不缓存
// （瞬态、匿名，每次使用重新合并）。
func (c *Container) mergeNested(def *Definition, containing *MergedDefinition) (*MergedDefinition, error) {
	return c.mergeDefinition("", def, containing, nil)
}

// mergeDefinition 合并算法本体。
// 无父定义时克隆自身作为合并结果（根情形）；有父定义时递归解析
// 父定义的合并结果（父名称本地缺失时向父登记表上溯），深拷贝后
// 用子定义显式设置的字段覆盖（子胜过继承值）。
func (c *Container) mergeDefinition(name string, def *Definition, containing *MergedDefinition, chain map[string]bool) (*MergedDefinition, error) {
	var flat *Definition

	if !def.HasParent() {
		flat = def.Clone()
	} else {
		parentName := c.canonicalName(def.Parent)

		// 父引用环是结构性非法的，绝不通过合并解析
		if chain == nil {
			chain = make(map[string]bool)
		}
		if name != "" {
			chain[name] = true
		}
		if chain[parentName] {
			return nil, &ValidationError{Name: name,
				Reason: fmt.Sprintf("circular parent reference via %q", parentName)}
		}

		var parentMd *MergedDefinition
		var err error
		switch {
		case parentName != name && c.registry.Contains(parentName):
			parentDef, getErr := c.registry.Get(parentName)
			if getErr != nil {
				return nil, getErr
			}
			parentMd, err = c.mergeDefinition(parentName, parentDef, nil, chain)
		case c.parent != nil:
			parentMd, err = c.parent.getMerged(parentName)
		default:
			return nil, &NoSuchDefinitionError{Name: parentName}
		}
		if err != nil {
			return nil, err
		}

		flat = parentMd.Definition.Clone()
		overrideFrom(flat, def)
	}

	// 链上都未设置作用域时默认 singleton
	if flat.Scope == "" {
		flat.Scope = ScopeSingleton
	}

	// 嵌套定义的作用域跟随容器工件：外层不是单例时内层不能是单例
	if containing != nil && !containing.IsSingleton() && flat.Scope == ScopeSingleton {
		flat.Scope = containing.ResolvedScope()
	}

	return &MergedDefinition{Definition: *flat, containing: containing}, nil
}

// overrideFrom 把子定义显式设置的字段覆盖到父定义的拷贝上。
// 布尔标志与子定义保持一致（子定义的取值总是生效），
// 属性列表做合并（子属性覆盖同名父属性）。
func overrideFrom(flat, child *Definition) {
	if child.Type != nil {
		flat.Type = child.Type
		flat.TypeName = ""
	}
	if child.TypeName != "" {
		flat.TypeName = child.TypeName
		if child.Type == nil {
			flat.Type = nil
		}
	}
	if child.Scope != "" {
		flat.Scope = child.Scope
	}

	flat.Parent = ""
	flat.Abstract = child.Abstract
	flat.LazyInit = child.LazyInit
	flat.Primary = child.Primary
	flat.Synthetic = child.Synthetic
	flat.AutowireCandidate = child.AutowireCandidate
	flat.InjectFields = child.InjectFields

	if child.Qualifier != "" {
		flat.Qualifier = child.Qualifier
	}
	if child.OrderSet {
		flat.Order = child.Order
		flat.OrderSet = true
	}
	if len(child.DependsOn) > 0 {
		flat.DependsOn = append([]string(nil), child.DependsOn...)
	}
	if len(child.ConstructorArgs) > 0 {
		flat.ConstructorArgs = append([]any(nil), child.ConstructorArgs...)
	}
	if child.Constructor != nil {
		flat.Constructor = child.Constructor
	}
	if child.FactoryName != "" {
		flat.FactoryName = child.FactoryName
		flat.FactoryMethod = child.FactoryMethod
	}
	if child.HasInstance {
		flat.Instance = child.Instance
		flat.HasInstance = true
	}
	if child.InitFunc != nil {
		flat.InitFunc = child.InitFunc
	}
	if child.DestroyFunc != nil {
		flat.DestroyFunc = child.DestroyFunc
	}

	// 属性合并：父属性保留，子属性覆盖同名项
	for _, pv := range child.Properties {
		flat.SetProperty(pv.Name, pv.Value)
	}
}

// InvalidateMerged 将名称的合并缓存标记为过期。
// 同时递归失效所有父名称等于该名称的其他合并缓存（结构级联）、
// 通知失效观察者丢弃每名称缓存的元数据，并销毁该名称下已创建
// 的单例（先拆除再重置策略）。
func (c *Container) InvalidateMerged(name string) {
	c.invalidateMerged(name, make(map[string]bool))
}

func (c *Container) invalidateMerged(name string, seen map[string]bool) {
	if seen[name] {
		return
	}
	seen[name] = true

	c.mergedMu.Lock()
	if entry, ok := c.merged[name]; ok {
		entry.stale = true
	}
	c.mergedMu.Unlock()

	for _, hook := range c.snapshotHooks().mergedReset {
		hook(name)
	}

	c.DestroySingleton(name)

	// 结构级联：所有以该名称为父的定义的合并缓存一并失效
	for _, other := range c.registry.Names() {
		if other == name {
			continue
		}
		def, err := c.registry.Get(other)
		if err != nil {
			continue
		}
		if def.HasParent() && c.canonicalName(def.Parent) == name {
			c.invalidateMerged(other, seen)
		}
	}
}

// MergedDefinition 返回名称（跟随别名）对应的合并定义。
func (c *Container) MergedDefinition(name string) (*MergedDefinition, error) {
	return c.getMerged(c.canonicalName(name))
}
