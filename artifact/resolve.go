package artifact

import (
	"reflect"
	"sort"
)

// DependencyDescriptor 描述一个类型化的注入点。
type DependencyDescriptor struct {
	// Type 需要的类型。切片与字符串键的 map 被视为多元素类型，
	// 解析为全部匹配候选的集合而非单个实例。
	Type reflect.Type

	// Name 注入点声明的依赖名（字段名、参数名或标签名），
	// 用于同分候选的名称裁决。
	Name string

	// Qualifier 限定符。非空时只有限定符一致的候选参与匹配。
	Qualifier string

	// Required 必需依赖无候选时报 UnresolvedDependencyError；
	// 可选依赖返回 nil。
	Required bool

	// Lazy 返回惰性 Provider 而非立即解析。
	Lazy bool

	// Ordered 多元素结果按排序元数据排序（否则按发现顺序）。
	Ordered bool

	// SuggestedValue 注入点声明的字面量默认值，
	// 存在时直接转换返回，绕过候选搜索。
	SuggestedValue any
}

// Provider 惰性解析包装。每次调用重新进入解析。
type Provider func() (any, error)

// candidate 解析过程中的单个自动装配候选。
type candidate struct {
	name string
	// instance 解析捷径或已创建单例的即时值
	instance any
	hasValue bool
	// md 本地定义的合并结果（捷径候选为 nil）
	md *MergedDefinition
	// local 是否本容器内定义（primary 裁决只认本地定义）
	local bool
}

// ResolveDependency 解析一个类型化/限定的注入点。
// requestingName 为发起请求的工件名，被选中的候选将登记为其
// 依赖，用于销毁排序。
func (c *Container) ResolveDependency(d DependencyDescriptor, requestingName string) (any, error) {
	return c.resolveDependency(d, requestingName, newCreationContext())
}

func (c *Container) resolveDependency(d DependencyDescriptor, requestingName string, cc *creationContext) (any, error) {
	// 惰性包装：解析推迟到首次调用
	if d.Lazy {
		eager := d
		eager.Lazy = false
		return Provider(func() (any, error) {
			return c.resolveDependency(eager, requestingName, newCreationContext())
		}), nil
	}

	// 注入点声明的字面量默认值绕过候选搜索
	if d.SuggestedValue != nil {
		return c.converter.Convert(d.SuggestedValue, d.Type)
	}

	// 多元素类型：切片与字符串键 map 解析为全部匹配候选
	if elemType, kind := multiElementType(d.Type); kind != multiNone {
		return c.resolveMultiple(d, elemType, kind, requestingName, cc)
	}

	candidates := c.findCandidates(d.Type, d.Qualifier, cc)

	// 自引用排除：等于请求方名称（或其工厂工件来源为请求方）的
	// 候选在第一轮排除，仅作为非集合注入的最后回退
	filtered := excludeSelf(candidates, requestingName)
	if len(filtered) == 0 && len(candidates) > 0 {
		filtered = candidates
	}

	switch len(filtered) {
	case 0:
		if !d.Required {
			return nil, nil
		}
		// 存在同类型对象但暴露类型（工厂产品类型）不匹配时，
		// 优先报类型不匹配而非笼统的未找到
		if mismatch := c.findExposedMismatch(d.Type); mismatch != nil {
			return nil, mismatch
		}
		return nil, &UnresolvedDependencyError{Type: d.Type, RequestingName: requestingName}

	case 1:
		return c.instantiateCandidate(filtered[0], d, requestingName, cc)

	default:
		chosen, err := c.determineCandidate(filtered, d)
		if err != nil {
			return nil, err
		}
		if chosen == nil {
			if !d.Required {
				return nil, nil
			}
			names := candidateNames(filtered)
			sort.Strings(names)
			return nil, &AmbiguousDependencyError{Type: d.Type, Candidates: names}
		}
		return c.instantiateCandidate(*chosen, d, requestingName, cc)
	}
}

type multiKind int

const (
	multiNone multiKind = iota
	multiSlice
	multiMap
)

// multiElementType 识别多元素注入点类型。
func multiElementType(typ reflect.Type) (reflect.Type, multiKind) {
	if typ == nil {
		return nil, multiNone
	}
	switch typ.Kind() {
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			// []byte 是值类型而非集合注入点
			return nil, multiNone
		}
		return typ.Elem(), multiSlice
	case reflect.Map:
		if typ.Key().Kind() == reflect.String {
			return typ.Elem(), multiMap
		}
	}
	return nil, multiNone
}

// resolveMultiple 把全部匹配候选解析为集合。
func (c *Container) resolveMultiple(d DependencyDescriptor, elemType reflect.Type, kind multiKind, requestingName string, cc *creationContext) (any, error) {
	candidates := c.findCandidates(elemType, d.Qualifier, cc)
	// 集合注入永不包含自引用
	candidates = excludeSelf(candidates, requestingName)

	if len(candidates) == 0 {
		if d.Required {
			return nil, &UnresolvedDependencyError{Type: d.Type, RequestingName: requestingName}
		}
		return nil, nil
	}

	if d.Ordered {
		c.sortCandidates(candidates)
	}

	switch kind {
	case multiSlice:
		result := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(candidates))
		for _, cand := range candidates {
			obj, err := c.instantiateCandidate(cand, d, requestingName, cc)
			if err != nil {
				return nil, err
			}
			result = reflect.Append(result, valueFor(obj, elemType))
		}
		return result.Interface(), nil

	default:
		result := reflect.MakeMapWithSize(reflect.MapOf(reflect.TypeOf(""), elemType), len(candidates))
		for _, cand := range candidates {
			obj, err := c.instantiateCandidate(cand, d, requestingName, cc)
			if err != nil {
				return nil, err
			}
			result.SetMapIndex(reflect.ValueOf(cand.name), valueFor(obj, elemType))
		}
		return result.Interface(), nil
	}
}

// sortCandidates 按排序元数据（定义上的 Order，未声明视为最大值）
// 稳定排序，保持发现顺序为次序。
func (c *Container) sortCandidates(candidates []candidate) {
	orderOf := func(cand candidate) int {
		if cand.md != nil && cand.md.OrderSet {
			return cand.md.Order
		}
		if cand.hasValue && c.priorityOf != nil {
			if p, ok := c.priorityOf(cand.instance); ok {
				return p
			}
		}
		return int(^uint(0) >> 1) // 未声明排序的候选排在最后
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return orderOf(candidates[i]) < orderOf(candidates[j])
	})
}

// findCandidates 收集自动装配候选：
// 先查解析捷径（类型预绑定的基础设施值），再按登记顺序扫描本地
// 定义（声明/预测类型可赋值 + autowireCandidate + 限定符一致），
// 已创建的手工单例也参与匹配，最后并入父容器的候选（本地同名优先）。
func (c *Container) findCandidates(required reflect.Type, qualifier string, cc *creationContext) []candidate {
	var result []candidate
	seen := make(map[string]struct{})

	// 解析捷径：预绑定的固定值
	c.resolvableMu.RLock()
	for typ, value := range c.resolvableDeps {
		if typ.AssignableTo(required) || (value != nil && reflect.TypeOf(value).AssignableTo(required)) {
			result = append(result, candidate{
				name:     typ.String(),
				instance: value,
				hasValue: true,
				local:    true,
			})
		}
	}
	c.resolvableMu.RUnlock()

	// 本地定义，按注册顺序
	for _, name := range c.registry.Names() {
		md, err := c.getMerged(name)
		if err != nil {
			continue
		}
		if md.Abstract || !md.AutowireCandidate {
			continue
		}
		if qualifier != "" && md.Qualifier != qualifier {
			continue
		}
		exposed := c.ExposedType(name, md, true)
		if exposed == nil || !exposed.AssignableTo(required) {
			continue
		}
		result = append(result, candidate{name: name, md: md, local: true})
		seen[name] = struct{}{}
	}

	// 手工注册的单例（无定义）
	for _, name := range c.singletons.Names() {
		if _, dup := seen[name]; dup || c.registry.Contains(name) {
			continue
		}
		obj, ok := c.singletons.Get(name, false)
		if !ok || obj == nil {
			continue
		}
		if qualifier != "" {
			continue
		}
		objType := reflect.TypeOf(obj)
		if factory, isFactory := obj.(Factory); isFactory {
			if pt := factory.ProductType(); pt != nil {
				objType = pt
			}
		}
		if objType.AssignableTo(required) {
			result = append(result, candidate{name: name, instance: obj, hasValue: true, local: true})
			seen[name] = struct{}{}
		}
	}

	// 父容器候选（本地定义遮蔽同名父候选）
	if c.parent != nil {
		for _, cand := range c.parent.findCandidates(required, qualifier, cc) {
			if _, shadowed := seen[cand.name]; shadowed {
				continue
			}
			cand.local = false
			result = append(result, cand)
		}
	}
	return result
}

// excludeSelf 排除等于请求方名称或其工厂工件来源为请求方的候选。
func excludeSelf(candidates []candidate, requestingName string) []candidate {
	if requestingName == "" {
		return candidates
	}
	result := make([]candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.name == requestingName {
			continue
		}
		if cand.md != nil && cand.md.FactoryName == requestingName {
			continue
		}
		result = append(result, cand)
	}
	return result
}

// determineCandidate 同分候选裁决，依次应用：
// (a) 显式 primary 标志，多个本地定义同为 primary 时报歧义；
// (b) 最高优先级（优先级提取钩子，数值最小者胜），并列时报歧义；
// (c) 与注入点声明的依赖名（或其别名）完全一致。
// 均不能裁决时返回 nil（由调用方根据 required 决定报歧义或返回空）。
func (c *Container) determineCandidate(candidates []candidate, d DependencyDescriptor) (*candidate, error) {
	// (a) primary
	var primary *candidate
	for i := range candidates {
		cand := &candidates[i]
		if cand.md == nil || !cand.md.Primary {
			continue
		}
		if primary != nil {
			if primary.local && cand.local {
				names := []string{primary.name, cand.name}
				sort.Strings(names)
				return nil, &AmbiguousDependencyError{Type: d.Type, Candidates: names}
			}
			if !primary.local && cand.local {
				primary = cand
			}
			continue
		}
		primary = cand
	}
	if primary != nil {
		return primary, nil
	}

	// (b) 优先级
	if c.priorityOf != nil {
		var best *candidate
		bestPriority := 0
		tied := false
		for i := range candidates {
			cand := &candidates[i]
			p, ok := c.candidatePriority(cand)
			if !ok {
				continue
			}
			switch {
			case best == nil || p < bestPriority:
				best = cand
				bestPriority = p
				tied = false
			case p == bestPriority:
				tied = true
			}
		}
		if best != nil {
			if tied {
				names := candidateNames(candidates)
				sort.Strings(names)
				return nil, &AmbiguousDependencyError{Type: d.Type, Candidates: names}
			}
			return best, nil
		}
	}

	// (c) 名称/别名匹配
	if d.Name != "" {
		for i := range candidates {
			cand := &candidates[i]
			if cand.name == d.Name {
				return cand, nil
			}
			for _, alias := range c.aliases.Aliases(cand.name) {
				if alias == d.Name {
					return cand, nil
				}
			}
		}
	}
	return nil, nil
}

// candidatePriority 提取候选的优先级。
// 定义候选按需实例化后询问提取钩子（仅限单例，避免裁决期间
// 产生多余的原型实例）。
func (c *Container) candidatePriority(cand *candidate) (int, bool) {
	if cand.md != nil && cand.md.OrderSet {
		return cand.md.Order, true
	}
	if cand.hasValue && c.priorityOf != nil {
		return c.priorityOf(cand.instance)
	}
	return 0, false
}

// instantiateCandidate 实例化选中的候选并登记依赖边。
func (c *Container) instantiateCandidate(cand candidate, d DependencyDescriptor, requestingName string, cc *creationContext) (any, error) {
	var obj any
	if cand.hasValue {
		obj = cand.instance
	} else {
		resolved, err := c.doGet(cand.name, cc)
		if err != nil {
			return nil, err
		}
		obj = resolved
		if requestingName != "" {
			c.singletons.RegisterDependent(cand.name, requestingName)
		}
	}

	if obj != nil && d.Type != nil {
		actual := reflect.TypeOf(obj)
		required := d.Type
		if elemType, kind := multiElementType(d.Type); kind != multiNone {
			required = elemType
		}
		if !actual.AssignableTo(required) {
			return nil, &NotOfRequiredTypeError{Name: cand.name, Required: required, Actual: actual}
		}
	}
	return obj, nil
}

// findExposedMismatch 查找声明类型匹配但暴露类型不匹配的定义，
// 用于报告更准确的类型不匹配错误。
func (c *Container) findExposedMismatch(required reflect.Type) error {
	for _, name := range c.registry.Names() {
		md, err := c.getMerged(name)
		if err != nil || md.Abstract {
			continue
		}
		raw := c.predictType(name, md)
		if raw == nil || !c.isFactoryType(name, md) {
			continue
		}
		if raw.AssignableTo(required) {
			exposed := c.ExposedType(name, md, false)
			return &NotOfRequiredTypeError{Name: name, Required: required, Actual: exposed}
		}
	}
	return nil
}

func candidateNames(candidates []candidate) []string {
	names := make([]string, len(candidates))
	for i, cand := range candidates {
		names[i] = cand.name
	}
	return names
}
