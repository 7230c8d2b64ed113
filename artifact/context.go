package artifact

// creationContext 显式的创建上下文，随解析调用链传递。
// 携带本链正在创建的单例/原型名称集合，用于快速失败地检测
// 循环创建，替代环境化的线程本地状态。
type creationContext struct {
	singletons map[string]struct{}
	prototypes map[string]struct{}

	// suppressed 嵌套创建期间被抑制的错误，
	// 作为相关原因附加到最终的外层失败上。
	suppressed []error
}

func newCreationContext() *creationContext {
	return &creationContext{}
}

// creatingSingleton 报告本链是否正在创建该单例。
func (cc *creationContext) creatingSingleton(name string) bool {
	_, ok := cc.singletons[name]
	return ok
}

func (cc *creationContext) markSingleton(name string) {
	if cc.singletons == nil {
		cc.singletons = make(map[string]struct{})
	}
	cc.singletons[name] = struct{}{}
}

func (cc *creationContext) unmarkSingleton(name string) {
	delete(cc.singletons, name)
}

// beforePrototypeCreation 标记原型创建开始，
// 本链已在创建同名原型时返回 CurrentlyInCreationError。
func (cc *creationContext) beforePrototypeCreation(name string) error {
	if _, ok := cc.prototypes[name]; ok {
		return &CurrentlyInCreationError{Name: name}
	}
	if cc.prototypes == nil {
		cc.prototypes = make(map[string]struct{})
	}
	cc.prototypes[name] = struct{}{}
	return nil
}

// afterPrototypeCreation 标记原型创建结束。
func (cc *creationContext) afterPrototypeCreation(name string) {
	delete(cc.prototypes, name)
}

// suppress 记录一个被抑制的嵌套错误。
func (cc *creationContext) suppress(err error) {
	if err == nil {
		return
	}
	// 上限防止深层嵌套失败把错误列表撑爆
	const maxSuppressed = 100
	if len(cc.suppressed) < maxSuppressed {
		cc.suppressed = append(cc.suppressed, err)
	}
}

// takeSuppressed 取走并清空被抑制的错误。
func (cc *creationContext) takeSuppressed() []error {
	s := cc.suppressed
	cc.suppressed = nil
	return s
}
