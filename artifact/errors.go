package artifact

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// NotFoundError 名称对应的定义、别名或单例不存在。
type NotFoundError struct {
	Name string
	Kind string // "definition" / "singleton" / "alias"
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact: no %s registered under name %q", e.Kind, e.Name)
}

// NoSuchDefinitionError 按名称查找定义失败。
// 是 NotFoundError 的定义特化，便于调用方区分查找目标。
type NoSuchDefinitionError struct {
	Name string
}

func (e *NoSuchDefinitionError) Error() string {
	return fmt.Sprintf("artifact: no definition registered under name %q", e.Name)
}

// OverrideNotAllowedError 禁止覆盖策略下的注册冲突。
type OverrideNotAllowedError struct {
	Name     string
	Existing *Definition
}

func (e *OverrideNotAllowedError) Error() string {
	return fmt.Sprintf("artifact: definition %q already registered and overriding is not allowed", e.Name)
}

// ValidationError 定义在结构上不合法（合并前检查）。
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("artifact: invalid definition %q: %s", e.Name, e.Reason)
}

// AbstractDefinitionError 试图直接实例化抽象定义。
type AbstractDefinitionError struct {
	Name string
}

func (e *AbstractDefinitionError) Error() string {
	return fmt.Sprintf("artifact: definition %q is abstract and cannot be instantiated", e.Name)
}

// CurrentlyInCreationError 同一创建链内再次请求创建同名工件。
// 这是无提前暴露支持的循环引用的失败形式。
type CurrentlyInCreationError struct {
	Name string
}

func (e *CurrentlyInCreationError) Error() string {
	return fmt.Sprintf("artifact: %q is currently in creation (unresolvable circular reference?)", e.Name)
}

// CreationNotAllowedError 登记表整体销毁期间请求创建单例。
type CreationNotAllowedError struct {
	Name string
}

func (e *CreationNotAllowedError) Error() string {
	return fmt.Sprintf("artifact: singleton %q cannot be created while the registry is being destroyed", e.Name)
}

// UnresolvedDependencyError 必需依赖没有可用候选。
type UnresolvedDependencyError struct {
	Type           reflect.Type
	RequestingName string
}

func (e *UnresolvedDependencyError) Error() string {
	if e.RequestingName != "" {
		return fmt.Sprintf("artifact: no candidate of type %v available for %q", e.Type, e.RequestingName)
	}
	return fmt.Sprintf("artifact: no candidate of type %v available", e.Type)
}

// AmbiguousDependencyError 多个同等合格候选且裁决规则无法区分。
type AmbiguousDependencyError struct {
	Type       reflect.Type
	Candidates []string
}

func (e *AmbiguousDependencyError) Error() string {
	return fmt.Sprintf("artifact: expected a single candidate of type %v but found %d: %s",
		e.Type, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// TypeMismatchError 值无法转换为目标类型。
type TypeMismatchError struct {
	Value  any
	Target reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("artifact: cannot convert value of type %T to %v", e.Value, e.Target)
}

// NotOfRequiredTypeError 解析出的工件运行时类型与请求类型不兼容。
type NotOfRequiredTypeError struct {
	Name     string
	Required reflect.Type
	Actual   reflect.Type
}

func (e *NotOfRequiredTypeError) Error() string {
	return fmt.Sprintf("artifact: %q is of type %v, not assignable to required type %v",
		e.Name, e.Actual, e.Required)
}

// NotAFactoryError 对非工厂工件使用了解引用前缀。
type NotAFactoryError struct {
	Name string
	Type reflect.Type
}

func (e *NotAFactoryError) Error() string {
	return fmt.Sprintf("artifact: %q (type %v) is not a factory artifact but was dereferenced with %q",
		e.Name, e.Type, FactoryPrefix)
}

// InstantiationError 外部实例化策略失败。
type InstantiationError struct {
	Name  string
	Cause error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("artifact: failed to instantiate %q: %v", e.Name, e.Cause)
}

func (e *InstantiationError) Unwrap() error {
	return e.Cause
}

// CreationError 工件创建失败的外层包装。
// Related 携带嵌套创建期间被抑制的错误，用于诊断循环引用的根因。
type CreationError struct {
	Name    string
	Phase   string // "instantiation" / "population" / "initialization" / "depends-on"
	Cause   error
	Related []error
}

func (e *CreationError) Error() string {
	msg := fmt.Sprintf("artifact: error creating %q", e.Name)
	if e.Phase != "" {
		msg += " during " + e.Phase
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if len(e.Related) > 0 {
		related := make([]string, len(e.Related))
		for i, r := range e.Related {
			related[i] = r.Error()
		}
		msg += " (related: " + strings.Join(related, "; ") + ")"
	}
	return msg
}

func (e *CreationError) Unwrap() error {
	return e.Cause
}

// wrapCreationError 在已是 CreationError 时保持原样，避免重复包装同名错误。
func wrapCreationError(name, phase string, cause error, related []error) error {
	var ce *CreationError
	if errors.As(cause, &ce) && ce.Name == name {
		if len(related) > 0 {
			ce.Related = append(ce.Related, related...)
		}
		return cause
	}
	return &CreationError{Name: name, Phase: phase, Cause: cause, Related: related}
}
