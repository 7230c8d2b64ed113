package artifact

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// InstantiationStrategy 外部实例化策略。
// 容器只负责编排使用哪些参数和哪个构造入口，
// 实际的反射调用由策略完成。
type InstantiationStrategy interface {
	// Instantiate 按合并定义构建一个新的原始实例。
	// args 是已解析的构造参数（仅当定义声明了构造函数时使用）。
	Instantiate(md *MergedDefinition, name string, args []reflect.Value) (any, error)

	// InstantiateWithMethod 通过工厂实例的方法构建实例。
	InstantiateWithMethod(md *MergedDefinition, name string, factoryInstance any, method string, args []reflect.Value) (any, error)
}

// reflectStrategy 默认的反射实例化策略。
type reflectStrategy struct{}

// NewReflectStrategy 创建默认的反射实例化策略。
func NewReflectStrategy() InstantiationStrategy {
	return reflectStrategy{}
}

// Instantiate 实现 InstantiationStrategy。
func (reflectStrategy) Instantiate(md *MergedDefinition, name string, args []reflect.Value) (any, error) {
	if md.Constructor != nil {
		return callFunc(reflect.ValueOf(md.Constructor), args)
	}

	typ := md.Type
	if typ == nil {
		return nil, &InstantiationError{Name: name,
			Cause: fmt.Errorf("definition declares neither a type nor a constructor")}
	}

	// 结构体（或结构体指针）：分配零值，字段注入由容器随后完成
	if typ.Kind() == reflect.Ptr {
		if typ.Elem().Kind() != reflect.Struct {
			return nil, &InstantiationError{Name: name,
				Cause: fmt.Errorf("cannot instantiate non-struct pointer type %v", typ)}
		}
		return reflect.New(typ.Elem()).Interface(), nil
	}
	if typ.Kind() == reflect.Struct {
		return reflect.New(typ).Elem().Interface(), nil
	}
	return nil, &InstantiationError{Name: name,
		Cause: fmt.Errorf("cannot instantiate type %v without a constructor", typ)}
}

// InstantiateWithMethod 实现 InstantiationStrategy。
func (reflectStrategy) InstantiateWithMethod(md *MergedDefinition, name string, factoryInstance any, method string, args []reflect.Value) (any, error) {
	fv := reflect.ValueOf(factoryInstance).MethodByName(method)
	if !fv.IsValid() {
		return nil, &InstantiationError{Name: name,
			Cause: fmt.Errorf("factory %T has no method %q", factoryInstance, method)}
	}
	return callFunc(fv, args)
}

// callFunc 调用构造函数/工厂方法并提取结果。
// 约定：第一个返回值是实例，最后一个返回值若为 error 则作为失败传播。
func callFunc(fn reflect.Value, args []reflect.Value) (any, error) {
	results := fn.Call(args)
	if len(results) == 0 {
		return nil, fmt.Errorf("constructor returned no values")
	}

	if len(results) > 1 {
		last := results[len(results)-1]
		if last.Type().Implements(errorType) {
			if !last.IsNil() {
				return nil, last.Interface().(error)
			}
		}
	}

	return results[0].Interface(), nil
}

// TypeConverter 外部类型转换契约。
// 给定一个值和目标类型，返回转换后的值或 TypeMismatchError。
type TypeConverter interface {
	Convert(value any, target reflect.Type) (any, error)
}

// defaultConverter 默认转换器：直接赋值、数值互转、
// 字符串到基础类型（含 time.Duration）的解析。
type defaultConverter struct{}

// NewDefaultConverter 创建默认类型转换器。
func NewDefaultConverter() TypeConverter {
	return defaultConverter{}
}

var durationType = reflect.TypeOf(time.Duration(0))

// Convert 实现 TypeConverter。
func (defaultConverter) Convert(value any, target reflect.Type) (any, error) {
	if value == nil {
		return reflect.Zero(target).Interface(), nil
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		return value, nil
	}

	// 字符串解析
	if s, ok := value.(string); ok {
		if target == durationType {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, &TypeMismatchError{Value: value, Target: target}
			}
			return d, nil
		}
		switch target.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, &TypeMismatchError{Value: value, Target: target}
			}
			return reflect.ValueOf(n).Convert(target).Interface(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return nil, &TypeMismatchError{Value: value, Target: target}
			}
			return reflect.ValueOf(n).Convert(target).Interface(), nil
		case reflect.Float32, reflect.Float64:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, &TypeMismatchError{Value: value, Target: target}
			}
			return reflect.ValueOf(f).Convert(target).Interface(), nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return nil, &TypeMismatchError{Value: value, Target: target}
			}
			return b, nil
		case reflect.String:
			return s, nil
		}
	}

	// 数值等可转换类型
	if v.Type().ConvertibleTo(target) {
		switch target.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64, reflect.String:
			return v.Convert(target).Interface(), nil
		}
	}

	return nil, &TypeMismatchError{Value: value, Target: target}
}
