// Package artifact 实现一个以名称为键的控制反转容器核心：
// 持有声明式的工件定义，并按需把它们解析为活动对象图，
// 处理实例化、依赖注入、生命周期回调与销毁排序。
//
// 核心由六个子系统组成：
//   - 定义登记表（DefinitionRegistry）：名称到定义的映射与别名，支持覆盖策略。
//   - 定义合并：把子/父定义继承链解析为单个可用的合并定义，带缓存与失效。
//   - 单例登记表（SingletonRegistry）：保存完全构建的单例；跟踪创建中状态以
//     支持通过提前暴露解析循环引用；跟踪依赖/包含关系以实现有序销毁。
//   - 依赖解析器：给定类型化/限定的注入点，在本地与父容器层级中收集候选，
//     应用 primary/优先级/名称裁决，返回单个实例、集合或惰性 Provider。
//   - 工厂工件解包：实例实现 Factory 接口的定义被特殊对待，类型预测与取值
//     都以工厂声明的产品类型为目标而非其自身类型。
//   - 生命周期：按 depends-on 与装配依赖排序创建，调用后置构造/销毁回调，
//     并按依赖关系逆序销毁。
//
// 配置格式解析、反射实例化策略与类型转换是外部协作者，
// 通过窄接口（InstantiationStrategy、TypeConverter）接入。
package artifact
