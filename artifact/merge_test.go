package artifact

import (
	"errors"
	"testing"
)

func TestMergeWithoutParent(t *testing.T) {
	c := NewContainer()
	if err := c.RegisterDefinition("plain", WithPrototype(), WithProperty("x", 1)); err != nil {
		t.Fatalf("RegisterDefinition failed: %v", err)
	}

	md, err := c.MergedDefinition("plain")
	if err != nil {
		t.Fatalf("MergedDefinition failed: %v", err)
	}
	if md.ResolvedScope() != ScopePrototype {
		t.Errorf("scope = %q, want prototype", md.ResolvedScope())
	}
	if pv, ok := md.PropertyNamed("x"); !ok || pv.Value != 1 {
		t.Errorf("property x = %+v, want 1", pv)
	}
}

func TestMergeInheritsFromParentDefinition(t *testing.T) {
	c := NewContainer()
	c.RegisterDefinition("base",
		WithAbstract(),
		WithLazyInit(),
		WithPrototype(),
		WithProperty("host", "localhost"),
		WithProperty("port", 5432),
	)
	c.RegisterDefinition("child",
		WithParent("base"),
		WithProperty("port", 6432),
	)

	md, err := c.MergedDefinition("child")
	if err != nil {
		t.Fatalf("MergedDefinition failed: %v", err)
	}

	// 未覆盖的字段继承父定义
	if md.ResolvedScope() != ScopePrototype {
		t.Errorf("scope = %q, want inherited prototype", md.ResolvedScope())
	}
	if pv, _ := md.PropertyNamed("host"); pv.Value != "localhost" {
		t.Errorf("host = %v, want inherited localhost", pv.Value)
	}
	// 子定义的同名属性覆盖父属性
	if pv, _ := md.PropertyNamed("port"); pv.Value != 6432 {
		t.Errorf("port = %v, want child 6432", pv.Value)
	}
	// 布尔标志跟随子定义（子未声明 Abstract/LazyInit）
	if md.Abstract {
		t.Error("merged child must not be abstract")
	}
	if md.LazyInit {
		t.Error("merged child must not be lazy")
	}
	// 合并结果不再携带父引用
	if md.HasParent() {
		t.Error("merged definition must not carry a parent reference")
	}
}

func TestMergeChildScopeOverridesParent(t *testing.T) {
	c := NewContainer()
	c.RegisterDefinition("base", WithAbstract(), WithPrototype())
	c.RegisterDefinition("child", WithParent("base"), WithSingleton())

	md, err := c.MergedDefinition("child")
	if err != nil {
		t.Fatalf("MergedDefinition failed: %v", err)
	}
	if !md.IsSingleton() {
		t.Errorf("scope = %q, want child's singleton", md.ResolvedScope())
	}
}

func TestMergeDefaultScopeIsSingleton(t *testing.T) {
	c := NewContainer()
	c.RegisterDefinition("a")
	md, err := c.MergedDefinition("a")
	if err != nil {
		t.Fatalf("MergedDefinition failed: %v", err)
	}
	if !md.IsSingleton() {
		t.Errorf("scope = %q, want default singleton", md.ResolvedScope())
	}
}

// 合并幂等：配置未变化期间重复合并返回同一实例
func TestMergeReferenceStable(t *testing.T) {
	c := NewContainer()
	c.RegisterDefinition("a", WithProperty("x", 1))

	first, err := c.MergedDefinition("a")
	if err != nil {
		t.Fatalf("MergedDefinition failed: %v", err)
	}
	second, err := c.MergedDefinition("a")
	if err != nil {
		t.Fatalf("MergedDefinition failed: %v", err)
	}
	if first != second {
		t.Fatal("repeated merge must return the cached instance")
	}
}

func TestInvalidateMergedForcesRemerge(t *testing.T) {
	c := NewContainer()
	c.RegisterDefinition("a", WithProperty("x", 1))

	before, _ := c.MergedDefinition("a")

	def, _ := c.Definition("a")
	def.SetProperty("x", 2)
	c.InvalidateMerged("a")

	after, err := c.MergedDefinition("a")
	if err != nil {
		t.Fatalf("MergedDefinition after invalidation failed: %v", err)
	}
	if before == after {
		t.Fatal("invalidation must produce a fresh merged instance")
	}
	if pv, _ := after.PropertyNamed("x"); pv.Value != 2 {
		t.Errorf("x = %v, want updated 2", pv.Value)
	}
}

// 结构级联：父定义失效时所有子定义的合并缓存一并失效
func TestInvalidateMergedCascadesToChildren(t *testing.T) {
	c := NewContainer()
	c.RegisterDefinition("base", WithAbstract(), WithLazyInit(), WithProperty("x", 1))
	c.RegisterDefinition("mid", WithParent("base"))
	c.RegisterDefinition("leaf", WithParent("mid"))

	midBefore, _ := c.MergedDefinition("mid")
	leafBefore, _ := c.MergedDefinition("leaf")

	base, _ := c.Definition("base")
	base.SetProperty("x", 2)
	c.InvalidateMerged("base")

	midAfter, _ := c.MergedDefinition("mid")
	leafAfter, _ := c.MergedDefinition("leaf")
	if midBefore == midAfter {
		t.Error("mid merged cache should have been invalidated")
	}
	if leafBefore == leafAfter {
		t.Error("leaf merged cache should have been invalidated transitively")
	}
	if pv, _ := leafAfter.PropertyNamed("x"); pv.Value != 2 {
		t.Errorf("leaf x = %v, want propagated 2", pv.Value)
	}
}

func TestInvalidateMergedNotifiesObservers(t *testing.T) {
	c := NewContainer()
	c.RegisterDefinition("a")
	c.MergedDefinition("a")

	var resets []string
	c.AddMergedResetHook(func(name string) {
		resets = append(resets, name)
	})

	c.InvalidateMerged("a")
	if len(resets) != 1 || resets[0] != "a" {
		t.Fatalf("reset notifications = %v, want [a]", resets)
	}
}

func TestMergeCircularParentRejected(t *testing.T) {
	c := NewContainer()
	c.RegisterDefinition("a", WithParent("b"), WithLazyInit())
	c.RegisterDefinition("b", WithParent("a"), WithLazyInit())

	_, err := c.MergedDefinition("a")
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for circular parent chain, got %v", err)
	}
}

func TestMergeParentFromParentContainer(t *testing.T) {
	parent := NewContainer()
	parent.RegisterDefinition("base",
		WithAbstract(), WithLazyInit(), WithProperty("region", "eu-west"))

	child := NewContainer()
	child.SetParent(parent)
	child.RegisterDefinition("svc", WithParent("base"))

	md, err := child.MergedDefinition("svc")
	if err != nil {
		t.Fatalf("MergedDefinition failed: %v", err)
	}
	if pv, _ := md.PropertyNamed("region"); pv.Value != "eu-west" {
		t.Errorf("region = %v, want inherited eu-west", pv.Value)
	}
}

func TestMergeMissingParentFails(t *testing.T) {
	c := NewContainer()
	c.RegisterDefinition("svc", WithParent("ghost"))

	_, err := c.MergedDefinition("svc")
	var notFound *NoSuchDefinitionError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NoSuchDefinitionError, got %v", err)
	}
	if notFound.Name != "ghost" {
		t.Errorf("error name = %q, want ghost", notFound.Name)
	}
}

// 嵌套定义的作用域跟随外层：外层 prototype 时内层不得为 singleton
func TestNestedScopeFollowsContaining(t *testing.T) {
	c := NewContainer()

	outer := &MergedDefinition{Definition: Definition{Scope: ScopePrototype}}
	md, err := c.mergeNested(NewDefinition(), outer)
	if err != nil {
		t.Fatalf("mergeNested failed: %v", err)
	}
	if md.ResolvedScope() != ScopePrototype {
		t.Errorf("nested scope = %q, want demoted to prototype", md.ResolvedScope())
	}
}
