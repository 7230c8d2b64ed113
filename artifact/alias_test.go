package artifact

import "testing"

func TestAliasResolution(t *testing.T) {
	r := newAliasRegistry()
	if err := r.RegisterAlias("service", "svc"); err != nil {
		t.Fatalf("RegisterAlias failed: %v", err)
	}

	if got := r.Canonical("svc"); got != "service" {
		t.Errorf("Canonical(svc) = %q, want %q", got, "service")
	}
	if got := r.Canonical("service"); got != "service" {
		t.Errorf("Canonical(service) = %q, want %q", got, "service")
	}
	if !r.IsAlias("svc") {
		t.Error("IsAlias(svc) should be true")
	}
	if r.IsAlias("service") {
		t.Error("IsAlias(service) should be false")
	}
}

// 链式别名必须传递解析到规范名
func TestAliasChain(t *testing.T) {
	r := newAliasRegistry()
	if err := r.RegisterAlias("service", "svc"); err != nil {
		t.Fatalf("RegisterAlias failed: %v", err)
	}
	if err := r.RegisterAlias("svc", "s"); err != nil {
		t.Fatalf("RegisterAlias failed: %v", err)
	}

	if got := r.Canonical("s"); got != "service" {
		t.Errorf("Canonical(s) = %q, want %q", got, "service")
	}

	aliases := r.Aliases("service")
	if len(aliases) != 2 {
		t.Fatalf("Aliases(service) = %v, want 2 entries", aliases)
	}
	seen := map[string]bool{}
	for _, a := range aliases {
		seen[a] = true
	}
	if !seen["svc"] || !seen["s"] {
		t.Errorf("Aliases(service) = %v, want svc and s", aliases)
	}
}

func TestAliasCycleRejected(t *testing.T) {
	r := newAliasRegistry()
	if err := r.RegisterAlias("a", "b"); err != nil {
		t.Fatalf("RegisterAlias(a, b) failed: %v", err)
	}
	// b -> a 已存在，注册 a -> b 会成环
	if err := r.RegisterAlias("b", "a"); err == nil {
		t.Fatal("circular alias registration should fail")
	}

	// 传递环同样拒绝：c -> b -> a，再注册 a -> c
	if err := r.RegisterAlias("b", "c"); err != nil {
		t.Fatalf("RegisterAlias(b, c) failed: %v", err)
	}
	if err := r.RegisterAlias("c", "a"); err == nil {
		t.Fatal("transitive circular alias registration should fail")
	}
}

func TestAliasSelfReferenceRemoves(t *testing.T) {
	r := newAliasRegistry()
	if err := r.RegisterAlias("service", "svc"); err != nil {
		t.Fatalf("RegisterAlias failed: %v", err)
	}
	// alias == name 移除既有映射
	if err := r.RegisterAlias("svc", "svc"); err != nil {
		t.Fatalf("self alias should be a no-op removal: %v", err)
	}
	if r.IsAlias("svc") {
		t.Error("svc should no longer be an alias")
	}
}

func TestAliasOverridePolicy(t *testing.T) {
	r := newAliasRegistry()
	r.RegisterAlias("first", "x")

	// 相同映射幂等
	if err := r.RegisterAlias("first", "x"); err != nil {
		t.Fatalf("idempotent re-registration failed: %v", err)
	}

	// 默认允许重绑定
	if err := r.RegisterAlias("second", "x"); err != nil {
		t.Fatalf("rebinding with override allowed failed: %v", err)
	}
	if got := r.Canonical("x"); got != "second" {
		t.Errorf("Canonical(x) = %q, want %q", got, "second")
	}

	r.allowOverride = false
	if err := r.RegisterAlias("third", "x"); err == nil {
		t.Fatal("rebinding with override disallowed should fail")
	}
}

func TestRemoveAlias(t *testing.T) {
	r := newAliasRegistry()
	r.RegisterAlias("service", "svc")
	if err := r.RemoveAlias("svc"); err != nil {
		t.Fatalf("RemoveAlias failed: %v", err)
	}
	if err := r.RemoveAlias("svc"); err == nil {
		t.Fatal("removing an unknown alias should fail")
	}
}
