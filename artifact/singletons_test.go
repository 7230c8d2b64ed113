package artifact

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSingletonRegisterAndGet(t *testing.T) {
	r := NewSingletonRegistry()
	obj := &struct{ V int }{V: 1}
	if err := r.Register("a", obj); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	got, ok := r.Get("a", false)
	if !ok || got != any(obj) {
		t.Fatal("Get did not return the registered instance")
	}
	// 已绑定名称不可重复注册
	if err := r.Register("a", &struct{ V int }{}); err == nil {
		t.Fatal("re-registering a bound name should fail")
	}
}

// 并发取同名单例：工厂恰好执行一次，所有调用方拿到同一实例
func TestGetOrCreateConcurrentSingleFlight(t *testing.T) {
	r := NewSingletonRegistry()
	var created atomic.Int32

	const goroutines = 32
	results := make([]any, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(idx int) {
			defer wg.Done()
			obj, err := r.GetOrCreate("conn", newCreationContext(), func() (any, error) {
				created.Add(1)
				return &struct{ ID int }{ID: idx}, nil
			})
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
				return
			}
			results[idx] = obj
		}(i)
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Fatalf("factory invoked %d times, want exactly 1", got)
	}
	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent callers observed different instances")
		}
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

// 同一创建链重入同名创建必须立即失败而非死锁
func TestGetOrCreateReentrantFails(t *testing.T) {
	r := NewSingletonRegistry()
	cc := newCreationContext()

	_, err := r.GetOrCreate("a", cc, func() (any, error) {
		_, innerErr := r.GetOrCreate("a", cc, func() (any, error) {
			return "never", nil
		})
		return nil, innerErr
	})

	var inCreation *CurrentlyInCreationError
	if !errors.As(err, &inCreation) {
		t.Fatalf("expected CurrentlyInCreationError, got %v", err)
	}
	if inCreation.Name != "a" {
		t.Errorf("error name = %q, want a", inCreation.Name)
	}
	// 失败后不得残留半注册状态
	if r.Contains("a") {
		t.Error("failed creation must not leave a partial singleton")
	}
	if r.IsInCreation("a") {
		t.Error("in-creation marker must be cleared after failure")
	}
}

func TestGetOrCreateFactoryError(t *testing.T) {
	r := NewSingletonRegistry()
	boom := errors.New("db unreachable")

	_, err := r.GetOrCreate("db", newCreationContext(), func() (any, error) {
		return nil, boom
	})
	var creation *CreationError
	if !errors.As(err, &creation) {
		t.Fatalf("expected CreationError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("original cause must stay reachable via errors.Is")
	}

	// 失败后名称可以重试
	obj, err := r.GetOrCreate("db", newCreationContext(), func() (any, error) {
		return "ok", nil
	})
	if err != nil || obj != "ok" {
		t.Fatalf("retry after failure: obj=%v err=%v", obj, err)
	}
}

// 嵌套创建失败时，内层错误作为被抑制错误附加到最外层创建错误上
func TestGetOrCreateSuppressedErrors(t *testing.T) {
	r := NewSingletonRegistry()
	cc := newCreationContext()
	inner := errors.New("inner dependency broken")

	_, err := r.GetOrCreate("outer", cc, func() (any, error) {
		_, innerErr := r.GetOrCreate("inner", cc, func() (any, error) {
			return nil, inner
		})
		return nil, fmt.Errorf("outer construction: %w", innerErr)
	})

	var creation *CreationError
	if !errors.As(err, &creation) {
		t.Fatalf("expected CreationError, got %v", err)
	}
	if creation.Name != "outer" {
		t.Errorf("outermost error name = %q, want outer", creation.Name)
	}
	if len(creation.Related) == 0 {
		t.Fatal("suppressed inner error should be attached to the outermost failure")
	}
	if !errors.Is(creation.Related[0], inner) {
		t.Errorf("related[0] = %v, want wrapping of inner cause", creation.Related[0])
	}
}

func TestEarlyReference(t *testing.T) {
	r := NewSingletonRegistry()
	half := &struct{ Ready bool }{}

	done := make(chan struct{})
	r.mu.Lock()
	r.inCreation["a"] = struct{}{}
	r.mu.Unlock()
	r.AddEarlyFactory("a", func() any {
		close(done)
		return half
	})

	// 创建中 + allowEarly：通过工厂暴露半成品引用
	got, ok := r.Get("a", true)
	if !ok || got != any(half) {
		t.Fatal("early reference was not exposed")
	}
	select {
	case <-done:
	default:
		t.Fatal("early factory was not invoked")
	}

	// 再次取用命中缓存的提前引用，工厂只执行一次
	again, ok := r.Get("a", false)
	if !ok || again != any(half) {
		t.Fatal("cached early reference should be served without allowEarly")
	}

	// 完全创建后提前引用缓存被清除
	r.mu.Lock()
	delete(r.inCreation, "a")
	r.addSingletonLocked("a", half)
	if _, leftover := r.earlyRefs["a"]; leftover {
		t.Error("early reference cache must be cleared on full creation")
	}
	r.mu.Unlock()
}

func TestEarlyReferenceRequiresInCreation(t *testing.T) {
	r := NewSingletonRegistry()
	r.AddEarlyFactory("a", func() any { return "half" })

	// 不在创建中：提前引用不可见
	if _, ok := r.Get("a", true); ok {
		t.Fatal("early reference must only be visible while in creation")
	}
}

// 依赖方先于被依赖方销毁：c <- b <- a 时销毁 c 级联出 a, b, c
func TestDestroyDependentsFirst(t *testing.T) {
	r := NewSingletonRegistry()
	var log []string
	add := func(name string) {
		r.Register(name, name)
		r.RegisterDisposable(name, func() { log = append(log, name) })
	}
	add("c")
	add("b")
	add("a")
	r.RegisterDependent("c", "b") // b 依赖 c
	r.RegisterDependent("b", "a") // a 依赖 b

	r.Destroy("c")

	if len(log) != 3 || log[0] != "a" || log[1] != "b" || log[2] != "c" {
		t.Fatalf("destroy order = %v, want [a b c]", log)
	}
	if r.Count() != 0 {
		t.Errorf("Count after cascade = %d, want 0", r.Count())
	}

	// 重复销毁是无害的空操作
	r.Destroy("c")
}

func TestDestroyAllReverseOrder(t *testing.T) {
	r := NewSingletonRegistry()
	var log []string
	for _, name := range []string{"first", "second", "third"} {
		n := name
		r.Register(n, n)
		r.RegisterDisposable(n, func() { log = append(log, n) })
	}

	r.DestroyAll()

	want := []string{"third", "second", "first"}
	if len(log) != len(want) {
		t.Fatalf("destroy log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("destroy log = %v, want %v", log, want)
		}
	}
	if r.Count() != 0 || len(r.Names()) != 0 {
		t.Error("registry should be empty after DestroyAll")
	}
	if r.InDestruction() {
		t.Error("destroying flag must be reset after DestroyAll")
	}
}

// 销毁回调 panic 被吸收，级联继续
func TestDestroyCallbackPanicDoesNotAbortCascade(t *testing.T) {
	r := NewSingletonRegistry()
	var log []string
	r.Register("a", "a")
	r.RegisterDisposable("a", func() { panic("dispose failed") })
	r.Register("b", "b")
	r.RegisterDisposable("b", func() { log = append(log, "b") })
	r.RegisterDependent("b", "a")

	r.Destroy("b")

	if len(log) != 1 || log[0] != "b" {
		t.Fatalf("cascade interrupted by panic: log = %v", log)
	}
}

func TestDestroyContainedInner(t *testing.T) {
	r := NewSingletonRegistry()
	var log []string
	r.Register("outer", "outer")
	r.RegisterDisposable("outer", func() { log = append(log, "outer") })
	r.Register("inner#1", "inner")
	r.RegisterDisposable("inner#1", func() { log = append(log, "inner") })
	r.RegisterContained("inner#1", "outer")

	r.Destroy("outer")

	// 内部工件随容器对象销毁，但晚于容器对象自身的回调
	if len(log) != 2 || log[0] != "outer" || log[1] != "inner" {
		t.Fatalf("destroy order = %v, want [outer inner]", log)
	}
}

func TestHasDependentTransitive(t *testing.T) {
	r := NewSingletonRegistry()
	r.RegisterDependent("a", "b")
	r.RegisterDependent("b", "c")

	if !r.HasDependent("a", "b") {
		t.Error("direct dependent not reported")
	}
	if !r.HasDependent("a", "c") {
		t.Error("transitive dependent not reported")
	}
	if r.HasDependent("c", "a") {
		t.Error("reverse direction must not be reported")
	}

	// 依赖图意外成环时查询必须终止
	r.RegisterDependent("c", "a")
	if !r.HasDependent("a", "c") {
		t.Error("dependent lost after cycle registration")
	}
	_ = r.HasDependent("a", "zz") // 不得无限递归
}

func TestCreationNotAllowedDuringDestroyAll(t *testing.T) {
	r := NewSingletonRegistry()
	var createErr error
	r.Register("a", "a")
	r.RegisterDisposable("a", func() {
		_, createErr = r.GetOrCreate("late", newCreationContext(), func() (any, error) {
			return "late", nil
		})
	})

	r.DestroyAll()

	var notAllowed *CreationNotAllowedError
	if !errors.As(createErr, &notAllowed) {
		t.Fatalf("expected CreationNotAllowedError during destruction, got %v", createErr)
	}
}

func TestExcludeFromCreationCheck(t *testing.T) {
	r := NewSingletonRegistry()
	cc := newCreationContext()
	r.ExcludeFromCreationCheck("probe")

	// 豁免名称的创建不登记单例、不参与重入检查
	obj, err := r.GetOrCreate("probe", cc, func() (any, error) { return "typed", nil })
	if err != nil || obj != "typed" {
		t.Fatalf("excluded creation: obj=%v err=%v", obj, err)
	}
	if r.Contains("probe") {
		t.Error("excluded creation must not register a singleton")
	}

	r.IncludeInCreationCheck("probe")
	if _, err := r.GetOrCreate("probe", newCreationContext(), func() (any, error) { return "real", nil }); err != nil {
		t.Fatalf("creation after re-inclusion failed: %v", err)
	}
	if !r.Contains("probe") {
		t.Error("creation after re-inclusion should register the singleton")
	}
}
