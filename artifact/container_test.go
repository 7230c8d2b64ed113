package artifact_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gocrud/ioc/artifact"
)

type repo struct {
	DSN string
}

func newRepo() *repo {
	return &repo{DSN: "sqlite://memory"}
}

type service struct {
	Repo *repo `di:"repo"`
}

func newService(r *repo) *service {
	return &service{Repo: r}
}

func TestGetSingleton(t *testing.T) {
	c := artifact.NewContainer()
	if err := c.RegisterDefinition("repo", artifact.WithConstructor(newRepo)); err != nil {
		t.Fatalf("RegisterDefinition failed: %v", err)
	}

	first, err := c.Get("repo")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := c.Get("repo")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if first != second {
		t.Fatal("singleton scope must return the same instance")
	}
	if first.(*repo).DSN != "sqlite://memory" {
		t.Errorf("DSN = %q", first.(*repo).DSN)
	}
}

func TestGetPrototype(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("repo", artifact.WithConstructor(newRepo), artifact.WithPrototype())

	first, _ := c.Get("repo")
	second, _ := c.Get("repo")
	if first == second {
		t.Fatal("prototype scope must return distinct instances")
	}
}

func TestGetUnknownName(t *testing.T) {
	c := artifact.NewContainer()
	_, err := c.Get("ghost")
	var notFound *artifact.NoSuchDefinitionError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NoSuchDefinitionError, got %v", err)
	}
}

func TestConstructorAutowiring(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("repo", artifact.WithConstructor(newRepo))
	c.RegisterDefinition("service", artifact.WithConstructor(newService))

	obj, err := c.Get("service")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	svc := obj.(*service)
	if svc.Repo == nil {
		t.Fatal("constructor dependency was not autowired")
	}

	r, _ := c.Get("repo")
	if svc.Repo != r.(*repo) {
		t.Fatal("autowired dependency must be the shared singleton")
	}
}

func TestFieldInjection(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("repo", artifact.WithConstructor(newRepo))
	c.RegisterDefinition("service", artifact.Typed[*service]())

	obj, err := c.Get("service")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if obj.(*service).Repo == nil {
		t.Fatal("tagged field was not injected")
	}
}

type settings struct {
	Host    string
	Port    int
	Backend *repo
}

func TestPropertyInjection(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("repo", artifact.WithConstructor(newRepo))
	c.RegisterDefinition("settings",
		artifact.Typed[*settings](),
		artifact.WithProperty("host", "127.0.0.1"),
		artifact.WithProperty("port", "8080"), // 字符串字面量经类型转换
		artifact.WithPropertyRef("backend", "repo"),
	)

	obj, err := c.Get("settings")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	s := obj.(*settings)
	if s.Host != "127.0.0.1" || s.Port != 8080 {
		t.Errorf("settings = %+v", s)
	}
	if s.Backend == nil {
		t.Error("ref property was not resolved")
	}
}

func TestGetAsConverts(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("timeout", artifact.WithInstance("1500ms"))

	obj, err := c.GetAs("timeout", artifact.TypeOf[time.Duration]())
	if err != nil {
		t.Fatalf("GetAs failed: %v", err)
	}
	if obj.(time.Duration) != 1500*time.Millisecond {
		t.Errorf("converted = %v", obj)
	}
}

func TestResolveGeneric(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("repo", artifact.WithConstructor(newRepo))

	r, err := artifact.Resolve[*repo](c, "repo")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if r.DSN == "" {
		t.Error("resolved instance is incomplete")
	}

	if _, err := artifact.Resolve[*service](c, "repo"); err == nil {
		t.Fatal("type assertion mismatch should fail")
	}
}

// 构造注入环无法通过提前暴露打破，必须快速失败
type ctorA struct{ b *ctorB }
type ctorB struct{ a *ctorA }

func TestCircularConstructorFails(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("a", artifact.WithConstructor(func(b *ctorB) *ctorA { return &ctorA{b: b} }))
	c.RegisterDefinition("b", artifact.WithConstructor(func(a *ctorA) *ctorB { return &ctorB{a: a} }))

	_, err := c.Get("a")
	var inCreation *artifact.CurrentlyInCreationError
	if !errors.As(err, &inCreation) {
		t.Fatalf("expected CurrentlyInCreationError in the chain, got %v", err)
	}
	var creation *artifact.CreationError
	if !errors.As(err, &creation) {
		t.Fatalf("expected CreationError wrapper, got %v", err)
	}
	if creation.Name != "a" {
		t.Errorf("outermost failure name = %q, want a", creation.Name)
	}

	// 失败后重注册为可解的形式仍然可用
	c.RegisterDefinition("leafB", artifact.WithConstructor(func() *ctorB { return &ctorB{} }))
	if _, err := c.Get("leafB"); err != nil {
		t.Fatalf("container unusable after circular failure: %v", err)
	}
}

// 属性注入环通过提前暴露的半成品引用解析
type nodeA struct {
	B *nodeB `di:"b"`
}
type nodeB struct {
	A *nodeA `di:"a"`
}

func TestCircularPropertyResolvedViaEarlyReference(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("a", artifact.Typed[*nodeA]())
	c.RegisterDefinition("b", artifact.Typed[*nodeB]())

	objA, err := c.Get("a")
	if err != nil {
		t.Fatalf("Get(a) failed: %v", err)
	}
	a := objA.(*nodeA)
	if a.B == nil || a.B.A != a {
		t.Fatal("property cycle was not closed via early reference")
	}

	objB, _ := c.Get("b")
	if objB.(*nodeB) != a.B {
		t.Fatal("both participants must be the same singletons")
	}
}

func TestCircularPropertyRejectedWhenDisallowed(t *testing.T) {
	c := artifact.NewContainer()
	c.SetAllowCircularReferences(false)
	c.RegisterDefinition("a", artifact.Typed[*nodeA]())
	c.RegisterDefinition("b", artifact.Typed[*nodeB]())

	_, err := c.Get("a")
	var inCreation *artifact.CurrentlyInCreationError
	if !errors.As(err, &inCreation) {
		t.Fatalf("expected CurrentlyInCreationError, got %v", err)
	}
}

func TestDependsOnOrdering(t *testing.T) {
	c := artifact.NewContainer()
	var created, destroyed []string
	define := func(name string, deps ...string) {
		opts := []artifact.Option{
			artifact.WithConstructor(func() *repo {
				created = append(created, name)
				return &repo{}
			}),
			artifact.WithDestroy(func(any) { destroyed = append(destroyed, name) }),
		}
		if len(deps) > 0 {
			opts = append(opts, artifact.WithDependsOn(deps...))
		}
		c.RegisterDefinition(name, opts...)
	}
	define("c")
	define("b", "c")
	define("a", "b")

	if _, err := c.Get("a"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fmt.Sprint(created) != "[c b a]" {
		t.Fatalf("creation order = %v, want [c b a]", created)
	}

	// 依赖方先于被依赖方销毁
	c.Close()
	if fmt.Sprint(destroyed) != "[a b c]" {
		t.Fatalf("destruction order = %v, want [a b c]", destroyed)
	}
}

func TestCircularDependsOnRejected(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("a", artifact.WithConstructor(newRepo), artifact.WithDependsOn("b"))
	c.RegisterDefinition("b", artifact.WithConstructor(newRepo), artifact.WithDependsOn("a"))

	_, err := c.Get("a")
	var creation *artifact.CreationError
	if !errors.As(err, &creation) {
		t.Fatalf("expected CreationError, got %v", err)
	}
	if creation.Phase != "depends-on" {
		t.Errorf("phase = %q, want depends-on", creation.Phase)
	}
}

func TestAbstractDefinitionCannotBeCreated(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("template", artifact.WithAbstract(), artifact.WithLazyInit(),
		artifact.WithProperty("host", "localhost"))

	_, err := c.Get("template")
	var abstract *artifact.AbstractDefinitionError
	if !errors.As(err, &abstract) {
		t.Fatalf("expected AbstractDefinitionError, got %v", err)
	}

	// 继承该模板的具体定义可以创建
	c.RegisterDefinition("concrete", artifact.WithParent("template"), artifact.Typed[*settings]())
	obj, err := c.Get("concrete")
	if err != nil {
		t.Fatalf("Get(concrete) failed: %v", err)
	}
	if obj.(*settings).Host != "localhost" {
		t.Error("inherited property was not applied")
	}
}

func TestParentContainerDelegation(t *testing.T) {
	parent := artifact.NewContainer()
	parent.RegisterDefinition("repo", artifact.WithConstructor(newRepo))

	child := artifact.NewContainer()
	child.SetParent(parent)

	obj, err := child.Get("repo")
	if err != nil {
		t.Fatalf("child Get failed: %v", err)
	}
	fromParent, _ := parent.Get("repo")
	if obj != fromParent {
		t.Fatal("delegated lookup must return the parent's singleton")
	}

	// 本地同名定义遮蔽父容器
	child.RegisterDefinition("repo", artifact.WithConstructor(func() *repo {
		return &repo{DSN: "local"}
	}))
	local, _ := child.Get("repo")
	if local.(*repo).DSN != "local" {
		t.Fatal("local definition must shadow the parent")
	}
}

func TestAliasResolvesToSameInstance(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("repo", artifact.WithConstructor(newRepo))
	if err := c.RegisterAlias("repo", "dataSource"); err != nil {
		t.Fatalf("RegisterAlias failed: %v", err)
	}

	byName, _ := c.Get("repo")
	byAlias, err := c.Get("dataSource")
	if err != nil {
		t.Fatalf("Get by alias failed: %v", err)
	}
	if byName != byAlias {
		t.Fatal("alias must resolve to the same singleton")
	}
}

type initTracked struct {
	afterInit bool
	initFunc  bool
}

func (i *initTracked) AfterInit() error {
	i.afterInit = true
	return nil
}

func TestInitializationCallbacks(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("tracked",
		artifact.Typed[*initTracked](),
		artifact.WithInit(func(obj any) error {
			tr := obj.(*initTracked)
			if !tr.afterInit {
				return errors.New("interface callback must run before the definition callback")
			}
			tr.initFunc = true
			return nil
		}),
	)

	obj, err := c.Get("tracked")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	tr := obj.(*initTracked)
	if !tr.afterInit || !tr.initFunc {
		t.Errorf("callbacks: afterInit=%v initFunc=%v", tr.afterInit, tr.initFunc)
	}
}

func TestInitErrorSurfacesAsCreationError(t *testing.T) {
	c := artifact.NewContainer()
	boom := errors.New("handshake failed")
	c.RegisterDefinition("conn",
		artifact.WithConstructor(newRepo),
		artifact.WithInit(func(any) error { return boom }),
	)

	_, err := c.Get("conn")
	var creation *artifact.CreationError
	if !errors.As(err, &creation) {
		t.Fatalf("expected CreationError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("original cause lost from the error chain")
	}
}

func TestPreInstantiateSingletons(t *testing.T) {
	c := artifact.NewContainer()
	counters := map[string]*int{}
	define := func(name string, opts ...artifact.Option) {
		n := new(int)
		counters[name] = n
		opts = append(opts, artifact.WithConstructor(func() *repo {
			*n++
			return &repo{}
		}))
		c.RegisterDefinition(name, opts...)
	}
	define("eager")
	define("lazy", artifact.WithLazyInit())
	define("proto", artifact.WithPrototype())

	if err := c.PreInstantiateSingletons(); err != nil {
		t.Fatalf("PreInstantiateSingletons failed: %v", err)
	}
	if *counters["eager"] != 1 {
		t.Errorf("eager created %d times, want 1", *counters["eager"])
	}
	if *counters["lazy"] != 0 {
		t.Error("lazy singleton must not be pre-instantiated")
	}
	if *counters["proto"] != 0 {
		t.Error("prototype must not be pre-instantiated")
	}

	// 扫描后按需创建仍然有效
	if _, err := c.Get("lazy"); err != nil {
		t.Fatalf("Get(lazy) failed: %v", err)
	}
	if *counters["lazy"] != 1 {
		t.Errorf("lazy created %d times after Get, want 1", *counters["lazy"])
	}
}

func TestRegisterSingletonParticipates(t *testing.T) {
	c := artifact.NewContainer()
	shared := &repo{DSN: "manual"}
	if err := c.RegisterSingleton("repo", shared); err != nil {
		t.Fatalf("RegisterSingleton failed: %v", err)
	}

	obj, err := c.Get("repo")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if obj != any(shared) {
		t.Fatal("manual singleton not served by Get")
	}

	// 手工单例参与按类型装配
	c.RegisterDefinition("service", artifact.WithConstructor(newService))
	svc, err := c.Get("service")
	if err != nil {
		t.Fatalf("Get(service) failed: %v", err)
	}
	if svc.(*service).Repo != shared {
		t.Fatal("manual singleton not matched by type")
	}
}

func TestDestroySingletonCascades(t *testing.T) {
	c := artifact.NewContainer()
	var destroyed []string
	c.RegisterDefinition("repo",
		artifact.WithConstructor(newRepo),
		artifact.WithDestroy(func(any) { destroyed = append(destroyed, "repo") }))
	c.RegisterDefinition("service",
		artifact.WithConstructor(newService),
		artifact.WithDestroy(func(any) { destroyed = append(destroyed, "service") }))

	if _, err := c.Get("service"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// 销毁被依赖方时依赖方先行销毁
	c.DestroySingleton("repo")
	if fmt.Sprint(destroyed) != "[service repo]" {
		t.Fatalf("destroyed = %v, want [service repo]", destroyed)
	}

	// 销毁后按需重建
	obj, err := c.Get("service")
	if err != nil {
		t.Fatalf("Get after destroy failed: %v", err)
	}
	if obj.(*service).Repo == nil {
		t.Fatal("recreated service missing its dependency")
	}
}

type requestScope struct {
	instances map[string]any
	destroys  map[string]func()
}

func newRequestScope() *requestScope {
	return &requestScope{instances: map[string]any{}, destroys: map[string]func(){}}
}

func (s *requestScope) Get(name string, factory artifact.ObjectFactory) (any, error) {
	if obj, ok := s.instances[name]; ok {
		return obj, nil
	}
	obj, err := factory()
	if err != nil {
		return nil, err
	}
	s.instances[name] = obj
	return obj, nil
}

func (s *requestScope) Remove(name string) any {
	obj := s.instances[name]
	delete(s.instances, name)
	return obj
}

func (s *requestScope) RegisterDestructionCallback(name string, callback func()) {
	s.destroys[name] = callback
}

func TestCustomScope(t *testing.T) {
	c := artifact.NewContainer()
	scope := newRequestScope()
	if err := c.RegisterScope("request", scope); err != nil {
		t.Fatalf("RegisterScope failed: %v", err)
	}
	// 内置作用域不可替换
	if err := c.RegisterScope("singleton", scope); err == nil {
		t.Fatal("replacing a built-in scope should fail")
	}

	c.RegisterDefinition("ctx",
		artifact.WithConstructor(newRepo),
		artifact.WithScope("request"),
		artifact.WithDestroy(func(any) {}))

	first, err := c.Get("ctx")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, _ := c.Get("ctx")
	if first != second {
		t.Fatal("scope provider should have cached the instance")
	}
	if _, ok := scope.destroys["ctx"]; !ok {
		t.Error("destruction callback was not registered with the scope")
	}

	// 未注册的作用域名报错
	c.RegisterDefinition("bad", artifact.WithConstructor(newRepo), artifact.WithScope("session"))
	if _, err := c.Get("bad"); err == nil {
		t.Fatal("unknown scope should fail")
	}
}

func TestNestedDefinitionValue(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("service",
		artifact.Typed[*service](),
		artifact.WithFieldInjection(false),
		artifact.WithProperty("repo", artifact.Nested(
			artifact.NewDefinition(artifact.WithConstructor(func() *repo { return &repo{DSN: "nested"} })),
		)),
	)

	obj, err := c.Get("service")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := obj.(*service).Repo.DSN; got != "nested" {
		t.Errorf("nested DSN = %q", got)
	}
}
