package artifact_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gocrud/ioc/artifact"
)

type connection struct {
	seq int
}

type connFactory struct {
	created int
	eager   bool
}

func (f *connFactory) Product() (any, error) {
	f.created++
	return &connection{seq: f.created}, nil
}

func (f *connFactory) ProductType() reflect.Type {
	return artifact.TypeOf[*connection]()
}

func (f *connFactory) EagerInit() bool { return f.eager }

func TestFactoryUnwrapsToProduct(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("conn", artifact.WithConstructor(func() *connFactory {
		return &connFactory{}
	}))

	obj, err := c.Get("conn")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	product, ok := obj.(*connection)
	if !ok {
		t.Fatalf("Get returned %T, want unwrapped *connection", obj)
	}
	if product.seq != 1 {
		t.Errorf("seq = %d, want 1", product.seq)
	}
}

func TestFactoryDereference(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("conn", artifact.WithConstructor(func() *connFactory {
		return &connFactory{}
	}))

	obj, err := c.Get("&conn")
	if err != nil {
		t.Fatalf("Get(&conn) failed: %v", err)
	}
	factory, ok := obj.(*connFactory)
	if !ok {
		t.Fatalf("dereference returned %T, want the factory itself", obj)
	}

	// 产品与工厂出自同一个工厂单例
	product, err := c.Get("conn")
	if err != nil {
		t.Fatalf("Get(conn) failed: %v", err)
	}
	if product.(*connection).seq != factory.created {
		t.Error("product does not come from the dereferenced factory instance")
	}
}

// 单例工厂的产品被缓存：重复取值不再调用 Product
func TestFactoryProductCached(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("conn", artifact.WithConstructor(func() *connFactory {
		return &connFactory{}
	}))

	first, err := c.Get("conn")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, _ := c.Get("conn")
	if first != second {
		t.Fatal("cached product must be reference-identical")
	}

	obj, _ := c.Get("&conn")
	if obj.(*connFactory).created != 1 {
		t.Errorf("Product invoked %d times, want 1", obj.(*connFactory).created)
	}
}

func TestFactoryNilProductCached(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("void", artifact.WithConstructor(func() *nilFactory {
		return &nilFactory{}
	}))

	obj, err := c.Get("void")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if obj != nil {
		t.Fatalf("nil product surfaced as %v", obj)
	}

	// nil 产品同样只解析一次
	if _, err := c.Get("void"); err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	factory, _ := c.Get("&void")
	if factory.(*nilFactory).calls != 1 {
		t.Errorf("Product invoked %d times, want 1", factory.(*nilFactory).calls)
	}
}

type nilFactory struct{ calls int }

func (f *nilFactory) Product() (any, error) {
	f.calls++
	return nil, nil
}

func (f *nilFactory) ProductType() reflect.Type { return nil }

func TestDereferenceNonFactoryFails(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("plain", artifact.WithConstructor(newRepo))

	_, err := c.Get("&plain")
	var notFactory *artifact.NotAFactoryError
	if !errors.As(err, &notFactory) {
		t.Fatalf("expected NotAFactoryError, got %v", err)
	}
	if notFactory.Name != "plain" {
		t.Errorf("error name = %q, want plain", notFactory.Name)
	}
}

func TestFactoryProductError(t *testing.T) {
	c := artifact.NewContainer()
	boom := errors.New("pool exhausted")
	c.RegisterDefinition("bad", artifact.WithInstance(&errFactory{err: boom}))

	_, err := c.Get("bad")
	var creation *artifact.CreationError
	if !errors.As(err, &creation) {
		t.Fatalf("expected CreationError, got %v", err)
	}
	if creation.Phase != "factory product" {
		t.Errorf("phase = %q, want factory product", creation.Phase)
	}
	if !errors.Is(err, boom) {
		t.Error("product error lost from the chain")
	}
}

type errFactory struct{ err error }

func (f *errFactory) Product() (any, error)     { return nil, f.err }
func (f *errFactory) ProductType() reflect.Type { return nil }

// 按类型装配以产品类型为目标，而非工厂自身的类型
func TestFactoryMatchedByProductType(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("conn", artifact.WithConstructor(func() *connFactory {
		return &connFactory{}
	}))

	conn, err := artifact.ResolveByType[*connection](c)
	if err != nil {
		t.Fatalf("ResolveByType failed: %v", err)
	}
	if conn.seq != 1 {
		t.Errorf("seq = %d", conn.seq)
	}

	// 请求工厂自身的类型时不得拿到产品
	if _, err := artifact.ResolveByType[*connFactory](c); err == nil {
		t.Fatal("factory type must not be matched when the exposed type is the product")
	}
}

func TestEagerFactoryPreInstantiation(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("eagerConn", artifact.WithConstructor(func() *connFactory {
		return &connFactory{eager: true}
	}))
	c.RegisterDefinition("lazyConn", artifact.WithConstructor(func() *connFactory {
		return &connFactory{}
	}))

	if err := c.PreInstantiateSingletons(); err != nil {
		t.Fatalf("PreInstantiateSingletons failed: %v", err)
	}

	eager, _ := c.Get("&eagerConn")
	if eager.(*connFactory).created != 1 {
		t.Error("eager factory product should have been created during the scan")
	}
	lazy, _ := c.Get("&lazyConn")
	if lazy.(*connFactory).created != 0 {
		t.Error("non-eager factory product must stay untouched by the scan")
	}
}

func TestFactoryMethodInstantiation(t *testing.T) {
	c := artifact.NewContainer()
	c.RegisterDefinition("builder", artifact.WithInstance(&repoBuilder{prefix: "pg"}))
	c.RegisterDefinition("repo", artifact.WithFactoryMethod("builder", "Build"))

	obj, err := c.Get("repo")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := obj.(*repo).DSN; got != "pg://primary" {
		t.Errorf("DSN = %q, want pg://primary", got)
	}

	// 未知方法名报实例化错误
	c.RegisterDefinition("broken", artifact.WithFactoryMethod("builder", "Missing"))
	_, err = c.Get("broken")
	var instantiation *artifact.InstantiationError
	if !errors.As(err, &instantiation) {
		t.Fatalf("expected InstantiationError, got %v", err)
	}
}

type repoBuilder struct{ prefix string }

func (b *repoBuilder) Build() *repo {
	return &repo{DSN: b.prefix + "://primary"}
}
