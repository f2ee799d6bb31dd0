package container

import (
	"reflect"
	"sync"
	"testing"

	"github.com/toutaio/loom/internal/errs"
)

type Engine struct{ Serial string }

type Car struct {
	Engine *Engine
}

func TestRegisterAndResolveInstance(t *testing.T) {
	c := New(nil)
	eng := &Engine{Serial: "e-1"}
	if err := c.Register(eng); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := c.Resolve(reflect.TypeOf(eng))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.(*Engine) != eng {
		t.Fatalf("resolved instance differs from registered instance")
	}
}

func TestRegisterFactory(t *testing.T) {
	c := New(nil)
	calls := 0
	engType := reflect.TypeOf(&Engine{})
	err := c.RegisterFactory(engType, func() (any, error) {
		calls++
		return &Engine{Serial: "factory"}, nil
	})
	if err != nil {
		t.Fatalf("RegisterFactory: %v", err)
	}

	for i := 0; i < 3; i++ {
		v, err := c.Resolve(engType)
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
		if v.(*Engine).Serial != "factory" {
			t.Fatalf("unexpected value: %+v", v)
		}
	}
	if calls != 1 {
		t.Fatalf("factory should run exactly once, ran %d times", calls)
	}
}

func TestRegisterAutoWired(t *testing.T) {
	c := New(nil)
	if err := c.RegisterAutoWired(func() (*Engine, error) {
		return &Engine{Serial: "auto"}, nil
	}); err != nil {
		t.Fatalf("RegisterAutoWired(Engine): %v", err)
	}
	if err := c.RegisterAutoWired(func(e *Engine) *Car {
		return &Car{Engine: e}
	}); err != nil {
		t.Fatalf("RegisterAutoWired(Car): %v", err)
	}

	v, err := c.Resolve(reflect.TypeOf(&Car{}))
	if err != nil {
		t.Fatalf("Resolve(Car): %v", err)
	}
	car := v.(*Car)
	if car.Engine == nil || car.Engine.Serial != "auto" {
		t.Fatalf("dependency not injected: %+v", car)
	}
}

func TestResolveUnregisteredReturnsBeanNotFound(t *testing.T) {
	c := New(nil)
	_, err := c.Resolve(reflect.TypeOf(&Engine{}))
	if !errs.Is(err, errs.CodeBeanNotFound) {
		t.Fatalf("expected BEAN_NOT_FOUND, got %v", err)
	}
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	c := New(nil)
	e1, e2 := &Engine{Serial: "a"}, &Engine{Serial: "b"}
	if err := c.Register(e1); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := c.Register(e2)
	if !errs.Is(err, errs.CodeDuplicateRegistration) {
		t.Fatalf("expected DUPLICATE_REGISTRATION, got %v", err)
	}
}

type cycleA struct{ B *cycleB }
type cycleB struct{ A *cycleA }

func TestCircularDependencyDetected(t *testing.T) {
	c := New(nil)
	if err := c.RegisterAutoWired(func(b *cycleB) *cycleA { return &cycleA{B: b} }); err != nil {
		t.Fatalf("register A: %v", err)
	}
	if err := c.RegisterAutoWired(func(a *cycleA) *cycleB { return &cycleB{A: a} }); err != nil {
		t.Fatalf("register B: %v", err)
	}

	_, err := c.Resolve(reflect.TypeOf(&cycleA{}))
	if !errs.Is(err, errs.CodeCircularDependency) {
		t.Fatalf("expected CIRCULAR_DEPENDENCY, got %v", err)
	}
}

// TestConcurrentFirstResolveConverges exercises spec testable property
// #1: concurrent first-resolution from many goroutines must converge
// on a single constructed instance.
func TestConcurrentFirstResolveConverges(t *testing.T) {
	c := New(nil)
	var built int32
	var mu sync.Mutex
	if err := c.RegisterAutoWired(func() *Engine {
		mu.Lock()
		built++
		mu.Unlock()
		return &Engine{Serial: "concurrent"}
	}); err != nil {
		t.Fatalf("RegisterAutoWired: %v", err)
	}

	const n = 32
	results := make([]*Engine, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := c.Resolve(reflect.TypeOf(&Engine{}))
			if err != nil {
				t.Errorf("Resolve: %v", err)
				return
			}
			results[i] = v.(*Engine)
		}(i)
	}
	wg.Wait()

	if built != 1 {
		t.Fatalf("expected exactly 1 construction, got %d", built)
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d observed a different instance", i)
		}
	}
}

func TestCloseInvokesClosersInReverseOrder(t *testing.T) {
	c := New(nil)
	var order []string
	mk := func(name string) *closingBean {
		return &closingBean{name: name, record: &order}
	}

	first := mk("first")
	second := mk("second")
	if err := c.Register(first); err != nil {
		t.Fatalf("register first: %v", err)
	}
	if err := c.Register(second); err != nil {
		t.Fatalf("register second: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("expected reverse close order, got %v", order)
	}

	// Idempotent: a second Close must not re-invoke closers.
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(order) != 2 {
		t.Fatalf("Close ran closers again: %v", order)
	}
}

type closingBean struct {
	name   string
	record *[]string
}

func (b *closingBean) Close() error {
	*b.record = append(*b.record, b.name)
	return nil
}
