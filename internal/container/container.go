// Package container implements loom.Container: a type-keyed singleton
// object graph with reflection-based constructor autowiring and cycle
// detection, grounded on xraph-vessel's type_registry.go/constructor.go
// shape but simplified to a single global build lock (sanctioned by
// spec.md §9: "a global lock... acceptable for the expected bean count
// (< 10^4)") rather than per-type locking, which cannot rule out
// lock-order-inversion deadlocks across concurrently-resolving
// goroutines on a cyclic graph.
package container

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/toutaio/loom/internal/errs"
	"github.com/toutaio/loom/pkg/loom"
)

type mode int

const (
	modeInstance mode = iota
	modeFactory
	modeAutoWired
)

type descriptor struct {
	typ reflect.Type
	m   mode

	instance any
	factory  func() (any, error)

	ctor     reflect.Value
	ctorDeps []reflect.Type

	value any
	built bool
}

// Container is the concrete loom.Container implementation.
type Container struct {
	log *zap.Logger

	descMu      sync.RWMutex
	descriptors map[reflect.Type]*descriptor

	cacheMu sync.RWMutex
	cache   map[reflect.Type]any

	// buildMu serializes every top-level Resolve call end-to-end,
	// including all recursive dependency construction it triggers. This
	// is the "global lock" the Design Notes explicitly allow: it makes
	// concurrent first-resolution of the same type converge on one
	// instance (later callers block, then observe the cache), and it
	// makes lock-order-inversion deadlocks structurally impossible since
	// only one resolution is ever in flight.
	buildMu sync.Mutex

	orderMu sync.Mutex
	order   []reflect.Type

	closed bool
}

var _ loom.Container = (*Container)(nil)

// New builds an empty Container. log may be nil, in which case a no-op
// logger is used.
func New(log *zap.Logger) *Container {
	if log == nil {
		log = zap.NewNop()
	}
	return &Container{
		log:         log,
		descriptors: make(map[reflect.Type]*descriptor),
		cache:       make(map[reflect.Type]any),
	}
}

func (c *Container) register(t reflect.Type, d *descriptor) error {
	c.descMu.Lock()
	defer c.descMu.Unlock()
	if _, exists := c.descriptors[t]; exists {
		return errs.DuplicateRegistration(t.String())
	}
	c.descriptors[t] = d
	return nil
}

// Register adds a pre-built instance under its own declared type.
func (c *Container) Register(instance any) error {
	if instance == nil {
		return errs.New(errs.CodeConfigError, "cannot register nil instance", nil)
	}
	return c.RegisterAs(reflect.TypeOf(instance), instance)
}

// RegisterAs registers a pre-built instance under an explicit type.
func (c *Container) RegisterAs(t reflect.Type, instance any) error {
	d := &descriptor{typ: t, m: modeInstance, instance: instance, value: instance, built: true}
	if err := c.register(t, d); err != nil {
		return err
	}
	c.cacheMu.Lock()
	c.cache[t] = instance
	c.cacheMu.Unlock()
	c.recordOrder(t)
	return nil
}

// RegisterFactory defers construction to first resolution. Factories
// take no parameters, so they introduce no dependency edges and never
// participate in cycle detection.
func (c *Container) RegisterFactory(t reflect.Type, factory func() (any, error)) error {
	d := &descriptor{typ: t, m: modeFactory, factory: factory}
	return c.register(t, d)
}

// RegisterAutoWired declares a constructor function. Its parameter
// types become dependency edges; its first return value's type is the
// registered bean type. An optional trailing error return is honored.
//
// This mirrors xraph-vessel's analyzeConstructor but does not expand
// dig-style In/Out marker structs — a deliberate simplification
// documented in DESIGN.md, since no SPEC_FULL.md component needs
// grouped/optional/named multi-value constructor parameters.
func (c *Container) RegisterAutoWired(ctor any) error {
	cv := reflect.ValueOf(ctor)
	ct := cv.Type()
	if ct.Kind() != reflect.Func {
		return errs.New(errs.CodeConfigError, "RegisterAutoWired requires a function", nil)
	}
	if ct.NumOut() == 0 || ct.NumOut() > 2 {
		return errs.New(errs.CodeConfigError, "constructor must return (T) or (T, error)", nil)
	}
	beanType := ct.Out(0)
	if ct.NumOut() == 2 {
		errType := reflect.TypeOf((*error)(nil)).Elem()
		if !ct.Out(1).Implements(errType) {
			return errs.New(errs.CodeConfigError, "constructor's second return value must be error", nil)
		}
	}

	deps := make([]reflect.Type, ct.NumIn())
	for i := 0; i < ct.NumIn(); i++ {
		deps[i] = ct.In(i)
	}

	d := &descriptor{typ: beanType, m: modeAutoWired, ctor: cv, ctorDeps: deps}
	return c.register(beanType, d)
}

// Contains reports whether t has been registered.
func (c *Container) Contains(t reflect.Type) bool {
	c.descMu.RLock()
	defer c.descMu.RUnlock()
	_, ok := c.descriptors[t]
	return ok
}

// Resolve returns the singleton bean for t, constructing it (and any
// unbuilt dependencies) if necessary.
func (c *Container) Resolve(t reflect.Type) (any, error) {
	if v, ok := c.cached(t); ok {
		return v, nil
	}

	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	// Re-check: another goroutine may have finished building t (or a
	// dependency we also need) while we waited for buildMu.
	if v, ok := c.cached(t); ok {
		return v, nil
	}

	return c.resolveLocked(t, nil)
}

func (c *Container) cached(t reflect.Type) (any, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	v, ok := c.cache[t]
	return v, ok
}

// resolveLocked performs the actual construction. Callers must hold
// buildMu. chain is the list of types currently under construction on
// this call stack, used for cycle detection; it is a per-recursion
// local slice, never shared mutable state, so no additional
// synchronization is needed for it.
func (c *Container) resolveLocked(t reflect.Type, chain []reflect.Type) (any, error) {
	if v, ok := c.cached(t); ok {
		return v, nil
	}

	for _, seen := range chain {
		if seen == t {
			return nil, errs.CircularDependency(typeChainNames(append(chain, t)))
		}
	}

	c.descMu.RLock()
	d, ok := c.descriptors[t]
	c.descMu.RUnlock()
	if !ok {
		requiredBy := "<root>"
		if len(chain) > 0 {
			requiredBy = chain[len(chain)-1].String()
		}
		return nil, errs.BeanNotFound(t.String(), requiredBy)
	}

	nextChain := append(append([]reflect.Type{}, chain...), t)

	var value any
	var err error

	switch d.m {
	case modeInstance:
		value = d.instance

	case modeFactory:
		value, err = d.factory()
		if err != nil {
			return nil, fmt.Errorf("constructing %s: %w", t, err)
		}

	case modeAutoWired:
		args := make([]reflect.Value, len(d.ctorDeps))
		for i, depType := range d.ctorDeps {
			depVal, derr := c.resolveLocked(depType, nextChain)
			if derr != nil {
				return nil, derr
			}
			args[i] = reflect.ValueOf(depVal)
		}
		out := d.ctor.Call(args)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, fmt.Errorf("constructing %s: %w", t, out[1].Interface().(error))
		}
		value = out[0].Interface()

	default:
		return nil, errs.New(errs.CodeConfigError, "unknown descriptor mode", nil)
	}

	c.cacheMu.Lock()
	c.cache[t] = value
	c.cacheMu.Unlock()

	c.descMu.Lock()
	d.value, d.built = value, true
	c.descMu.Unlock()

	c.recordOrder(t)
	c.log.Debug("bean constructed", zap.String("type", t.String()))
	return value, nil
}

func (c *Container) recordOrder(t reflect.Type) {
	c.orderMu.Lock()
	defer c.orderMu.Unlock()
	c.order = append(c.order, t)
}

// Close invokes loom.Closer on every built bean, in reverse
// construction order, logging (not propagating) individual failures so
// one bad Close does not prevent the rest from running. Idempotent.
func (c *Container) Close() error {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.orderMu.Lock()
	order := append([]reflect.Type{}, c.order...)
	c.orderMu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		t := order[i]
		v, ok := c.cached(t)
		if !ok {
			continue
		}
		if closer, ok := v.(loom.Closer); ok {
			if err := closer.Close(); err != nil {
				c.log.Warn("bean close failed", zap.String("type", t.String()), zap.Error(err))
			}
		}
	}
	return nil
}

func typeChainNames(chain []reflect.Type) []string {
	names := make([]string, len(chain))
	for i, t := range chain {
		names[i] = t.String()
	}
	return names
}
