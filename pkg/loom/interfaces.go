// Package loom provides the core interfaces and contracts for the loom
// application-composition runtime: a process-embedded kernel that
// discovers components, wires a singleton object graph, partitions
// pluggable providers into named categories, dispatches typed in-process
// events, and auto-routes annotated controllers as HTTP endpoints.
package loom

import (
	"context"
	"net/http"
	"reflect"
)

// ============================================================================
// Container
// ============================================================================

// Container is the singleton object graph: it registers instances and
// factories, resolves constructor dependencies, detects cycles, and
// manages shutdown.
type Container interface {
	// Register adds a pre-built instance under its declared (reflect) type.
	Register(instance any) error

	// RegisterAs registers a pre-built instance under an explicit type,
	// typically an interface the instance implements.
	RegisterAs(t reflect.Type, instance any) error

	// RegisterFactory defers construction until first resolution. The
	// factory takes no parameters: it cannot introduce dependency edges,
	// so it never participates in cycle detection.
	RegisterFactory(t reflect.Type, factory func() (any, error)) error

	// RegisterAutoWired declares that the Container may construct a bean
	// on demand by calling ctor, a function whose parameter types are
	// resolved recursively and whose first return value is the bean
	// (optionally followed by an error).
	RegisterAutoWired(ctor any) error

	// Resolve returns the singleton bean for t, constructing it (and its
	// dependencies) if necessary.
	Resolve(t reflect.Type) (any, error)

	// Contains reports whether t has been registered.
	Contains(t reflect.Type) bool

	// Close invokes the release callback on every close-capable bean in
	// reverse construction order. Idempotent.
	Close() error
}

// Closer is implemented by beans that need to release resources on
// Container shutdown.
type Closer interface {
	Close() error
}

// ============================================================================
// ProviderRegistry
// ============================================================================

// Category identifies a provider capability family. The set of valid
// categories is fixed once Bootstrap seals the ProviderRegistry.
type Category string

// The thirteen predefined provider categories (spec §3).
const (
	CategoryLLM            Category = "llm"
	CategoryInfrastructure Category = "infrastructure"
	CategoryStorage        Category = "storage"
	CategoryMessaging      Category = "messaging"
	CategoryOrchestration  Category = "orchestration"
	CategoryMemory         Category = "memory"
	CategoryQueue          Category = "queue"
	CategoryTool           Category = "tool"
	CategoryEvaluation     Category = "evaluation"
	CategoryAgent          Category = "agent"
	CategoryResilience     Category = "resilience"
	CategoryHealth         Category = "health"
	CategoryMetrics        Category = "metrics"
)

// DefaultCategories returns the thirteen predefined categories.
func DefaultCategories() []Category {
	return []Category{
		CategoryLLM, CategoryInfrastructure, CategoryStorage, CategoryMessaging,
		CategoryOrchestration, CategoryMemory, CategoryQueue, CategoryTool,
		CategoryEvaluation, CategoryAgent, CategoryResilience, CategoryHealth,
		CategoryMetrics,
	}
}

// ProviderRegistry is a two-level map (category, name) -> instance.
type ProviderRegistry interface {
	// Register stores instance under (category, name). Fails with
	// errs.CodeUnknownCategory if category was never initialized, or
	// errs.CodeDuplicateProvider if (category, name) already exists.
	Register(category Category, name string, instance any) error

	// Get returns the instance registered under (category, name), or
	// false if absent. Never errors.
	Get(category Category, name string) (any, bool)

	// ByCategory returns the (name, instance) pairs for category, in
	// registration order.
	ByCategory(category Category) []NamedProvider

	// Categories returns every known category.
	Categories() []Category

	// CountIn returns the number of providers registered in category.
	CountIn(category Category) int

	// AddCategory registers a new category. Only valid before the
	// registry is sealed by Bootstrap; immutable thereafter.
	AddCategory(category Category) error
}

// NamedProvider pairs a provider's registration name with its instance,
// preserving registration order for ByCategory.
type NamedProvider struct {
	Name     string
	Instance any
}

// ============================================================================
// EventBus
// ============================================================================

// ListenerHandle identifies a registered listener for later removal.
type ListenerHandle string

// Listener processes a published event.
type Listener func(event any)

// EventBus is a type-keyed pub/sub bus with synchronous and
// asynchronous (bounded worker pool) delivery.
type EventBus interface {
	// Subscribe registers a synchronous listener for events whose
	// concrete type equals eventType.
	Subscribe(eventType reflect.Type, listener Listener) (ListenerHandle, error)

	// SubscribeAsync registers an asynchronous listener, dispatched on
	// the bus's bounded worker pool.
	SubscribeAsync(eventType reflect.Type, listener Listener) (ListenerHandle, error)

	// Unsubscribe removes a previously registered listener.
	Unsubscribe(handle ListenerHandle) error

	// Publish dispatches event to every listener registered for its
	// concrete type. Synchronous listeners run before Publish returns;
	// async listeners are enqueued and may still be pending.
	Publish(event any) error

	// ListenerCount returns the number of listeners (sync + async)
	// registered for eventType.
	ListenerCount(eventType reflect.Type) int

	// Close stops accepting new work and drains enqueued async events
	// within deadline, then returns.
	Close(deadline context.Context) error
}

// ============================================================================
// HttpDispatcher
// ============================================================================

// HttpDispatcher composes an HTTP routing table from discovered
// controllers and a Container, and serves it on a configured address.
type HttpDispatcher interface {
	// RegisterController resolves the controller instance through the
	// container and binds its declared routes, each prefixed by
	// basePath, into the routing table. Must be called before Start.
	RegisterController(controllerType reflect.Type, basePath string) error

	// Start begins serving on addr.
	Start(addr string) error

	// Shutdown gracefully stops the server.
	Shutdown(ctx context.Context) error

	// Handler returns the underlying http.Handler, useful for tests.
	Handler() http.Handler
}

// ============================================================================
// Bootstrap
// ============================================================================

// Bootstrap runs the fixed ten-step startup/shutdown sequence wiring
// Container, ProviderRegistry, EventBus and HttpDispatcher together.
type Bootstrap interface {
	// Start runs steps 1-9 of the sequence against cfg and root.
	Start(ctx context.Context, cfg Config, root ScanRoot) error

	// Shutdown runs step 10 in reverse order.
	Shutdown(ctx context.Context) error

	Container() Container
	Registry() ProviderRegistry
	Bus() EventBus
	Dispatcher() HttpDispatcher
}

// ScanRoot is the Scanner's input: the accumulated set of explicit
// component/provider/controller registrations for one application.
// See internal/scanner.Root for the concrete builder.
type ScanRoot interface {
	// IsScanRoot is a marker method; the concrete type lives in
	// internal/scanner. It is exported because an unexported method can
	// only be implemented by types in this package.
	IsScanRoot()
}

// ============================================================================
// Configuration
// ============================================================================

// Config is the recognized configuration surface (spec §6). Every
// field has a default applied by config.LoadDefaults.
type Config struct {
	HTTPHost             string
	HTTPPort             int
	ScanRoot             string
	EventWorkers         int
	EventQueueCapacity   int
	EventDrainDeadlineMs int
	CORSEnabled          bool
	HealthEndpoint       bool

	// Ambient, teacher-derived settings not named in spec §6 but
	// carried regardless per SPEC_FULL.md §1.1/§1.3.
	Mode     string // "development" | "production"
	LogLevel string
}
