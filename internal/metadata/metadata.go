// Package metadata defines the tag vocabulary authors attach to types to
// signal intent to the Scanner (spec §4.1): component kind, provider
// category/name, controller base path, and per-handler route and
// parameter bindings.
//
// Go has no compile-time annotations, so — per the Design Notes of
// spec.md §9 — the vocabulary is realized as a small DSL of registration
// functions passed to a scanner.Root, rather than struct tags or a
// sidecar file. This mirrors the "small DSL of registration functions"
// option the spec explicitly sanctions, and keeps the Scanner's output
// (a ScanResult) identical regardless of which producer built it.
package metadata

import "reflect"

// Kind is the ComponentKind tagged variant of spec §3: a type carries
// exactly one.
type Kind int

const (
	KindGeneric Kind = iota
	KindService
	KindController
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindController:
		return "controller"
	case KindProvider:
		return "provider"
	default:
		return "generic"
	}
}

// Tag is the per-type metadata the Scanner reads exactly once to
// classify a registered candidate.
type Tag struct {
	Kind     Kind
	Category Category // only meaningful when Kind == KindProvider
	Name     string   // provider name; defaults to the type's identity
	BasePath string    // only meaningful when Kind == KindController
}

// Component tags a type as a plain auto-wired singleton bean (no HTTP
// surface, no provider-category membership).
func Component() Tag { return Tag{Kind: KindGeneric} }

// Service tags a type as an auto-wired singleton bean. The Scanner
// classifies it exactly like Component (into Components); only the
// recorded Kind differs (KindService rather than KindGeneric), because
// the teacher vocabulary (and spec §4.1) treats "Component"/"Service"
// as synonyms.
func Service() Tag { return Tag{Kind: KindService} }

// ControllerTag tags a type as an HTTP handler container with the given
// base path (may be empty).
func ControllerTag(basePath string) Tag {
	return Tag{Kind: KindController, BasePath: basePath}
}

// Provider tags a type as a provider: it implies Component and
// registers under (category, name) in the ProviderRegistry. An empty
// name means "default to the type's identity" and is resolved by the
// Scanner, which knows the concrete type.
func Provider(category Category, name string) Tag {
	return Tag{Kind: KindProvider, Category: category, Name: name}
}

// Category mirrors loom.Category to avoid a pkg/loom <-> internal
// import cycle; scanner/bootstrap convert between the two at the
// boundary.
type Category string

// Validate reports whether a category name is a non-empty lowercase
// ASCII identifier, per spec §3.
func (c Category) Validate() bool {
	if len(c) == 0 {
		return false
	}
	for _, r := range string(c) {
		if (r < 'a' || r > 'z') && r != '_' {
			return false
		}
	}
	return true
}

// ============================================================================
// Routes and parameter bindings (spec §3 Route / ParameterBinding)
// ============================================================================

type Method string

const (
	GET    Method = "GET"
	POST   Method = "POST"
	PUT    Method = "PUT"
	DELETE Method = "DELETE"
)

// BindingKind is the tagged variant of ParameterBinding: a handler
// parameter carries exactly one.
type BindingKind int

const (
	BindPathVar BindingKind = iota
	BindQuery
	BindBody
	BindAmbient
)

// ParamBinding declares how one handler parameter is populated.
type ParamBinding struct {
	Kind     BindingKind
	Name     string       // PathVar / Query name
	Required bool         // Query only
	Default  string       // Query only
	HasDefault bool
	Type     reflect.Type // Body / Ambient target type
}

// PathVar binds a string parameter from the named path segment.
func PathVar(name string) ParamBinding {
	return ParamBinding{Kind: BindPathVar, Name: name}
}

// Query binds a string parameter from a query parameter. If required
// and absent with no default, the dispatcher fails the request with 400.
func Query(name string, required bool) ParamBinding {
	return ParamBinding{Kind: BindQuery, Name: name, Required: required}
}

// QueryDefault is Query with a default value substituted when the
// query parameter is absent.
func QueryDefault(name, def string) ParamBinding {
	return ParamBinding{Kind: BindQuery, Name: name, Default: def, HasDefault: true}
}

// Body binds a parameter by deserializing the request body as JSON
// into a new value of type T.
func Body[T any]() ParamBinding {
	var zero T
	return ParamBinding{Kind: BindBody, Type: reflect.TypeOf(zero)}
}

// Ambient binds a parameter to Container.Resolve(T) — passing the
// registry, bus, or any other bean into a handler.
func Ambient[T any]() ParamBinding {
	var zero T
	return ParamBinding{Kind: BindAmbient, Type: reflect.TypeOf(zero)}
}

// RouteDescriptor is one handler's route declaration: method, path
// pattern, the handler function, and its parameter bindings in order.
type RouteDescriptor struct {
	Method  Method
	Path    string
	Handler any
	Params  []ParamBinding
}

func route(m Method, path string, handler any, params ...ParamBinding) RouteDescriptor {
	return RouteDescriptor{Method: m, Path: path, Handler: handler, Params: params}
}

func Get(path string, handler any, params ...ParamBinding) RouteDescriptor {
	return route(GET, path, handler, params...)
}

func Post(path string, handler any, params ...ParamBinding) RouteDescriptor {
	return route(POST, path, handler, params...)
}

func Put(path string, handler any, params ...ParamBinding) RouteDescriptor {
	return route(PUT, path, handler, params...)
}

func Delete(path string, handler any, params ...ParamBinding) RouteDescriptor {
	return route(DELETE, path, handler, params...)
}

// RouteSource is implemented by controller types to declare their
// routes. BasePath is supplied separately via the Tag used at
// registration time, not by the type itself.
type RouteSource interface {
	Routes() []RouteDescriptor
}

// Agent is a capability interface the Scanner discovers structurally
// (duck-typed), not via a Tag — agents may be tag-less per spec §4.3.
type Agent interface {
	AgentID() string
}
