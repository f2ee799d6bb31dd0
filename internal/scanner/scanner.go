// Package scanner implements the Scanner component (spec §4.3): it
// classifies a set of explicitly-registered candidate types into
// components, providers, controllers and agents, then hands the
// classified result to Bootstrap.
//
// Go has no runtime classpath to walk, so — per the Design Notes of
// spec.md §9 — discovery is driven by an explicit registration DSL (a
// Root builder) rather than reflective package scanning; the Scanner's
// job is purely to classify and validate what Root already collected,
// mirroring the way the teacher's component_registry.go and
// go-spring's Injecting dual-indexed bean lookup (beansByName /
// beansByType) separate "what was declared" from "how it is indexed".
package scanner

import (
	"reflect"

	"github.com/toutaio/loom/internal/errs"
	"github.com/toutaio/loom/internal/metadata"
)

// candidate is one explicitly registered type awaiting classification.
type candidate struct {
	typ reflect.Type
	tag metadata.Tag
	ctor any // optional constructor function for autowiring
}

// Root accumulates explicit registrations for one application. It
// implements loom.ScanRoot via the IsScanRoot marker method.
type Root struct {
	candidates []candidate
}

// NewRoot builds an empty registration root.
func NewRoot() *Root { return &Root{} }

// IsScanRoot marks Root as a loom.ScanRoot.
func (r *Root) IsScanRoot() {}

// Register adds a type under tag, optionally supplying an autowiring
// constructor (a func whose parameter types are resolved by the
// Container and whose first return value is a *typ or typ). If ctor is
// nil, instance must be constructed and registered by some other means
// before resolution (for example loom.Container.Register).
func (r *Root) Register(typ reflect.Type, tag metadata.Tag, ctor any) {
	r.candidates = append(r.candidates, candidate{typ: typ, tag: tag, ctor: ctor})
}

// Component registers a plain auto-wired singleton.
func (r *Root) Component(typ reflect.Type, ctor any) {
	r.Register(typ, metadata.Component(), ctor)
}

// Controller registers an HTTP controller type with the given base path.
func (r *Root) Controller(typ reflect.Type, basePath string, ctor any) {
	r.Register(typ, metadata.ControllerTag(basePath), ctor)
}

// Provider registers a provider under (category, name).
func (r *Root) Provider(typ reflect.Type, category metadata.Category, name string, ctor any) {
	r.Register(typ, metadata.Provider(category, name), ctor)
}

// Descriptor is one classified candidate, ready for Bootstrap to wire
// into the Container / ProviderRegistry / HttpDispatcher.
type Descriptor struct {
	Type     reflect.Type
	Kind     metadata.Kind
	Category metadata.Category
	Name     string
	BasePath string
	Ctor     any
}

// Result is the Scanner's output: every candidate partitioned by kind,
// dual-indexed (by declared type, the way go-spring's Injecting keeps
// beansByType) for Bootstrap's subsequent lookups. Agents is populated
// by structural interface detection rather than by Tag (spec §4.3: "types
// implementing a declared Agent capability, discovered by interface, not
// tag"), so a type can appear in Agents alongside whichever tag-driven
// bucket (Components/Providers/Controllers) it also belongs to.
type Result struct {
	Components  []Descriptor
	Providers   []Descriptor
	Controllers []Descriptor
	Agents      []Descriptor

	byType map[reflect.Type]Descriptor
}

var agentInterfaceType = reflect.TypeOf((*metadata.Agent)(nil)).Elem()

// ByType looks up a classified descriptor by its declared type.
func (res *Result) ByType(t reflect.Type) (Descriptor, bool) {
	d, ok := res.byType[t]
	return d, ok
}

// Scan classifies every candidate registered on root, validating tags
// and defaulting provider names to the type's identity.
func Scan(root *Root) (*Result, error) {
	res := &Result{byType: make(map[reflect.Type]Descriptor)}

	for _, c := range root.candidates {
		d := Descriptor{Type: c.typ, Kind: c.tag.Kind, Ctor: c.ctor}

		switch c.tag.Kind {
		case metadata.KindProvider:
			if !c.tag.Category.Validate() {
				return nil, errs.ScanError(c.typ.String(), nil).
					WithContext("reason", "invalid category").
					WithContext("category", string(c.tag.Category))
			}
			name := c.tag.Name
			if name == "" {
				name = c.typ.String()
			}
			d.Category = c.tag.Category
			d.Name = name
			res.Providers = append(res.Providers, d)
			res.Components = append(res.Components, d) // a provider is also a component (spec §3)

		case metadata.KindController:
			d.BasePath = c.tag.BasePath
			res.Controllers = append(res.Controllers, d)

		case metadata.KindService, metadata.KindGeneric:
			res.Components = append(res.Components, d)

		default:
			return nil, errs.ScanError(c.typ.String(), nil).WithContext("reason", "unrecognized kind")
		}

		if c.typ.Implements(agentInterfaceType) {
			res.Agents = append(res.Agents, d)
		}

		if _, dup := res.byType[c.typ]; dup {
			return nil, errs.ScanError(c.typ.String(), nil).WithContext("reason", "type registered twice")
		}
		res.byType[c.typ] = d
	}

	return res, nil
}
