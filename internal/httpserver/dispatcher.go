// Package httpserver implements loom.HttpDispatcher on top of chi,
// auto-routing tagged controllers with declarative parameter binding,
// grounded on the teacher's router/chi_router.go server-lifecycle shape
// (http.Server with fixed read/write/idle timeouts) and the cosan
// sibling package's segregated Context interfaces, generalized from a
// single adapt(handler) closure into full reflection-based binding of
// PathVar/Query/Body/Ambient parameters against metadata.RouteDescriptor.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/toutaio/loom/internal/errs"
	"github.com/toutaio/loom/internal/metadata"
	"github.com/toutaio/loom/pkg/loom"
)

// Dispatcher is the concrete loom.HttpDispatcher implementation.
type Dispatcher struct {
	log       *zap.Logger
	container loom.Container
	registry  loom.ProviderRegistry
	mux       *chi.Mux
	server    *http.Server

	routes    map[string]bool // "METHOD path" -> registered, for duplicate detection
	corsOn    bool
	healthOn  bool
	startedAt time.Time
}

var _ loom.HttpDispatcher = (*Dispatcher)(nil)

// Options configures a Dispatcher at construction time.
type Options struct {
	CORSEnabled    bool
	HealthEndpoint bool
}

// New builds a Dispatcher bound to container (for controller and
// Ambient-parameter resolution) and registry (surfaced on the built-in
// health endpoint).
func New(log *zap.Logger, container loom.Container, registry loom.ProviderRegistry, opts Options) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		log:       log,
		container: container,
		registry:  registry,
		mux:       chi.NewRouter(),
		routes:    make(map[string]bool),
		corsOn:    opts.CORSEnabled,
		healthOn:  opts.HealthEndpoint,
		startedAt: time.Now(),
	}
	if d.corsOn {
		d.mux.Use(corsMiddleware)
	}
	if d.healthOn {
		d.mux.Get("/health", d.handleHealth)
	}
	return d
}

// RegisterController resolves controllerType through the container and
// binds every route its metadata.RouteSource declares, each prefixed
// by basePath.
func (d *Dispatcher) RegisterController(controllerType reflect.Type, basePath string) error {
	instAny, err := d.container.Resolve(controllerType)
	if err != nil {
		return err
	}
	src, ok := instAny.(metadata.RouteSource)
	if !ok {
		return errs.New(errs.CodeConfigError, "controller does not implement metadata.RouteSource", nil).
			WithContext("type", controllerType.String())
	}

	for _, route := range src.Routes() {
		path := joinPath(basePath, route.Path)
		key := string(route.Method) + " " + path
		if d.routes[key] {
			return errs.DuplicateRoute(string(route.Method), path)
		}
		d.routes[key] = true

		handlerFn, err := d.bind(route)
		if err != nil {
			return err
		}

		switch route.Method {
		case metadata.GET:
			d.mux.Get(path, handlerFn)
		case metadata.POST:
			d.mux.Post(path, handlerFn)
		case metadata.PUT:
			d.mux.Put(path, handlerFn)
		case metadata.DELETE:
			d.mux.Delete(path, handlerFn)
		default:
			return errs.New(errs.CodeConfigError, "unsupported HTTP method", nil).
				WithContext("method", string(route.Method))
		}
	}
	return nil
}

// joinPath concatenates a controller's base path with one of its
// declared route paths without introducing a doubled or missing slash.
func joinPath(base, route string) string {
	if base == "" {
		return route
	}
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return base + route
}

// bind turns a metadata.RouteDescriptor into an http.HandlerFunc that
// reflects the declared handler, resolves each ParamBinding in order,
// invokes the handler, and writes its result as the JSON response.
func (d *Dispatcher) bind(route metadata.RouteDescriptor) (http.HandlerFunc, error) {
	hv := reflect.ValueOf(route.Handler)
	if hv.Kind() != reflect.Func {
		return nil, errs.New(errs.CodeConfigError, "route handler must be a function", nil).
			WithContext("path", route.Path)
	}
	ht := hv.Type()
	if ht.NumIn() != len(route.Params) {
		return nil, errs.New(errs.CodeConfigError, "handler parameter count does not match bindings", nil).
			WithContext("path", route.Path)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		args := make([]reflect.Value, len(route.Params))
		for i, p := range route.Params {
			v, err := d.bindParam(r, p, ht.In(i))
			if err != nil {
				if p.Kind == metadata.BindAmbient {
					d.log.Error("ambient dependency resolution failed",
						zap.String("path", route.Path), zap.Error(err))
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				writeError(w, http.StatusBadRequest, err)
				return
			}
			args[i] = v
		}

		out := hv.Call(args)
		d.writeResult(w, route.Path, out)
	}, nil
}

func (d *Dispatcher) bindParam(r *http.Request, p metadata.ParamBinding, paramType reflect.Type) (reflect.Value, error) {
	switch p.Kind {
	case metadata.BindPathVar:
		val := chi.URLParam(r, p.Name)
		return reflect.ValueOf(val).Convert(paramType), nil

	case metadata.BindQuery:
		val := r.URL.Query().Get(p.Name)
		if val == "" {
			if p.HasDefault {
				val = p.Default
			} else if p.Required {
				return reflect.Value{}, fmt.Errorf("missing required query parameter: %s", p.Name)
			}
		}
		return reflect.ValueOf(val).Convert(paramType), nil

	case metadata.BindBody:
		target := reflect.New(paramType.Elem())
		if err := json.NewDecoder(r.Body).Decode(target.Interface()); err != nil {
			return reflect.Value{}, errs.BindError("body", err)
		}
		return target, nil

	case metadata.BindAmbient:
		inst, err := d.container.Resolve(paramType)
		if err != nil {
			return reflect.Value{}, errs.BindError("ambient:"+paramType.String(), err)
		}
		return reflect.ValueOf(inst), nil

	default:
		return reflect.Value{}, errs.New(errs.CodeBindError, "unknown binding kind", nil)
	}
}

func (d *Dispatcher) writeResult(w http.ResponseWriter, path string, out []reflect.Value) {
	var result any
	var handlerErr error

	switch len(out) {
	case 0:
		// no content
	case 1:
		if e, ok := out[0].Interface().(error); ok {
			handlerErr = e
		} else {
			result = out[0].Interface()
		}
	case 2:
		result = out[0].Interface()
		if !out[1].IsNil() {
			handlerErr = out[1].Interface().(error)
		}
	}

	if handlerErr != nil {
		writeError(w, http.StatusInternalServerError, errs.HandlerError(path, handlerErr))
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":  err.Error(),
		"status": status,
	})
}

func (d *Dispatcher) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":        "UP",
		"uptimeSeconds": int(time.Since(d.startedAt).Seconds()),
	}
	for _, cat := range d.registry.Categories() {
		body[string(cat)+"_count"] = d.registry.CountIn(cat)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the underlying http.Handler.
func (d *Dispatcher) Handler() http.Handler { return d.mux }

// Start begins serving on addr, matching the teacher's fixed server
// timeouts (15s read/write, 60s idle).
func (d *Dispatcher) Start(addr string) error {
	d.server = &http.Server{
		Addr:         addr,
		Handler:      d.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	d.log.Info("http dispatcher listening", zap.String("addr", addr))
	return d.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	return d.server.Shutdown(ctx)
}
