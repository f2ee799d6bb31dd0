package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toutaio/loom/internal/metadata"
	"github.com/toutaio/loom/internal/scanner"
	"github.com/toutaio/loom/pkg/loom"
)

type greeterService struct{}

func (g *greeterService) Greet(name string) string { return "hello " + name }

type statusProvider struct{}

type pingResponse struct {
	Status string `json:"status"`
}

type pingController struct {
	svc *greeterService
}

func (c *pingController) Routes() []metadata.RouteDescriptor {
	return []metadata.RouteDescriptor{
		metadata.Get("/ping", func() (*pingResponse, error) {
			return &pingResponse{Status: c.svc.Greet("loom")}, nil
		}),
	}
}

func testConfig(port int) loom.Config {
	return loom.Config{
		HTTPHost:             "127.0.0.1",
		HTTPPort:             port,
		EventWorkers:         2,
		EventQueueCapacity:   16,
		EventDrainDeadlineMs: 1000,
		HealthEndpoint:       true,
		Mode:                 "development",
		LogLevel:             "error",
	}
}

func TestBootstrapStartWiresEveryComponent(t *testing.T) {
	root := scanner.NewRoot()
	root.Component(reflect.TypeOf(&greeterService{}), func() *greeterService { return &greeterService{} })
	root.Provider(reflect.TypeOf(&statusProvider{}), metadata.Category(loom.CategoryHealth), "primary",
		func() *statusProvider { return &statusProvider{} })
	root.Controller(reflect.TypeOf(&pingController{}), "", func(svc *greeterService) *pingController {
		return &pingController{svc: svc}
	})

	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := b.Start(ctx, testConfig(18080), root)
	require.NoError(t, err)
	defer b.Shutdown(context.Background())

	require.Equal(t, 1, b.Registry().CountIn(loom.CategoryHealth))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	b.Dispatcher().Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got pingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "hello loom", got.Status)
}

func TestBootstrapShutdownIsIdempotent(t *testing.T) {
	root := scanner.NewRoot()
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, b.Start(ctx, testConfig(18081), root))
	require.NoError(t, b.Shutdown(context.Background()))
	require.NoError(t, b.Shutdown(context.Background()))
}

func TestBootstrapRegistersDispatcherAndItselfAsBeans(t *testing.T) {
	root := scanner.NewRoot()
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, b.Start(ctx, testConfig(18082), root))
	defer b.Shutdown(context.Background())

	resolvedDispatcher, err := b.Container().Resolve(reflect.TypeOf(b.Dispatcher()))
	require.NoError(t, err)
	require.Same(t, b.Dispatcher(), resolvedDispatcher)

	resolvedBootstrap, err := b.Container().Resolve(reflect.TypeOf(b))
	require.NoError(t, err)
	require.Same(t, b, resolvedBootstrap)
}
