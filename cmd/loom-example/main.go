// Command loom-example is a minimal application built on the loom
// kernel: one service, one provider, and one controller wired end to
// end, grounded on the teacher's cmd/touta/main.go entry point shape
// (minus its cobra CLI, which spec.md's Non-goals exclude).
package main

import (
	"context"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/toutaio/loom/internal/bootstrap"
	"github.com/toutaio/loom/internal/config"
	"github.com/toutaio/loom/internal/metadata"
	"github.com/toutaio/loom/internal/scanner"
	"github.com/toutaio/loom/pkg/loom"
)

// ClockService is a trivial auto-wired component.
type ClockService struct{}

func (c *ClockService) Now() string { return "now" }

// EchoProvider is registered into the tool category.
type EchoProvider struct{}

func (p *EchoProvider) Echo(s string) string { return s }

type echoResponse struct {
	Echo string `json:"echo"`
}

// EchoController exposes GET /echo/{word}.
type EchoController struct {
	clock *ClockService
}

func (c *EchoController) Routes() []metadata.RouteDescriptor {
	return []metadata.RouteDescriptor{
		metadata.Get("/echo/{word}", func(word string) (*echoResponse, error) {
			return &echoResponse{Echo: word + "@" + c.clock.Now()}, nil
		}, metadata.PathVar("word")),
	}
}

func main() {
	cfgPath, _ := config.FindConfig()
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		panic(err)
	}

	root := scanner.NewRoot()
	root.Component(reflect.TypeOf(&ClockService{}), func() *ClockService { return &ClockService{} })
	root.Provider(reflect.TypeOf(&EchoProvider{}), metadata.Category(loom.CategoryTool), "echo",
		func() *EchoProvider { return &EchoProvider{} })
	root.Controller(reflect.TypeOf(&EchoController{}), "", func(clock *ClockService) *EchoController {
		return &EchoController{clock: clock}
	})

	b := bootstrap.New()
	ctx := context.Background()
	if err := b.Start(ctx, cfg, root); err != nil {
		panic(err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = b.Shutdown(shutdownCtx)
}
