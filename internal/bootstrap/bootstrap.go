// Package bootstrap runs the kernel's fixed ten-step startup and
// shutdown sequence (spec §4.7), grounded on the teacher's
// cli/commands.go serve() flow — banner, resolve config/host/port,
// then hand off to the server — generalized from a cobra command into
// a library entry point with no CLI dependency, since spec.md's
// Non-goals exclude CLI wrappers.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/toutaio/loom/internal/container"
	"github.com/toutaio/loom/internal/errs"
	"github.com/toutaio/loom/internal/eventbus"
	"github.com/toutaio/loom/internal/httpserver"
	"github.com/toutaio/loom/internal/logging"
	"github.com/toutaio/loom/internal/registry"
	"github.com/toutaio/loom/internal/scanner"
	"github.com/toutaio/loom/pkg/loom"
)

// Bootstrap is the concrete loom.Bootstrap implementation.
type Bootstrap struct {
	log *zap.Logger

	container  *container.Container
	registry   *registry.Registry
	bus        *eventbus.Bus
	dispatcher *httpserver.Dispatcher

	cfg        loom.Config
	httpErrCh  chan error
}

var _ loom.Bootstrap = (*Bootstrap)(nil)

// New builds an unstarted Bootstrap.
func New() *Bootstrap {
	return &Bootstrap{httpErrCh: make(chan error, 1)}
}

func (b *Bootstrap) Container() loom.Container           { return b.container }
func (b *Bootstrap) Registry() loom.ProviderRegistry     { return b.registry }
func (b *Bootstrap) Bus() loom.EventBus                  { return b.bus }
func (b *Bootstrap) Dispatcher() loom.HttpDispatcher     { return b.dispatcher }

// Start runs steps 1-9 of the fixed sequence:
//  1. print the startup banner
//  2. build the logger from cfg.Mode/cfg.LogLevel
//  3. construct the Container
//  4. construct and register the ProviderRegistry and EventBus as beans
//  5. run the Scanner over root
//  6. register every discovered component as an auto-wired bean
//  7. register every discovered provider into the ProviderRegistry
//  8. construct the HttpDispatcher, register it and Bootstrap itself as
//     beans, then register every discovered controller
//  9. start the HttpDispatcher listening in the background
//
// Step 10 (shutdown) is Bootstrap.Shutdown.
func (b *Bootstrap) Start(ctx context.Context, cfg loom.Config, root loom.ScanRoot) error {
	b.cfg = cfg
	b.printBanner()

	log, err := logging.New(cfg.Mode, cfg.LogLevel)
	if err != nil {
		return errs.ConfigError("failed to build logger", err)
	}
	b.log = log

	b.container = container.New(log)
	b.registry = registry.New()
	b.bus = eventbus.New(log, cfg.EventWorkers, cfg.EventQueueCapacity)

	if err := b.container.Register(b.registry); err != nil {
		return err
	}
	if err := b.container.Register(b.bus); err != nil {
		return err
	}

	r, ok := root.(*scanner.Root)
	if !ok {
		return errs.New(errs.CodeConfigError, "ScanRoot must be built with scanner.NewRoot", nil)
	}
	result, err := scanner.Scan(r)
	if err != nil {
		return err
	}

	for _, d := range result.Components {
		if d.Ctor == nil {
			continue // constructed and registered directly by the caller
		}
		if err := b.container.RegisterAutoWired(d.Ctor); err != nil {
			return err
		}
	}

	for _, d := range result.Controllers {
		if d.Ctor == nil {
			continue // constructed and registered directly by the caller
		}
		if err := b.container.RegisterAutoWired(d.Ctor); err != nil {
			return err
		}
	}

	for _, d := range result.Providers {
		inst, err := b.container.Resolve(d.Type)
		if err != nil {
			return err
		}
		if err := b.registry.Register(loom.Category(d.Category), d.Name, inst); err != nil {
			return err
		}
	}
	b.registry.Seal()

	b.dispatcher = httpserver.New(log, b.container, b.registry, httpserver.Options{
		CORSEnabled:    cfg.CORSEnabled,
		HealthEndpoint: cfg.HealthEndpoint,
	})
	if err := b.container.Register(b.dispatcher); err != nil {
		return err
	}
	if err := b.container.Register(b); err != nil {
		return err
	}

	for _, d := range result.Controllers {
		if err := b.dispatcher.RegisterController(d.Type, d.BasePath); err != nil {
			return err
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	go func() {
		if err := b.dispatcher.Start(addr); err != nil {
			b.httpErrCh <- err
		}
	}()

	log.Info("bootstrap complete",
		zap.String("addr", addr),
		zap.Int("components", len(result.Components)),
		zap.Int("providers", len(result.Providers)),
		zap.Int("controllers", len(result.Controllers)),
	)
	return nil
}

// Shutdown runs step 10: stop accepting HTTP connections, drain the
// event bus within cfg.EventDrainDeadlineMs, then close the container
// (invoking Closer on every bean in reverse construction order).
func (b *Bootstrap) Shutdown(ctx context.Context) error {
	if b.dispatcher != nil {
		if err := b.dispatcher.Shutdown(ctx); err != nil {
			b.log.Warn("dispatcher shutdown error", zap.Error(err))
		}
	}

	if b.bus != nil {
		deadline, cancel := context.WithTimeout(ctx, time.Duration(b.cfg.EventDrainDeadlineMs)*time.Millisecond)
		defer cancel()
		if err := b.bus.Close(deadline); err != nil {
			b.log.Warn("event bus drain deadline exceeded", zap.Error(err))
		}
	}

	if b.container != nil {
		if err := b.container.Close(); err != nil {
			return err
		}
	}
	if b.log != nil {
		b.log.Info("bootstrap shutdown complete")
	}
	return nil
}

func (b *Bootstrap) printBanner() {
	fmt.Println("loom: starting application kernel")
}
