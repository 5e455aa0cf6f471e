// Package app wires the configured engine, scheduler and remote surfaces
// into one runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kilianp07/batsim/api"
	"github.com/kilianp07/batsim/config"
	"github.com/kilianp07/batsim/core/battery"
	"github.com/kilianp07/batsim/core/control"
	"github.com/kilianp07/batsim/core/engine"
	"github.com/kilianp07/batsim/core/hardware"
	coremon "github.com/kilianp07/batsim/core/monitoring"
	"github.com/kilianp07/batsim/core/scheduler"
	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
	_ "github.com/kilianp07/batsim/infra/hardware"
	"github.com/kilianp07/batsim/infra/logger"
	"github.com/kilianp07/batsim/infra/monitoring"
	"github.com/kilianp07/batsim/infra/mqtt"
	"github.com/kilianp07/batsim/infra/telemetry"
)

// Service owns every component built from the configuration.
type Service struct {
	Engine     *engine.Engine
	Scheduler  *scheduler.Scheduler
	Controller *control.Controller

	hw      hardware.Adapter
	sinks   *telemetry.MultiSink
	server  *api.Server
	mqttCli *mqtt.PahoClient
	mqttCtl *mqtt.Control
	log     logger.Logger
}

// New builds a Service from the configuration. Components created before a
// failure are released.
func New(cfg *config.Config) (svc *Service, err error) {
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	s := &Service{log: logger.New("service")}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	params, err := cfg.Battery.Resolve()
	if err != nil {
		return nil, fmt.Errorf("battery parameters: %w", err)
	}
	if !battery.IsMonotonic(params.OCVTable) {
		s.log.Warnf("OCV table is not monotonic; terminal voltage may rise while discharging")
	}

	s.hw, err = hardware.NewAdapter(cfg.Hardware.Module())
	if err != nil {
		return nil, fmt.Errorf("hardware %s: %w", cfg.Hardware.Type, err)
	}
	s.sinks, err = telemetry.Build(cfg.Telemetry.Sinks)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	s.Engine, err = engine.New(params, s.hw, s.sinks,
		engine.WithLogger(logger.New("engine")),
		engine.WithHardwareTimeout(cfg.Hardware.Timeout()),
		engine.WithDriveOutput(cfg.Hardware.DriveOutput),
		engine.WithObserverBuffer(cfg.Telemetry.ObserverBuffer),
	)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	s.Scheduler = scheduler.New(s.Engine, cfg.Scheduler, logger.New("scheduler"))
	s.Controller = control.New(s.Engine, s.Scheduler, logger.New("control"))

	if cfg.API.Enabled {
		opts := []api.Option{api.WithLogger(logger.New("api"))}
		if s.sinks.Queryable() {
			opts = append(opts, api.WithQuerier(s.sinks))
		}
		s.server = api.NewServer(cfg.API.Address, api.NewRouter(s.Controller, cfg.API, opts...), logger.New("api"))
	}
	if cfg.MQTT.Enabled {
		s.mqttCli, err = mqtt.NewPahoClient(cfg.MQTT, "control")
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		s.mqttCtl = mqtt.NewControl(s.mqttCli, s.Controller, logger.New("mqtt-control"))
	}
	s.log.Infof("session %s ready (hardware=%s, sinks=%d)", s.Engine.Session(), cfg.Hardware.Type, len(cfg.Telemetry.Sinks))
	return s, nil
}

// Run ticks the engine and serves the remote surfaces until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.mqttCtl != nil {
		if err := s.mqttCtl.Start(ctx); err != nil {
			return fmt.Errorf("mqtt control: %w", err)
		}
	}

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		runErrs []error
	)
	fail := func(err error) {
		errMu.Lock()
		runErrs = append(runErrs, err)
		errMu.Unlock()
		cancel()
	}

	records := s.Engine.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.observe(ctx, records)
	}()

	if s.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer coremon.Recover()
			if err := s.server.Run(ctx); err != nil {
				s.log.Errorf("api: %v", err)
				fail(fmt.Errorf("api: %w", err))
			}
		}()
	}

	if err := s.Scheduler.Run(ctx); err != nil {
		fail(fmt.Errorf("scheduler: %w", err))
	}
	cancel()
	s.Engine.Unsubscribe(records)
	wg.Wait()
	return errors.Join(runErrs...)
}

// observe logs every record at debug level until ctx ends or the engine
// closes the channel.
func (s *Service) observe(ctx context.Context, records <-chan coretelemetry.Record) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			s.log.Debugw("step", map[string]any{
				"terminal_voltage_mv":     rec.TerminalVoltageMV,
				"current_ma":              rec.CurrentMA,
				"state_of_charge_percent": rec.StateOfChargePct,
			})
		}
	}
}

// Close stops the simulation and releases sinks, adapters and clients.
func (s *Service) Close() error {
	var errs []error
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	if s.Engine != nil {
		s.Engine.Close()
	}
	if s.mqttCli != nil {
		errs = append(errs, s.mqttCli.Close())
	}
	if s.sinks != nil {
		errs = append(errs, s.sinks.Close())
	}
	if c, ok := s.hw.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
