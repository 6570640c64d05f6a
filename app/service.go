// Package app wires the planning and trade components into a runnable service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apijobs "github.com/flexcompute/flexd/api/jobs"
	apiplanning "github.com/flexcompute/flexd/api/planning"
	apitrade "github.com/flexcompute/flexd/api/trade"
	"github.com/flexcompute/flexd/config"
	"github.com/flexcompute/flexd/core/forecast"
	"github.com/flexcompute/flexd/core/jobstore"
	coremetrics "github.com/flexcompute/flexd/core/metrics"
	"github.com/flexcompute/flexd/core/offer"
	"github.com/flexcompute/flexd/core/planner"
	"github.com/flexcompute/flexd/core/protocol"
	"github.com/flexcompute/flexd/core/scheduler"
	"github.com/flexcompute/flexd/infra/callback"
	"github.com/flexcompute/flexd/infra/logger"
	"github.com/flexcompute/flexd/infra/metrics"
	"github.com/flexcompute/flexd/infra/mqtt"
	"github.com/flexcompute/flexd/internal/eventbus"
)

// Service orchestrates the job store, planner and protocol machine behind one
// HTTP listener.
type Service struct {
	Store     *jobstore.Store
	Forecasts *forecast.Service
	Planner   *planner.Planner
	Machine   *protocol.Machine

	cfg       *config.Config
	bus       *eventbus.Bus[protocol.Event]
	publisher *mqtt.Publisher
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	newLog := func(component string) logger.Logger {
		return logger.NewWithConfig(component, cfg.Logging)
	}
	logg := newLog("service")

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	store := jobstore.New(newLog("jobstore"))
	forecasts := forecast.NewService(forecast.NewGenerator(), cfg.Forecast, newLog("forecast"))
	engine := scheduler.New(cfg.Scheduler, newLog("scheduler"))
	offers := offer.NewBuilder(newLog("offers"))
	pl := planner.New(store, forecasts, engine, offers, sink, newLog("planner"))

	var publisher *mqtt.Publisher
	var resPub protocol.ReservationPublisher
	if cfg.MQTT.Enabled {
		p, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		publisher = p
		resPub = p
	}

	bus := eventbus.New[protocol.Event]()
	sender := callback.NewSender(cfg.Callback, sink, newLog("callback"))
	machine, err := protocol.NewMachine(cfg.Protocol, pl, sender, bus, sink, resPub, newLog("protocol"))
	if err != nil {
		return nil, fmt.Errorf("protocol machine: %w", err)
	}

	return &Service{
		Store:     store,
		Forecasts: forecasts,
		Planner:   pl,
		Machine:   machine,
		cfg:       cfg,
		bus:       bus,
		publisher: publisher,
		log:       logg,
	}, nil
}

// Handler returns the public HTTP mux.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/jobs", apijobs.NewIngestHandler(s.Store))
	mux.Handle("/api/jobs/flexibility", apijobs.NewFlexibilityHandler(s.Store))
	mux.Handle("/api/forecast", apiplanning.NewForecastHandler(s.Forecasts))
	mux.Handle("/api/plan", apiplanning.NewPlanHandler(s.Planner))
	mux.Handle("/search", apitrade.NewSearchHandler(s.Machine))
	mux.Handle("/init", apitrade.NewInitHandler(s.Machine))
	mux.Handle("/confirm", apitrade.NewConfirmHandler(s.Machine))
	return mux
}

// Run starts the workers and the HTTP listener, blocking until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.Machine.Start(ctx)
	go s.logEvents(ctx)

	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("server shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", s.cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// logEvents mirrors protocol lifecycle events into the log.
func (s *Service) logEvents(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if e.Reason != "" {
				s.log.Warnf("event %s: transaction %s (%s)", e.Kind, e.TransactionID, e.Reason)
			} else {
				s.log.Infof("event %s: transaction %s", e.Kind, e.TransactionID)
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.publisher != nil {
		s.publisher.Close()
	}
	return nil
}
