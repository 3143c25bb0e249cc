// Package capture keeps one document capture flow per operator session.
package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/camera"
	flow "github.com/jwalitptl/dispensing-api/internal/capture"
	"github.com/jwalitptl/dispensing-api/internal/lookup"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
	"github.com/jwalitptl/dispensing-api/pkg/metrics"
)

// ErrNoPushCamera is returned for frame and permission calls when the
// configured device does not take frames from the client.
var ErrNoPushCamera = errors.New("camera does not accept pushed frames")

const (
	DevicePush  = "push"
	DeviceStill = "still"
)

type Config struct {
	Device         string
	MaxUploadBytes int64
	MaxFrameBytes  int64
}

type entry struct {
	flow *flow.Flow
	push *camera.PushDevice
}

// Service owns the capture flows of all signed in operators, keyed by session.
type Service struct {
	mu        sync.Mutex
	flows     map[string]*entry
	lookup    lookup.Client
	persister flow.Persister
	config    Config
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewService(lc lookup.Client, persister flow.Persister, cfg Config, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Device == "" {
		cfg.Device = DevicePush
	}
	return &Service{
		flows:     make(map[string]*entry),
		lookup:    lc,
		persister: persister,
		config:    cfg,
		metrics:   m,
		logger:    log,
	}
}

// Flow returns the flow of a session, starting one on first use.
func (s *Service) Flow(sessionID string, owner uuid.UUID) *flow.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.flows[sessionID]; ok {
		return e.flow
	}

	e := &entry{}
	var device flow.Device
	if s.config.Device == DeviceStill {
		device = camera.NewTestCard(1280, 800)
	} else {
		e.push = camera.NewPushDevice(s.config.MaxFrameBytes)
		device = e.push
	}
	e.flow = flow.NewFlow(sessionID, s.lookup, device, s.persister, flow.Options{
		Owner:          owner,
		MaxUploadBytes: s.config.MaxUploadBytes,
		Metrics:        s.metrics,
		Logger:         s.logger,
	})
	s.flows[sessionID] = e
	s.gauge()
	return e.flow
}

// Camera returns the push device behind a session's flow.
func (s *Service) Camera(sessionID string, owner uuid.UUID) (*camera.PushDevice, error) {
	s.Flow(sessionID, owner)

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.flows[sessionID]
	if !ok || e.push == nil {
		return nil, ErrNoPushCamera
	}
	return e.push, nil
}

// End tears down the flow of a session, releasing its camera.
func (s *Service) End(sessionID string) {
	s.mu.Lock()
	e, ok := s.flows[sessionID]
	delete(s.flows, sessionID)
	s.gauge()
	s.mu.Unlock()

	if ok {
		e.flow.Close()
	}
}

// Reap ends flows idle for longer than idle and returns how many it ended.
func (s *Service) Reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	s.mu.Lock()
	entries := make(map[string]*entry, len(s.flows))
	for id, e := range s.flows {
		entries[id] = e
	}
	s.mu.Unlock()

	var stale []*entry
	for id, e := range entries {
		if !e.flow.LastActive().Before(cutoff) {
			delete(entries, id)
		}
	}
	if len(entries) == 0 {
		return 0
	}

	s.mu.Lock()
	for id, e := range entries {
		if s.flows[id] == e {
			stale = append(stale, e)
			delete(s.flows, id)
		}
	}
	s.gauge()
	s.mu.Unlock()

	for _, e := range stale {
		e.flow.Close()
	}
	if n := len(stale); n > 0 {
		if s.metrics != nil {
			s.metrics.FlowsReaped.Add(float64(n))
		}
		s.logger.Info("reaped idle capture flows", "count", n)
	}
	return len(stale)
}

// Active is the number of live flows.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}

// CloseAll ends every flow.
func (s *Service) CloseAll() {
	s.mu.Lock()
	flows := s.flows
	s.flows = make(map[string]*entry)
	s.gauge()
	s.mu.Unlock()

	for _, e := range flows {
		e.flow.Close()
	}
}

func (s *Service) gauge() {
	if s.metrics != nil {
		s.metrics.ActiveFlows.Set(float64(len(s.flows)))
	}
}
