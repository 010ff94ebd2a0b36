package crosstab

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/toggle"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/broadcast"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/storage"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// Reload reasons
const (
	ReasonBroadcast = "crosstab-broadcast"
	ReasonStorage   = "crosstab-storage"
)

// Reloader issues a guarded page reload
type Reloader interface {
	Reload(reason string) bool
}

// Sync listens for and announces cross-tab toggle changes
type Sync struct {
	channel  *broadcast.Channel
	store    *storage.Tab
	reloader Reloader
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	wg sync.WaitGroup
}

// New creates a cross-tab sync over a broadcast channel and local storage
func New(channel *broadcast.Channel, store *storage.Tab, reloader Reloader, metrics *monitoring.Metrics, logger *zap.Logger) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sync{
		channel:  channel,
		store:    store,
		reloader: reloader,
		metrics:  metrics,
		logger:   logger,
	}
}

// Listen subscribes to both channels and reacts until ctx is done. It
// returns once the subscriptions are established.
func (s *Sync) Listen(ctx context.Context) error {
	msgs, err := s.channel.Messages(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.channel.Name(), err)
	}
	events, err := s.store.Events(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to storage events: %w", err)
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for msg := range msgs {
			s.onMessage(msg)
		}
	}()
	go func() {
		defer s.wg.Done()
		for ev := range events {
			s.onStorage(ev)
		}
	}()
	return nil
}

// Wait blocks until the listeners started by Listen have exited
func (s *Sync) Wait() {
	s.wg.Wait()
}

// AnnounceToggle tells other tabs the device-local toggle state changed
func (s *Sync) AnnounceToggle(ctx context.Context, state types.ToggleState) error {
	return s.post(ctx, ToggleMessage(state))
}

// AnnounceMode tells other tabs one application's mode changed
func (s *Sync) AnnounceMode(ctx context.Context, app string, mode types.RenderMode) error {
	return s.post(ctx, ModeMessage(app, mode))
}

func (s *Sync) post(ctx context.Context, m Message) error {
	data, err := Encode(m)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", m.Type, err)
	}
	if err := s.channel.Post(ctx, data); err != nil {
		return fmt.Errorf("post %s message: %w", m.Type, err)
	}
	s.metrics.RecordBroadcast("out", m.Type)
	return nil
}

func (s *Sync) onMessage(msg broadcast.Message) {
	m, ok := Decode(msg.Data)
	if !ok {
		s.logger.Debug("Ignoring unknown broadcast message", zap.String("sender", msg.Sender.String()))
		return
	}
	s.metrics.RecordBroadcast("in", m.Type)
	s.logger.Info("Toggle change from another tab",
		zap.String("type", m.Type),
		zap.String("sender", msg.Sender.String()))
	s.reloader.Reload(ReasonBroadcast)
}

func (s *Sync) onStorage(ev storage.Event) {
	if ev.Key != toggle.KeyDisabled && ev.Key != toggle.KeyDisabledMode {
		return
	}
	s.logger.Info("Toggle storage changed in another tab",
		zap.String("key", ev.Key),
		zap.String("source", ev.Source.String()))
	s.reloader.Reload(ReasonStorage)
}
