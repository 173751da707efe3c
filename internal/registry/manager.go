package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// Manager joins federations and keeps the Registry and Store in step.
type Manager struct {
	backend  federation.Backend
	store    Store
	registry *Registry
	joinMu   sync.Mutex
	logger   Logger
	onChange func(ids []federation.ID)
}

// NewManager creates a manager. The registry is shared with request handlers.
func NewManager(backend federation.Backend, store Store, reg *Registry) *Manager {
	return &Manager{
		backend:  backend,
		store:    store,
		registry: reg,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetOnChange sets a callback invoked with the registered ids after a
// restore or a join that added a federation. It runs on the caller's
// goroutine and must not block.
func (m *Manager) SetOnChange(callback func(ids []federation.ID)) {
	m.onChange = callback
}

func (m *Manager) changed() {
	if m.onChange != nil {
		m.onChange(m.registry.IDs())
	}
}

// Registry returns the registry the manager populates.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Restore reopens every stored federation. A federation that fails to open
// is logged and skipped so one broken membership doesn't keep the gateway
// down. Returns the number of clients restored.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	records, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading federations: %w", err)
	}

	restored := 0
	for _, rec := range records {
		client, err := m.backend.Open(ctx, rec.ID, rec.InviteCode)
		if err != nil {
			m.logger.Error("reopening federation failed", "federation_id", rec.ID, "error", err)
			continue
		}
		if err := m.registry.Insert(client); err != nil && !errors.Is(err, ErrAlreadyRegistered) {
			return restored, err
		}
		if rec.Primary {
			if err := m.registry.SetPrimary(rec.ID); err != nil {
				return restored, err
			}
		}
		restored++
	}

	m.logger.Info("federations restored", "count", restored, "stored", len(records))
	m.changed()
	return restored, nil
}

// Join registers with the federation behind inviteCode. Joining a federation
// that is already registered returns the existing client with joined false.
func (m *Manager) Join(ctx context.Context, inviteCode string, primary bool) (client federation.Client, joined bool, err error) {
	m.joinMu.Lock()
	defer m.joinMu.Unlock()

	client, err = m.backend.Join(ctx, inviteCode)
	if err != nil {
		return nil, false, fmt.Errorf("joining federation: %w", err)
	}
	id := client.ID()

	if existing, err := m.registry.Get(id); err == nil {
		if primary {
			if err := m.markPrimary(ctx, id); err != nil {
				return nil, false, err
			}
		}
		return existing, false, nil
	}

	rec := Record{ID: id, InviteCode: inviteCode, JoinedAt: time.Now().UTC(), Primary: primary}
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, false, fmt.Errorf("saving federation: %w", err)
	}
	if err := m.registry.Insert(client); err != nil {
		return nil, false, err
	}
	if primary {
		if err := m.registry.SetPrimary(id); err != nil {
			return nil, false, err
		}
	}

	m.logger.Info("joined federation", "federation_id", id, "primary", primary)
	m.changed()
	return client, true, nil
}

func (m *Manager) markPrimary(ctx context.Context, id federation.ID) error {
	if err := m.store.MarkPrimary(ctx, id); err != nil {
		return fmt.Errorf("marking primary federation: %w", err)
	}
	return m.registry.SetPrimary(id)
}
