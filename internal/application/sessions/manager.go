// Package sessions owns the bot sessions of this process: login, the sync
// loop of each session, invite handling and outbound messages.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/hilthontt/relay/internal/infrastructure/logging"
	"github.com/hilthontt/relay/internal/infrastructure/metrics"
)

// Forwarder receives room messages observed by a session.
type Forwarder interface {
	ForwardRoomMessage(ctx context.Context, msg domain.RoomMessage) error
}

type Prober interface {
	IsOwnerAlive(ctx context.Context, address string) bool
}

type Options struct {
	// Instance is the address peers use to probe this process.
	Instance         string
	InviteSweepDelay time.Duration
}

type session struct {
	identity string
	client   domain.PlatformClient
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type Manager struct {
	registry  domain.Registry
	connector domain.PlatformConnector
	prober    Prober
	forwarder Forwarder
	logger    logging.Logger
	metrics   *metrics.Metrics

	instance   string
	sweepDelay time.Duration

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// provisionMu serialises provision and remove so a check-then-act on
	// the registry is not interleaved within this process.
	provisionMu sync.Mutex

	mu       sync.Mutex
	sessions map[string]*session
}

func NewManager(
	registry domain.Registry,
	connector domain.PlatformConnector,
	prober Prober,
	forwarder Forwarder,
	opts Options,
	logger logging.Logger,
	m *metrics.Metrics,
) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry:   registry,
		connector:  connector,
		prober:     prober,
		forwarder:  forwarder,
		logger:     logger,
		metrics:    m,
		instance:   opts.Instance,
		sweepDelay: opts.InviteSweepDelay,
		baseCtx:    ctx,
		baseCancel: cancel,
		sessions:   make(map[string]*session),
	}
}

// Provision makes sure a live session exists for identity. A registry entry
// whose owner still answers its health probe is left alone; a stale one is
// replaced by a fresh login owned by this instance.
func (m *Manager) Provision(ctx context.Context, identity, password string) (domain.ProvisionResult, error) {
	identity = domain.NormalizeIdentity(identity)
	if identity == "" || password == "" {
		return domain.ProvisionCreated, domain.ErrMissingCredentials
	}

	m.provisionMu.Lock()
	defer m.provisionMu.Unlock()

	extra := map[logging.ExtraKey]any{logging.Identity: identity}

	existing, err := m.registry.Get(ctx, identity)
	switch {
	case err == nil:
		if m.ownerAlive(ctx, existing) {
			m.metrics.Provision("already_exists")
			m.logger.Info(logging.Session, logging.Provision, "session already live", extra)
			return domain.ProvisionAlreadyExists, nil
		}

		extra[logging.Instance] = existing.OwnerInstance
		m.logger.Warn(logging.Session, logging.Provision, "replacing stale session", extra)
		m.stopLocal(ctx, identity)
		if err := m.registry.Delete(ctx, identity); err != nil {
			return domain.ProvisionCreated, fmt.Errorf("failed to delete stale session: %w", err)
		}
	case errors.Is(err, domain.ErrSessionNotFound):
	default:
		return domain.ProvisionCreated, fmt.Errorf("failed to look up session: %w", err)
	}

	client, descriptor, err := m.connector.Login(ctx, identity, password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			m.metrics.Provision("auth_failed")
		} else {
			m.metrics.Provision("error")
		}
		return domain.ProvisionCreated, err
	}

	descriptor.Identity = identity
	descriptor.OwnerInstance = m.instance
	if err := m.registry.Put(ctx, identity, descriptor); err != nil {
		_ = client.Close(ctx)
		m.metrics.Provision("error")
		return domain.ProvisionCreated, fmt.Errorf("failed to store session: %w", err)
	}

	m.start(identity, client)
	m.metrics.Provision("created")
	m.logger.Info(logging.Session, logging.Provision, "session started", map[logging.ExtraKey]any{
		logging.Identity: identity,
		"user_id":        descriptor.UserID,
	})

	return domain.ProvisionCreated, nil
}

// ownerAlive never probes this process over the network: a session we own
// is alive exactly when its sync loop is running here.
func (m *Manager) ownerAlive(ctx context.Context, d domain.Descriptor) bool {
	if d.OwnerInstance == m.instance {
		return m.hasLocal(d.Identity)
	}
	return m.prober.IsOwnerAlive(ctx, d.OwnerInstance)
}

func (m *Manager) hasLocal(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[identity]
	return ok
}

func (m *Manager) start(identity string, client domain.PlatformClient) {
	ctx, cancel := context.WithCancel(m.baseCtx)
	s := &session{identity: identity, client: client, cancel: cancel}

	m.mu.Lock()
	m.sessions[identity] = s
	m.metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	handlers := domain.EventHandlers{
		OnInvite: func(ctx context.Context, invite domain.RoomInvite) {
			m.join(ctx, s, invite)
		},
		OnMessage: func(ctx context.Context, msg domain.InboundMessage) {
			m.forward(ctx, s, msg)
		},
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		m.sync(ctx, s, handlers)
		if ctx.Err() == nil {
			m.evict(s)
		}
	}()
	go func() {
		defer s.wg.Done()
		m.sweepInvites(ctx, s)
	}()
}

func (m *Manager) sync(ctx context.Context, s *session, handlers domain.EventHandlers) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(logging.Session, logging.Sync, "sync loop panicked", map[logging.ExtraKey]any{
				logging.Identity:     s.identity,
				logging.ErrorMessage: fmt.Sprint(r),
			})
		}
	}()

	if err := s.client.Sync(ctx, handlers); err != nil {
		m.logger.Error(logging.Session, logging.Sync, "sync loop stopped", map[logging.ExtraKey]any{
			logging.Identity:     s.identity,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// evict drops a session whose sync loop ended on its own. The registry entry
// stays; with no local session behind it the next Provision treats it as stale.
func (m *Manager) evict(s *session) {
	m.mu.Lock()
	current, ok := m.sessions[s.identity]
	if ok && current == s {
		delete(m.sessions, s.identity)
		m.metrics.SetActiveSessions(len(m.sessions))
	}
	m.mu.Unlock()

	if !ok || current != s {
		return
	}

	s.cancel()
	extra := map[logging.ExtraKey]any{logging.Identity: s.identity}
	if err := s.client.Close(context.Background()); err != nil {
		extra[logging.ErrorMessage] = err.Error()
	}
	m.logger.Warn(logging.Session, logging.Sync, "session evicted after sync loop ended", extra)
}

func (m *Manager) sweepInvites(ctx context.Context, s *session) {
	if m.sweepDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.sweepDelay):
		}
	}

	invites, err := s.client.PendingInvites(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn(logging.Session, logging.Invite, "failed to list pending invites", map[logging.ExtraKey]any{
				logging.Identity:     s.identity,
				logging.ErrorMessage: err.Error(),
			})
		}
		return
	}

	for _, invite := range invites {
		m.join(ctx, s, invite)
	}
}

func (m *Manager) join(ctx context.Context, s *session, invite domain.RoomInvite) {
	extra := map[logging.ExtraKey]any{
		logging.Identity: s.identity,
		logging.RoomID:   invite.RoomID,
		"inviter":        invite.Inviter,
	}

	if err := s.client.JoinRoom(ctx, invite.RoomID); err != nil {
		extra[logging.ErrorMessage] = err.Error()
		m.logger.Warn(logging.Session, logging.Invite, "failed to join room", extra)
		return
	}
	m.logger.Info(logging.Session, logging.Invite, "joined room", extra)
}

// forward ignores messages the session sent itself.
func (m *Manager) forward(ctx context.Context, s *session, msg domain.InboundMessage) {
	receiver := s.client.UserID()
	if msg.Sender == receiver {
		return
	}

	roomMsg := domain.RoomMessage{
		RoomID:    msg.RoomID,
		RoomName:  msg.RoomName,
		Sender:    msg.Sender,
		Receiver:  receiver,
		Message:   msg.Body,
		Timestamp: json.RawMessage(strconv.FormatInt(msg.Timestamp, 10)),
	}

	if err := m.forwarder.ForwardRoomMessage(ctx, roomMsg); err != nil {
		m.logger.Warn(logging.Session, logging.Deliver, "failed to forward room message", map[logging.ExtraKey]any{
			logging.Identity:     s.identity,
			logging.RoomID:       msg.RoomID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// SendMessage posts body to roomID as identity. A session owned by another
// instance is reached by restoring its client from the stored token.
func (m *Manager) SendMessage(ctx context.Context, identity, roomID, body string) error {
	identity = domain.NormalizeIdentity(identity)

	err := m.send(ctx, identity, roomID, body)
	m.metrics.Delivery(err)
	if err != nil {
		m.logger.Warn(logging.Session, logging.Deliver, "failed to send message", map[logging.ExtraKey]any{
			logging.Identity:     identity,
			logging.RoomID:       roomID,
			logging.ErrorMessage: err.Error(),
		})
	}
	return err
}

func (m *Manager) send(ctx context.Context, identity, roomID, body string) error {
	m.mu.Lock()
	s, ok := m.sessions[identity]
	m.mu.Unlock()

	var client domain.PlatformClient
	if ok {
		client = s.client
	} else {
		descriptor, err := m.registry.Get(ctx, identity)
		if err != nil {
			return err
		}
		client, err = m.connector.Restore(ctx, descriptor)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
		}
		defer client.Close(ctx)
	}

	if err := client.SendText(ctx, roomID, body); err != nil {
		if errors.Is(err, domain.ErrDelivery) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	return nil
}

// Remove stops the local session, if any, and deletes the registry entry.
// When a local session was stopped but the entry now names another owner,
// the entry is kept. It reports whether anything existed.
func (m *Manager) Remove(ctx context.Context, identity string) (bool, error) {
	identity = domain.NormalizeIdentity(identity)

	m.provisionMu.Lock()
	defer m.provisionMu.Unlock()

	local := m.stopLocal(ctx, identity)
	extra := map[logging.ExtraKey]any{
		logging.Identity: identity,
		"local":          local,
	}

	descriptor, err := m.registry.Get(ctx, identity)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		if local {
			m.logger.Info(logging.Session, logging.Remove, "session removed", extra)
		}
		return local, nil
	case errors.Is(err, domain.ErrInvalidDescriptor):
	case err != nil:
		return local, fmt.Errorf("failed to look up session: %w", err)
	}

	if err == nil && local && descriptor.OwnerInstance != m.instance {
		extra[logging.Instance] = descriptor.OwnerInstance
		m.logger.Warn(logging.Session, logging.Remove, "registry entry owned by another instance kept", extra)
		return true, nil
	}

	if err := m.registry.Delete(ctx, identity); err != nil {
		return local, fmt.Errorf("failed to delete session: %w", err)
	}
	m.logger.Info(logging.Session, logging.Remove, "session removed", extra)
	return true, nil
}

// stopLocal cancels the sync loop, waits for it and closes the client.
func (m *Manager) stopLocal(ctx context.Context, identity string) bool {
	m.mu.Lock()
	s, ok := m.sessions[identity]
	if ok {
		delete(m.sessions, identity)
		m.metrics.SetActiveSessions(len(m.sessions))
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	s.cancel()
	if err := s.client.Close(ctx); err != nil {
		m.logger.Warn(logging.Session, logging.Remove, "failed to close client", map[logging.ExtraKey]any{
			logging.Identity:     identity,
			logging.ErrorMessage: err.Error(),
		})
	}
	s.wg.Wait()
	return true
}

func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.registry.List(ctx)
}

// Local lists identities with a sync loop running in this process.
func (m *Manager) Local() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown stops every local session and deletes the registry entries this
// process still owns.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, identity := range m.Local() {
		if _, err := m.Remove(ctx, identity); err != nil {
			errs = append(errs, err)
		}
	}
	m.baseCancel()
	return errors.Join(errs...)
}
