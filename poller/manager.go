package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/dogmatiq/courier/internal/metrics"
	"github.com/dogmatiq/courier/internal/x/syncx"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/notification"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
)

// Manager supervises one Poller for each known open-group conversation.
type Manager struct {
	// DataStore is the data-store that holds the conversations and their
	// poll cursors.
	DataStore interface {
		persistence.Persister
		persistence.ConversationRepository
		persistence.PollCursorRepository
	}

	// Fetcher fetches posts from open-group servers.
	Fetcher Fetcher

	// Sink, if non-nil, receives the posts fetched by each poller.
	Sink Sink

	// Lookup, if non-nil, is used to find the display name of open groups
	// that are added without one.
	Lookup Lookup

	// Hub, if non-nil, is the notification hub that conversation events are
	// received from and published to.
	Hub *notification.Hub

	// Interval is the delay between successful polls. If it is non-positive,
	// DefaultInterval is used.
	Interval time.Duration

	// BackoffStrategy is the strategy used to delay the next poll after a
	// failure. If it is nil, DefaultBackoff is used.
	BackoffStrategy backoff.Strategy

	// Metrics is the set of collectors used to record poll outcomes.
	Metrics *metrics.Metrics

	// Logger is the target for log messages from the manager and its pollers.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m       syncx.RWMutex
	loaded  bool
	active  bool
	groups  map[string]message.Conversation // key == conversation ID
	pollers map[string]*Poller              // key == conversation ID
}

// StartPollersIfNeeded starts a poller for every known open-group
// conversation that does not already have a running poller.
//
// Pollers for conversations that are added later are started as soon as they
// are discovered, until StopPollers() is called.
func (m *Manager) StartPollersIfNeeded(ctx context.Context) error {
	if err := m.m.Lock(ctx); err != nil {
		return err
	}
	defer m.m.Unlock()

	if !m.loaded {
		if err := m.refresh(ctx); err != nil {
			return err
		}
	}

	m.active = true
	m.startAll()

	return nil
}

// StopPollers stops all running pollers.
//
// The pollers are retained, and are restarted by the next call to
// StartPollersIfNeeded().
func (m *Manager) StopPollers() {
	// Lock() only fails if the context is canceled.
	_ = m.m.Lock(context.Background())
	defer m.m.Unlock()

	m.active = false

	for _, p := range m.pollers {
		p.Stop()
	}
}

// Refresh reloads the open-group conversations from the data-store.
//
// Pollers for conversations that no longer exist are stopped and removed.
// Pollers are created for new conversations, and started if the manager is
// active.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := m.m.Lock(ctx); err != nil {
		return err
	}
	defer m.m.Unlock()

	return m.refresh(ctx)
}

// HandleConversationDeleted cleans up after the conversation with the given ID
// has been deleted.
//
// If the conversation is an open group its cached state is cleared. The
// open-group association is removed and the pollers are refreshed.
func (m *Manager) HandleConversationDeleted(ctx context.Context, id string) error {
	if err := m.m.Lock(ctx); err != nil {
		return err
	}
	defer m.m.Unlock()

	var b persistence.Batch

	if _, ok := m.groups[id]; ok {
		// The poller must not persist its cursor after the state is cleared.
		if p, ok := m.pollers[id]; ok {
			p.Stop()
		}

		b = append(b, persistence.ClearConversationState{
			ConversationID: id,
		})
	}

	b = append(b, persistence.RemoveOpenGroupAssociation{
		ConversationID: id,
	})

	if err := m.DataStore.Persist(ctx, b); err != nil {
		return err
	}

	return m.refresh(ctx)
}

// DeleteConversation removes the conversation with the given ID.
//
// Its poller, if any, is stopped first. If the stored conversation is an open
// group, its cached state is cleared. The conversation, its open-group
// association and its state are removed in a single batch.
func (m *Manager) DeleteConversation(ctx context.Context, id string) error {
	if err := m.m.Lock(ctx); err != nil {
		return err
	}
	defer m.m.Unlock()

	c, exists, err := m.DataStore.LoadConversation(ctx, id)
	if err != nil {
		return err
	}

	if p, ok := m.pollers[id]; ok {
		p.Stop()
	}

	b := persistence.Batch{
		persistence.RemoveConversation{
			ConversationID: id,
		},
		persistence.RemoveOpenGroupAssociation{
			ConversationID: id,
		},
	}

	if _, ok := m.groups[id]; ok || (exists && c.IsOpenGroup()) {
		b = append(b, persistence.ClearConversationState{
			ConversationID: id,
		})
	}

	if err := m.DataStore.Persist(ctx, b); err != nil {
		return err
	}

	return m.refresh(ctx)
}

// AddOpenGroup adds the open group with the given server and channel.
//
// If the open group is already known its existing conversation is returned.
// Otherwise a new conversation is created. If name is empty the display name
// is obtained from the Lookup.
func (m *Manager) AddOpenGroup(
	ctx context.Context,
	server string,
	channel uint64,
	name string,
) (message.Conversation, error) {
	c, ok, err := m.addOpenGroup(ctx, server, channel, name)
	if err != nil || ok {
		return c, err
	}

	if m.Hub != nil {
		if _, err := m.Hub.Publish(ctx, notification.ConversationAdded, c.ID); err != nil {
			return message.Conversation{}, err
		}
	}

	return c, nil
}

// addOpenGroup persists a new open-group conversation, unless it already
// exists. ok is true if the conversation already existed.
func (m *Manager) addOpenGroup(
	ctx context.Context,
	server string,
	channel uint64,
	name string,
) (c message.Conversation, ok bool, err error) {
	if err := m.m.Lock(ctx); err != nil {
		return message.Conversation{}, false, err
	}
	defer m.m.Unlock()

	if !m.loaded {
		if err := m.refresh(ctx); err != nil {
			return message.Conversation{}, false, err
		}
	}

	if c, ok := m.find(server, channel); ok {
		return c, true, nil
	}

	if name == "" && m.Lookup != nil {
		name, err = m.Lookup.DisplayName(ctx, server, channel)
		if err != nil {
			return message.Conversation{}, false, fmt.Errorf(
				"unable to query display name of %s/%d: %w",
				server,
				channel,
				err,
			)
		}
	}

	c = message.Conversation{
		ID:   message.OpenGroupDestination(server, channel).Key(),
		Kind: message.OpenGroupKind,
		OpenGroup: &message.OpenGroup{
			Server:      server,
			Channel:     channel,
			DisplayName: name,
		},
	}

	if err := m.DataStore.Persist(
		ctx,
		persistence.Batch{
			persistence.SaveConversation{
				Conversation: c,
			},
		},
	); err != nil {
		return message.Conversation{}, false, err
	}

	return c, false, m.refresh(ctx)
}

// OpenGroup returns the conversation for the open group with the given server
// and channel.
func (m *Manager) OpenGroup(server string, channel uint64) (message.Conversation, bool) {
	// RLock() only fails if the context is canceled.
	_ = m.m.RLock(context.Background())
	defer m.m.RUnlock()

	return m.find(server, channel)
}

// IsPolling returns true if the conversation with the given ID has a running
// poller.
func (m *Manager) IsPolling(id string) bool {
	// RLock() only fails if the context is canceled.
	_ = m.m.RLock(context.Background())
	defer m.m.RUnlock()

	p, ok := m.pollers[id]
	return ok && p.IsRunning()
}

// Run refreshes the pollers in response to conversation events received from
// the hub, until ctx is canceled.
//
// All pollers are stopped when Run returns.
func (m *Manager) Run(ctx context.Context) error {
	defer m.StopPollers()

	var events <-chan notification.Event

	if m.Hub != nil {
		ch, unsub := m.Hub.Subscribe()
		defer unsub()
		events = ch
	}

	if err := m.Refresh(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-events:
			if err := m.handleEvent(ctx, e); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				logging.Log(
					m.Logger,
					"unable to handle %s event for conversation %s: %s",
					e.Type,
					e.ConversationID,
					err,
				)
			}
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, e notification.Event) error {
	switch e.Type {
	case notification.ConversationDeleted:
		return m.HandleConversationDeleted(ctx, e.ConversationID)
	default:
		return m.Refresh(ctx)
	}
}

// refresh reconciles the pollers with the open groups in the data-store.
//
// It assumes m.m is held for writing.
func (m *Manager) refresh(ctx context.Context) error {
	convs, err := m.DataStore.LoadOpenGroups(ctx)
	if err != nil {
		return err
	}

	groups := make(map[string]message.Conversation, len(convs))
	for _, c := range convs {
		groups[c.ID] = c
	}

	if m.pollers == nil {
		m.pollers = map[string]*Poller{}
	}

	for id, p := range m.pollers {
		c, ok := groups[id]
		if ok && *c.OpenGroup == p.OpenGroup {
			continue
		}

		p.Stop()
		delete(m.pollers, id)
	}

	for id, c := range groups {
		if _, ok := m.pollers[id]; !ok {
			m.pollers[id] = m.newPoller(c)
		}
	}

	m.groups = groups
	m.loaded = true

	if m.active {
		m.startAll()
	}

	return nil
}

// startAll starts every poller that is not already running.
func (m *Manager) startAll() {
	for _, p := range m.pollers {
		p.StartIfNeeded()
	}
}

func (m *Manager) find(server string, channel uint64) (message.Conversation, bool) {
	for _, c := range m.groups {
		if c.OpenGroup.Server == server && c.OpenGroup.Channel == channel {
			return c, true
		}
	}

	return message.Conversation{}, false
}

func (m *Manager) newPoller(c message.Conversation) *Poller {
	return &Poller{
		ConversationID:  c.ID,
		OpenGroup:       *c.OpenGroup,
		DataStore:       m.DataStore,
		Fetcher:         m.Fetcher,
		Sink:            m.Sink,
		Interval:        m.Interval,
		BackoffStrategy: m.BackoffStrategy,
		Metrics:         m.Metrics,
		Logger:          m.Logger,
	}
}
