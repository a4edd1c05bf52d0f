package courier

import (
	"context"

	"github.com/dogmatiq/courier/dispatch"
	"github.com/dogmatiq/courier/internal/metrics"
	"github.com/dogmatiq/courier/internal/x/loggingx"
	"github.com/dogmatiq/courier/jobqueue"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/notification"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/poller"
	"github.com/dogmatiq/courier/semaphore"
	"github.com/dogmatiq/courier/upload"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Engine sends messages on behalf of a single account, and polls the open
// groups that the account belongs to.
type Engine struct {
	opts       *engineOptions
	dataStore  persistence.DataStore
	hub        *notification.Hub
	queue      *jobqueue.Queue
	dispatcher *dispatch.Dispatcher
	pollers    *poller.Manager
}

// Open returns a new engine.
//
// It opens the account's data-store. The engine must be closed when it is no
// longer needed.
func Open(ctx context.Context, options ...EngineOption) (*Engine, error) {
	opts := resolveEngineOptions(options...)

	mx := metrics.New()
	if opts.MetricsRegisterer != nil {
		if err := mx.Register(opts.MetricsRegisterer); err != nil {
			return nil, err
		}
	}

	ds, err := opts.PersistenceProvider.Open(ctx, opts.AccountKey)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:      opts,
		dataStore: ds,
		hub:       &notification.Hub{},
	}

	e.dispatcher = &dispatch.Dispatcher{
		DataStore: ds,
		Uploader: &upload.Uploader{
			DataStore:  ds,
			FileServer: opts.FileServer,
			Limiter:    opts.UploadLimiter,
			Metrics:    mx,
			Logger:     loggingx.WithPrefix(opts.Logger, "[upload] "),
		},
		Transport:  opts.Transport,
		FileServer: message.FileServer(opts.FileServerURL),
		Self:       opts.AccountKey,
		Metrics:    mx,
		Logger:     loggingx.WithPrefix(opts.Logger, "[dispatch] "),
	}

	e.queue = &jobqueue.Queue{
		DataStore:       ds,
		Handler:         e.dispatcher,
		Observer:        opts.Observer,
		Semaphore:       semaphore.New(int(opts.ConcurrencyLimit)),
		MaxAttempts:     opts.MaxAttempts,
		BackoffStrategy: opts.DeliveryBackoff,
		Metrics:         mx,
		Logger:          loggingx.WithPrefix(opts.Logger, "[queue] "),
	}

	e.dispatcher.Queue = e.queue

	e.pollers = &poller.Manager{
		DataStore: ds,
		Fetcher:   opts.Fetcher,
		Sink:      opts.Sink,
		Lookup:    opts.Lookup,
		Hub:       e.hub,
		Interval:  opts.PollInterval,
		Metrics:   mx,
		Logger:    loggingx.WithPrefix(opts.Logger, "[poller] "),
	}

	return e, nil
}

// Send sends m to the conversation with the given ID.
//
// It returns once the message has been persisted as a durable delivery job.
// Delivery is retried until it succeeds, or the maximum number of attempts is
// reached.
func (e *Engine) Send(
	ctx context.Context,
	m message.Message,
	conversationID string,
	attachments ...message.Attachment,
) error {
	return e.dispatcher.Send(ctx, m, conversationID, attachments...)
}

// SendNonDurably sends m to the conversation with the given ID without
// persisting a delivery job. The send is not retried.
func (e *Engine) SendNonDurably(
	ctx context.Context,
	m message.Message,
	conversationID string,
	attachments ...message.Attachment,
) *dispatch.Future {
	return e.dispatcher.SendNonDurably(ctx, m, conversationID, attachments...)
}

// MessageStatus returns the delivery status of the message with the given ID.
func (e *Engine) MessageStatus(
	ctx context.Context,
	messageID string,
) (persistence.MessageStatus, bool, error) {
	return e.dataStore.LoadMessageStatus(ctx, messageID)
}

// SaveConversation creates or updates a conversation, and notifies the engine
// of the change.
//
// Saving a conversation that is identical to the stored one has no effect.
func (e *Engine) SaveConversation(ctx context.Context, c message.Conversation) error {
	existing, exists, err := e.dataStore.LoadConversation(ctx, c.ID)
	if err != nil {
		return err
	}

	if exists && cmp.Equal(existing, c, cmpopts.EquateEmpty()) {
		return nil
	}

	if err := e.dataStore.Persist(
		ctx,
		persistence.Batch{
			persistence.SaveConversation{
				Conversation: c,
			},
		},
	); err != nil {
		return err
	}

	t := notification.ConversationAdded
	if exists {
		t = notification.ConversationChanged
	}

	_, err = e.hub.Publish(ctx, t, c.ID)
	return err
}

// DeleteConversation removes a conversation and notifies the engine of its
// removal.
//
// Sends to the conversation that are still in progress are abandoned with a
// message.ConversationDeletedError. If the conversation is an open group, its
// poll cursor and the statuses of its messages are removed along with it.
func (e *Engine) DeleteConversation(ctx context.Context, id string) error {
	if err := e.dispatcher.CancelConversation(ctx, id); err != nil {
		return err
	}

	if err := e.queue.CancelConversation(ctx, id); err != nil {
		return err
	}

	if err := e.pollers.DeleteConversation(ctx, id); err != nil {
		return err
	}

	_, err := e.hub.Publish(ctx, notification.ConversationDeleted, id)
	return err
}

// AddOpenGroup adds the open group with the given server and channel, or
// returns the existing conversation if it is already known.
func (e *Engine) AddOpenGroup(
	ctx context.Context,
	server string,
	channel uint64,
	name string,
) (message.Conversation, error) {
	return e.pollers.AddOpenGroup(ctx, server, channel, name)
}

// Notifications returns the hub on which conversation events are published.
func (e *Engine) Notifications() *notification.Hub {
	return e.hub
}

// Run delivers messages and polls open groups until ctx is canceled or an
// error occurs.
func (e *Engine) Run(ctx context.Context) error {
	parent := ctx
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.queue.Run(ctx)
	})

	g.Go(func() error {
		if e.opts.Fetcher != nil {
			if err := e.pollers.StartPollersIfNeeded(ctx); err != nil {
				return err
			}
		}

		return e.pollers.Run(ctx)
	})

	err := g.Wait()

	if parent.Err() != nil {
		return parent.Err()
	}

	return err
}

// Close closes the engine's data-store and notification hub.
//
// It must not be called while Run() is in progress.
func (e *Engine) Close() error {
	return multierr.Combine(
		e.hub.Close(),
		e.dataStore.Close(),
	)
}
