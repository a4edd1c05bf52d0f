package poller

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/courier/internal/metrics"
	"github.com/dogmatiq/courier/internal/mlog"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
)

// DefaultInterval is the default delay between successful polls.
const DefaultInterval = 4 * time.Second

// DefaultBackoff is the default strategy used to delay the next poll after a
// failure.
var DefaultBackoff backoff.Strategy = backoff.WithTransforms(
	backoff.Exponential(1*time.Second),
	linger.FullJitter,
	linger.Limiter(0, 1*time.Minute),
)

// Post is a message fetched from an open-group server.
type Post struct {
	// ID is the server-assigned message ID. IDs increase monotonically within
	// a channel.
	ID uint64

	// Sender is the public key of the post's author.
	Sender string

	// Payload is the opaque message content.
	Payload []byte

	// PostedAt is the time at which the server accepted the post.
	PostedAt time.Time
}

// Fetcher is an interface for fetching posts from an open-group server.
type Fetcher interface {
	// Poll returns the posts in g with an ID greater than since, in ID order.
	Poll(ctx context.Context, g message.OpenGroup, since uint64) ([]Post, error)
}

// Sink is an interface for consuming posts fetched by a poller.
type Sink interface {
	// HandlePosts handles posts fetched for a conversation.
	//
	// If it returns an error the posts are fetched again by the next poll.
	HandlePosts(ctx context.Context, conversationID string, posts []Post) error
}

// Lookup is an interface for querying open-group channel metadata.
type Lookup interface {
	// DisplayName returns the human-readable name of a channel.
	DisplayName(ctx context.Context, server string, channel uint64) (string, error)
}

// Poller periodically fetches new posts for a single open-group conversation.
type Poller struct {
	// ConversationID is the ID of the conversation that is polled.
	ConversationID string

	// OpenGroup is the channel that is polled.
	OpenGroup message.OpenGroup

	// DataStore is the data-store in which the poll cursor is persisted.
	DataStore interface {
		persistence.Persister
		persistence.PollCursorRepository
	}

	// Fetcher fetches posts from the server.
	Fetcher Fetcher

	// Sink, if non-nil, receives the fetched posts.
	Sink Sink

	// Interval is the delay between successful polls. If it is non-positive,
	// DefaultInterval is used.
	Interval time.Duration

	// BackoffStrategy is the strategy used to delay the next poll after a
	// failure. If it is nil, DefaultBackoff is used.
	BackoffStrategy backoff.Strategy

	// Metrics is the set of collectors used to record poll outcomes.
	Metrics *metrics.Metrics

	// Logger is the target for log messages from the poller.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m      sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// StartIfNeeded starts polling if the poller is not already running.
//
// It returns true if polling was started by this call.
func (p *Poller) StartIfNeeded() bool {
	p.m.Lock()
	defer p.m.Unlock()

	if p.isRunning() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.cancel = cancel
	p.done = done

	go p.run(ctx, done)

	return true
}

// Stop stops polling.
//
// It blocks until the polling goroutine has exited. No poll is made after Stop
// returns. It is a no-op if the poller is not running.
func (p *Poller) Stop() {
	p.m.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.m.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// IsRunning returns true if the poller is running.
func (p *Poller) IsRunning() bool {
	p.m.Lock()
	defer p.m.Unlock()

	return p.isRunning()
}

func (p *Poller) isRunning() bool {
	if p.done == nil {
		return false
	}

	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// run polls the server until ctx is canceled.
func (p *Poller) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	p.Metrics.PollerStarted()
	defer p.Metrics.PollerStopped()

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	strategy := p.BackoffStrategy
	if strategy == nil {
		strategy = DefaultBackoff
	}

	mlog.LogPoller(p.Logger, p.ConversationID, p.OpenGroup, "started polling every %s", interval)
	defer mlog.LogPoller(p.Logger, p.ConversationID, p.OpenGroup, "stopped polling")

	counter := backoff.Counter{Strategy: strategy}

	for {
		err := p.poll(ctx)
		if ctx.Err() != nil {
			return
		}

		p.Metrics.Polled(err)

		if err != nil {
			mlog.LogPollerError(p.Logger, p.ConversationID, p.OpenGroup, err)

			if counter.Sleep(ctx, err) != nil {
				return
			}

			continue
		}

		counter.Reset()

		if linger.Sleep(ctx, interval) != nil {
			return
		}
	}
}

// poll fetches the posts newer than the persisted cursor, hands them to the
// sink and advances the cursor.
func (p *Poller) poll(ctx context.Context) error {
	cursor, err := p.DataStore.LoadPollCursor(ctx, p.ConversationID)
	if err != nil {
		return err
	}

	posts, err := p.Fetcher.Poll(ctx, p.OpenGroup, cursor)
	if err != nil {
		return err
	}

	next := cursor
	for _, post := range posts {
		if post.ID > next {
			next = post.ID
		}
	}

	if next == cursor {
		return nil
	}

	if p.Sink != nil {
		if err := p.Sink.HandlePosts(ctx, p.ConversationID, posts); err != nil {
			return err
		}
	}

	if err := p.DataStore.Persist(
		ctx,
		persistence.Batch{
			persistence.SavePollCursor{
				ConversationID: p.ConversationID,
				LastMessageID:  next,
			},
		},
	); err != nil {
		return err
	}

	logging.Debug(p.Logger, "%s fetched %d post(s), cursor is now %d", p.ConversationID, len(posts), next)

	return nil
}
