package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/courier/internal/metrics"
	"github.com/dogmatiq/courier/internal/mlog"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/transport"
	"github.com/dogmatiq/courier/upload"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/google/uuid"
)

// Enqueuer is an interface for adding persisted delivery jobs to a queue.
type Enqueuer interface {
	Enqueue(jobs ...persistence.Job)
}

// Dispatcher turns outgoing messages into deliveries.
type Dispatcher struct {
	// DataStore is the data-store used to persist attachments, jobs and
	// message statuses, and to load conversations.
	DataStore persistence.DataStore

	// Queue is the queue that durable delivery jobs are added to once they
	// have been persisted.
	Queue Enqueuer

	// Uploader uploads attachments before a message is sent.
	Uploader *upload.Uploader

	// Transport delivers messages to their destinations.
	Transport transport.Transport

	// FileServer is the server used for attachments of messages that are not
	// sent to an open group.
	FileServer message.Server

	// Self is the public key of the local account. It is never included in the
	// recipients of a closed-group message.
	Self string

	// Metrics is the set of collectors used to record non-durable sends.
	Metrics *metrics.Metrics

	// Logger is the target for log messages from the dispatcher.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m     sync.Mutex
	sends map[string]map[*inflightSend]struct{} // key == conversation ID
}

// inflightSend is a non-durable send that is in progress.
type inflightSend struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Send durably sends m to the conversation with the given ID.
//
// It returns once the delivery job has been persisted, without waiting for the
// message to be delivered. The attachments are uploaded by the delivery job.
//
// If the conversation's destination can not be resolved, a
// message.ConversationResolutionError is returned. If the job can not be
// persisted, a JobCreationFailedError is returned.
func (d *Dispatcher) Send(
	ctx context.Context,
	m message.Message,
	conversationID string,
	attachments ...message.Attachment,
) error {
	m, err := m.TryStamp(conversationID)
	if err != nil {
		return err
	}

	m, ops, err := d.prepare(ctx, m, attachments)
	if err != nil {
		return JobCreationFailedError{m.ID, err}
	}

	c, err := d.loadConversation(ctx, conversationID)
	if err != nil {
		if _, ok := err.(message.ConversationResolutionError); ok {
			return err
		}
		return JobCreationFailedError{m.ID, err}
	}

	dest, err := message.ResolveDestination(c, d.Self)
	if err != nil {
		return err
	}

	now := time.Now()
	j := persistence.Job{
		ID:            uuid.NewString(),
		Message:       m,
		Destination:   dest,
		CreatedAt:     now,
		NextAttemptAt: now,
	}

	var u persistence.Unit
	u.Add(ops...)
	u.Add(
		persistence.SaveJob{
			Job: j,
		},
		sending(m, now),
	)
	u.AfterCommit(func() {
		j.Revision++
		d.Queue.Enqueue(j)
	})

	if err := u.Commit(ctx, d.DataStore); err != nil {
		return JobCreationFailedError{m.ID, err}
	}

	return nil
}

// SendNonDurably sends m to the conversation with the given ID without
// persisting a delivery job.
//
// All of the message's attachments are uploaded concurrently. The message is
// sent only if every upload succeeds, otherwise the error from the first
// failed attachment is returned. The send is not retried.
//
// It returns immediately. The outcome is available via the returned future.
// If the conversation is passed to CancelConversation() before the message is
// sent, the future resolves to a message.ConversationDeletedError.
func (d *Dispatcher) SendNonDurably(
	ctx context.Context,
	m message.Message,
	conversationID string,
	attachments ...message.Attachment,
) *Future {
	f := newFuture()
	sendCtx, s := d.track(ctx, conversationID)

	go func() {
		defer d.untrack(conversationID, s)

		err := d.sendNonDurably(ctx, sendCtx, m, conversationID, attachments)
		d.Metrics.NonDurableSent(err)
		f.resolve(err)
	}()

	return f
}

// sendNonDurably performs a non-durable send under sendCtx, which is canceled
// if the conversation is deleted. The outcome is recorded under ctx.
func (d *Dispatcher) sendNonDurably(
	ctx, sendCtx context.Context,
	m message.Message,
	conversationID string,
	attachments []message.Attachment,
) error {
	m, err := m.TryStamp(conversationID)
	if err != nil {
		return err
	}

	m, ops, err := d.prepare(sendCtx, m, attachments)
	if err != nil {
		return canceledCause(ctx, sendCtx, err)
	}

	if err := d.DataStore.Persist(
		sendCtx,
		append(ops, sending(m, time.Now())),
	); err != nil {
		return canceledCause(ctx, sendCtx, err)
	}

	err = d.deliver(sendCtx, m, conversationID)
	err = canceledCause(ctx, sendCtx, err)
	d.recordOutcome(ctx, m, err)

	return err
}

// CancelConversation cancels the non-durable sends to the conversation with
// the given ID that are in progress, and waits for them to record their
// outcome.
//
// Sends that have not yet reached the transport fail with a
// message.ConversationDeletedError.
func (d *Dispatcher) CancelConversation(ctx context.Context, conversationID string) error {
	d.m.Lock()
	var done []chan struct{}
	for s := range d.sends[conversationID] {
		s.cancel(message.ConversationDeletedError{
			ConversationID: conversationID,
		})
		done = append(done, s.done)
	}
	d.m.Unlock()

	for _, ch := range done {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}

	return nil
}

// track registers a non-durable send to the given conversation.
func (d *Dispatcher) track(ctx context.Context, conversationID string) (context.Context, *inflightSend) {
	ctx, cancel := context.WithCancelCause(ctx)
	s := &inflightSend{cancel, make(chan struct{})}

	d.m.Lock()
	defer d.m.Unlock()

	if d.sends == nil {
		d.sends = map[string]map[*inflightSend]struct{}{}
	}

	sends := d.sends[conversationID]
	if sends == nil {
		sends = map[*inflightSend]struct{}{}
		d.sends[conversationID] = sends
	}
	sends[s] = struct{}{}

	return ctx, s
}

// untrack removes a finished non-durable send.
func (d *Dispatcher) untrack(conversationID string, s *inflightSend) {
	d.m.Lock()
	defer d.m.Unlock()

	s.cancel(nil)
	close(s.done)

	sends := d.sends[conversationID]
	delete(sends, s)
	if len(sends) == 0 {
		delete(d.sends, conversationID)
	}
}

// canceledCause returns the cause of sendCtx's cancelation in place of err,
// if sendCtx was canceled independently of ctx.
func canceledCause(ctx, sendCtx context.Context, err error) error {
	if err != nil && sendCtx.Err() != nil && ctx.Err() == nil {
		return context.Cause(sendCtx)
	}
	return err
}

// deliver uploads the attachments of m then sends it to the conversation's
// current destination.
func (d *Dispatcher) deliver(
	ctx context.Context,
	m message.Message,
	conversationID string,
) error {
	c, err := d.loadConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	server := d.FileServer
	if c.IsOpenGroup() {
		server = message.OpenGroupServer(c.OpenGroup.Server)
	}

	if err := d.Uploader.UploadAll(ctx, m.AttachmentIDs, server); err != nil {
		return err
	}

	dest, err := message.ResolveDestination(c, d.Self)
	if err != nil {
		return err
	}

	return d.send(ctx, m, dest)
}

// HandleJob makes a single attempt at delivering a durable job.
//
// It returns a message.ConversationResolutionError if the job's conversation
// no longer exists. It implements jobqueue.Handler.
func (d *Dispatcher) HandleJob(ctx context.Context, j persistence.Job) error {
	if _, err := d.loadConversation(ctx, j.Message.ConversationID); err != nil {
		return err
	}

	server := d.FileServer
	if j.Destination.Kind == message.OpenGroupKind {
		server = message.OpenGroupServer(j.Destination.Server)
	}

	if err := d.Uploader.UploadAll(ctx, j.Message.AttachmentIDs, server); err != nil {
		return err
	}

	return d.send(ctx, j.Message, j.Destination)
}

// send sends m to dest via the transport.
func (d *Dispatcher) send(
	ctx context.Context,
	m message.Message,
	dest message.Destination,
) error {
	if err := d.Transport.Send(ctx, m, dest); err != nil {
		return TransportFailedError{
			MessageID:   m.ID,
			Destination: dest,
			Cause:       err,
		}
	}

	return nil
}

// prepare registers attachments against m.
//
// It returns m with the attachment IDs added, along with the operations that
// persist any attachments that are not already uploaded.
func (d *Dispatcher) prepare(
	ctx context.Context,
	m message.Message,
	attachments []message.Attachment,
) (message.Message, []persistence.Operation, error) {
	var (
		ids []string
		ops []persistence.Operation
	)

	for _, a := range attachments {
		ids = append(ids, a.ID)

		existing, ok, err := d.DataStore.LoadAttachment(ctx, a.ID)
		if err != nil {
			return m, nil, err
		}

		if ok && existing.IsUploaded() {
			continue
		}

		a.MessageID = m.ID
		a.State = message.Pending
		a.Server = ""
		a.Reference = ""

		ops = append(ops, persistence.SaveAttachment{
			Attachment: a,
		})
	}

	return m.WithAttachments(ids...), ops, nil
}

// loadConversation loads the conversation with the given ID.
//
// It returns a message.ConversationResolutionError if the conversation does
// not exist.
func (d *Dispatcher) loadConversation(
	ctx context.Context,
	id string,
) (message.Conversation, error) {
	c, ok, err := d.DataStore.LoadConversation(ctx, id)
	if err != nil {
		return message.Conversation{}, err
	}

	if !ok {
		return message.Conversation{}, message.ConversationResolutionError{
			ConversationID: id,
			Reason:         "conversation does not exist",
		}
	}

	return c, nil
}

// recordOutcome persists the final status of a non-durably sent message.
func (d *Dispatcher) recordOutcome(ctx context.Context, m message.Message, cause error) {
	s := persistence.MessageStatus{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		State:          persistence.Sent,
		UpdatedAt:      time.Now(),
	}

	if cause != nil {
		s.State = persistence.Failed
		s.LastError = cause.Error()
	}

	if err := d.DataStore.Persist(
		ctx,
		persistence.Batch{
			persistence.SaveMessageStatus{
				Status: s,
			},
		},
	); err != nil {
		logging.Log(
			d.Logger,
			"unable to record the status of message %s as %s: %s",
			mlog.FormatID(m.ID),
			s.State,
			err,
		)
	}
}

// sending returns an operation that records m as awaiting delivery.
func sending(m message.Message, now time.Time) persistence.Operation {
	return persistence.SaveMessageStatus{
		Status: persistence.MessageStatus{
			MessageID:      m.ID,
			ConversationID: m.ConversationID,
			State:          persistence.Sending,
			UpdatedAt:      now,
		},
	}
}

