package fixtures

import (
	"context"

	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/persistence/memorypersistence"
)

// ProviderStub is a test implementation of the persistence.Provider interface.
type ProviderStub struct {
	persistence.Provider

	OpenFunc func(context.Context, string) (persistence.DataStore, error)
}

// Open returns a data-store for a specific account.
func (p *ProviderStub) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	if p.OpenFunc != nil {
		return p.OpenFunc(ctx, k)
	}

	if p.Provider != nil {
		ds, err := p.Provider.Open(ctx, k)
		if ds != nil {
			ds = &DataStoreStub{DataStore: ds}
		}
		return ds, err
	}

	return nil, nil
}

// DataStoreStub is a test implementation of the persistence.DataStore
// interface.
type DataStoreStub struct {
	persistence.DataStore

	PersistFunc           func(context.Context, persistence.Batch) error
	LoadJobsFunc          func(context.Context) ([]persistence.Job, error)
	LoadAttachmentFunc    func(context.Context, string) (message.Attachment, bool, error)
	LoadConversationFunc  func(context.Context, string) (message.Conversation, bool, error)
	LoadOpenGroupsFunc    func(context.Context) ([]message.Conversation, error)
	LoadMessageStatusFunc func(context.Context, string) (persistence.MessageStatus, bool, error)
	LoadPollCursorFunc    func(context.Context, string) (uint64, error)
	CloseFunc             func() error
}

// NewDataStoreStub returns a new data-store stub that uses an in-memory
// persistence provider.
func NewDataStoreStub() *DataStoreStub {
	p := &ProviderStub{
		Provider: &memorypersistence.Provider{},
	}

	ds, err := p.Open(context.Background(), "<account-key>")
	if err != nil {
		panic(err)
	}

	return ds.(*DataStoreStub)
}

// Persist commits a batch of operations atomically.
func (ds *DataStoreStub) Persist(ctx context.Context, b persistence.Batch) error {
	if ds.PersistFunc != nil {
		return ds.PersistFunc(ctx, b)
	}

	if ds.DataStore != nil {
		return ds.DataStore.Persist(ctx, b)
	}

	return nil
}

// LoadJobs loads all persisted delivery jobs.
func (ds *DataStoreStub) LoadJobs(ctx context.Context) ([]persistence.Job, error) {
	if ds.LoadJobsFunc != nil {
		return ds.LoadJobsFunc(ctx)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadJobs(ctx)
	}

	return nil, nil
}

// LoadAttachment loads the attachment with the given ID.
func (ds *DataStoreStub) LoadAttachment(ctx context.Context, id string) (message.Attachment, bool, error) {
	if ds.LoadAttachmentFunc != nil {
		return ds.LoadAttachmentFunc(ctx, id)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadAttachment(ctx, id)
	}

	return message.Attachment{}, false, nil
}

// LoadConversation loads the conversation with the given ID.
func (ds *DataStoreStub) LoadConversation(ctx context.Context, id string) (message.Conversation, bool, error) {
	if ds.LoadConversationFunc != nil {
		return ds.LoadConversationFunc(ctx, id)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadConversation(ctx, id)
	}

	return message.Conversation{}, false, nil
}

// LoadOpenGroups loads all conversations that have an open-group association.
func (ds *DataStoreStub) LoadOpenGroups(ctx context.Context) ([]message.Conversation, error) {
	if ds.LoadOpenGroupsFunc != nil {
		return ds.LoadOpenGroupsFunc(ctx)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadOpenGroups(ctx)
	}

	return nil, nil
}

// LoadMessageStatus loads the status of the message with the given ID.
func (ds *DataStoreStub) LoadMessageStatus(ctx context.Context, id string) (persistence.MessageStatus, bool, error) {
	if ds.LoadMessageStatusFunc != nil {
		return ds.LoadMessageStatusFunc(ctx, id)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadMessageStatus(ctx, id)
	}

	return persistence.MessageStatus{}, false, nil
}

// LoadPollCursor returns the poll cursor for the given conversation.
func (ds *DataStoreStub) LoadPollCursor(ctx context.Context, id string) (uint64, error) {
	if ds.LoadPollCursorFunc != nil {
		return ds.LoadPollCursorFunc(ctx, id)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadPollCursor(ctx, id)
	}

	return 0, nil
}

// Close closes the data store.
func (ds *DataStoreStub) Close() error {
	if ds.CloseFunc != nil {
		return ds.CloseFunc()
	}

	if ds.DataStore != nil {
		return ds.DataStore.Close()
	}

	return nil
}
