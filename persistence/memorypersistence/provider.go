package memorypersistence

import (
	"context"
	"sync"

	"github.com/dogmatiq/courier/persistence"
)

// Provider is an implementation of persistence.Provider that keeps the data of
// each account in memory for as long as the provider exists.
//
// Closing a data-store does not discard its data. Opening the same account
// again returns a data-store over the same jobs, statuses and conversations,
// which allows a restart to be simulated without a real database.
type Provider struct {
	m        sync.Mutex
	accounts map[string]*database // key == account key
}

// Open returns the data-store for the account identified by k.
//
// It returns persistence.ErrDataStoreLocked if the account's data-store is
// already open and has not yet been closed.
func (p *Provider) Open(_ context.Context, k string) (persistence.DataStore, error) {
	db := p.account(k)

	if !db.TryOpen() {
		return nil, persistence.ErrDataStoreLocked
	}

	return newDataStore(db), nil
}

// account returns the database for the account identified by k, creating an
// empty one the first time the account is seen.
func (p *Provider) account(k string) *database {
	p.m.Lock()
	defer p.m.Unlock()

	db, ok := p.accounts[k]
	if !ok {
		if p.accounts == nil {
			p.accounts = map[string]*database{}
		}

		db = newDatabase()
		p.accounts[k] = db
	}

	return db
}
