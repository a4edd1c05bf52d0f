package providertest

import (
	"context"
	"time"

	"github.com/dogmatiq/courier/persistence"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// Out is a container for values that are provided by the provider-specific
// initialization code to the test suite.
type Out struct {
	// NewProvider is a function that creates a new provider.
	NewProvider func() (p persistence.Provider, close func())

	// TestTimeout is the maximum duration allowed for each test.
	TestTimeout time.Duration
}

// DefaultTestTimeout is the default test timeout.
const DefaultTestTimeout = 3 * time.Second

// accountKey is the key of the account used throughout the tests.
const accountKey = "<account-key>"

// testContext encapsulates the shared test context passed to the tests for
// each provider sub-system.
type testContext struct {
	Context context.Context
	Out     Out
}

// setupDataStore sets up a new data-store for the "<account-key>" account.
func (tc *testContext) setupDataStore() (persistence.DataStore, func()) {
	p, close := tc.Out.NewProvider()

	ds, err := p.Open(tc.Context, accountKey)
	if err != nil {
		close()
		gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
	}

	return ds, func() {
		ds.Close()
		close()
	}
}

// persist persists a batch of operations and asserts that no error occurs.
func persist(ctx context.Context, p persistence.Persister, ops ...persistence.Operation) {
	err := p.Persist(ctx, ops)
	gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())
}

// Declare declares generic behavioral tests for a specific persistence provider
// implementation.
func Declare(
	before func(context.Context) Out,
	after func(),
) {
	var (
		tc     testContext
		cancel context.CancelFunc
	)

	ginkgo.Context("standard provider test suite", func() {
		ginkgo.BeforeEach(func() {
			setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelSetup()

			tc.Out = before(setupCtx)

			if tc.Out.TestTimeout <= 0 {
				tc.Out.TestTimeout = DefaultTestTimeout
			}

			tc.Context, cancel = context.WithTimeout(context.Background(), tc.Out.TestTimeout)
		})

		ginkgo.AfterEach(func() {
			if after != nil {
				after()
			}

			cancel()
		})

		declareProviderTests(&tc)
		declareDataStoreTests(&tc)
		declareJobTests(&tc)
		declareAttachmentTests(&tc)
		declareConversationTests(&tc)
		declareStatusTests(&tc)
	})
}
