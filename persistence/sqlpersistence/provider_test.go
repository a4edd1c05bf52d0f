//go:build cgo
// +build cgo

package sqlpersistence_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/persistence/internal/providertest"
	. "github.com/dogmatiq/courier/persistence/sqlpersistence"
	"github.com/dogmatiq/sqltest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Provider", func() {
	var (
		database *sqltest.Database
		db       *sql.DB
	)

	providertest.Declare(
		func(ctx context.Context) providertest.Out {
			var err error
			database, err = sqltest.NewDatabase(ctx, sqltest.SQLite3Driver, sqltest.SQLite)
			Expect(err).ShouldNot(HaveOccurred())

			db, err = database.Open()
			Expect(err).ShouldNot(HaveOccurred())

			err = CreateSchema(ctx, db)
			Expect(err).ShouldNot(HaveOccurred())

			return providertest.Out{
				NewProvider: func() (persistence.Provider, func()) {
					return &Provider{DB: db}, func() {}
				},
			}
		},
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			err := DropSchema(ctx, db)
			Expect(err).ShouldNot(HaveOccurred())

			err = database.Close()
			Expect(err).ShouldNot(HaveOccurred())
		},
	)
})

var _ = Describe("type DSNProvider", func() {
	var database *sqltest.Database

	providertest.Declare(
		func(ctx context.Context) providertest.Out {
			var err error
			database, err = sqltest.NewDatabase(ctx, sqltest.SQLite3Driver, sqltest.SQLite)
			Expect(err).ShouldNot(HaveOccurred())

			return providertest.Out{
				NewProvider: func() (persistence.Provider, func()) {
					return &DSNProvider{
						DriverName: database.DataSource.DriverName(),
						DSN:        database.DataSource.DSN(),
					}, func() {}
				},
			}
		},
		func() {
			err := database.Close()
			Expect(err).ShouldNot(HaveOccurred())
		},
	)

	Describe("func Open()", func() {
		It("returns an error if the database can not be opened", func() {
			provider := &DSNProvider{
				DriverName: "<nonsense-driver>",
				DSN:        "<nonsense-dsn>",
			}

			ds, err := provider.Open(context.Background(), "<account-key>")
			if ds != nil {
				ds.Close()
			}
			Expect(err).Should(HaveOccurred())
		})
	})

	Context("var DefaultMaxOpenConns", func() {
		It("is larger than DefaultMaxIdleConns", func() {
			Expect(DefaultMaxIdleConns).To(BeNumerically(">", 0))
			Expect(DefaultMaxOpenConns).To(BeNumerically(">", DefaultMaxIdleConns))
		})
	})
})

var _ = Describe("func DropSchema()", func() {
	It("does not return an error if the schema does not exist", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		database, err := sqltest.NewDatabase(ctx, sqltest.SQLite3Driver, sqltest.SQLite)
		Expect(err).ShouldNot(HaveOccurred())
		defer database.Close()

		db, err := database.Open()
		Expect(err).ShouldNot(HaveOccurred())

		err = DropSchema(ctx, db)
		Expect(err).ShouldNot(HaveOccurred())
	})
})
