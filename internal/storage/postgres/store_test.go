package postgres_test

import (
	"context"

	"github.com/frahmantamala/expense-tracker/internal/storage"
	"github.com/frahmantamala/expense-tracker/internal/storage/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("KV PostgreSQL Store", func() {
	var (
		ctx   context.Context
		store *postgres.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		// Use SQLite in-memory database for testing
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		store = postgres.New(db)
		Expect(store.AutoMigrate()).To(Succeed())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("Get", func() {
		It("returns ErrKeyNotFound for unknown keys", func() {
			_, err := store.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.ErrKeyNotFound))
		})
	})

	Describe("Set", func() {
		It("inserts then updates the same row", func() {
			Expect(store.Set(ctx, "expense-tracker-users", []byte(`[1]`))).To(Succeed())
			Expect(store.Set(ctx, "expense-tracker-users", []byte(`[1,2]`))).To(Succeed())

			v, err := store.Get(ctx, "expense-tracker-users")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(v)).To(Equal(`[1,2]`))

			n, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
		})
	})

	Describe("Delete", func() {
		It("removes the row and tolerates repeats", func() {
			Expect(store.Set(ctx, "k", []byte("v"))).To(Succeed())
			Expect(store.Delete(ctx, "k")).To(Succeed())
			Expect(store.Delete(ctx, "k")).To(Succeed())

			n, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})
})
