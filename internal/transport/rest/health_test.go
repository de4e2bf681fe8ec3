package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/storage/postgres"
	"github.com/frahmantamala/expense-tracker/internal/transport"
	"github.com/frahmantamala/expense-tracker/internal/transport/rest"
	"github.com/frahmantamala/expense-tracker/pkg/logger"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var _ = Describe("Health", func() {
	serve := func(h *rest.HealthHandler, path string) (*httptest.ResponseRecorder, rest.HealthResponse) {
		router := chi.NewRouter()
		rest.RegisterAllRoutes(router, rest.Routes{Health: h, Origins: []string{"*"}}, logger.Discard())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		var resp rest.HealthResponse
		if path == "/api/v1/health" {
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		}
		return rec, resp
	}

	base := func() *transport.BaseHandler { return transport.NewBaseHandler(logger.Discard()) }

	It("answers ping", func() {
		rec, _ := serve(rest.NewHealthHandler(base(), internal.StorageDriverMemory, nil, ""), "/api/v1/ping")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"OK"`))
	})

	It("reports stores without a database as healthy", func() {
		rec, resp := serve(rest.NewHealthHandler(base(), internal.StorageDriverMemory, nil, ""), "/api/v1/health")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(resp.Status).To(Equal(rest.HealthHealthy))
		Expect(resp.Components["storage"].Details).To(HaveKeyWithValue("driver", "memory"))
	})

	Context("with a relational store", func() {
		var store *postgres.Store

		BeforeEach(func() {
			db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
				Logger: gormLogger.Default.LogMode(gormLogger.Silent),
			})
			Expect(err).NotTo(HaveOccurred())
			sqlDB, err := db.DB()
			Expect(err).NotTo(HaveOccurred())
			sqlDB.SetMaxOpenConns(1)

			store = postgres.New(db)
			Expect(store.AutoMigrate()).To(Succeed())
			Expect(store.Set(context.Background(), "k1", []byte(`[]`))).To(Succeed())
		})

		It("pings and counts keys", func() {
			sqlDB, err := store.SQLDB()
			Expect(err).NotTo(HaveOccurred())

			rec, resp := serve(rest.NewHealthHandler(base(), internal.StorageDriverSQLite, sqlDB, "sqlite3"), "/api/v1/health")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(resp.Components["storage"].Details).To(HaveKeyWithValue("keys", BeNumerically("==", 1)))
		})

		It("turns unhealthy once the database is gone", func() {
			sqlDB, err := store.SQLDB()
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Close()).To(Succeed())

			rec, resp := serve(rest.NewHealthHandler(base(), internal.StorageDriverSQLite, sqlDB, "sqlite3"), "/api/v1/health")
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(resp.Status).To(Equal(rest.HealthUnhealthy))
			Expect(resp.Components["storage"].Message).NotTo(BeEmpty())
		})
	})
})
