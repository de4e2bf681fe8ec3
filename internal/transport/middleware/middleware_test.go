package middleware_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/expense-tracker/internal"
	"github.com/frahmantamala/expense-tracker/internal/transport/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const testSpec = `
openapi: 3.0.3
info:
  title: test
  version: 1.0.0
paths:
  /items:
    get:
      parameters:
        - name: order
          in: query
          schema:
            type: string
            enum: [asc, desc]
      responses:
        '200':
          description: ok
    post:
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              properties:
                name:
                  type: string
      responses:
        '201':
          description: created
`

var _ = Describe("Middleware", func() {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"ok":true,"access_token":"abc"}`)
	})

	Describe("RequestID", func() {
		It("generates a trace id and exposes it on the context", func() {
			var seen string
			h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = internal.TraceIDFromContext(r.Context())
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(seen).NotTo(BeEmpty())
			Expect(rec.Header().Get(middleware.TraceIDHeader)).To(Equal(seen))
		})

		It("keeps an incoming trace id", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(middleware.TraceIDHeader, "trace-123")
			rec := httptest.NewRecorder()
			middleware.RequestID(ok).ServeHTTP(rec, req)
			Expect(rec.Header().Get(middleware.TraceIDHeader)).To(Equal("trace-123"))
		})
	})

	Describe("LoggingMiddleware", func() {
		It("masks credentials in bodies and headers", func() {
			var buf bytes.Buffer
			lg := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"admin","password":"admin123"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer secret-token")
			rec := httptest.NewRecorder()

			var body []byte
			middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ = io.ReadAll(r.Body)
				ok.ServeHTTP(w, r)
			})).ServeHTTP(rec, req)

			Expect(string(body)).To(ContainSubstring("admin123"), "the handler still sees the body")
			out := buf.String()
			Expect(out).NotTo(ContainSubstring("admin123"))
			Expect(out).NotTo(ContainSubstring("secret-token"))
			Expect(out).NotTo(ContainSubstring("abc"))
			Expect(out).To(ContainSubstring("status_code=200"))
		})

		It("does not log non-JSON response bodies", func() {
			var buf bytes.Buffer
			lg := slog.New(slog.NewTextHandler(&buf, nil))

			csv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/csv")
				_, _ = io.WriteString(w, "Date,Description\nMar 1, 2024,Rent\n")
			})
			middleware.LoggingMiddleware(lg)(csv).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/export", nil))

			Expect(buf.String()).NotTo(ContainSubstring("Rent"))
		})
	})

	Describe("RecoveryMiddleware", func() {
		It("turns a panic into an internal error body", func() {
			lg := slog.New(slog.NewTextHandler(io.Discard, nil))
			rec := httptest.NewRecorder()
			middleware.RecoveryMiddleware(lg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(ContainSubstring(`"code":"INTERNAL_ERROR"`))
			Expect(rec.Body.String()).NotTo(ContainSubstring("boom"))
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests from allowed origins", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/expenses", nil)
			req.Header.Set("Origin", "http://localhost:3000")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()

			middleware.CORS([]string{"http://localhost:3000"})(ok).ServeHTTP(rec, req)

			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))
		})

		It("ignores other origins", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", "http://evil.example")
			rec := httptest.NewRecorder()

			middleware.CORS([]string{"http://localhost:3000"})(ok).ServeHTTP(rec, req)

			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})
	})

	Describe("RequestValidator", func() {
		var h http.Handler

		BeforeEach(func() {
			doc, err := middleware.LoadOpenAPI(context.Background(), []byte(testSpec))
			Expect(err).NotTo(HaveOccurred())
			validate, err := middleware.RequestValidator(doc, slog.New(slog.NewTextHandler(io.Discard, nil)))
			Expect(err).NotTo(HaveOccurred())
			h = validate(ok)
		})

		serve := func(req *http.Request) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec
		}

		It("passes valid requests", func() {
			Expect(serve(httptest.NewRequest(http.MethodGet, "/items?order=asc", nil)).Code).To(Equal(http.StatusOK))
		})

		It("rejects values outside an enum with the parameter as field", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/items?order=sideways", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring(`"field":"order"`))
		})

		It("rejects bodies of the wrong shape", func() {
			req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"name":42}`))
			req.Header.Set("Content-Type", "application/json")
			Expect(serve(req).Code).To(Equal(http.StatusBadRequest))
		})

		It("leaves undocumented routes to the router", func() {
			Expect(serve(httptest.NewRequest(http.MethodGet, "/elsewhere", nil)).Code).To(Equal(http.StatusOK))
		})
	})

	It("refuses an invalid document", func() {
		_, err := middleware.LoadOpenAPI(context.Background(), []byte("openapi: 3.0.3\npaths: {}\n"))
		Expect(err).To(HaveOccurred())
	})
})
