package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/capitalize-ai/support-chat/internal/middleware"
	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/pkg/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(middleware.GetCorrelationID(r.Context())))
})

var _ = Describe("ObjectIDParam", func() {
	var router chi.Router

	BeforeEach(func() {
		router = chi.NewRouter()
		router.With(middleware.ObjectIDParam("id", "conversation")).Get("/c/{id}", ok)
	})

	It("passes well-formed identifiers", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/c/"+model.NewID(), nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("rejects malformed identifiers", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/c/42", nil))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring(`"code":"invalid_identifier"`))
	})
})

var _ = Describe("Logging", func() {
	handler := middleware.Logging(logger.NewNop())(ok)

	It("propagates an incoming correlation id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.CorrelationHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Header().Get(middleware.CorrelationHeader)).To(Equal("abc-123"))
		Expect(rec.Body.String()).To(Equal("abc-123"))
	})

	It("generates one when missing", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get(middleware.CorrelationHeader)
		Expect(id).ToNot(BeEmpty())
		Expect(rec.Body.String()).To(Equal(id))
	})
})

var _ = Describe("MaxBodySize", func() {
	It("refuses oversized bodies", func() {
		h := middleware.MaxBodySize(8)(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"far too long"}`)))
		Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
	})
})

var _ = Describe("RateLimit", func() {
	It("answers 429 once the budget is spent", func() {
		h := middleware.RateLimit(2, time.Minute)(ok)
		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			codes = append(codes, rec.Code)
		}
		Expect(codes).To(Equal([]int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}))
	})
})
