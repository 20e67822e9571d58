package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RequestID", func() {
	It("keeps an incoming trace id and exposes it on the context", func() {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = internal.RequestIDFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, "trace-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(seen).To(Equal("trace-1"))
		Expect(rec.Header().Get(TraceHeader)).To(Equal("trace-1"))
	})

	It("generates one when missing", func() {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = internal.RequestIDFromContext(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(seen).To(HaveLen(36))
		Expect(rec.Header().Get(TraceHeader)).To(Equal(seen))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into a 500 without leaking it", func() {
		h := RecoveryMiddleware(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("database password is hunter2")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).NotTo(ContainSubstring("hunter2"))
	})
})

var _ = Describe("CORS", func() {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	It("answers preflight requests from listed origins", func() {
		h := CORS("https://app.example.com, https://admin.example.com/")(ok)

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
		req.Header.Set("Origin", "https://admin.example.com")
		req.Header.Set("Access-Control-Request-Method", "GET")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://admin.example.com"))
		Expect(rec.Header().Get("Access-Control-Allow-Headers")).To(ContainSubstring("Authorization"))
	})

	It("adds no headers for other origins", func() {
		h := CORS("https://app.example.com")(ok)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})

	It("allows any origin with a wildcard", func() {
		h := CORS("*")(ok)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://anything.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://anything.example.com"))
	})
})

var _ = Describe("RequireSuperAdmin", func() {
	var policy *access.Policy

	BeforeEach(func() {
		policy, _ = access.ParsePolicy(access.RawPolicy{SuperAdmins: "root", AvailabilityByKeys: "PROJ:alice"})
	})

	serve := func(ac *access.Context) int {
		h := RequireSuperAdmin(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if ac != nil {
			req = req.WithContext(access.WithContext(req.Context(), ac))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	It("lets super admins through", func() {
		Expect(serve(access.Evaluate(access.RequesterIdentity{ID: "1", Username: "root"}, policy))).To(Equal(http.StatusNoContent))
	})

	It("forbids everyone else", func() {
		Expect(serve(access.Evaluate(access.RequesterIdentity{ID: "2", Username: "alice"}, policy))).To(Equal(http.StatusForbidden))
	})

	It("requires authentication", func() {
		Expect(serve(nil)).To(Equal(http.StatusUnauthorized))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("masks secrets and passes the request body through", func() {
		var out bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))

		var got map[string]string
		h := LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"access_token":"abc","ok":"yes"}`))
		}))

		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"api_key":"s3cret","branch_name":"PROJ-1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(got).To(HaveKeyWithValue("api_key", "s3cret"))

		logs := out.String()
		Expect(logs).NotTo(ContainSubstring("s3cret"))
		Expect(logs).NotTo(ContainSubstring("Bearer abc"))
		Expect(logs).To(ContainSubstring("PROJ-1"))
		Expect(logs).To(ContainSubstring(`"status_code":201`))
	})

	It("summarises non-JSON responses", func() {
		var out bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&out, nil))

		h := LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("a,b\r\n"))
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/report", nil))

		Expect(out.String()).To(ContainSubstring("[5 bytes text/csv]"))
	})
})
