package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", seen)
	})

	t.Run("invalid replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "bad\x01id")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.NotEqual(t, "bad\x01id", seen)
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Wrap(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		InjectLogger(zap.New(core)),
		Recovery(),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/baskets", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, w.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Panic recovered", logs.All()[0].Message)
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	r := chi.NewRouter()
	r.Use(InjectLogger(zap.New(core)), RequestID(), LogRequests())
	r.Get("/baskets/{id}", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Handling")
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/baskets/42", nil))

	require.Equal(t, 2, logs.Len())
	handling := logs.All()[0]
	assert.Contains(t, handling.ContextMap(), "request_id")

	entry := logs.All()[1]
	assert.Equal(t, "Request", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "/baskets/{id}", fields["route"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
}

func TestCORS(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		h := CORS(CORSConfig{Origins: []string{"https://shop.example"}, MaxAge: 600})(okHandler())

		req := httptest.NewRequest(http.MethodOptions, "/baskets", nil)
		req.Header.Set("Origin", "https://SHOP.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
		assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("disallowed origin", func(t *testing.T) {
		h := CORS(CORSConfig{Origins: []string{"https://shop.example"}})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/baskets/1", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
	})

	t.Run("wildcard with credentials echoes origin", func(t *testing.T) {
		h := CORS(CORSConfig{Origins: []string{"*"}, AllowCredentials: true, Expose: []string{"X-Request-ID"}})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/baskets/1", nil)
		req.Header.Set("Origin", "https://any.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "https://any.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
	})
}
