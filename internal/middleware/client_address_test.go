package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcoot/rafflegrid/internal/services/audit"
	"github.com/mcoot/rafflegrid/internal/testutil"
)

func TestClientAddress(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "remote addr",
			remoteAddr: "203.0.113.9:51234",
			expected:   "203.0.113.9",
		},
		{
			name:       "forwarded for first hop",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"},
			expected:   "198.51.100.4",
		},
		{
			name:       "real ip",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			expected:   "198.51.100.7",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.9",
			expected:   "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := ClientAddress()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = audit.ClientAddress(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRecoveryWritesErrorResponse(t *testing.T) {
	logger, logs := testutil.RecordingLogger()
	handler := Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	entry := logs.Find("panic recovered")
	if assert.NotNil(t, entry) {
		assert.Equal(t, "boom", entry["error"])
		assert.Equal(t, "198.51.100.4", entry["client_addr"])
		assert.Equal(t, false, entry["response_started"])
	}
}

func TestRecoveryLeavesStartedResponse(t *testing.T) {
	called := false
	handler := Recovery(testutil.NopLogger(), func(w http.ResponseWriter, _ *http.Request, _ any) {
		called = true
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(": connected\n\n"))
		panic("stream broke")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRecoveryRepanicsOnAbort(t *testing.T) {
	handler := Recovery(testutil.NopLogger(), func(w http.ResponseWriter, _ *http.Request, _ any) {
		t.Fatal("abort must not be handled")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestLoggingCapturesStatus(t *testing.T) {
	logger, logs := testutil.RecordingLogger()
	var wrapped *ResponseWriter
	handler := ClientAddress()(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped, _ = w.(*ResponseWriter)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if assert.NotNil(t, wrapped) {
		assert.Equal(t, http.StatusTeapot, wrapped.Status())
		assert.Equal(t, 5, wrapped.Size())
		assert.True(t, wrapped.Started())
	}

	entry := logs.Find("http request")
	if assert.NotNil(t, entry) {
		assert.Equal(t, "/api/v1/stats", entry["path"])
		assert.Equal(t, "203.0.113.9", entry["client_addr"])
		assert.Equal(t, float64(http.StatusTeapot), entry["status"])
		assert.Equal(t, "INFO", entry["level"])
	}
}

func TestLoggingEventStream(t *testing.T) {
	logger, logs := testutil.RecordingLogger()
	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	assert.NotNil(t, logs.Find("event stream closed"))
	assert.Nil(t, logs.Find("http request"))
}

func TestLoggingWarnsOnServerError(t *testing.T) {
	logger, logs := testutil.RecordingLogger()
	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil))

	entry := logs.Find("http request")
	if assert.NotNil(t, entry) {
		assert.Equal(t, "WARN", entry["level"])
	}
}
