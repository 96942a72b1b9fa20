package audit

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, nil, "1.2.3.4:5555", "1.2.3.4"},
		{"remote addr without port", nil, nil, "1.2.3.4", "1.2.3.4"},
		{"forwarded for ignored from untrusted peer", nil, map[string]string{"X-Forwarded-For": "10.0.0.1"}, "1.2.3.4:5555", "1.2.3.4"},
		{"real ip ignored from untrusted peer", nil, map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:5555", "1.2.3.4"},
		{"forwarded for from trusted proxy", []string{"10.0.0.0/8"}, map[string]string{"X-Forwarded-For": "198.51.100.4"}, "10.1.1.1:5555", "198.51.100.4"},
		{"spoofed leftmost hop skipped", []string{"10.0.0.0/8"}, map[string]string{"X-Forwarded-For": "203.0.113.66, 198.51.100.4, 10.2.2.2"}, "10.1.1.1:5555", "198.51.100.4"},
		{"real ip from trusted proxy", []string{"10.1.1.1"}, map[string]string{"X-Real-IP": "198.51.100.9"}, "10.1.1.1:5555", "198.51.100.9"},
		{"trusted proxy without headers", []string{"10.1.1.1"}, nil, "10.1.1.1:5555", "10.1.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, SetTrustedProxies(tt.trusted))
			t.Cleanup(func() { SetTrustedProxies(nil) })

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}

	t.Run("invalid entry", func(t *testing.T) {
		assert.Error(t, SetTrustedProxies([]string{"not-an-ip"}))
		assert.Error(t, SetTrustedProxies([]string{"10.0.0.0/99"}))
	})
}

func TestClientInfoMiddleware(t *testing.T) {
	var got ClientInfo
	h := ClientInfoMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientFrom(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	r.RemoteAddr = "192.0.2.7:1234"
	r.Header.Set("User-Agent", "console/1.0")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "192.0.2.7", got.IPAddress)
	assert.Equal(t, "console/1.0", got.UserAgent)
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := NewLogRecorder(slog.New(slog.NewTextHandler(&buf, nil)))

	ctx := WithClient(context.Background(), ClientInfo{IPAddress: "198.51.100.1"})
	rec.Record(ctx, Event{Type: LoginFail, Username: "admin"})

	out := buf.String()
	assert.Contains(t, out, "LOGIN_FAIL")
	assert.Contains(t, out, "198.51.100.1")
	assert.Contains(t, out, "level=WARN")
}

func TestSQLRecorderSqlite(t *testing.T) {
	ctx := context.Background()
	rec, err := OpenSQLRecorder(ctx, "sqlite", "file::memory:")
	require.NoError(t, err)
	defer rec.Close()

	account := uuid.New()
	other := uuid.New()
	ctx = WithClient(ctx, ClientInfo{IPAddress: "203.0.113.5", UserAgent: "test"})

	rec.Record(ctx, Event{AccountID: account, Username: "admin", Type: LoginPending2FA, Success: true})
	rec.Record(ctx, Event{AccountID: account, Username: "admin", Type: TwoFAVerify, Method: "backup_code", Success: false})
	rec.Record(ctx, Event{AccountID: other, Username: "ops", Type: LoginSuccess, Success: true})

	events, err := rec.Recent(ctx, account, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, TwoFAVerify, events[0].Type)
	assert.Equal(t, "backup_code", events[0].Method)
	assert.False(t, events[0].Success)
	assert.Equal(t, "203.0.113.5", events[0].IPAddress)
	assert.Equal(t, account, events[0].AccountID)
	assert.Equal(t, LoginPending2FA, events[1].Type)
}

func TestOpenSQLRecorderRejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQLRecorder(context.Background(), "mysql", "x")
	assert.Error(t, err)
}
