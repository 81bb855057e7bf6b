package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"stock-alert-server/internal/pricecache"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedSessions int

func (f fixedSessions) ActiveSessions() int { return int(f) }

func setupStatusAPI(prices *pricecache.Cache) http.Handler {
	gin.SetMode(gin.TestMode)
	return NewStatusAPI("127.0.0.1:0", fixedSessions(3), prices, zap.NewNop()).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestStatusAPI_Health(t *testing.T) {
	resp := get(t, setupStatusAPI(pricecache.New()), "/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "OK", resp.Body.String())
}

func TestStatusAPI_Status(t *testing.T) {
	t.Run("Cold cache", func(t *testing.T) {
		resp := get(t, setupStatusAPI(pricecache.New()), "/status")
		require.Equal(t, http.StatusOK, resp.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, float64(3), body["active_sessions"])
		assert.Equal(t, float64(0), body["cached_symbols"])
		assert.Equal(t, "", body["last_refresh"])
		assert.NotEmpty(t, body["uptime"])
	})

	t.Run("After a refresh", func(t *testing.T) {
		resp := get(t, setupStatusAPI(testPrices()), "/status")
		require.Equal(t, http.StatusOK, resp.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, float64(2), body["cached_symbols"])
		assert.NotEmpty(t, body["last_refresh"])
	})
}

func TestStatusAPI_Price(t *testing.T) {
	h := setupStatusAPI(testPrices())

	resp := get(t, h, "/prices/aapl")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"symbol":"AAPL","price":150.5}`, resp.Body.String())

	resp = get(t, h, "/prices/ZZZZ")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.JSONEq(t, `{"symbol":"ZZZZ","error":"symbol not available"}`, resp.Body.String())
}

func TestStatusAddress(t *testing.T) {
	tests := []struct {
		name    string
		server  string
		port    int
		want    string
		wantErr bool
	}{
		{name: "Loopback", server: "127.0.0.1:1234", port: 8081, want: "127.0.0.1:8081"},
		{name: "All interfaces", server: ":1234", port: 8081, want: ":8081"},
		{name: "IPv6", server: "[::1]:1234", port: 9000, want: "[::1]:9000"},
		{name: "Missing port", server: "localhost", port: 8081, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StatusAddress(tt.server, tt.port)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewStatusAPI_Addr(t *testing.T) {
	api := NewStatusAPI("127.0.0.1:8081", fixedSessions(0), pricecache.New(), zap.NewNop())
	assert.Equal(t, "127.0.0.1:8081", api.server.Addr)
}
