package safebrowsing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChecker(t testing.TB, handler http.HandlerFunc) *Checker {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewChecker("test-key", server.Client())
	c.endpoint = server.URL

	return c
}

func TestChecker_IsSafe(t *testing.T) {
	t.Run("no matches means safe", func(t *testing.T) {
		c := testChecker(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))

			var req findRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.ThreatInfo.ThreatEntries, 1)
			assert.Equal(t, "https://example.com", req.ThreatInfo.ThreatEntries[0].URL)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{}`))
		})

		safe, err := c.IsSafe(context.TODO(), "https://example.com")

		assert.NoError(t, err)
		assert.True(t, safe)
	})

	t.Run("matches mean unsafe", func(t *testing.T) {
		c := testChecker(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"matches":[{"threatType":"MALWARE"}]}`))
		})

		safe, err := c.IsSafe(context.TODO(), "https://evil.example")

		assert.NoError(t, err)
		assert.False(t, safe)
	})

	t.Run("non-200 status", func(t *testing.T) {
		c := testChecker(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})

		safe, err := c.IsSafe(context.TODO(), "https://example.com")

		assert.Error(t, err)
		assert.False(t, safe)
	})
}
