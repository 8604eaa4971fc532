package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAccessEvent(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ev, err := ParseAccessEvent("1739035776.180\t24.18.218.96\t302\t/k120oizru\n")

		assert.NoError(t, err)
		assert.Equal(t, "24.18.218.96", ev.ClientIP)
		assert.Equal(t, 302, ev.StatusCode)
		assert.Equal(t, "/k120oizru", ev.RequestPath)
		assert.Equal(t, int64(1739035776), ev.Timestamp.Unix())
		assert.WithinDuration(t, time.Unix(1739035776, 180000000), ev.Timestamp, time.Millisecond)
	})

	t.Run("integer timestamp", func(t *testing.T) {
		ev, err := ParseAccessEvent("1739035776\t10.0.0.1\t404\t/nope")

		assert.NoError(t, err)
		assert.Equal(t, int64(1739035776), ev.Timestamp.Unix())
		assert.Equal(t, 404, ev.StatusCode)
	})

	t.Run("too few fields", func(t *testing.T) {
		ev, err := ParseAccessEvent("1739035776.180\t24.18.218.96\t302")

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedRecord)
		assert.Nil(t, ev)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		ev, err := ParseAccessEvent("yesterday\t24.18.218.96\t302\t/k120oizru")

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedRecord)
		assert.Nil(t, ev)
	})

	t.Run("bad status code", func(t *testing.T) {
		ev, err := ParseAccessEvent("1739035776.180\t24.18.218.96\tOK\t/k120oizru")

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedRecord)
		assert.Nil(t, ev)
	})
}

func TestCodeFromPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"plain code", "/k120oizru", "k120oizru"},
		{"trailing whitespace", "/k120oizru\n", "k120oizru"},
		{"no leading slash", "k120oizru", "k120oizru"},
		{"nested path", "/api/links", ""},
		{"root", "/", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeFromPath(tt.path))
		})
	}
}
