package reqcontext

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromHeaders(t *testing.T) {
	t.Run("authorization only", func(t *testing.T) {
		h := http.Header{}
		h.Set("Authorization", "Bearer abc123")

		rc := FromHeaders(h)
		assert.Equal(t, "Bearer abc123", rc.Token)
		assert.Empty(t, rc.Currency)
		assert.Empty(t, rc.Store)
	})

	t.Run("empty metadata", func(t *testing.T) {
		rc := FromHeaders(http.Header{})
		assert.Empty(t, rc.Token)
		assert.Empty(t, rc.Currency)
		assert.Empty(t, rc.Store)
	})

	t.Run("all headers", func(t *testing.T) {
		h := http.Header{}
		h.Set("Authorization", "Bearer abc123")
		h.Set("Content-Currency", "EUR")
		h.Set("Store", "german")

		rc := FromHeaders(h)
		assert.Equal(t, Context{Token: "Bearer abc123", Currency: "EUR", Store: "german"}, rc)
	})

	t.Run("token kept verbatim without scheme", func(t *testing.T) {
		h := http.Header{}
		h.Set("Authorization", "raw-opaque-token")

		assert.Equal(t, "raw-opaque-token", FromHeaders(h).Token)
	})
}

func TestContextRoundTrip(t *testing.T) {
	rc := Context{Token: "t", Currency: "USD", Store: "default"}
	ctx := WithContext(context.Background(), rc)
	assert.Equal(t, rc, FromContext(ctx))
}

func TestFromContextMissing(t *testing.T) {
	assert.Equal(t, Context{}, FromContext(context.Background()))
}
