package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovacsd/domainbid/internal/domain"
)

func TestDecodeEnvelope(t *testing.T) {
	t.Run("decodes a domains update", func(t *testing.T) {
		raw := []byte(`{"type":"domains_update","domains":[{"id":1,"name":"example.com","current_bid":100,"status":"active","end_time":"2025-06-01T12:30:00Z"}],"timestamp":"2025-06-01T12:00:00Z"}`)
		env, err := DecodeEnvelope(raw)
		require.NoError(t, err)
		assert.Equal(t, MsgDomainsUpdate, env.Type)

		snap := env.Snapshot()
		require.Len(t, snap, 1)
		assert.Equal(t, "example.com", snap[0].Name)
		assert.Equal(t, domain.StatusActive, snap[0].Status)
	})

	t.Run("accepts every server frame type", func(t *testing.T) {
		for _, typ := range []string{MsgDomainsUpdate, MsgInitialData, MsgError, MsgHeartbeat, MsgHeartbeatResponse} {
			_, err := DecodeEnvelope([]byte(`{"type":"` + typ + `"}`))
			assert.NoError(t, err, typ)
		}
	})

	t.Run("rejects frames without a type", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"domains":[]}`))
		assert.Error(t, err)
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"type":"surprise"}`))
		assert.Error(t, err)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"type":`))
		assert.Error(t, err)
	})
}
