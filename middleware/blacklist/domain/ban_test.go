package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_WithDefaultsFillsZeroValues(t *testing.T) {
	p := Policy{ViolationThreshold: 10, CountMode: "bogus"}.WithDefaults()

	assert.Equal(t, int64(10), p.ViolationThreshold)
	assert.Equal(t, 60*time.Second, p.TempBanTTL)
	assert.Equal(t, 300*time.Second, p.PermanentBanTTL)
	assert.Equal(t, 300*time.Second, p.WasTempTTL)
	assert.Equal(t, 60*time.Second, p.WindowTTL)
	assert.Equal(t, int64(3), p.GlobalViolationThreshold)
	assert.Equal(t, 24*time.Hour, p.GlobalBanTTL)
	assert.Equal(t, CountRequests, p.CountMode)
}

func TestKeys_Templates(t *testing.T) {
	k := Keys{}
	id := Key("10.0.0.1")

	assert.Equal(t, "blacklist_10.0.0.1", k.PermanentBan(id))
	assert.Equal(t, "temp_blacklist_10.0.0.1", k.TemporaryBan(id))
	assert.Equal(t, "was_temp_blacklisted_10.0.0.1", k.WasTempBanned(id))
	assert.Equal(t, "request_count_10.0.0.1", k.RequestCount(id))
	assert.Equal(t, "blacklist:10.0.0.1", k.GlobalBan(id))

	prefixed := Keys{Prefix: "lib:"}
	assert.Equal(t, "lib:blacklist:10.0.0.1", prefixed.GlobalBan(id))
	assert.Equal(t, "lib:global_violation_count", prefixed.GlobalViolations())
}

func TestKeys_GlobalCounterNeverCollidesWithClientKeys(t *testing.T) {
	k := Keys{}
	for _, id := range []Key{"violations", "count", "violation_count", "global_violation_count", ""} {
		for _, key := range []string{
			k.PermanentBan(id), k.TemporaryBan(id), k.WasTempBanned(id), k.RequestCount(id), k.GlobalBan(id),
		} {
			assert.NotEqual(t, k.GlobalViolations(), key, "id %q", id)
		}
	}
}

func TestVerdict_Rejected(t *testing.T) {
	assert.False(t, Allow.Rejected())
	assert.True(t, RejectTemporary.Rejected())
	assert.True(t, RejectPermanent.Rejected())
	assert.True(t, RejectGlobal.Rejected())
	assert.Equal(t, "permanent", RejectPermanent.String())
}
