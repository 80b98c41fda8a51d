package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAssetPartitionsByResult(t *testing.T) {
	matched := testutil.ToFloat64(assetLookups.WithLabelValues("item", "matched"))
	unknown := testutil.ToFloat64(assetLookups.WithLabelValues("item", "unknown"))

	RecordAsset("item", true)
	RecordAsset("item", false)
	RecordAsset("item", false)

	assert.Equal(t, matched+1, testutil.ToFloat64(assetLookups.WithLabelValues("item", "matched")))
	assert.Equal(t, unknown+2, testutil.ToFloat64(assetLookups.WithLabelValues("item", "unknown")))
}

func TestRecordUpstreamAttempt(t *testing.T) {
	before := testutil.ToFloat64(upstreamAttempts.WithLabelValues("test", "rate_limited"))

	RecordUpstreamAttempt("test", "rate_limited", 10*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(upstreamAttempts.WithLabelValues("test", "rate_limited")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordTurn("ok", time.Second)
	RecordParseDegraded()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{
		"taleforge_turns_total",
		"taleforge_turn_duration_seconds",
		"taleforge_parse_degraded_total",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
