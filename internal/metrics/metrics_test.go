package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordTransitionIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(Transitions.WithLabelValues("submitted", "reviewed"))
	RecordTransition("submitted", "reviewed")
	require.Equal(t, before+1, testutil.ToFloat64(Transitions.WithLabelValues("submitted", "reviewed")))
}

func TestHandlerExposesNamespace(t *testing.T) {
	RecordEscalation("alert")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "approval_escalations_total"))
}
