package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDelivery("delivered", "", 10*time.Millisecond)
	c.RecordDelivery("rejected", "already_liked", time.Millisecond)
	c.RecordDelivery("rejected", "already_liked", time.Millisecond)
	c.RecordReconcileFailure("posts")
	c.RecordPoll("follow", nil)
	c.RecordPoll("follow", errors.New("timeout"))

	require.Equal(1.0, testutil.ToFloat64(c.deliveries.WithLabelValues("delivered", "")))
	require.Equal(2.0, testutil.ToFloat64(c.deliveries.WithLabelValues("rejected", "already_liked")))
	require.Equal(1.0, testutil.ToFloat64(c.reconcileFail.WithLabelValues("posts")))
	require.Equal(1.0, testutil.ToFloat64(c.polls.WithLabelValues("follow", "ok")))
	require.Equal(1.0, testutil.ToFloat64(c.polls.WithLabelValues("follow", "error")))
}

func TestHandler(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordReconcileFailure("inbox")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(200, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(err)
	require.Contains(string(body), `courier_reconcile_failures_total{collection="inbox"} 1`)
}

func TestOrNop(t *testing.T) {
	require := require.New(t)

	require.Equal(Nop{}, OrNop(nil))
	c := NewCollector(prometheus.NewRegistry())
	require.Equal(c, OrNop(c))
}
