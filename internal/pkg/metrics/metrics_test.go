package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsCoreMetrics(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.EventPublished("message:new")
	c.EventPublished("message:new")
	c.EventPublished("user:presence")
	c.DeliveryDropped()
	c.PersistenceFailure("insert_message")
	c.FanoutDuration(3 * time.Millisecond)

	req.Equal(1.0, testutil.ToFloat64(c.connectionsActive))
	req.Equal(2.0, testutil.ToFloat64(c.eventsPublished.WithLabelValues("message:new")))
	req.Equal(1.0, testutil.ToFloat64(c.eventsPublished.WithLabelValues("user:presence")))
	req.Equal(1.0, testutil.ToFloat64(c.deliveriesDropped))
	req.Equal(1.0, testutil.ToFloat64(c.persistenceFailed.WithLabelValues("insert_message")))
}

func TestNopRecorderIsSafe(t *testing.T) {
	var rec Recorder = Nop{}

	rec.ConnectionOpened()
	rec.ConnectionClosed()
	rec.EventPublished("message:new")
	rec.DeliveryDropped()
	rec.PersistenceFailure("insert_message")
	rec.FanoutDuration(time.Millisecond)

	require.NotNil(t, rec)
}
