package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistryRegistersEverything(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ConnectionsOpen.Set(3)
	m.EventsPublished.WithLabelValues("new-order").Inc()
	m.SendFailures.Inc()
	m.InboundDropped.WithLabelValues("malformed").Inc()
	m.PresenceBroadcasts.Inc()
	m.Refetches.WithLabelValues("orders").Inc()
	m.EventsCoalesced.Inc()
	m.ChangesProcessed.Inc()
	m.ChangeErrors.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 9 {
		t.Errorf("expected 9 metric families, got %d", len(families))
	}

	if got := testutil.ToFloat64(m.ConnectionsOpen); got != 3 {
		t.Errorf("ConnectionsOpen = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("new-order")); got != 1 {
		t.Errorf("EventsPublished = %v, want 1", got)
	}
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	NewWithRegistry(prometheus.NewRegistry())
	NewWithRegistry(prometheus.NewRegistry())
}
