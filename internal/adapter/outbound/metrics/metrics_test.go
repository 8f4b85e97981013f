package metrics

import (
	dto "github.com/prometheus/client_model/go"
	"testing"
)

func TestObserveSetsGaugesAndAccumulatesDrops(t *testing.T) {
	m := New("testworld")

	var prevBuffered, prevInactive int64
	m.Observe(WorldSnapshot{
		ClientConnected: true,
		BufferedBytes:   128,
		InactiveBytes:   0,
		HistoryBytes:    256,
		DroppedBuffered: 3,
		DroppedInactive: 0,
	}, &prevBuffered, &prevInactive)

	var mm dto.Metric
	if err := m.ClientConnected.Write(&mm); err != nil {
		t.Fatal(err)
	}
	if mm.Gauge.GetValue() != 1 {
		t.Fatalf("ClientConnected = %v, want 1", mm.Gauge.GetValue())
	}

	mm = dto.Metric{}
	if err := m.DroppedBuffered.Write(&mm); err != nil {
		t.Fatal(err)
	}
	if mm.Counter.GetValue() != 3 {
		t.Fatalf("DroppedBuffered = %v, want 3", mm.Counter.GetValue())
	}

	// A second Observe with drops unchanged must not double-count.
	m.Observe(WorldSnapshot{DroppedBuffered: 3}, &prevBuffered, &prevInactive)
	mm = dto.Metric{}
	m.DroppedBuffered.Write(&mm)
	if mm.Counter.GetValue() != 3 {
		t.Fatalf("DroppedBuffered after no-op Observe = %v, want 3", mm.Counter.GetValue())
	}

	// A further increase adds only the delta.
	m.Observe(WorldSnapshot{DroppedBuffered: 5}, &prevBuffered, &prevInactive)
	mm = dto.Metric{}
	m.DroppedBuffered.Write(&mm)
	if mm.Counter.GetValue() != 5 {
		t.Fatalf("DroppedBuffered after delta Observe = %v, want 5", mm.Counter.GetValue())
	}
}

func TestNewRegistersUnderWorldLabel(t *testing.T) {
	m := New("alpha")

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, mf := range families {
		if mf.GetName() != "mooproxy_buffered_queue_bytes" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "world" && lp.GetValue() == "alpha" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatal("expected mooproxy_buffered_queue_bytes labeled world=alpha")
	}
}
