package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCacheLookup(t *testing.T) {
	tests := []struct {
		name   string
		hit    bool
		err    error
		result string
	}{
		{name: "hit", hit: true, result: "hit"},
		{name: "miss", hit: false, result: "miss"},
		{name: "error wins over hit", hit: true, err: errors.New("redis down"), result: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := CacheLookups.WithLabelValues("test_"+tt.name, tt.result)
			before := testutil.ToFloat64(counter)

			RecordCacheLookup("test_"+tt.name, tt.hit, tt.err)

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("CacheLookups{%s} delta = %v, want 1", tt.result, got)
			}
		})
	}
}

func TestRecordAPIRequest(t *testing.T) {
	counter := APIRequestsTotal.WithLabelValues("GET", "/test", "200")
	before := testutil.ToFloat64(counter)

	RecordAPIRequest("GET", "/test", "200", 15*time.Millisecond)
	RecordAPIRequest("GET", "/test", "200", 25*time.Millisecond)

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("APIRequestsTotal delta = %v, want 2", got)
	}
}

func TestRecordExternalRequest(t *testing.T) {
	counter := ExternalRequests.WithLabelValues("empty")
	before := testutil.ToFloat64(counter)

	RecordExternalRequest("empty", time.Millisecond)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("ExternalRequests{empty} delta = %v, want 1", got)
	}
}
