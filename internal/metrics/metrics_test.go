package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSend(t *testing.T) {
	before := testutil.ToFloat64(sendsTotal.WithLabelValues("sent"))
	RecordSend("sent", 10*time.Millisecond)
	if got := testutil.ToFloat64(sendsTotal.WithLabelValues("sent")); got != before+1 {
		t.Errorf("cesto_sends_total{status=sent} = %v, want %v", got, before+1)
	}
}

func TestSetVideoCount(t *testing.T) {
	SetVideoCount(7)
	if got := testutil.ToFloat64(videosTotal); got != 7 {
		t.Errorf("cesto_videos_total = %v, want 7", got)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 404: "4xx", 409: "4xx", 500: "5xx", 503: "5xx"}
	for code, want := range tests {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestRecordRequestAndError(t *testing.T) {
	RecordRequest("GET", "/api/products", 200)
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/products", "2xx")); got < 1 {
		t.Errorf("request counter = %v, want >= 1", got)
	}
	RecordError("store")
	if got := testutil.ToFloat64(errorsTotal.WithLabelValues("store")); got < 1 {
		t.Errorf("error counter = %v, want >= 1", got)
	}
}
