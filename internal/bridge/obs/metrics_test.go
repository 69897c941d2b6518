package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func value(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func TestCanonicalRoute(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/metrics":                "/metrics",
		"/auth/code/exchange":     "/auth/code/exchange",
		"/org/org-1/seats":        "/org/{orgId}/seats",
		"/org/org-1/seats/assign": "/org/{orgId}/seats/assign",
		"/org/org-1":              "/org/{orgId}",
		"/swagger/index.html":     "/swagger/",
		"/.well-known/jwks.json":  "/.well-known/jwks.json",
	}
	for in, want := range cases {
		require.Equal(t, want, CanonicalRoute(in), in)
	}
}

func TestInstrumentCountsByRoute(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))

	before := value(httpRequestsTotal.WithLabelValues(http.MethodPost, "/org/{orgId}/seats/assign", "402"))
	for _, org := range []string{"a", "b"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/org/"+org+"/seats/assign", nil))
	}
	after := value(httpRequestsTotal.WithLabelValues(http.MethodPost, "/org/{orgId}/seats/assign", "402"))
	require.Equal(t, before+2, after)
}

func TestDomainCounters(t *testing.T) {
	before := value(seatOpsTotal.WithLabelValues("assign", "no_capacity"))
	SeatOp("assign", "no_capacity")
	require.Equal(t, before+1, value(seatOpsTotal.WithLabelValues("assign", "no_capacity")))

	Housekeeping("codes", 0)
	Housekeeping("codes", 3)
	require.GreaterOrEqual(t, value(housekeepingDeleted.WithLabelValues("codes")), float64(3))
}
