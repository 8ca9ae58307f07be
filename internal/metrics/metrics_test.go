package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/users/:id", "200", 0.01)
	RecordHTTPRequest("GET", "/users/:id", "404", 0.02)
	RecordHTTPRequest("GET", "/users/:id", "200", 0.03)

	assert.Equal(t, float64(2), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/users/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/users/:id", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestRecordUnitOfWork(t *testing.T) {
	UnitOfWorkTotal.Reset()
	UnitOfWorkDuration.Reset()

	RecordUnitOfWork("users.save", OutcomeCommitted, 0.1)
	RecordUnitOfWork("users.save", OutcomeRolledBack, 0.2)
	RecordUnitOfWork("users.save", OutcomeCommitted, 0.1)
	RecordRejectedUnitOfWork("users.save")

	assert.Equal(t, float64(2), testutil.ToFloat64(UnitOfWorkTotal.WithLabelValues("users.save", OutcomeCommitted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(UnitOfWorkTotal.WithLabelValues("users.save", OutcomeRolledBack)))
	assert.Equal(t, float64(1), testutil.ToFloat64(UnitOfWorkTotal.WithLabelValues("users.save", OutcomeRejected)))

	metric := UnitOfWorkDuration.WithLabelValues("users.save").(prometheus.Histogram)
	assert.NotNil(t, metric)
}

func TestUnitOfWorkInFlight(t *testing.T) {
	UnitOfWorkInFlight.Set(0)

	UnitOfWorkInFlight.Inc()
	UnitOfWorkInFlight.Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(UnitOfWorkInFlight))

	UnitOfWorkInFlight.Dec()
	assert.Equal(t, float64(1), testutil.ToFloat64(UnitOfWorkInFlight))

	UnitOfWorkInFlight.Set(0)
}

func TestRecordCacheLookup(t *testing.T) {
	CacheLookupsTotal.Reset()

	RecordCacheLookup(CacheHit)
	RecordCacheLookup(CacheMiss)
	RecordCacheLookup(CacheMiss)

	assert.Equal(t, float64(1), testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("miss")))
}
