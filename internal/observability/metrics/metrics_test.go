package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveBookingCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking(ResultSuccess)
	m.ObserveBooking(ResultSuccess)
	m.ObserveBooking(ResultConflict)
	m.ObserveCancellation(ResultSuccess)
	m.ObserveReleaseFailure()

	expected := `
		# HELP clinic_booking_bookings_total Booking attempts by outcome
		# TYPE clinic_booking_bookings_total counter
		clinic_booking_bookings_total{result="conflict"} 1
		clinic_booking_bookings_total{result="success"} 2
	`
	if err := testutil.CollectAndCompare(m.bookingsTotal, strings.NewReader(expected)); err != nil {
		t.Fatalf("bookings counter mismatch: %v", err)
	}

	if got := testutil.ToFloat64(m.releaseFailures); got != 1 {
		t.Fatalf("release failures: got %v want 1", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking(ResultSuccess)
	m.ObserveCancellation(ResultError)
	m.ObserveReleaseFailure()
}
