package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/parkpulse/internal/parking/domain"
)

var (
	reservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_reservations_total",
		Help: "Reservation attempts grouped by outcome.",
	}, []string{"outcome"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_booking_transitions_total",
		Help: "Booking lifecycle transitions grouped by target status.",
	}, []string{"to"})

	availableSlotsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "parking_lot_available_slots",
		Help: "Available slots per lot as last recounted.",
	}, []string{"lot_id"})
)

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "reserved"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrSlotUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
