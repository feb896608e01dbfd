package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/example/parkpulse/internal/auth"
	"github.com/example/parkpulse/internal/parking/availability"
	"github.com/example/parkpulse/internal/parking/domain"
	"github.com/example/parkpulse/internal/parking/service"
)

// HTTP exposes the reservation engine's operations.
type HTTP struct {
	svc       *service.Service
	index     *availability.RedisIndex
	subscribe http.Handler
	jwtSecret string
}

// NewHTTP constructs a handler. index and subscribe are optional.
func NewHTTP(svc *service.Service, index *availability.RedisIndex, subscribe http.Handler, jwtSecret string) *HTTP {
	return &HTTP{svc: svc, index: index, subscribe: subscribe, jwtSecret: jwtSecret}
}

// Router builds the chi router with all endpoints and middlewares.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	// Public discovery surface, matching the original read paths.
	r.Get("/v1/lots", h.listLots)
	r.Get("/v1/lots/{id}", h.getLot)
	r.Get("/v1/lots/{id}/availability", h.lotAvailability)
	r.Get("/v1/slots", h.listSlots)
	if h.subscribe != nil {
		r.Handle("/ws", h.subscribe)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(h.jwtSecret))
		r.Post("/v1/bookings", h.reserve)
		r.Get("/v1/bookings", h.listBookings)
		r.Get("/v1/bookings/expiring-soon", h.expiringSoon)
		r.Get("/v1/bookings/{id}", h.getBooking)
		r.Post("/v1/bookings/{id}/start", h.start)
		r.Post("/v1/bookings/{id}/complete", h.complete)
		r.Post("/v1/bookings/{id}/cancel", h.cancel)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(h.jwtSecret, domain.RoleManager, domain.RoleAdmin))
		r.Post("/v1/lots", h.createLot)
		r.Put("/v1/lots/{id}", h.updateLot)
		r.Delete("/v1/lots/{id}", h.deleteLot)
		r.Put("/v1/slots/{id}/status", h.setSlotStatus)
		r.Post("/v1/lots/{id}/slots/bulk-update", h.bulkSetSlotStatus)
	})

	return r
}

type reserveRequest struct {
	SlotID        string     `json:"slot_id"`
	StartTime     time.Time  `json:"start_time"`
	ExpectedEnd   *time.Time `json:"expected_end_time,omitempty"`
	VehicleNumber string     `json:"vehicle_number,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

func (h *HTTP) reserve(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "missing caller", http.StatusUnauthorized)
		return
	}
	var payload reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slotID, err := uuid.Parse(payload.SlotID)
	if err != nil {
		http.Error(w, "invalid slot_id", http.StatusBadRequest)
		return
	}

	booking, err := h.svc.Reserve(r.Context(), service.ReserveRequest{
		Caller:        caller,
		SlotID:        slotID,
		Start:         payload.StartTime,
		ExpectedEnd:   payload.ExpectedEnd,
		VehicleNumber: payload.VehicleNumber,
		Notes:         payload.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *HTTP) getBooking(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	booking, err := h.svc.GetBooking(r.Context(), id, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *HTTP) listBookings(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "missing caller", http.StatusUnauthorized)
		return
	}
	var filter domain.BookingFilter
	if raw := r.URL.Query().Get("lot_id"); raw != "" {
		lotID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid lot_id", http.StatusBadRequest)
			return
		}
		filter.LotID = &lotID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		filter.Statuses = []domain.BookingStatus{domain.BookingStatus(raw)}
	}
	bookings, err := h.svc.ListBookings(r.Context(), caller, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

const defaultExpiryWindow = 30 * time.Minute

// expiringSoon lists the caller's live bookings about to pass their
// expected end, for reminder UIs.
func (h *HTTP) expiringSoon(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "missing caller", http.StatusUnauthorized)
		return
	}
	within := defaultExpiryWindow
	if raw := r.URL.Query().Get("within_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < 1 {
			http.Error(w, "invalid within_minutes", http.StatusBadRequest)
			return
		}
		within = time.Duration(minutes) * time.Minute
	}
	bookings, err := h.svc.UpcomingExpiries(r.Context(), caller, within)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *HTTP) start(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	booking, err := h.svc.Start(r.Context(), id, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *HTTP) complete(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	booking, err := h.svc.Complete(r.Context(), id, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *HTTP) cancel(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	booking, err := h.svc.Cancel(r.Context(), id, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type createLotRequest struct {
	Name       string          `json:"name"`
	ManagerID  *string         `json:"manager_id,omitempty"`
	TotalSlots int             `json:"total_slots"`
	Rates      domain.RateCard `json:"rates"`
}

func (h *HTTP) createLot(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "missing caller", http.StatusUnauthorized)
		return
	}
	var payload createLotRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := service.CreateLotRequest{
		Caller:     caller,
		Name:       payload.Name,
		TotalSlots: payload.TotalSlots,
		Rates:      payload.Rates,
	}
	if payload.ManagerID != nil {
		managerID, err := uuid.Parse(*payload.ManagerID)
		if err != nil {
			http.Error(w, "invalid manager_id", http.StatusBadRequest)
			return
		}
		req.ManagerID = &managerID
	}
	lot, err := h.svc.CreateLot(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lot)
}

type updateLotRequest struct {
	Name   *string          `json:"name,omitempty"`
	Rates  *domain.RateCard `json:"rates,omitempty"`
	Active *bool            `json:"active,omitempty"`
}

func (h *HTTP) updateLot(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var payload updateLotRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lot, err := h.svc.UpdateLot(r.Context(), service.UpdateLotRequest{
		Caller: caller,
		LotID:  id,
		Name:   payload.Name,
		Rates:  payload.Rates,
		Active: payload.Active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

func (h *HTTP) deleteLot(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteLot(r.Context(), id, caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "parking lot deleted"})
}

func (h *HTTP) getLot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	details, err := h.svc.GetLot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *HTTP) listLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.svc.ListLots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lots)
}

// lotAvailability serves the availability counter from the Redis mirror
// when possible, falling back to the lot record.
func (h *HTTP) lotAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if h.index != nil {
		if count, ok, err := h.index.Get(r.Context(), id); err == nil && ok {
			writeJSON(w, http.StatusOK, map[string]any{"lot_id": id, "available_slots": count})
			return
		}
	}
	details, err := h.svc.GetLot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lot_id": id, "available_slots": details.AvailableSlots})
}

func (h *HTTP) listSlots(w http.ResponseWriter, r *http.Request) {
	var filter domain.SlotFilter
	if raw := r.URL.Query().Get("lot_id"); raw != "" {
		lotID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid lot_id", http.StatusBadRequest)
			return
		}
		filter.LotID = &lotID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.SlotStatus(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		slotType := domain.SlotType(raw)
		filter.Type = &slotType
	}
	slots, err := h.svc.ListSlots(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

type setSlotStatusRequest struct {
	Status string  `json:"status"`
	Type   *string `json:"type,omitempty"`
}

func (h *HTTP) setSlotStatus(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var payload setSlotStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var typ *domain.SlotType
	if payload.Type != nil {
		t := domain.SlotType(*payload.Type)
		typ = &t
	}
	slot, err := h.svc.SetSlotStatus(r.Context(), id, domain.SlotStatus(payload.Status), typ, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

type bulkUpdateRequest struct {
	Updates []service.SlotUpdate `json:"updates"`
}

func (h *HTTP) bulkSetSlotStatus(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var payload bulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.svc.BulkSetSlotStatus(r.Context(), id, payload.Updates, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTP) callerAndID(w http.ResponseWriter, r *http.Request) (domain.Caller, uuid.UUID, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "missing caller", http.StatusUnauthorized)
		return domain.Caller{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return domain.Caller{}, uuid.Nil, false
	}
	return caller, id, true
}

// writeError maps the engine's error taxonomy onto HTTP statuses, keeping
// the message verbatim for the caller.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrLotNotFound),
		errors.Is(err, domain.ErrSlotNotFound),
		errors.Is(err, domain.ErrBookingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrSlotUnavailable),
		errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
