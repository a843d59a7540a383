package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/reservations"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxJSONBody       = 64 << 10
)

type BookingService interface {
	CreateCheckout(ctx context.Context, tenantID string, in reservations.CheckoutInput) (reservations.CheckoutResult, error)
	GetBooking(ctx context.Context, tenantID, id string) (bookings.Booking, error)
	ListBookings(ctx context.Context, tenantID string, f bookings.ListFilter) ([]bookings.Booking, error)
	UpdateBookingStatus(ctx context.Context, tenantID, id, status string) (bookings.Booking, error)
}

type BookingsHandler struct {
	Service BookingService
	Log     *zap.Logger
}

func (h *BookingsHandler) Register(r chi.Router) {
	r.Get("/bookings", h.list)
	r.Get("/bookings/{id}", h.get)
	r.Post("/bookings/{id}/status", h.updateStatus)
}

type lineItemResp struct {
	AddOnID    string `json:"addOnId"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
}

type bookingResp struct {
	ID         string         `json:"id"`
	PackageID  string         `json:"packageId"`
	EventDate  string         `json:"eventDate"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Phone      string         `json:"phone,omitempty"`
	AddOns     []lineItemResp `json:"addOns"`
	TotalCents int64          `json:"totalCents"`
	Currency   string         `json:"currency"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func toBookingResp(b bookings.Booking) bookingResp {
	out := bookingResp{
		ID:         b.ID,
		PackageID:  b.PackageID,
		EventDate:  bookings.FormatDate(b.EventDate),
		Name:       b.Contact.Name,
		Email:      b.Contact.Email,
		Phone:      b.Contact.Phone,
		AddOns:     make([]lineItemResp, 0, len(b.LineItems)),
		TotalCents: b.TotalCents,
		Currency:   b.Currency,
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt,
	}
	for _, li := range b.LineItems {
		out.AddOns = append(out.AddOns, lineItemResp{AddOnID: li.AddOnID, Name: li.Name, PriceCents: li.PriceCents})
	}
	return out
}

func (h *BookingsHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var in reservations.CheckoutInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid json body")
		return
	}
	in.IdempotencyKey = r.Header.Get(idempotencyHeader)

	res, err := h.Service.CreateCheckout(r.Context(), tenantFrom(r.Context()).ID, in)
	if err != nil {
		writeDomainError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BookingsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f bookings.ListFilter
	if s := q.Get("status"); s != "" {
		st, ok := bookings.ParseStatus(s)
		if !ok {
			writeError(w, http.StatusBadRequest, codeValidation, "unknown status")
			return
		}
		f.Status = st
	}
	for param, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		if s := q.Get(param); s != "" {
			d, err := bookings.ParseDate(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeValidation, "invalid "+param+": must be YYYY-MM-DD")
				return
			}
			*dst = d
		}
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid limit")
			return
		}
		f.Limit = n
	}

	list, err := h.Service.ListBookings(r.Context(), tenantFrom(r.Context()).ID, f)
	if err != nil {
		writeDomainError(w, h.Log, err)
		return
	}
	out := make([]bookingResp, 0, len(list))
	for _, b := range list {
		out = append(out, toBookingResp(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

func (h *BookingsHandler) get(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.GetBooking(r.Context(), tenantFrom(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResp(b))
}

func (h *BookingsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid json body")
		return
	}
	b, err := h.Service.UpdateBookingStatus(r.Context(), tenantFrom(r.Context()).ID, chi.URLParam(r, "id"), body.Status)
	if err != nil {
		writeDomainError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResp(b))
}
