package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/availability"
	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"go.uber.org/zap"
)

type AvailabilityChecker interface {
	Check(ctx context.Context, tenantID string, date time.Time) (availability.Result, error)
	UnavailableDates(ctx context.Context, tenantID string, start, end time.Time) ([]time.Time, error)
}

type AvailabilityHandler struct {
	Checker AvailabilityChecker
	Log     *zap.Logger
}

type availabilityResp struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	date, err := bookings.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "date must be YYYY-MM-DD")
		return
	}
	res, err := h.Checker.Check(r.Context(), tenantFrom(r.Context()).ID, date)
	if err != nil {
		writeDomainError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResp{
		Date:      bookings.FormatDate(res.Date),
		Available: res.Available,
		Reason:    string(res.Reason),
	})
}

func (h *AvailabilityHandler) Unavailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := bookings.ParseDate(q.Get("startDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "startDate must be YYYY-MM-DD")
		return
	}
	end, err := bookings.ParseDate(q.Get("endDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "endDate must be YYYY-MM-DD")
		return
	}

	dates, err := h.Checker.UnavailableDates(r.Context(), tenantFrom(r.Context()).ID, start, end)
	if err != nil {
		writeDomainError(w, h.Log, err)
		return
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, bookings.FormatDate(d))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"dates": out})
}
