package leavehandler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"hrleave/internal/auth"
	"hrleave/internal/domain/holidays"
	"hrleave/internal/domain/leave"
	"hrleave/internal/transport/http/api"
	"hrleave/internal/transport/http/middleware"
	"hrleave/internal/transport/http/shared"
)

type Handler struct {
	Service  *leave.Service
	Holidays *holidays.Store
	Idem     *middleware.IdempotencyStore
}

func NewHandler(service *leave.Service, holidayStore *holidays.Store, idem *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Holidays: holidayStore, Idem: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/types", h.handleListTypes)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/holidays", h.handleListHolidays)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/balances", h.handleListBalances)
		r.With(middleware.RequirePermission(auth.PermLeaveAdjust)).Post("/balances/adjust", h.handleAdjustBalance)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/requests", h.handleListRequests)
		r.With(middleware.RequirePermission(auth.PermLeaveRead)).Get("/requests/{requestID}", h.handleGetRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite)).Post("/requests", h.handleCreateRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove)).Post("/requests/{requestID}/approve", h.handleApproveRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove)).Post("/requests/{requestID}/reject", h.handleRejectRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite)).Post("/requests/{requestID}/cancel", h.handleCancelRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove)).Get("/approvals/pending", h.handlePendingApprovals)
		r.With(middleware.RequirePermission(auth.PermCalendarRead)).Get("/calendar", h.handleCalendar)
		r.With(middleware.RequirePermission(auth.PermCalendarExport)).Get("/calendar/export", h.handleCalendarExport)
	})
}

// failFromError maps the domain error taxonomy onto HTTP responses.
func failFromError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var policyErr *leave.PolicyViolationError
	if errors.As(err, &policyErr) {
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "policy_violation", policyErr.Error(),
			map[string]any{"rule": policyErr.Rule}, requestID)
		return
	}

	switch {
	case errors.Is(err, leave.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, leave.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), requestID)
	case errors.Is(err, leave.ErrInsufficientBalance):
		api.Fail(w, http.StatusUnprocessableEntity, "insufficient_balance", err.Error(), requestID)
	case errors.Is(err, leave.ErrUnauthorized):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	case errors.Is(err, leave.ErrAlreadyProcessed):
		api.Fail(w, http.StatusConflict, "already_processed", err.Error(), requestID)
	case errors.Is(err, leave.ErrConflict):
		api.Fail(w, http.StatusConflict, "conflict", "request conflicted with a concurrent update, retry", requestID)
	default:
		slog.Error("leave handler error", "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Service.ListTypes(r.Context())
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, types, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListHolidays(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid year", middleware.GetRequestID(r.Context()))
			return
		}
		year = parsed
	}

	out, err := h.Holidays.List(r.Context(), year)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" || user.RoleName == auth.RoleEmployee {
		employeeID = user.UserID
	}

	year := time.Now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid year", middleware.GetRequestID(r.Context()))
			return
		}
		year = parsed
	}

	balances, err := h.Service.Balances(r.Context(), employeeID, year)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, balances, middleware.GetRequestID(r.Context()))
}

type adjustBalancePayload struct {
	EmployeeID  string  `json:"employeeId"`
	LeaveTypeID string  `json:"leaveTypeId"`
	Year        int     `json:"year"`
	Amount      float64 `json:"amount"`
	Reason      string  `json:"reason"`
}

func (h *Handler) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload adjustBalancePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "employee id required")
	v.Required("leaveTypeId", payload.LeaveTypeID, "leave type id required")
	v.Required("reason", payload.Reason, "reason required")
	if payload.Amount == 0 {
		v.Add("amount", "must be non-zero")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	year := payload.Year
	if year == 0 {
		year = time.Now().Year()
	}

	amount := decimal.NewFromFloat(payload.Amount)
	if err := h.Service.AdjustAllocation(r.Context(), payload.EmployeeID, payload.LeaveTypeID, year, amount, payload.Reason, user.UserID); err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, map[string]string{"status": "adjusted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	filter := leave.RequestFilter{
		EmployeeID:  r.URL.Query().Get("employeeId"),
		LeaveTypeID: r.URL.Query().Get("leaveTypeId"),
		Status:      r.URL.Query().Get("status"),
	}
	if user.RoleName == auth.RoleEmployee {
		filter.EmployeeID = user.UserID
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid from date", middleware.GetRequestID(r.Context()))
			return
		}
		filter.From = from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid to date", middleware.GetRequestID(r.Context()))
			return
		}
		filter.To = to
	}

	page := shared.ParsePagination(r, 25, 200)
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	requests, total, err := h.Service.ListRequests(r.Context(), filter)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, requests, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	requestID := chi.URLParam(r, "requestID")
	req, err := h.Service.GetRequest(r.Context(), requestID)
	if err != nil {
		failFromError(w, r, err)
		return
	}

	if !canAccessRequest(user, req) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

// canAccessRequest allows the requester, anyone named in the approval chain,
// and HR.
func canAccessRequest(user auth.UserContext, req leave.Request) bool {
	if user.RoleName == auth.RoleHR || user.RoleName == auth.RoleSystemAdmin {
		return true
	}
	if req.EmployeeID == user.UserID {
		return true
	}
	for _, step := range req.Steps {
		if step.ApproverID == user.UserID {
			return true
		}
	}
	return false
}

type createRequestPayload struct {
	EmployeeID     string `json:"employeeId"`
	LeaveTypeID    string `json:"leaveTypeId"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	HalfDay        bool   `json:"halfDay"`
	HalfDaySession string `json:"halfDaySession"`
	Reason         string `json:"reason"`
	DocumentRef    string `json:"documentRef"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "failed to read request body", middleware.GetRequestID(r.Context()))
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	requestHash := middleware.RequestHash(body)
	if idemKey != "" {
		stored, hit, err := h.Idem.Check(r.Context(), user.UserID, "leave.requests.create", idemKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			failFromError(w, r, err)
			return
		}
		if hit {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(stored)
			return
		}
	}

	var payload createRequestPayload
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	// Non-HR callers always file for themselves.
	if user.RoleName != auth.RoleHR || payload.EmployeeID == "" {
		payload.EmployeeID = user.UserID
	}

	v := shared.NewValidator()
	startDate, startOK := v.Date("startDate", payload.StartDate)
	endDate, endOK := v.Date("endDate", payload.EndDate)
	if startOK && endOK {
		v.DateOrder("startDate", startDate, "endDate", endDate)
	}
	v.Required("leaveTypeId", payload.LeaveTypeID, "leave type id required")
	if payload.HalfDay {
		v.Enum("halfDaySession", payload.HalfDaySession, []string{leave.SessionMorning, leave.SessionAfternoon}, "must be AM or PM")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	req, err := h.Service.Apply(r.Context(), leave.ApplyInput{
		EmployeeID:     payload.EmployeeID,
		LeaveTypeID:    payload.LeaveTypeID,
		StartDate:      startDate,
		EndDate:        endDate,
		HalfDay:        payload.HalfDay,
		HalfDaySession: strings.ToUpper(strings.TrimSpace(payload.HalfDaySession)),
		Reason:         payload.Reason,
		DocumentRef:    payload.DocumentRef,
	})
	if err != nil {
		failFromError(w, r, err)
		return
	}

	if idemKey != "" {
		envelope := api.Envelope{Success: true, Data: req, RequestID: middleware.GetRequestID(r.Context())}
		if raw, err := json.Marshal(envelope); err == nil {
			if err := h.Idem.Save(r.Context(), user.UserID, "leave.requests.create", idemKey, requestHash, raw); err != nil {
				slog.Warn("idempotency save failed", "key", idemKey, "err", err)
			}
		}
	}
	api.Created(w, req, middleware.GetRequestID(r.Context()))
}

type decisionPayload struct {
	Comments string `json:"comments"`
}

func (h *Handler) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, h.Service.Approve)
}

func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, h.Service.Reject)
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request, decide func(ctx context.Context, in leave.DecideInput) (leave.Request, error)) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload decisionPayload
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
	}

	req, err := decide(r.Context(), leave.DecideInput{
		RequestID:  chi.URLParam(r, "requestID"),
		ApproverID: user.UserID,
		Comments:   payload.Comments,
	})
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

type cancelPayload struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload cancelPayload
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
	}

	req, err := h.Service.Cancel(r.Context(), leave.CancelInput{
		RequestID: chi.URLParam(r, "requestID"),
		ActorID:   user.UserID,
		Reason:    payload.Reason,
	})
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	requests, err := h.Service.PendingApprovals(r.Context(), user.UserID)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, requests, middleware.GetRequestID(r.Context()))
}

func (h *Handler) calendarRange(r *http.Request) (time.Time, time.Time, string, error) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := shared.ParseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, "", fmt.Errorf("invalid from date")
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := shared.ParseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, "", fmt.Errorf("invalid to date")
		}
		to = parsed
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, "", fmt.Errorf("to date precedes from date")
	}
	return from, to, r.URL.Query().Get("department"), nil
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	from, to, department, err := h.calendarRange(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}

	entries, err := h.Service.Calendar(r.Context(), from, to, department)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	from, to, department, err := h.calendarRange(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}

	entries, err := h.Service.Calendar(r.Context(), from, to, department)
	if err != nil {
		failFromError(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	switch format {
	case "pdf":
		writeCalendarPDF(w, entries, from, to)
	case "csv":
		writeCalendarCSV(w, entries)
	default:
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "format must be csv or pdf", middleware.GetRequestID(r.Context()))
	}
}

func writeCalendarCSV(w http.ResponseWriter, entries []leave.CalendarEntry) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=leave-calendar.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"request_id", "employee_id", "employee", "department", "leave_type", "start_date", "end_date", "working_days", "status"}); err != nil {
		slog.Warn("calendar export csv header write failed", "err", err)
	}
	for _, entry := range entries {
		if err := writer.Write([]string{
			entry.RequestID,
			entry.EmployeeID,
			entry.EmployeeName,
			entry.Department,
			entry.LeaveTypeName,
			entry.StartDate.Format("2006-01-02"),
			entry.EndDate.Format("2006-01-02"),
			entry.WorkingDays.String(),
			entry.Status,
		}); err != nil {
			slog.Warn("calendar export csv row write failed", "err", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Warn("calendar export csv flush failed", "err", err)
	}
}

func writeCalendarPDF(w http.ResponseWriter, entries []leave.CalendarEntry, from, to time.Time) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Leave Calendar", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, fmt.Sprintf("Leave Calendar %s - %s", from.Format("2006-01-02"), to.Format("2006-01-02")))
	pdf.Ln(12)

	headers := []string{"Employee", "Department", "Leave Type", "Start", "End", "Days", "Status"}
	widths := []float64{60, 40, 45, 28, 28, 20, 28}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, entry := range entries {
		cells := []string{
			entry.EmployeeName,
			entry.Department,
			entry.LeaveTypeName,
			entry.StartDate.Format("2006-01-02"),
			entry.EndDate.Format("2006-01-02"),
			entry.WorkingDays.String(),
			entry.Status,
		}
		for i, cell := range cells {
			pdf.CellFormat(widths[i], 7, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=leave-calendar.pdf")
	if err := pdf.Output(w); err != nil {
		slog.Warn("calendar export pdf write failed", "err", err)
	}
}
