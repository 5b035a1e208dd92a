/*
handlers.go - HTTP handlers for the COC engine's external interface
(spec.md §6).

Grounded on the teacher's api/handlers.go handler shape (one method per
endpoint, a shared writeJSON/writeError pair, request-scoped
context.Context threaded into every store call) — generalized from
PTO-assignment endpoints to the COC submit/certify/debit/query surface.
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cocrecords/coc-engine/calendar"
	"github.com/cocrecords/coc-engine/certification"
	"github.com/cocrecords/coc-engine/clock"
	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/config"
	"github.com/cocrecords/coc-engine/creditledger"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/cocrecords/coc-engine/identity"
	"github.com/cocrecords/coc-engine/overtimelog"
	"github.com/cocrecords/coc-engine/query"
	"github.com/cocrecords/coc-engine/validation"
)

// Handler wires every component the HTTP surface exposes.
type Handler struct {
	Docs          docstore.Store
	Logs          *overtimelog.Store
	Ledger        *creditledger.Ledger
	Cascade       *validation.Cascade
	Certification *certification.Engine
	Query         *query.Layer
	Calendar      *calendar.Service
	Clock         clock.Clock
	Log           zerolog.Logger
}

func NewHandler(docs docstore.Store, cal *calendar.Service, c clock.Clock, log zerolog.Logger) *Handler {
	logs := overtimelog.New(docs)
	ledger := creditledger.New(docs, logs)
	return &Handler{
		Docs:          docs,
		Logs:          logs,
		Ledger:        ledger,
		Cascade:       validation.New(docs, logs, ledger, cal),
		Certification: certification.New(docs, logs),
		Query:         query.New(docs, logs, ledger),
		Calendar:      cal,
		Clock:         c,
		Log:           log,
	}
}

func (h *Handler) today() coc.Date { return clock.Today(h.Clock, nil) }

// SubmitBatch handles POST /api/employees/{id}/overtime-logs
// (spec.md §6, §4.3 Validation Cascade).
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	var req SubmitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, coc.NewSubError(coc.KindValidation, coc.SubMissingField, "malformed request body"))
		return
	}
	req.EmployeeID = employeeID

	entries := make([]validation.EntryInput, 0, len(req.Entries))
	for _, e := range req.Entries {
		date, err := coc.ParseDate(e.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, coc.NewSubError(coc.KindValidation, coc.SubBadDate, "invalid date "+e.Date))
			return
		}
		entries = append(entries, validation.EntryInput{Date: date, AMIn: e.AMIn, AMOut: e.AMOut, PMIn: e.PMIn, PMOut: e.PMOut})
	}

	actor, _ := identity.FromContext(r.Context())
	result, err := h.Cascade.Submit(r.Context(), validation.BatchInput{
		EmployeeID: req.EmployeeID, MonthName: req.MonthName, Year: req.Year,
		Entries: entries, LoggedBy: actor.ID,
	})
	if err != nil {
		h.logOperationError(r, "submit_batch", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubmitResponse(result))
}

// Certify handles POST /api/employees/{id}/certificates (spec.md §6, §4.5).
func (h *Handler) Certify(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	var req CertifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, coc.NewSubError(coc.KindValidation, coc.SubMissingField, "malformed request body"))
		return
	}
	issuance := h.today()
	if req.DateOfIssuance != "" {
		parsed, err := coc.ParseDate(req.DateOfIssuance)
		if err != nil {
			writeError(w, http.StatusBadRequest, coc.NewSubError(coc.KindValidation, coc.SubBadDate, "invalid dateOfIssuance"))
			return
		}
		issuance = parsed
	}

	actor, _ := identity.FromContext(r.Context())
	cert, err := h.Certification.Certify(r.Context(), h.today(), certification.Input{
		EmployeeID: employeeID, MonthName: req.MonthName, Year: req.Year,
		DateOfIssuance: issuance, IssuedBy: actor.ID,
	})
	if err != nil {
		h.logOperationError(r, "certify", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, toCertifyResponse(cert))
}

// Debit handles POST /api/employees/{id}/debits (spec.md §4.6, a
// consuming collaborator such as payroll spending credited hours).
func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	var req DebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, coc.NewSubError(coc.KindValidation, coc.SubMissingField, "malformed request body"))
		return
	}

	actor, _ := identity.FromContext(r.Context())
	var allocs []creditledger.Allocation
	err := h.Ledger.WithEmployeeLock(r.Context(), employeeID, actor.ID, func(ctx context.Context) error {
		var debitErr error
		allocs, debitErr = h.Ledger.Debit(ctx, employeeID, coc.NewHours(req.Hours), req.ReferenceID, actor.ID, h.today())
		return debitErr
	})
	if err != nil {
		h.logOperationError(r, "debit", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toDebitResponse(allocs))
}

// Balance handles GET /api/employees/{id}/balance (spec.md §4.6, §4.7).
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	uncertified, err := h.Logs.QueryByEmployee(r.Context(), employeeID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	uncertifiedTotal := coc.ZeroHours()
	for _, log := range uncertified {
		if log.Status == coc.LogUncertified {
			uncertifiedTotal = uncertifiedTotal.Add(log.COCEarned)
		}
	}
	balance, err := h.Ledger.Balance(r.Context(), employeeID, uncertifiedTotal)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(employeeID, balance))
}

// EmployeeLedger handles GET /api/employees/{id}/ledger (spec.md §4.7).
func (h *Handler) EmployeeLedger(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	lines, err := h.Query.EmployeeLedger(r.Context(), employeeID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerLineDTOs(lines))
}

// UncertifiedStats handles GET /api/uncertified/stats (spec.md §4.7).
func (h *Handler) UncertifiedStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Query.GlobalUncertifiedStats(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, UncertifiedStatsDTO{TotalLogs: stats.TotalLogs, TotalHours: stats.TotalHours.Float64()})
}

// UncertifiedLogs handles GET /api/uncertified/logs (spec.md §4.7).
func (h *Handler) UncertifiedLogs(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Query.UncertifiedLogsWithEmployeeNames(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toUncertifiedRowDTOs(rows))
}

// CertifiedMonths handles GET /api/employees/{id}/certified-months?year=YYYY
// (spec.md §4.7).
func (h *Handler) CertifiedMonths(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, coc.NewSubError(coc.KindValidation, coc.SubMissingField, "year query param is required"))
		return
	}
	months, err := h.Query.CertifiedMonthsFor(r.Context(), employeeID, year)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, months)
}

// Progress handles GET /api/employees/{id}/progress?month=X&year=Y
// (spec.md §4.7).
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, coc.NewSubError(coc.KindValidation, coc.SubMissingField, "year query param is required"))
		return
	}
	month := r.URL.Query().Get("month")
	cfg, err := config.Load(r.Context(), h.Docs)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	progress, err := h.Query.ProgressAgainstCaps(r.Context(), employeeID, month, year, cfg)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"monthHours":          progress.MonthHours.Float64(),
		"activePlusUncertified": progress.ActivePlusUncertified.Float64(),
		"monthlyCap":          progress.MonthlyCap.Float64(),
		"totalCap":            progress.TotalCap.Float64(),
		"monthlyCapRemaining": progress.MonthlyCapRemaining.Float64(),
		"totalCapRemaining":   progress.TotalCapRemaining.Float64(),
	})
}

// ExpireSweep handles POST /api/admin/expire-sweep (spec.md §4.6).
func (h *Handler) ExpireSweep(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.FromContext(r.Context())
	if err := h.Ledger.ExpireSweep(r.Context(), h.today(), actor.ID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IncompleteCertifications handles GET /api/admin/incomplete-certifications,
// surfacing correlation ids from certification commits that crashed
// mid-write (spec.md §5 recovery scan) for an operator to investigate.
func (h *Handler) IncompleteCertifications(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Certification.IncompleteCertifications(r.Context())
	if err != nil {
		h.logOperationError(r, "IncompleteCertifications", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"correlationIds": ids})
}

func (h *Handler) logOperationError(r *http.Request, op string, err error) {
	if cocErr, ok := err.(*coc.Error); ok && cocErr.Kind == coc.KindInternal {
		h.Log.Error().Str("component", "api").Str("op", op).Err(err).Msg("operation failed")
		return
	}
	h.Log.Debug().Str("component", "api").Str("op", op).Err(err).Msg("operation rejected")
}

func statusFor(err error) int {
	cocErr, ok := err.(*coc.Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch cocErr.Kind {
	case coc.KindValidation:
		return http.StatusBadRequest
	case coc.KindNotFound:
		return http.StatusNotFound
	case coc.KindAlreadyExists, coc.KindPeriodLocked, coc.KindCapMonthly, coc.KindCapTotal, coc.KindPreconditionFailed:
		return http.StatusConflict
	case coc.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	dto := ErrorDTO{Message: err.Error()}
	if cocErr, ok := err.(*coc.Error); ok {
		dto.Kind = string(cocErr.Kind)
		dto.Subkind = cocErr.Subkind
	}
	writeJSON(w, status, dto)
}
