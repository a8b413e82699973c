package http

import (
	"context"
	"net/http"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
)

const readyTimeout = 5 * time.Second

// MovementResponse is the body returned for a recorded movement.
type MovementResponse struct {
	ID          string        `json:"id"`
	User        string        `json:"user"`
	Date        core.Date     `json:"date"`
	Amount      string        `json:"amount"`
	Category    core.Category `json:"category"`
	Description string        `json:"description,omitempty"`
}

// CategoriesResponse lists the categories known for a user.
type CategoriesResponse struct {
	User       string          `json:"user"`
	Categories []core.Category `json:"categories"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the backing store with a bounded timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.svc.Ready(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// handleLedgerSummary serves GET /api/ledger/summary?user=&year=&month=&category=
func (s *Server) handleLedgerSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := ledger.ParseFilter(q.Get("year"), q.Get("month"), q.Get("category"), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	res, err := s.svc.LedgerSummary(r.Context(), userFrom(q, s.defaultUser), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

// handleCreateMovement serves POST /api/movements with a JSON or form body
// carrying user, date, amount, category and description.
func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	user := p.Get("user")
	if user == "" {
		user = userFrom(r.URL.Query(), s.defaultUser)
	}
	raw := core.RawMovement{
		Date:        p.Get("date"),
		Amount:      p.Get("amount"),
		Category:    p.Get("category"),
		Description: p.Get("description"),
	}

	m, err := s.svc.RecordMovement(r.Context(), user, raw)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(MovementResponse{
			ID:          m.ID,
			User:        user,
			Date:        m.Date,
			Amount:      m.Amount.String(),
			Category:    m.Category,
			Description: m.Description,
		}).
		Write(w)
}

// handleMarketIndicators serves GET /api/market/indicators?symbol=
func (s *Server) handleMarketIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := sanitizeInput(r.URL.Query().Get("symbol"))
	if symbol == "" {
		BadRequestError("symbol is required").Write(w)
		return
	}

	report, err := s.svc.MarketIndicators(r.Context(), symbol)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

// handleCategories serves GET /api/categories?user=
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.URL.Query(), s.defaultUser)
	cats, err := s.svc.Categories(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Body(CategoriesResponse{User: user, Categories: cats}).Write(w)
}
