package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/infra/logging"
	"vpn-key-subscription/internal/usecase"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Health != nil {
		if err := s.Health.Ping(r.Context()); err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Pricing.Catalogue())
}

// --- payments ---

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" || strings.TrimSpace(req.Plan) == "" || strings.TrimSpace(req.Currency) == "" {
		writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	if req.Period.Months() <= 0 {
		writeError(w, r, domain.ErrInvalidPeriod)
		return
	}
	p, err := s.Payments.Create(r.Context(), usecase.CreatePaymentInput{
		OwnerID:      req.OwnerID,
		Plan:         req.Plan,
		PeriodMonths: req.Period.Months(),
		Currency:     req.Currency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayment(p))
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	v, err := s.Payments.Get(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(v))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	p, err := s.Payments.Claim(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayment(p))
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	v, err := s.Payments.Check(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(v))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	operator := logging.Operator(r.Context())
	v, err := s.Payments.Approve(r.Context(), chi.URLParam(r, "paymentID"), operator, req.Reference)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(v))
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	p, err := s.Payments.Reject(r.Context(), chi.URLParam(r, "paymentID"), logging.Operator(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayment(p))
}

func (s *Server) handleOwnerPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.Payments.ListByOwner(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]*paymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPayment(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- credentials ---

func (s *Server) handleTrial(w http.ResponseWriter, r *http.Request) {
	var req trialRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	c, err := s.Credentials.GrantTrial(r.Context(), req.OwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCredential(c))
}

func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	c, err := s.Credentials.Get(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCredential(c))
}

func (s *Server) handleOwnerCredentials(w http.ResponseWriter, r *http.Request) {
	list, err := s.Credentials.ListByOwner(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]*credentialResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCredential(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- admin ---

func (s *Server) handleRegisterOwner(w http.ResponseWriter, r *http.Request) {
	var req registerOwnerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.Owners.Register(r.Context(), req.ID, req.TelegramID, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOwner(o))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Reconciler.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	n, err := s.Reconciler.Cleanup(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	logging.With(r.Context(), s.log).Info().Int64("deleted", n).Msg("trial cleanup requested by operator")
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	res, err := s.Reconciler.Sweep(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	c, err := s.Credentials.Deactivate(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCredential(c))
}
