// Package checkapi serves the /v1 address check endpoints.
package checkapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/mailcheck/emailsyntax"
	"github.com/dalemusser/mailcheck/httputil"
	"github.com/dalemusser/mailcheck/metrics"
	"github.com/dalemusser/mailcheck/middleware"
	"github.com/dalemusser/mailcheck/validate"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultMaxBatch caps a batch when the handler is built with a
// non-positive limit.
const DefaultMaxBatch = 1000

// Result is the outcome for one candidate. Email echoes the candidate as
// received, which need not be a string.
type Result struct {
	Email  any                `json:"email" yaml:"email"`
	Valid  bool               `json:"valid" yaml:"valid"`
	Reason emailsyntax.Reason `json:"reason" yaml:"reason"`
}

// BatchResponse is the body of POST /v1/check/batch.
type BatchResponse struct {
	Results []Result `json:"results"`
	Valid   int      `json:"valid"`
	Invalid int      `json:"invalid"`
}

type checkRequest struct {
	Email json.RawMessage `json:"email"`
}

type batchRequest struct {
	Emails []any `json:"emails" validate:"required"`
}

// Handler holds the dependencies of the check endpoints.
type Handler struct {
	logger   *zap.Logger
	maxBatch int
	v        *validate.Validator
}

// NewHandler builds a Handler; maxBatch bounds the batch endpoint.
func NewHandler(maxBatch int, logger *zap.Logger) *Handler {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger, maxBatch: maxBatch, v: validate.New()}
}

// Routes returns a router for mounting at /v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/check", h.checkQuery)
	r.With(middleware.RequireJSON).Post("/check", h.checkBody)
	r.With(middleware.RequireJSON).Post("/check/batch", h.checkBatch)
	return r
}

// Check runs one candidate through the checker and records the outcome.
func Check(candidate any) Result {
	reason := emailsyntax.Check(candidate)
	metrics.ObserveCheck(reason)
	return Result{Email: candidate, Valid: reason == emailsyntax.OK, Reason: reason}
}

func (h *Handler) checkQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("email") {
		httputil.JSONError(w, http.StatusBadRequest, "missing_email", "query parameter \"email\" is required")
		return
	}
	h.respond(w, Check(q.Get("email")))
}

func (h *Handler) checkBody(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !h.bind(w, r, &req) {
		return
	}
	if len(req.Email) == 0 {
		httputil.JSONError(w, http.StatusBadRequest, "missing_email", "field \"email\" is required")
		return
	}

	var candidate any
	if err := json.Unmarshal(req.Email, &candidate); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	h.respond(w, Check(candidate))
}

func (h *Handler) checkBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !h.bind(w, r, &req) {
		return
	}

	err := h.v.Struct(req)
	if err == nil {
		err = h.v.Var(req.Emails, "max="+strconv.Itoa(h.maxBatch))
	}
	if err != nil {
		var verrs validate.Errors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg := verrs[0].Message
			if verrs[0].Field == "" {
				msg = "emails must contain at most " + strconv.Itoa(h.maxBatch) + " entries"
			}
			httputil.JSONError(w, http.StatusUnprocessableEntity, "invalid_request", msg)
			return
		}
		httputil.JSONError(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
		return
	}

	resp := BatchResponse{Results: make([]Result, 0, len(req.Emails))}
	for _, candidate := range req.Emails {
		res := Check(candidate)
		if res.Valid {
			resp.Valid++
		} else {
			resp.Invalid++
		}
		resp.Results = append(resp.Results, res)
	}

	h.logger.Debug("batch checked",
		zap.Int("size", len(req.Emails)),
		zap.Int("valid", resp.Valid),
		zap.Int("invalid", resp.Invalid))
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := httputil.BindJSON(r, dst)
	if err == nil {
		return true
	}
	if errors.Is(err, httputil.ErrBodyTooLarge) {
		httputil.JSONError(w, http.StatusRequestEntityTooLarge, "request_too_large", err.Error())
		return false
	}
	httputil.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
	return false
}

func (h *Handler) respond(w http.ResponseWriter, res Result) {
	if ce := h.logger.Check(zap.DebugLevel, "address checked"); ce != nil {
		ce.Write(zap.Bool("valid", res.Valid), zap.Stringer("reason", res.Reason))
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
