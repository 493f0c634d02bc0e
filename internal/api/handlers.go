package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/trogers1052/signal-desk/internal/ingest"
	"github.com/trogers1052/signal-desk/internal/lenient"
	"github.com/trogers1052/signal-desk/internal/models"
	"github.com/trogers1052/signal-desk/internal/signals"
	"github.com/trogers1052/signal-desk/internal/trades"
)

const maxBodyBytes = 1 << 20

// AlertIngester accepts raw webhook bodies
type AlertIngester interface {
	IngestRaw(ctx context.Context, body []byte, headerToken, queryToken string) (*models.Signal, error)
}

// SignalService lists and analyzes signals
type SignalService interface {
	List(ctx context.Context) ([]*models.Signal, error)
	Analyze(ctx context.Context, id int, operator string) (*signals.AnalyzeResult, error)
}

// TradeService logs and lists trades
type TradeService interface {
	Create(ctx context.Context, req trades.CreateRequest) (*models.Trade, error)
	List(ctx context.Context) ([]*models.TradeWithTicker, error)
}

// LeaderboardService computes operator rankings
type LeaderboardService interface {
	Leaderboard(ctx context.Context) ([]models.OperatorStats, error)
}

// Store reports store reachability and totals
type Store interface {
	Ping(ctx context.Context) error
	Counts(ctx context.Context) (*models.StoreCounts, error)
}

// Pinger is an optional dependency checked by the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies wires the handler's services
type Dependencies struct {
	Ingester    AlertIngester
	Signals     SignalService
	Trades      TradeService
	Leaderboard LeaderboardService
	Store       Store
	Redis       Pinger
	Kafka       bool
	Log         zerolog.Logger
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	ingester    AlertIngester
	signals     SignalService
	trades      TradeService
	leaderboard LeaderboardService
	store       Store
	redis       Pinger
	kafka       bool
	log         zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		ingester:    deps.Ingester,
		signals:     deps.Signals,
		trades:      deps.Trades,
		leaderboard: deps.Leaderboard,
		store:       deps.Store,
		redis:       deps.Redis,
		kafka:       deps.Kafka,
		log:         deps.Log.With().Str("component", "api").Logger(),
	}
}

// Webhook handles POST /api/v1/webhook
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, badRequest("failed to read request body"))
		return
	}

	signal, err := h.ingester.IngestRaw(r.Context(), body,
		r.Header.Get("X-Webhook-Token"), r.URL.Query().Get("token"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, signal)
}

// ListSignals handles GET /api/v1/signals
func (h *Handler) ListSignals(w http.ResponseWriter, r *http.Request) {
	list, err := h.signals.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// AnalyzeSignal handles POST /api/v1/signals/{id}/analyze
func (h *Handler) AnalyzeSignal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		h.writeError(w, badRequest("signal id must be a positive integer"))
		return
	}

	var req struct {
		UserName interface{} `json:"user_name"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, badRequest("invalid request body"))
		return
	}
	operator, _ := lenient.String(req.UserName, models.DefaultOperator)

	result, err := h.signals.Analyze(r.Context(), id, operator)
	if err != nil {
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"signal":        result.Signal,
		"response_time": result.ResponseTime.StringFixed(models.ResponseTimePlaces),
	})
}

// CreateTrade handles POST /api/v1/trades
func (h *Handler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	var req trades.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, badRequest("invalid request body"))
		return
	}

	trade, err := h.trades.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, trade)
}

// ListTrades handles GET /api/v1/trades
func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	list, err := h.trades.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// Leaderboard handles GET /api/v1/leaderboard
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.leaderboard.Leaderboard(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := map[string]string{}
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		services["postgres"] = "unhealthy: " + err.Error()
		health["status"] = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		services["postgres"] = "healthy"
		if counts, err := h.store.Counts(ctx); err != nil {
			services["postgres"] = "unhealthy: " + err.Error()
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			health["signals"] = counts.Signals
			health["trades"] = counts.Trades
		}
	}

	// Redis and Kafka are optional sinks; their failures do not degrade the service
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if h.kafka {
		services["kafka"] = "configured"
	} else {
		services["kafka"] = "not configured"
	}

	respondJSON(w, status, health)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func badRequest(msg string) error { return badRequestError(msg) }

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var br badRequestError
	switch {
	case errors.As(err, &br):
		respondJSON(w, http.StatusBadRequest, errorBody{"bad_request", err.Error()})
	case errors.Is(err, ingest.ErrMalformed):
		respondJSON(w, http.StatusBadRequest, errorBody{"bad_request", err.Error()})
	case errors.Is(err, ingest.ErrUnauthorized):
		respondJSON(w, http.StatusUnauthorized, errorBody{"unauthorized", "invalid or missing webhook token"})
	case errors.Is(err, models.ErrSignalNotFound):
		respondJSON(w, http.StatusNotFound, errorBody{"not_found", err.Error()})
	case errors.Is(err, models.ErrSignalAlreadyAnalyzed):
		respondJSON(w, http.StatusConflict, errorBody{"already_analyzed", err.Error()})
	case errors.Is(err, models.ErrStoreUnreachable):
		h.log.Error().Err(err).Msg("store unreachable")
		respondJSON(w, http.StatusServiceUnavailable, errorBody{"store_unreachable", err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		respondJSON(w, http.StatusInternalServerError, errorBody{"store_unreachable", err.Error()})
	}
}

// decodeBody decodes a JSON body into v keeping numbers raw. An empty body
// leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

// respondJSON encodes before writing the status so an unencodable value
// becomes a 500 instead of a success with an empty body.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		log.Error().Err(err).Int("status", status).Msg("failed to encode response")
		buf.Reset()
		status = http.StatusInternalServerError
		json.NewEncoder(&buf).Encode(errorBody{"internal", "failed to encode response"})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}
