package aic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tilemud/server/internal/config"
	"github.com/tilemud/server/internal/idem"
	"github.com/tilemud/server/internal/metrics"
	"github.com/tilemud/server/internal/ratelimit"
	"github.com/tilemud/server/internal/room"
	"github.com/tilemud/server/internal/safety"
	"github.com/tilemud/server/internal/session"
)

const (
	basePath       = "/aic/v0.1"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 64 << 10
)

// Server wires the AIC handlers to the room registry and the process-wide
// stores.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	rooms    *room.Registry
	sessions *session.Store
	idem     *idem.Cache
	limiter  *ratelimit.Limiter
	safety   *safety.Registry
	metrics  *metrics.Metrics
	promReg  *prometheus.Registry
	wsServe  http.HandlerFunc
}

// Options bundles the server's collaborators.
type Options struct {
	Cfg      *config.Config
	Log      *zap.Logger
	Rooms    *room.Registry
	Sessions *session.Store
	Idem     *idem.Cache
	Limiter  *ratelimit.Limiter
	Safety   *safety.Registry
	Metrics  *metrics.Metrics
	PromReg  *prometheus.Registry
	WS       http.HandlerFunc
}

// NewServer builds the HTTP surface.
func NewServer(opts Options) *Server {
	return &Server{
		cfg:      opts.Cfg,
		log:      opts.Log,
		rooms:    opts.Rooms,
		sessions: opts.Sessions,
		idem:     opts.Idem,
		limiter:  opts.Limiter,
		safety:   opts.Safety,
		metrics:  opts.Metrics,
		promReg:  opts.PromReg,
		wsServe:  opts.WS,
	}
}

// Router builds the route table. Everything JSON lives under /aic/v0.1/.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix(basePath).Subrouter()
	post := func(path string, h http.HandlerFunc) {
		api.Handle(path, s.instrument(strings.TrimPrefix(path, "/"), h)).Methods(http.MethodPost)
	}

	post("/register", s.handleRegister)
	post("/unregister", s.handleUnregister)
	post("/reconnect", s.handleReconnect)
	post("/heartbeat", s.handleHeartbeat)
	post("/observe", s.handleObserve)
	post("/moveTo", s.handleMoveTo)
	post("/interact", s.handleInteract)
	post("/chatSend", s.handleChatSend)
	post("/chatObserve", s.handleChatObserve)
	post("/pollEvents", s.handlePollEvents)
	post("/profile/update", s.handleProfileUpdate)
	post("/emote", s.handleEmote)
	post("/skill/list", s.handleSkillList)
	post("/skill/install", s.handleSkillInstall)
	post("/skill/invoke", s.handleSkillInvoke)
	post("/skill/cancel", s.handleSkillCancel)
	post("/meeting/list", s.handleMeetingList)
	post("/meeting/join", s.handleMeetingJoin)
	post("/meeting/leave", s.handleMeetingLeave)
	post("/safety/report", s.handleSafetyReport)
	post("/safety/block", s.handleSafetyBlock)

	api.Handle("/channels", s.instrument("channels", s.handleChannels)).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.promReg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	if s.wsServe != nil {
		r.HandleFunc("/ws", s.wsServe).Methods(http.MethodGet)
	}
	return r
}

// instrument times the endpoint for the latency histogram.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		if s.metrics != nil {
			s.metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	})
}

// readBody decodes the JSON request body. The raw bytes come back too so
// transactional endpoints can digest them.
func readBody(w http.ResponseWriter, r *http.Request, dst any) ([]byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeErr(w, errOf(CodeBadRequest, "unreadable request body"))
		return nil, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeErr(w, errOf(CodeBadRequest, "malformed JSON: "+err.Error()))
		return nil, false
	}
	return raw, true
}

// bearerToken extracts the Authorization bearer token, or "".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

// authenticate checks the bearer token against the (agent, room) binding
// and advances the heartbeat clock on success.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, agentID, roomID string) bool {
	token := bearerToken(r)
	if token == "" {
		writeErr(w, errOf(CodeUnauthorized, "missing bearer token"))
		return false
	}
	if err := s.sessions.Authenticate(agentID, roomID, token); err != nil {
		writeErr(w, errOf(CodeUnauthorized, "token does not match session"))
		return false
	}
	s.sessions.Touch(agentID)
	return true
}

// allow enforces the endpoint-class rate limit.
func (s *Server) allow(w http.ResponseWriter, agentID string, class ratelimit.Class) bool {
	if s.limiter.Allow(agentID, class) {
		return true
	}
	if s.metrics != nil {
		s.metrics.RateLimited.Inc()
	}
	writeErr(w, errOf(CodeRateLimited, "rate limit exceeded for "+string(class)))
	return false
}

// deadline wraps the request context with the default handler deadline.
func deadline(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), defaultTimeout)
}

// transactional runs fn under (agentId, txId) idempotency: a replay with
// the same body returns the recorded bytes verbatim, a replay with a
// different body is a conflict, and fresh results are recorded before the
// response is written. The claim taken by Acquire guarantees two
// concurrent requests with the same txId cannot both execute fn.
func (s *Server) transactional(w http.ResponseWriter, agentID, txID string, body []byte, fn func() (any, *apiError)) {
	digest := idem.Digest(body)
	rec, state := s.idem.Acquire(agentID, txID, digest)
	switch state {
	case idem.StateReplay:
		writeRaw(w, http.StatusOK, rec.Result)
		return
	case idem.StateConflict:
		writeErr(w, errOf(CodeConflict, "txId was already used with a different request body"))
		return
	case idem.StateInFlight:
		writeErr(w, errOf(CodeConflict, "txId is still executing"))
		return
	}

	data, apiErr := fn()
	if apiErr != nil {
		// Errors are not memoized; drop the claim so the client may retry
		// the same txId.
		s.idem.Release(agentID, txID)
		writeErr(w, apiErr)
		return
	}
	respBody, err := okBody(data)
	if err != nil {
		s.idem.Release(agentID, txID)
		writeErr(w, errOf(CodeInternal, "encode response"))
		return
	}
	s.idem.Store(agentID, txID, digest, respBody)
	writeRaw(w, http.StatusOK, respBody)
}
