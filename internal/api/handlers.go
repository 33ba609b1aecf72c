package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"countdown.share/config"
	"countdown.share/internal/crypto"
	"countdown.share/internal/log"
	"countdown.share/internal/models"
	"countdown.share/internal/session"
	"countdown.share/internal/share"
	"countdown.share/web"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const maxCreateBody = 16 << 10

type Handler struct {
	sharer       share.Sharer
	config       *config.Config
	secret       string
	shares       singleflight.Group
	now          func() time.Time
	tickInterval time.Duration
	logger       zerolog.Logger
}

func NewHandler(sh share.Sharer, cfg *config.Config) *Handler {
	h := &Handler{
		sharer: sh,
		config: cfg,
		secret: cfg.Session.Secret,
		now:    time.Now,
		logger: log.WithComponent("api"),
	}
	if h.secret == "" {
		h.secret = crypto.GenerateSecret()
		h.logger.Warn().Msg("no session secret configured, countdowns will not survive a restart")
	}
	return h
}

type CreateRequest struct {
	Name       string `json:"name"`
	TargetDate string `json:"target_date"`
	EndMessage string `json:"end_message,omitempty"`
}

type CountdownResponse struct {
	Name       string    `json:"name"`
	TargetDate time.Time `json:"target_date"`
	EndMessage string    `json:"end_message"`
}

type ShareResponse struct {
	ShareID   string    `json:"share_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	sharing := "enabled"
	if _, ok := h.sharer.(share.Unconfigured); ok {
		sharing = "disabled"
	}
	h.json(w, http.StatusOK, map[string]string{"status": "ok", "sharing": sharing})
}

func (h *Handler) CreateCountdown(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.error(w, http.StatusRequestEntityTooLarge, "request body too large", "")
			return
		}
		h.error(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	target, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(req.TargetDate))
	if err != nil {
		h.error(w, http.StatusBadRequest, "target_date must be an ISO-8601 instant", "validation")
		return
	}

	spec := models.NewCountdownSpec(req.Name, target, req.EndMessage)
	if err := spec.Validate(h.now()); err != nil {
		h.error(w, http.StatusBadRequest, validationMessage(err), "validation")
		return
	}

	if err := h.session(w, r).Save(spec); err != nil {
		h.logger.Error().Err(err).Msg("saving session")
		h.error(w, http.StatusInternalServerError, "failed to save countdown", "")
		return
	}

	h.json(w, http.StatusCreated, countdownResponse(spec))
}

func (h *Handler) GetCountdown(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.session(w, r).Load()
	if !ok {
		h.error(w, http.StatusNotFound, "no countdown has been set", "no_countdown")
		return
	}
	h.json(w, http.StatusOK, countdownResponse(spec))
}

// ShareCountdown publishes the caller's current countdown. Concurrent
// submissions of the same countdown share one remote insert, which is not
// cancelled when the request that started it goes away.
func (h *Handler) ShareCountdown(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.session(w, r).Load()
	if !ok {
		h.error(w, http.StatusNotFound, "no countdown has been set", "no_countdown")
		return
	}

	key := spec.Name + "\x00" + spec.Target.Format(time.RFC3339Nano) + "\x00" + spec.EndMessage
	ctx := context.WithoutCancel(r.Context())
	ch := h.shares.DoChan(key, func() (any, error) {
		return h.sharer.Share(ctx, spec)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-r.Context().Done():
		shareResults.WithLabelValues("abandoned").Inc()
		return
	}

	v, err := res.Val, res.Err
	if err != nil {
		shareResults.WithLabelValues("error").Inc()
		if errors.Is(err, models.ErrValidation) {
			h.error(w, http.StatusBadRequest, validationMessage(err), "validation")
			return
		}
		l := log.WithContext(r.Context(), h.logger)
		l.Error().Err(err).Msg("share failed")
		h.error(w, http.StatusServiceUnavailable, "Failed to create share link. Please try again.", "remote_unavailable")
		return
	}
	shareResults.WithLabelValues("ok").Inc()

	shared := v.(*models.SharedCountdown)
	h.json(w, http.StatusCreated, ShareResponse{
		ShareID:   shared.ShareID,
		URL:       h.shareURL(shared.ShareID),
		ExpiresAt: shared.ExpiresAt,
	})
}

func (h *Handler) GetShared(w http.ResponseWriter, r *http.Request) {
	shareID := chi.URLParam(r, "shareId")

	switch st := share.Classify(h.sharer.Resolve(r.Context(), shareID)).(type) {
	case share.Ready:
		resolveResults.WithLabelValues("ready").Inc()
		h.json(w, http.StatusOK, st.Countdown)
	case share.NotFound:
		resolveResults.WithLabelValues("not_found").Inc()
		h.error(w, http.StatusNotFound, "This countdown doesn't exist.", "not_found")
	case share.Expired:
		resolveResults.WithLabelValues("expired").Inc()
		h.error(w, http.StatusGone, "This shared countdown has expired.", "expired")
	case share.Broken:
		resolveResults.WithLabelValues("invariant").Inc()
		l := log.WithContext(r.Context(), h.logger)
		l.Error().Err(st.Err).Str("share_id", shareID).Msg("share store invariant violated")
		h.error(w, http.StatusInternalServerError, "internal error", "invariant")
	case share.TransportError:
		resolveResults.WithLabelValues("unavailable").Inc()
		l := log.WithContext(r.Context(), h.logger)
		l.Error().Err(st.Err).Str("share_id", shareID).Msg("resolve failed")
		h.error(w, http.StatusServiceUnavailable, "Failed to load the shared countdown.", "remote_unavailable")
	}
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, http.StatusOK, "index.html")
}

// CountdownPage sends visitors without a saved countdown back to creation.
func (h *Handler) CountdownPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r).Load(); !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.serveFile(w, http.StatusOK, "countdown.html")
}

func (h *Handler) SharedPage(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, http.StatusOK, "shared.html")
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		h.error(w, http.StatusNotFound, "not found", "")
		return
	}
	h.serveFile(w, http.StatusNotFound, "404.html")
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) *session.Store {
	return session.New(session.NewCookieStorage(w, r, h.secret, h.config.Session.CookieMaxAge))
}

func (h *Handler) shareURL(shareID string) string {
	return strings.TrimRight(h.config.Server.BaseURL, "/") + "/shared/" + shareID
}

func (h *Handler) serveFile(w http.ResponseWriter, status int, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	contentType := "text/html; charset=utf-8"
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(content)
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message, code string) {
	h.json(w, status, ErrorResponse{Error: message, Code: code})
}

func countdownResponse(spec models.CountdownSpec) CountdownResponse {
	return CountdownResponse{
		Name:       spec.Name,
		TargetDate: spec.Target,
		EndMessage: spec.Message(),
	}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), models.ErrValidation.Error()+": ")
	if strings.Contains(msg, "past") {
		return "Great Scott! You can't set a countdown to the past! Are you trying to cause a temporal paradox?"
	}
	return msg
}
