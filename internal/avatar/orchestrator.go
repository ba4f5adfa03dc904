// Package avatar sequences the multi-step session lifecycle against the
// upstream streaming API and the local session store.
package avatar

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vairlabs/vair-api/internal/heygen"
	"github.com/vairlabs/vair-api/internal/observability"
	"github.com/vairlabs/vair-api/internal/session"
)

const maxSpeakTextLen = 1000

// Outcome is what a handler writes back: a status code and a JSON body.
// Upstream pass-through operations return the remote status and body verbatim.
type Outcome struct {
	Status int
	Body   any
}

// StepStatus reports whether a best-effort side step ran cleanly. Failures
// never escalate into the caller's error path; they are recorded here so the
// degraded path stays observable.
type StepStatus struct {
	OK     bool
	Reason string
}

// StartTrace captures the best-effort steps of a start sequence.
type StartTrace struct {
	Token  StepStatus
	Viewer StepStatus
}

type StartRequest struct {
	AvatarID   string `json:"avatar_id"`
	Quality    string `json:"quality"`
	OpenViewer *bool  `json:"open_viewer"`
}

type StartResponse struct {
	LocalSessionID string         `json:"local_session_id"`
	SessionID      string         `json:"session_id"`
	APIToken       string         `json:"api_token"`
	AccessToken    string         `json:"access_token"`
	URL            string         `json:"url"`
	ICEServers     []any          `json:"ice_servers"`
	Quality        string         `json:"quality"`
	AvatarID       string         `json:"avatar_id"`
	Status         session.Status `json:"status"`
}

type SpeakRequest struct {
	Text           string `json:"text"`
	LocalSessionID string `json:"local_session_id"`
}

type StopRequest struct {
	LocalSessionID string `json:"local_session_id"`
}

// SessionView is the public listing shape for one tracked session.
type SessionView struct {
	LocalSessionID string `json:"local_session_id"`
	SessionID      string `json:"session_id"`
	APIToken       string `json:"api_token"`
	AccessToken    string `json:"access_token"`
	URL            string `json:"url"`
	ICEServers     []any  `json:"ice_servers"`
	CreatedAt      string `json:"created_at"`
	LastAccessed   string `json:"last_accessed"`
}

type ListResponse struct {
	ActiveSessions []SessionView `json:"active_sessions"`
	Count          int           `json:"count"`
}

// Options carries the request defaults applied during a start sequence.
type Options struct {
	DefaultAvatarID string
	DefaultQuality  string
	ViewerBaseURL   string
}

// Orchestrator composes the session store and the upstream client into the
// operations exposed over HTTP.
type Orchestrator struct {
	sessions *session.Store
	upstream heygen.Caller
	viewer   Viewer
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options
}

func New(sessions *session.Store, upstream heygen.Caller, viewer Viewer, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Orchestrator {
	if opts.DefaultAvatarID == "" {
		opts.DefaultAvatarID = "Marianne_Chair_Sitting_public"
	}
	if opts.DefaultQuality == "" {
		opts.DefaultQuality = "medium"
	}
	if opts.ViewerBaseURL == "" {
		opts.ViewerBaseURL = "http://localhost:5173/viewer"
	}
	if viewer == nil {
		viewer = NopViewer{}
	}
	return &Orchestrator{
		sessions: sessions,
		upstream: upstream,
		viewer:   viewer,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// Start provisions a new upstream session, fetches an optional API token,
// activates the stream and stores the merged record. The returned trace
// reports the best-effort token and viewer steps.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (Outcome, StartTrace) {
	var trace StartTrace

	avatarID := strings.TrimSpace(req.AvatarID)
	if avatarID == "" {
		avatarID = o.opts.DefaultAvatarID
	}
	quality := strings.TrimSpace(req.Quality)
	if quality == "" {
		quality = o.opts.DefaultQuality
	}
	if avatarID == "" || quality == "" {
		return Outcome{http.StatusBadRequest, errorBody("Missing required parameters")}, trace
	}

	o.logger.Info("starting avatar session", "avatar_id", avatarID, "quality", quality)

	res := o.upstream.Post(ctx, heygen.OpNewSession, map[string]any{
		"avatar_id": avatarID,
		"quality":   quality,
		"version":   "v2",
	})
	if !res.OK() {
		o.logger.Error("failed to create upstream session", "status", res.Status)
		return Outcome{res.Status, res.Body}, trace
	}
	data, ok := res.Body["data"].(map[string]any)
	if !ok {
		o.logger.Error("upstream session response missing data field")
		return Outcome{http.StatusInternalServerError, errorBody("Invalid response from HeyGen API")}, trace
	}
	remoteID := asString(data["session_id"])
	if remoteID == "" {
		o.logger.Error("upstream session response missing session_id")
		return Outcome{http.StatusInternalServerError, errorBody("Invalid response from HeyGen API")}, trace
	}

	// The API token only serves additional backend calls; streaming works on
	// the access token alone, so this step never fails the request.
	var apiToken string
	apiToken, trace.Token = o.createToken(ctx)

	startRes := o.upstream.Post(ctx, heygen.OpStartSession, map[string]any{
		"session_id": remoteID,
	})
	if !startRes.OK() {
		o.logger.Error("failed to start upstream session", "status", startRes.Status)
		return Outcome{startRes.Status, map[string]any{
			"error":   "Failed to start avatar session",
			"details": startRes.Body,
		}}, trace
	}

	iceServers, _ := data["ice_servers"].([]any)
	if iceServers == nil {
		iceServers = []any{}
	}
	accessToken := asString(data["access_token"])
	streamURL := asString(data["url"])

	localID := o.sessions.Create(session.Session{
		RemoteSessionID: remoteID,
		AccessToken:     accessToken,
		APIToken:        apiToken,
		URL:             streamURL,
		ICEServers:      iceServers,
		AvatarID:        avatarID,
		Quality:         quality,
		Status:          session.StatusStarted,
	})
	o.metrics.SessionEvents.WithLabelValues("created").Inc()
	o.metrics.ActiveSessions.Set(float64(o.sessions.Count()))
	o.logger.Info("session stored", "local_session_id", localID, "session_id", remoteID)

	// The stored session stays reachable via list/stop even when this check
	// fails; the caller just never learns its id. Mirrors the source service.
	if accessToken == "" {
		o.logger.Error("no access_token received from upstream", "local_session_id", localID)
		return Outcome{http.StatusInternalServerError, errorBody("No access_token received from HeyGen API")}, trace
	}

	trace.Viewer = o.openViewer(req.OpenViewer, localID)
	evicted := o.sessions.SweepExpired()
	if evicted > 0 {
		o.logger.Info("swept expired sessions", "count", evicted)
	}

	return Outcome{http.StatusOK, StartResponse{
		LocalSessionID: localID,
		SessionID:      remoteID,
		APIToken:       apiToken,
		AccessToken:    accessToken,
		URL:            streamURL,
		ICEServers:     iceServers,
		Quality:        quality,
		AvatarID:       avatarID,
		Status:         session.StatusStarted,
	}}, trace
}

func (o *Orchestrator) createToken(ctx context.Context) (string, StepStatus) {
	res := o.upstream.Post(ctx, heygen.OpCreateToken, nil)
	if !res.OK() {
		o.logger.Warn("could not create API token", "status", res.Status)
		return "", StepStatus{Reason: "upstream token call failed"}
	}
	data, ok := res.Body["data"].(map[string]any)
	if !ok {
		o.logger.Warn("token response missing data field")
		return "", StepStatus{Reason: "token response missing data"}
	}
	token := asString(data["token"])
	if token == "" {
		o.logger.Warn("token response missing token value")
		return "", StepStatus{Reason: "token response missing token"}
	}
	return token, StepStatus{OK: true}
}

func (o *Orchestrator) openViewer(requested *bool, localID string) StepStatus {
	if requested != nil && !*requested {
		return StepStatus{OK: true, Reason: "not requested"}
	}
	url := o.opts.ViewerBaseURL + "?local_session_id=" + localID
	if err := o.viewer.Open(url); err != nil {
		o.logger.Warn("failed to open viewer", "url", url, "error", err)
		return StepStatus{Reason: err.Error()}
	}
	o.logger.Info("viewer opened", "url", url)
	return StepStatus{OK: true}
}

// Speak forwards a repeat task to the session's upstream stream. The upstream
// status and body pass through verbatim on both success and failure.
func (o *Orchestrator) Speak(ctx context.Context, req SpeakRequest) Outcome {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Outcome{http.StatusBadRequest, errorBody("Input text is required")}
	}
	if utf8.RuneCountInString(text) > maxSpeakTextLen {
		return Outcome{http.StatusBadRequest, errorBody("Input text exceeds maximum length of 1000 characters")}
	}
	if strings.TrimSpace(req.LocalSessionID) == "" {
		return Outcome{http.StatusBadRequest, errorBody("Session ID is required")}
	}

	sess, err := o.sessions.Get(req.LocalSessionID)
	if err != nil {
		return Outcome{http.StatusNotFound, errorBody("Session not found or has expired")}
	}

	res := o.upstream.Post(ctx, heygen.OpSendTask, map[string]any{
		"session_id": sess.RemoteSessionID,
		"text":       text,
		"task_type":  "repeat",
	})
	if res.OK() {
		o.logger.Info("avatar speaking", "local_session_id", req.LocalSessionID, "chars", utf8.RuneCountInString(text))
	}
	return Outcome{res.Status, res.Body}
}

// Stop ends the upstream session and always invalidates the local handle,
// even when the remote call fails.
func (o *Orchestrator) Stop(ctx context.Context, req StopRequest) Outcome {
	if strings.TrimSpace(req.LocalSessionID) == "" {
		return Outcome{http.StatusBadRequest, errorBody("Session ID is required")}
	}

	sess, err := o.sessions.Get(req.LocalSessionID)
	if err != nil {
		return Outcome{http.StatusNotFound, errorBody("Session not found or has expired")}
	}

	res := o.upstream.Post(ctx, heygen.OpStopSession, map[string]any{
		"session_id": sess.RemoteSessionID,
	})

	o.sessions.Remove(req.LocalSessionID)
	o.metrics.SessionEvents.WithLabelValues("stopped").Inc()
	o.metrics.ActiveSessions.Set(float64(o.sessions.Count()))
	o.logger.Info("session stopped", "local_session_id", req.LocalSessionID, "upstream_status", res.Status)

	return Outcome{res.Status, res.Body}
}

// List sweeps expired entries and returns the live sessions in their public
// shape with RFC 3339 timestamps.
func (o *Orchestrator) List() Outcome {
	evicted := o.sessions.SweepExpired()
	if evicted > 0 {
		o.logger.Info("swept expired sessions", "count", evicted)
	}

	all := o.sessions.ListAll()
	views := make([]SessionView, 0, len(all))
	for _, sess := range all {
		views = append(views, SessionView{
			LocalSessionID: sess.LocalID,
			SessionID:      sess.RemoteSessionID,
			APIToken:       sess.APIToken,
			AccessToken:    sess.AccessToken,
			URL:            sess.URL,
			ICEServers:     sess.ICEServers,
			CreatedAt:      sess.CreatedAt.Format(time.RFC3339Nano),
			LastAccessed:   sess.LastAccessedAt.Format(time.RFC3339Nano),
		})
	}
	return Outcome{http.StatusOK, ListResponse{ActiveSessions: views, Count: len(views)}}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
