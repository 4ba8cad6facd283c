// Package server exposes the announcement pipeline over HTTP for the
// judging dashboard: kicking off winner announcements, transcoding demo
// videos, and completing the OAuth flows that seed the credential store.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/blacktop/arbiter/internal/announce"
	"github.com/blacktop/arbiter/internal/config"
	"github.com/blacktop/arbiter/internal/logutil"
	"github.com/blacktop/arbiter/internal/store"
	"github.com/blacktop/arbiter/internal/videoproc"
)

const (
	verifierCookie  = "code_verifier"
	stateCookie     = "oauth_state"
	cookieMaxAge    = 10 * 60
	twitterAuthURL  = "https://twitter.com/i/oauth2/authorize"
	twitterTokenURL = "https://api.twitter.com/2/oauth2/token"
	threadsAuthURL  = "https://threads.net/oauth/authorize"
	threadsTokenURL = "https://graph.threads.net/oauth/access_token"
)

// Announcer runs a winner announcement against a set of targets.
type Announcer interface {
	Announce(ctx context.Context, ann announce.Announcement, targets []string) ([]announce.TargetResult, error)
}

// Server is the dashboard HTTP API.
type Server struct {
	cfg   config.Config
	store *store.Store
	ann   Announcer
	proc  *videoproc.Processor

	// endpoint overrides, for tests
	twitterEndpoint oauth2.Endpoint
	threadsEndpoint oauth2.Endpoint
}

func New(cfg config.Config, st *store.Store, ann Announcer, proc *videoproc.Processor) *Server {
	return &Server{
		cfg:             cfg,
		store:           st,
		ann:             ann,
		proc:            proc,
		twitterEndpoint: oauth2.Endpoint{AuthURL: twitterAuthURL, TokenURL: twitterTokenURL},
		threadsEndpoint: oauth2.Endpoint{AuthURL: threadsAuthURL, TokenURL: threadsTokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /api/announce_winners", s.handleAnnounceWinners)
	mux.HandleFunc("POST /api/process_video", s.handleProcessVideo)
	mux.HandleFunc("GET /api/process_video/status", s.handleProcessVideoStatus)
	mux.HandleFunc("GET /api/twitter/auth", s.handleTwitterAuth)
	mux.HandleFunc("GET /api/twitter/callback", s.handleTwitterCallback)
	mux.HandleFunc("GET /api/threads/auth", s.handleThreadsAuth)
	mux.HandleFunc("GET /api/threads/callback", s.handleThreadsCallback)
	return mux
}

// ListenAndServe blocks until the context is cancelled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logutil.Infof("listening on %s", s.cfg.Server.ListenAddr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type announceRequest struct {
	announce.Announcement
	Targets []string `json:"targets"`
}

type targetResponse struct {
	Target string `json:"target"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleAnnounceWinners(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	results, err := s.ann.Announce(r.Context(), req.Announcement, req.Targets)
	if err != nil {
		var invalid announce.ValidationError
		status := http.StatusInternalServerError
		if errors.As(err, &invalid) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	out := make([]targetResponse, 0, len(results))
	failed := false
	for _, res := range results {
		tr := targetResponse{Target: res.Platform, URL: res.URL}
		if res.Err != nil {
			tr.Error = res.Err.Error()
			failed = true
		}
		out = append(out, tr)
	}
	status := http.StatusOK
	if failed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{"results": out})
}

// handleProcessVideo accepts either a multipart "file" upload or a "url"
// form value and starts a transcoding job. The job ID doubles as the video
// ID the rest of the pipeline refers to.
func (s *Server) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	var (
		job videoproc.Job
		err error
	)

	// The job outlives the request.
	ctx := context.WithoutCancel(r.Context())

	switch {
	case strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"):
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			if rawURL := r.FormValue("url"); rawURL != "" {
				job, err = s.proc.StartURL(ctx, rawURL)
				break
			}
			writeError(w, http.StatusBadRequest, "file or url is required")
			return
		}
		defer file.Close()
		job, err = s.proc.StartFile(ctx, header.Filename, file)
	default:
		rawURL := r.FormValue("url")
		if rawURL == "" {
			writeError(w, http.StatusBadRequest, "file or url is required")
			return
		}
		job, err = s.proc.StartURL(ctx, rawURL)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"videoId": job.ID})
}

func (s *Server) handleProcessVideoStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "video ID is required")
		return
	}
	state, err := s.proc.Status(id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown job %q", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": state.String(),
		"ready": s.proc.Ready(id),
	})
}

func (s *Server) twitterOAuth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.Twitter.OAuth2ClientID,
		ClientSecret: s.cfg.Twitter.OAuth2Secret,
		RedirectURL:  s.cfg.Server.BaseURL + "/api/twitter/callback",
		Scopes:       []string{"tweet.read", "tweet.write", "offline.access"},
		Endpoint:     s.twitterEndpoint,
	}
}

// handleTwitterAuth starts the PKCE flow: the verifier rides in a
// short-lived HttpOnly cookie until the callback.
func (s *Server) handleTwitterAuth(w http.ResponseWriter, r *http.Request) {
	verifier := oauth2.GenerateVerifier()
	state := randomState()

	setFlowCookie(w, verifierCookie, verifier)
	setFlowCookie(w, stateCookie, state)

	authURL := s.twitterOAuth().AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

func (s *Server) handleTwitterCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	verifier := cookieValue(r, verifierCookie)
	wantState := cookieValue(r, stateCookie)
	if code == "" || state == "" || verifier == "" || state != wantState {
		writeError(w, http.StatusBadRequest, "invalid callback request")
		return
	}

	token, err := s.twitterOAuth().Exchange(r.Context(), code, oauth2.VerifierOption(verifier))
	if err != nil {
		logutil.Errorf("twitter token exchange: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to get access token")
		return
	}

	if err := s.store.Set(r.Context(), store.KeyTwitterAccessToken, token.AccessToken); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if token.RefreshToken != "" {
		if err := s.store.Set(r.Context(), store.KeyTwitterRefreshToken, token.RefreshToken); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	clearFlowCookie(w, verifierCookie)
	clearFlowCookie(w, stateCookie)
	logutil.Infof("stored twitter credentials")
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

func (s *Server) threadsOAuth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.Threads.AppID,
		ClientSecret: s.cfg.Threads.AppSecret,
		RedirectURL:  s.cfg.Server.BaseURL + "/api/threads/callback",
		Scopes:       []string{"threads_basic", "threads_content_publish"},
		Endpoint:     s.threadsEndpoint,
	}
}

func (s *Server) handleThreadsAuth(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.threadsOAuth().AuthCodeURL(""), http.StatusTemporaryRedirect)
}

// handleThreadsCallback exchanges the code and keeps both the access token
// and the numeric user ID, which every graph call needs.
func (s *Server) handleThreadsCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "authorization code missing")
		return
	}

	token, err := s.threadsOAuth().Exchange(r.Context(), code)
	if err != nil {
		logutil.Errorf("threads token exchange: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to authenticate user")
		return
	}

	userID := extraString(token, "user_id")
	if userID == "" {
		writeError(w, http.StatusInternalServerError, "token response missing user_id")
		return
	}

	if err := s.store.Set(r.Context(), store.KeyThreadsAccessToken, token.AccessToken); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.Set(r.Context(), store.KeyThreadsUserID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logutil.Infof("stored threads credentials for user %s", userID)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// extraString renders a non-standard token field, which the graph returns
// as a JSON number.
func extraString(token *oauth2.Token, key string) string {
	switch v := token.Extra(key).(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func randomState() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Path: "/", MaxAge: -1, HttpOnly: true})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logutil.Errorf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
