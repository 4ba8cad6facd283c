package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/blacktop/arbiter/internal/announce"
	"github.com/blacktop/arbiter/internal/config"
	"github.com/blacktop/arbiter/internal/store"
	"github.com/blacktop/arbiter/internal/videoproc"
)

type fakeAnnouncer struct {
	gotAnn     announce.Announcement
	gotTargets []string
	results    []announce.TargetResult
	err        error
}

func (f *fakeAnnouncer) Announce(_ context.Context, ann announce.Announcement, targets []string) ([]announce.TargetResult, error) {
	f.gotAnn = ann
	f.gotTargets = targets
	return f.results, f.err
}

func testServer(t *testing.T, ann Announcer) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "arbiter.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.Server.BaseURL = "http://localhost:7777"
	cfg.Twitter.OAuth2ClientID = "client-id"
	cfg.Twitter.OAuth2Secret = "client-secret"
	cfg.Threads.AppID = "app-id"
	cfg.Threads.AppSecret = "app-secret"

	dir := t.TempDir()
	proc := &videoproc.Processor{
		Dir:         filepath.Join(dir, "processed"),
		LogDir:      filepath.Join(dir, "logs"),
		DownloadDir: filepath.Join(dir, "downloads"),
		Script:      filepath.Join(dir, "process_video.sh"),
	}
	if err := os.WriteFile(proc.Script, []byte("#!/bin/bash\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	return New(cfg, st, ann, proc), st
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t, &fakeAnnouncer{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnnounceWinners(t *testing.T) {
	ann := &fakeAnnouncer{results: []announce.TargetResult{
		{Platform: "twitter", URL: "https://x.com/organizer/status/1"},
		{Platform: "threads", URL: "https://www.threads.net/t/abc"},
	}}
	srv, _ := testServer(t, ann)

	body := `{
		"postIntro": "Results are in!",
		"firstIntro": "The winner",
		"repo": "challenge-12",
		"submissions": [{"position": 0, "githubUser": "alice", "comment": "Nice.", "videoId": "v1"}],
		"targets": ["twitter", "threads"]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/announce_winners", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if len(ann.gotTargets) != 2 || ann.gotTargets[0] != "twitter" {
		t.Errorf("targets = %v", ann.gotTargets)
	}
	if ann.gotAnn.Repo != "challenge-12" || len(ann.gotAnn.Submissions) != 1 {
		t.Errorf("announcement = %+v", ann.gotAnn)
	}
	if ann.gotAnn.Submissions[0].GitHubUser != "alice" {
		t.Errorf("submission = %+v", ann.gotAnn.Submissions[0])
	}

	var resp struct {
		Results []struct {
			Target string `json:"target"`
			URL    string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 || resp.Results[0].URL != "https://x.com/organizer/status/1" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestAnnounceWinnersPartialFailure(t *testing.T) {
	ann := &fakeAnnouncer{results: []announce.TargetResult{
		{Platform: "twitter", Err: errors.New("rate limited")},
		{Platform: "github", URL: "https://github.com/organizer/challenge-12/"},
	}}
	srv, _ := testServer(t, ann)

	req := httptest.NewRequest(http.MethodPost, "/api/announce_winners", strings.NewReader(`{"targets":["twitter","github"]}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rate limited") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestAnnounceWinnersRejectsBadTarget(t *testing.T) {
	ann := &fakeAnnouncer{err: announce.ValidationError{Platform: "bluesky", Reason: "unknown target"}}
	srv, _ := testServer(t, ann)

	req := httptest.NewRequest(http.MethodPost, "/api/announce_winners", strings.NewReader(`{"targets":["bluesky"]}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProcessVideoFromURL(t *testing.T) {
	srv, _ := testServer(t, &fakeAnnouncer{})

	form := url.Values{"url": {"https://example.com/demo.webm"}}
	req := httptest.NewRequest(http.MethodPost, "/api/process_video", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp struct {
		VideoID string `json:"videoId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.VideoID == "" {
		t.Fatal("empty video ID")
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/api/process_video/status?id="+resp.VideoID, nil)
	statusRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(statusRec, statusReq)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", statusRec.Code)
	}
}

func TestProcessVideoRequiresInput(t *testing.T) {
	srv, _ := testServer(t, &fakeAnnouncer{})
	req := httptest.NewRequest(http.MethodPost, "/api/process_video", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTwitterAuthRedirect(t *testing.T) {
	srv, _ := testServer(t, &fakeAnnouncer{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/twitter/auth", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	q := loc.Query()
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("challenge method = %q", q.Get("code_challenge_method"))
	}
	if q.Get("client_id") != "client-id" || q.Get("code_challenge") == "" || q.Get("state") == "" {
		t.Errorf("auth URL query = %v", q)
	}
	if got := q.Get("scope"); !strings.Contains(got, "offline.access") {
		t.Errorf("scope = %q", got)
	}

	var names []string
	for _, c := range rec.Result().Cookies() {
		names = append(names, c.Name)
		if !c.HttpOnly {
			t.Errorf("cookie %s not HttpOnly", c.Name)
		}
	}
	for _, want := range []string{verifierCookie, stateCookie} {
		found := false
		for _, name := range names {
			if name == want {
				found = true
			}
		}
		if !found {
			t.Errorf("cookie %s not set", want)
		}
	}
}

func TestTwitterCallbackStoresTokens(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("code_verifier") == "" {
			t.Error("exchange missing code verifier")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tw-access","refresh_token":"tw-refresh","token_type":"bearer"}`))
	}))
	defer tokenSrv.Close()

	srv, st := testServer(t, &fakeAnnouncer{})
	srv.twitterEndpoint = oauth2.Endpoint{AuthURL: tokenSrv.URL + "/auth", TokenURL: tokenSrv.URL + "/token"}

	req := httptest.NewRequest(http.MethodGet, "/api/twitter/callback?code=abc&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: verifierCookie, Value: oauth2.GenerateVerifier()})
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "xyz"})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	ctx := context.Background()
	if got, _ := st.Get(ctx, store.KeyTwitterAccessToken); got != "tw-access" {
		t.Errorf("access token = %q", got)
	}
	if got, _ := st.Get(ctx, store.KeyTwitterRefreshToken); got != "tw-refresh" {
		t.Errorf("refresh token = %q", got)
	}
}

func TestTwitterCallbackRejectsStateMismatch(t *testing.T) {
	srv, _ := testServer(t, &fakeAnnouncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/twitter/callback?code=abc&state=evil", nil)
	req.AddCookie(&http.Cookie{Name: verifierCookie, Value: "v"})
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "good"})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestThreadsCallbackStoresTokenAndUserID(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("code") != "th-code" {
			t.Errorf("code = %q", r.Form.Get("code"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"th-access","token_type":"bearer","user_id":17841400000000000}`))
	}))
	defer tokenSrv.Close()

	srv, st := testServer(t, &fakeAnnouncer{})
	srv.threadsEndpoint = oauth2.Endpoint{
		AuthURL:   tokenSrv.URL + "/auth",
		TokenURL:  tokenSrv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}

	req := httptest.NewRequest(http.MethodGet, "/api/threads/callback?code=th-code", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	ctx := context.Background()
	if got, _ := st.Get(ctx, store.KeyThreadsAccessToken); got != "th-access" {
		t.Errorf("access token = %q", got)
	}
	if got, _ := st.Get(ctx, store.KeyThreadsUserID); got != "17841400000000000" {
		t.Errorf("user ID = %q", got)
	}
}

func TestThreadsCallbackRequiresCode(t *testing.T) {
	srv, _ := testServer(t, &fakeAnnouncer{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads/callback", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
