// Package calendar reads upcoming events from the user's Google Calendar.
package calendar

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/verte-zerg/schooldash/internal/model"
)

const (
	// Provider is the key under which the Google token is stored.
	Provider = "google"

	eventsScope    = "https://www.googleapis.com/auth/calendar.events.readonly"
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	revokeURL      = "https://oauth2.googleapis.com/revoke"
	callbackPath   = "/callback"
	untitled       = "(no title)"
)

var (
	// ErrNotConnected means no token is stored yet.
	ErrNotConnected = errors.New("calendar not connected")
	// ErrAuthDenied means Google refused the stored or offered credentials.
	ErrAuthDenied = errors.New("calendar authorization denied")
	// ErrNotConfigured means the OAuth client id or secret is missing.
	ErrNotConfigured = errors.New("calendar client is not configured")
)

// TokenStore persists raw token payloads per provider.
type TokenStore interface {
	LoadToken(ctx context.Context, provider string) ([]byte, bool, error)
	SaveToken(ctx context.Context, provider string, payload []byte) error
	DeleteToken(ctx context.Context, provider string) error
}

// Google talks to the Calendar REST API with an installed-app OAuth token.
type Google struct {
	ClientID     string
	ClientSecret string
	Tokens       TokenStore
	Log          *zap.Logger

	// Overridable endpoints; zero values use Google's.
	Endpoint  oauth2.Endpoint
	BaseURL   string
	RevokeURL string
	// HTTPClient is used for token exchange, refresh and API calls.
	HTTPClient *http.Client
	Now        func() time.Time
}

// Configured reports whether an OAuth client is set up.
func (g *Google) Configured() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

func (g *Google) oauth2Config(redirectURL string) *oauth2.Config {
	endpoint := g.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{eventsScope},
		Endpoint:     endpoint,
	}
}

func (g *Google) logger() *zap.Logger {
	if g.Log == nil {
		return zap.NewNop()
	}
	return g.Log
}

func (g *Google) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Google) withClient(ctx context.Context) context.Context {
	if g.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
}

// Login runs the loopback authorization flow. open is handed the consent URL
// and is expected to show it to the user; Login then waits for the redirect.
func (g *Google) Login(ctx context.Context, open func(authURL string) error) error {
	if !g.Configured() {
		return ErrNotConfigured
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start callback listener: %w", err)
	}
	redirectURL := "http://" + listener.Addr().String() + callbackPath
	cfg := g.oauth2Config(redirectURL)

	state, err := generateState()
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	type callback struct {
		code string
		err  error
	}
	results := make(chan callback, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callback
		switch {
		case q.Get("state") != state:
			res.err = fmt.Errorf("%w: state mismatch", ErrAuthDenied)
		case q.Get("error") != "":
			res.err = fmt.Errorf("%w: %s", ErrAuthDenied, q.Get("error"))
		case q.Get("code") == "":
			res.err = fmt.Errorf("%w: missing code", ErrAuthDenied)
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, "Authorization failed. You can close this window.", http.StatusBadRequest)
		} else {
			_, _ = io.WriteString(w, "schooldash is connected. You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if serr := server.Serve(listener); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			g.logger().Warn("calendar callback server stopped", zap.Error(serr))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if serr := server.Shutdown(shutdownCtx); serr != nil {
			// Best-effort shutdown.
			_ = serr
		}
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"), oauth2.S256ChallengeOption(verifier))
	if err := open(authURL); err != nil {
		return err
	}

	var res callback
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return res.err
	}

	token, err := cfg.Exchange(g.withClient(ctx), res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("%w: token exchange failed: %v", ErrAuthDenied, err)
	}
	if err := g.saveToken(ctx, token); err != nil {
		return err
	}
	g.logger().Info("calendar connected")
	return nil
}

// Connected reports whether a token is stored.
func (g *Google) Connected(ctx context.Context) (bool, error) {
	if g.Tokens == nil {
		return false, nil
	}
	_, ok, err := g.Tokens.LoadToken(ctx, Provider)
	return ok, err
}

// Logout revokes the stored token at Google and forgets it locally.
func (g *Google) Logout(ctx context.Context) error {
	token, err := g.loadToken(ctx)
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	if err != nil {
		return err
	}
	if rerr := g.revoke(ctx, token); rerr != nil {
		g.logger().Warn("calendar token revoke failed", zap.Error(rerr))
	}
	if err := g.Tokens.DeleteToken(ctx, Provider); err != nil {
		return fmt.Errorf("failed to delete calendar token: %w", err)
	}
	return nil
}

func (g *Google) revoke(ctx context.Context, token *oauth2.Token) error {
	value := token.RefreshToken
	if value == "" {
		value = token.AccessToken
	}
	target := g.RevokeURL
	if target == "" {
		target = revokeURL
	}
	form := url.Values{"token": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.plainClient().Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected revoke status: %s", resp.Status)
	}
	return nil
}

func (g *Google) plainClient() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type eventItem struct {
	Summary string    `json:"summary"`
	Status  string    `json:"status"`
	Start   eventTime `json:"start"`
}

type eventList struct {
	Items []eventItem `json:"items"`
}

// FetchUpcoming returns up to limit events starting from now, earliest first.
func (g *Google) FetchUpcoming(ctx context.Context, limit int) ([]model.CalendarEvent, error) {
	token, err := g.loadToken(ctx)
	if err != nil {
		return nil, err
	}
	ctx = g.withClient(ctx)
	source := &persistingSource{
		base: g.oauth2Config("").TokenSource(ctx, token),
		last: token.AccessToken,
		save: func(tok *oauth2.Token) {
			if serr := g.saveToken(ctx, tok); serr != nil {
				g.logger().Warn("failed to persist refreshed calendar token", zap.Error(serr))
			}
		},
	}
	client := oauth2.NewClient(ctx, source)

	now := g.now()
	base := strings.TrimRight(g.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	query := url.Values{
		"timeMin":      {now.UTC().Format(time.RFC3339)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
		"showDeleted":  {"false"},
		"maxResults":   {strconv.Itoa(limit)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/calendars/primary/events?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: token refresh failed: %v", ErrAuthDenied, err)
		}
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer closeBody(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrAuthDenied, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected calendar status: %s", resp.Status)
	}

	var list eventList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return parseEvents(list.Items, now.Location())
}

func parseEvents(items []eventItem, loc *time.Location) ([]model.CalendarEvent, error) {
	out := make([]model.CalendarEvent, 0, len(items))
	for _, item := range items {
		if item.Status == "cancelled" {
			continue
		}
		ev := model.CalendarEvent{Title: strings.TrimSpace(item.Summary)}
		if ev.Title == "" {
			ev.Title = untitled
		}
		switch {
		case item.Start.DateTime != "":
			start, err := time.Parse(time.RFC3339, item.Start.DateTime)
			if err != nil {
				return nil, fmt.Errorf("failed to parse event start %q: %w", item.Start.DateTime, err)
			}
			ev.Start = start.In(loc)
		case item.Start.Date != "":
			start, err := time.ParseInLocation("2006-01-02", item.Start.Date, loc)
			if err != nil {
				return nil, fmt.Errorf("failed to parse event date %q: %w", item.Start.Date, err)
			}
			ev.Start = start
			ev.AllDay = true
		default:
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (g *Google) loadToken(ctx context.Context) (*oauth2.Token, error) {
	if g.Tokens == nil {
		return nil, ErrNotConnected
	}
	payload, ok, err := g.Tokens.LoadToken(ctx, Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar token: %w", err)
	}
	if !ok {
		return nil, ErrNotConnected
	}
	var token oauth2.Token
	if err := json.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("failed to decode calendar token: %w", err)
	}
	return &token, nil
}

func (g *Google) saveToken(ctx context.Context, token *oauth2.Token) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode calendar token: %w", err)
	}
	if err := g.Tokens.SaveToken(ctx, Provider, payload); err != nil {
		return fmt.Errorf("failed to save calendar token: %w", err)
	}
	return nil
}

// persistingSource saves a token whenever the underlying source hands out a new one.
type persistingSource struct {
	base oauth2.TokenSource
	save func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	changed := tok.AccessToken != p.last
	p.last = tok.AccessToken
	p.mu.Unlock()
	if changed {
		p.save(tok)
	}
	return tok, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func closeBody(resp *http.Response) {
	if cerr := resp.Body.Close(); cerr != nil {
		// Best-effort close.
		_ = cerr
	}
}
