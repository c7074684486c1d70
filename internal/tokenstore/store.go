// Package tokenstore implements C1: persistence and rotation of per-login
// Questrade OAuth refresh tokens. It owns token-store.json exclusively —
// no other package writes that file.
package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// fileLogin is the on-disk shape of a single login entry.
type fileLogin struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Email        string    `json:"email,omitempty"`
	RefreshToken string    `json:"refreshToken"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// fileDocument is the current on-disk shape: {logins: [...]}.
type fileDocument struct {
	Logins []fileLogin `json:"logins"`
}

// legacyDocument is a single-login shape some older deployments still carry.
// It is accepted on read and upgraded to fileDocument on the next write.
type legacyDocument struct {
	ID           string `json:"id"`
	RefreshToken string `json:"refreshToken"`
	ApiServer    string `json:"apiServer,omitempty"`
}

// Store is the C1 token store. It is safe for concurrent use: reads take a
// read lock, refresh-and-persist takes the write lock for the whole
// validate-then-rewrite sequence so a concurrent reader never observes a
// torn write (spec §3 invariant: "a successful token refresh atomically
// replaces it and persists before any dependent request proceeds").
type Store struct {
	path       string
	httpClient *http.Client
	loginHost  string // e.g. "https://login.questrade.com"
	clock      domain.Clock
	log        zerolog.Logger

	mu      sync.RWMutex
	logins  map[string]domain.Login
	servers map[string]string // loginID -> cached apiServer host
}

// Config configures a new Store.
type Config struct {
	Path       string
	LoginHost  string
	HTTPClient *http.Client
	Clock      domain.Clock
	Log        zerolog.Logger
}

// New loads (or creates) the token store at cfg.Path.
func New(cfg Config) (*Store, error) {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}
	if cfg.LoginHost == "" {
		cfg.LoginHost = "https://login.questrade.com"
	}

	s := &Store{
		path:       cfg.Path,
		httpClient: cfg.HTTPClient,
		loginHost:  cfg.LoginHost,
		clock:      cfg.Clock,
		log:        cfg.Log.With().Str("component", "tokenstore").Logger(),
		logins:     map[string]domain.Login{},
		servers:    map[string]string{},
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token store: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err == nil && len(doc.Logins) > 0 {
		for _, l := range doc.Logins {
			s.logins[l.ID] = domain.Login{
				ID: l.ID, Label: l.Label, Email: l.Email,
				RefreshToken: l.RefreshToken, UpdatedAt: l.UpdatedAt,
			}
		}
		return nil
	}

	// Fall back to the legacy single-login shape.
	var legacy legacyDocument
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("parse token store: %w", err)
	}
	if legacy.ID == "" {
		legacy.ID = "primary"
	}
	s.logins[legacy.ID] = domain.Login{ID: legacy.ID, RefreshToken: legacy.RefreshToken}
	return nil
}

// ListLogins implements domain.TokenStore.
func (s *Store) ListLogins() ([]domain.Login, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Login, 0, len(s.logins))
	for _, l := range s.logins {
		out = append(out, l)
	}
	return out, nil
}

// GetLogin implements domain.TokenStore.
func (s *Store) GetLogin(id string) (*domain.Login, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.logins[id]
	if !ok {
		return nil, fmt.Errorf("unknown login %q", id)
	}
	return &l, nil
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	ApiServer    string `json:"api_server"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshAccessToken implements domain.TokenStore. It is not cancellable by
// the caller's context: the round trip runs on a context detached from ctx's
// cancellation, so once started it finishes and persists (spec §5).
func (s *Store) RefreshAccessToken(ctx context.Context, login domain.Login) (domain.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.logins[login.ID]
	if !ok {
		return domain.AccessToken{}, fmt.Errorf("unknown login %q", login.ID)
	}

	endpoint := s.loginHost + "/oauth2/token?" + url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {current.RefreshToken},
	}.Encode()

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.AccessToken{}, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.AccessToken{}, &domain.TokenRefreshFailed{LoginID: login.ID, Cause: err}
	}
	defer resp.Body.Close()

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || resp.StatusCode != http.StatusOK {
		return domain.AccessToken{}, &domain.TokenRefreshFailed{
			LoginID: login.ID, HTTPStatus: resp.StatusCode,
		}
	}
	if body.AccessToken == "" || body.ApiServer == "" {
		return domain.AccessToken{}, &domain.TokenRefreshFailed{
			LoginID: login.ID, HTTPStatus: resp.StatusCode, Detail: "response missing access_token/api_server",
		}
	}

	now := s.clock.Now()
	newRefresh := body.RefreshToken
	if newRefresh == "" {
		// Some broker responses omit refresh_token when it is unchanged.
		newRefresh = current.RefreshToken
	}

	current.RefreshToken = newRefresh
	current.UpdatedAt = now
	s.logins[login.ID] = current
	s.servers[login.ID] = body.ApiServer

	if err := s.persistLocked(); err != nil {
		return domain.AccessToken{}, fmt.Errorf("persist refreshed token: %w", err)
	}

	return domain.AccessToken{
		AccessToken: body.AccessToken,
		ApiServer:   body.ApiServer,
		Expiry:      now.Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}

// persistLocked rewrites the whole file atomically: write to a temp file in
// the same directory, fsync, then rename over the real path. Callers must
// hold s.mu for write.
func (s *Store) persistLocked() error {
	doc := fileDocument{Logins: make([]fileLogin, 0, len(s.logins))}
	for _, l := range s.logins {
		doc.Logins = append(doc.Logins, fileLogin{
			ID: l.ID, Label: l.Label, Email: l.Email,
			RefreshToken: l.RefreshToken, UpdatedAt: l.UpdatedAt,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".token-store-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

// ApiServer returns the cached api_server host for a login, if a refresh
// has happened since process start.
func (s *Store) ApiServer(loginID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	host, ok := s.servers[loginID]
	return host, ok
}
