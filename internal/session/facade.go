// Package session composes the token store, request pipeline, inactivity
// monitor, and audit trail into the login/logout/permission surface the
// embedding application consumes.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go-ledger-client/internal/audit"
	"go-ledger-client/internal/kvstore"
	"go-ledger-client/internal/model"
	"go-ledger-client/internal/monitor"
	"go-ledger-client/internal/pipeline"
	"go-ledger-client/internal/tokenstore"
	"go-ledger-client/pkg/apierror"
)

const (
	loginPath          = "/api/auth/login"
	logoutPath         = "/api/auth/logout"
	mePath             = "/api/auth/me"
	changePasswordPath = "/api/auth/change-password"

	DefaultSessionTimeout = 30 * time.Minute
	DefaultWarningLead    = 5 * time.Minute
)

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	KV         kvstore.Store
	Policy     pipeline.RetryPolicy
	UserAgent  string

	SessionTimeout time.Duration
	WarningLead    time.Duration

	Permissions PermissionTable
	Logger      *slog.Logger

	// OnForcedLogout is invoked once per forced logout (refresh failure or
	// inactivity timeout) so the embedding UI can redirect to its login view.
	OnForcedLogout func(reason string)

	// OnWarning is invoked when the inactivity warning threshold is crossed.
	OnWarning func()

	// Notify receives exactly one message per surfaced request error.
	Notify func(message string)
}

type Facade struct {
	tokens  *tokenstore.Store
	pipe    *pipeline.Pipeline
	monitor *monitor.Monitor
	audit   *audit.Log
	perms   PermissionTable
	log     *slog.Logger

	onForcedLogout func(reason string)
}

func New(cfg Config) *Facade {
	if cfg.KV == nil {
		cfg.KV = kvstore.NewMemory()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if cfg.WarningLead <= 0 {
		cfg.WarningLead = DefaultWarningLead
	}
	if cfg.Permissions == nil {
		cfg.Permissions = DefaultPermissions()
	}

	f := &Facade{
		perms:          cfg.Permissions,
		log:            cfg.Logger,
		onForcedLogout: cfg.OnForcedLogout,
	}

	f.tokens = tokenstore.New(cfg.KV, cfg.Logger)
	f.audit = audit.New(cfg.KV, f.identity, cfg.UserAgent, cfg.Logger)

	f.pipe = pipeline.New(pipeline.Config{
		BaseURL:    cfg.BaseURL,
		HTTPClient: cfg.HTTPClient,
		Tokens:     f.tokens,
		Policy:     cfg.Policy,
		UserAgent:  cfg.UserAgent,
		Logger:     cfg.Logger,
		OnForcedLogout: func(err error) {
			f.forceLogout(model.EventTokenRefreshFailed, "token refresh failed")
		},
		OnSurfacedError: func(req pipeline.Request, apiErr *apierror.APIError) {
			if apiErr.Type == apierror.TypeAuthorization {
				f.audit.Record(model.EventPermissionDenied, req.Method+" "+req.Path)
			}
			if cfg.Notify != nil {
				cfg.Notify(apiErr.Message)
			}
		},
	})

	f.monitor = monitor.New(cfg.SessionTimeout, cfg.WarningLead,
		cfg.OnWarning,
		func() { f.forceLogout(model.EventSessionExpired, "inactivity timeout") },
		cfg.Logger)

	// A session restored from durable storage resumes inactivity tracking.
	if _, ok := f.tokens.Get(); ok {
		f.monitor.Start()
	}

	return f
}

// Pipeline exposes the authenticated request pipeline for resource calls
// beyond the auth surface (accounts, journal entries, reports...).
func (f *Facade) Pipeline() *pipeline.Pipeline {
	return f.pipe
}

// Login authenticates and establishes the session. A stale local session is
// discarded first so the login request never carries an old bearer token.
func (f *Facade) Login(ctx context.Context, username string, password string) (*model.User, error) {
	f.monitor.Stop()
	f.tokens.Clear()

	var resp model.LoginResponse
	err := f.pipe.DoJSON(ctx, pipeline.Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Body:   model.LoginRequest{Username: username, Password: password},
	}, &resp)
	if err != nil {
		f.audit.Record(model.EventLoginFailed, "username="+username)
		return nil, err
	}

	session := model.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	if exp, ok := tokenstore.TokenExpiry(resp.AccessToken); ok {
		session.ExpiresAt = exp
	}

	if err := f.tokens.Set(session); err != nil {
		return nil, err
	}

	f.audit.Record(model.EventLoginSuccess, "")
	f.monitor.Start()
	f.log.Info("logged in", "username", resp.User.Username, "role", resp.User.RoleName)

	user := resp.User
	return &user, nil
}

// Logout tears the session down. It is idempotent and never fails: the
// remote invalidation is best-effort, local state is always cleared.
func (f *Facade) Logout(ctx context.Context, reason string) {
	if _, ok := f.tokens.Get(); ok {
		f.audit.Record(model.EventLogout, reason)
		if _, err := f.pipe.Do(ctx, pipeline.Request{Method: http.MethodPost, Path: logoutPath}); err != nil {
			f.log.Debug("remote logout failed, clearing local state anyway", "error", err)
		}
	}

	f.monitor.Stop()
	f.tokens.Clear()
}

func (f *Facade) IsAuthenticated() bool {
	_, ok := f.tokens.Get()
	return ok
}

func (f *Facade) CurrentUser() (*model.User, bool) {
	session, ok := f.tokens.Get()
	if !ok {
		return nil, false
	}

	user := session.User
	return &user, true
}

// HasPermission consults the static role→permission table. Unauthenticated
// callers hold no permissions.
func (f *Facade) HasPermission(permission string) bool {
	session, ok := f.tokens.Get()
	if !ok {
		return false
	}

	return f.perms.Allows(session.User.RoleName, permission)
}

// UpdateUser applies a shallow last-write-wins merge of profile fields onto
// the cached user and persists the result.
func (f *Facade) UpdateUser(fields map[string]string) {
	session, ok := f.tokens.Get()
	if !ok {
		return
	}

	session.User.Merge(fields)
	if err := f.tokens.Set(*session); err != nil {
		f.log.Warn("failed to persist user update", "error", err)
	}
}

// RefreshUserData re-fetches the profile. Best-effort: transient failures
// keep the cached user; an authentication failure ends the session.
func (f *Facade) RefreshUserData(ctx context.Context) error {
	var user model.User
	err := f.pipe.DoJSON(ctx, pipeline.Request{Method: http.MethodGet, Path: mePath, Idempotent: true}, &user)
	if err != nil {
		if apierror.IsType(err, apierror.TypeAuthentication) {
			f.Logout(ctx, "session no longer valid")
			return err
		}
		f.log.Debug("keeping cached user after refresh failure", "error", err)
		return err
	}

	if session, ok := f.tokens.Get(); ok {
		session.User = user
		if err := f.tokens.Set(*session); err != nil {
			f.log.Warn("failed to persist refreshed user", "error", err)
		}
	}

	return nil
}

func (f *Facade) ChangePassword(ctx context.Context, currentPassword string, newPassword string) error {
	_, err := f.pipe.Do(ctx, pipeline.Request{
		Method: http.MethodPost,
		Path:   changePasswordPath,
		Body:   model.ChangePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword},
	})
	if err != nil {
		f.audit.Record(model.EventPasswordChangeFailed, "")
		return err
	}

	f.audit.Record(model.EventPasswordChanged, "")
	return nil
}

// SecurityEvents returns the most recent audit entries, newest first.
func (f *Facade) SecurityEvents(limit int) []model.SecurityEvent {
	return f.audit.Query(limit)
}

// Touch forwards a user-activity signal to the inactivity monitor.
func (f *Facade) Touch() {
	f.monitor.Touch()
}

// ExtendSession is the explicit response to the inactivity warning.
func (f *Facade) ExtendSession() {
	if !f.IsAuthenticated() {
		return
	}

	f.monitor.Extend()
	f.audit.Record(model.EventSessionExtended, "")
}

func (f *Facade) WarningShown() bool {
	return f.monitor.WarningShown()
}

func (f *Facade) identity() (int, string, bool) {
	session, ok := f.tokens.Get()
	if !ok {
		return 0, "", false
	}

	return session.User.ID, session.User.Username, true
}

// forceLogout handles involuntary session termination. The audit entry is
// recorded before local state is cleared so the identity still attaches
// when the session is intact (inactivity timeout).
func (f *Facade) forceLogout(eventType string, reason string) {
	f.audit.Record(eventType, reason)
	f.monitor.Stop()
	f.tokens.Clear()

	f.log.Info("forced logout", "reason", reason)
	if f.onForcedLogout != nil {
		f.onForcedLogout(reason)
	}
}
