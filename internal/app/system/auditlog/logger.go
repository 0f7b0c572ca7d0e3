// internal/app/system/auditlog/logger.go

// Package auditlog records auth events to MongoDB and the structured log.
package auditlog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dalemusser/venturecamp/internal/app/store/audit"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/ratelimit"
	"github.com/dalemusser/venturecamp/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Destinations for Config.Auth.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth selects where auth events go: "all", "db", "log" or "off".
	Auth string
}

// ParseMode validates an Auth setting. Empty means ModeAll.
func ParseMode(s string) (string, error) {
	switch s {
	case "":
		return ModeAll, nil
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return s, nil
	}
	return "", fmt.Errorf("unknown audit mode %q (want all, db, log or off)", s)
}

// Sink persists events.
type Sink interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for recording auth events.
// A nil *Logger is valid and records nothing.
type Logger struct {
	sink   Sink
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(sink Sink, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	if config.Auth == "" {
		config.Auth = ModeAll
	}
	return &Logger{sink: sink, zapLog: zapLog, config: config}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.Method != "" {
		fields = append(fields, zap.String("method", event.Method))
	}
	if event.UID != "" {
		fields = append(fields, zap.String("uid", event.UID))
	}
	if event.Code != "" {
		fields = append(fields, zap.String("code", event.Code))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to the configured destination. Store
// failures are logged and never returned.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil || l.config.Auth == ModeOff {
		return
	}

	if l.config.Auth == ModeAll || l.config.Auth == ModeLog {
		l.logToZap(event)
	}

	if (l.config.Auth == ModeAll || l.config.Auth == ModeDB) && l.sink != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Store())
		defer cancel()
		if err := l.sink.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func fromRequest(r *http.Request, eventType string) audit.Event {
	return audit.Event{
		EventType: eventType,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| auth events                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// SignUp records an account creation attempt.
func (l *Logger) SignUp(r *http.Request, email string, u *identity.User, err error) {
	e := fromRequest(r, audit.EventSignUp)
	e.Method = "password"
	e.Email = email
	finish(&e, u, err)
	l.Log(r.Context(), e)
}

// SignIn records a password sign-in attempt.
func (l *Logger) SignIn(r *http.Request, email string, u *identity.User, err error) {
	e := fromRequest(r, audit.EventLoginSuccess)
	if err != nil {
		e.EventType = audit.EventLoginFailed
	}
	e.Method = "password"
	e.Email = email
	finish(&e, u, err)
	l.Log(r.Context(), e)
}

// RateLimited records a sign-in rejected before reaching the backend.
func (l *Logger) RateLimited(r *http.Request, route string) {
	e := fromRequest(r, audit.EventLoginRateLimit)
	e.Code = identity.CodeTooManyRequests
	e.Details = map[string]string{"route": route}
	l.Log(r.Context(), e)
}

// ProviderSignIn records a completed or failed federated sign-in.
func (l *Logger) ProviderSignIn(r *http.Request, p identity.Provider, u *identity.User, err error) {
	e := fromRequest(r, audit.EventProviderSuccess)
	if err != nil {
		e.EventType = audit.EventProviderFailed
	}
	e.Method = p.String()
	if u != nil {
		e.Email = u.Email
	}
	finish(&e, u, err)
	l.Log(r.Context(), e)
}

// PasswordReset records a reset email request.
func (l *Logger) PasswordReset(r *http.Request, email string, err error) {
	e := fromRequest(r, audit.EventPasswordReset)
	e.Email = email
	finish(&e, nil, err)
	l.Log(r.Context(), e)
}

// Logout records a sign-out. uid is empty when the caller had no session.
func (l *Logger) Logout(r *http.Request, uid string) {
	e := fromRequest(r, audit.EventLogout)
	e.UID = uid
	e.Success = true
	l.Log(r.Context(), e)
}

func finish(e *audit.Event, u *identity.User, err error) {
	if u != nil {
		e.UID = u.UID
	}
	if err != nil {
		e.Code = identity.Code(err)
		if e.Code == "" {
			e.Code = identity.CodeInternal
		}
		return
	}
	e.Success = true
}
