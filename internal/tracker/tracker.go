package tracker

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// Tracker reports failed runs to an error tracking service.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// New returns a Sentry tracker when dsn is set and a noop tracker otherwise.
func New(dsn, environment string) (Tracker, error) {
	if dsn == "" {
		return Noop{}, nil
	}
	return NewSentry(dsn, environment)
}

// Sentry implements Tracker via sentry-go.
type Sentry struct {
	hub *sentry.Hub
}

// NewSentry initializes the global Sentry client.
func NewSentry(dsn, environment string) (*Sentry, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, err
	}
	return &Sentry{hub: sentry.CurrentHub()}, nil
}

func (s *Sentry) CaptureError(ctx context.Context, err error, tags map[string]string) {
	hub := s.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureException(err)
}

func (s *Sentry) Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// Noop discards everything.
type Noop struct{}

func (Noop) CaptureError(context.Context, error, map[string]string) {}
func (Noop) Flush(time.Duration)                                   {}
