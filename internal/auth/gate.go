// Package auth decides whether a visitor may see the upload form and starts
// the provider login when they may not.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/producthub/producthub/internal/hubapi"
	"github.com/producthub/producthub/internal/metrics"
	"github.com/producthub/producthub/internal/redirect"
)

// Source records how a gate decision was reached
type Source string

const (
	SourceSignal      Source = "signal"
	SourceStatus      Source = "status"
	SourceStatusError Source = "status_error"
)

// GateResult is the outcome of the session gate for one page load
type GateResult struct {
	Authenticated bool
	Error         string
	Source        Source
}

// AuthAPI is the part of the upload API the gate depends on
type AuthAPI interface {
	Status(ctx context.Context, creds hubapi.Credentials) (bool, error)
	LoginURL(ctx context.Context, creds hubapi.Credentials) (string, error)
}

// Gate resolves session state from the redirect signal or the status endpoint
type Gate struct {
	api    AuthAPI
	logger logrus.FieldLogger
}

// NewGate creates a session gate backed by api
func NewGate(api AuthAPI, logger logrus.FieldLogger) *Gate {
	return &Gate{
		api:    api,
		logger: logger.WithField("component", "gate"),
	}
}

// Resolve decides whether the visitor is authenticated. A redirect signal is
// trusted as is and never triggers a status request.
func (g *Gate) Resolve(ctx context.Context, creds hubapi.Credentials, sig redirect.Signal) GateResult {
	var res GateResult

	switch sig.Kind {
	case redirect.Error:
		res = GateResult{Error: "Authentication failed: " + sig.Reason, Source: SourceSignal}
	case redirect.Success:
		res = GateResult{Authenticated: true, Source: SourceSignal}
	default:
		ok, err := g.api.Status(ctx, creds)
		if err != nil {
			g.logger.WithError(err).Warn("auth check failed")
			res = GateResult{Error: "Failed to check authentication status", Source: SourceStatusError}
		} else {
			res = GateResult{Authenticated: ok, Source: SourceStatus}
		}
	}

	metrics.GateDecisions.WithLabelValues(string(res.Source), resultLabel(res.Authenticated)).Inc()
	return res
}

// LoginURL fetches the provider URL the browser must navigate to. The
// returned error text is ready to show to the visitor.
func (g *Gate) LoginURL(ctx context.Context, creds hubapi.Credentials) (string, error) {
	u, err := g.api.LoginURL(ctx, creds)
	if err != nil {
		log := g.logger.WithError(err)
		var serr *hubapi.StatusError
		if errors.As(err, &serr) {
			log = log.WithField("op", serr.Op)
		}
		log.Error("authentication error")
		return "", fmt.Errorf("Failed to start authentication: %w", err)
	}
	return u, nil
}

func resultLabel(authenticated bool) string {
	if authenticated {
		return "authenticated"
	}
	return "anonymous"
}
