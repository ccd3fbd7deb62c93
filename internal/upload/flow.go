// Package upload submits the product form to the upload API and, when the
// API reports a missing session, holds the submission across the provider
// login and sends it again once the visitor comes back.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/producthub/producthub/internal/hubapi"
	"github.com/producthub/producthub/internal/metrics"
	"github.com/producthub/producthub/internal/models"
	"github.com/producthub/producthub/internal/storage"
)

// ErrUploadInProgress is returned when the session already has an upload in flight
var ErrUploadInProgress = errors.New("An upload is already in progress")

// API is the part of the upload API the flow depends on
type API interface {
	Upload(ctx context.Context, creds hubapi.Credentials, sub *models.Submission) (*hubapi.UploadResult, error)
	LoginURL(ctx context.Context, creds hubapi.Credentials) (string, error)
}

// PendingStore holds at most one deferred submission per session
type PendingStore interface {
	Put(ctx context.Context, sessionID string, sub *models.Submission) error
	Take(ctx context.Context, sessionID string) (*models.Submission, error)
	Discard(ctx context.Context, sessionID string) error
}

// Outcome is the terminal (or awaiting) state of one upload attempt
type Outcome struct {
	State    models.UploadState
	Message  string // Shown inline; empty for AwaitingAuth
	LoginURL string // Set for AwaitingAuth
}

// Flow owns the pending submission and the in-flight guard
type Flow struct {
	api     API
	pending PendingStore
	guard   *Guard
	logger  logrus.FieldLogger
}

// NewFlow creates a deferred upload flow
func NewFlow(api API, pending PendingStore, logger logrus.FieldLogger) *Flow {
	return &Flow{
		api:     api,
		pending: pending,
		guard:   NewGuard(),
		logger:  logger.WithField("component", "upload"),
	}
}

// Submit sends sub for the session. On 401 the submission is captured and
// the outcome carries the provider login URL instead of an error message.
func (f *Flow) Submit(ctx context.Context, sessionID string, creds hubapi.Credentials, sub *models.Submission) (*Outcome, error) {
	if !f.guard.TryAcquire(sessionID) {
		return nil, ErrUploadInProgress
	}
	defer f.guard.Release(sessionID)

	return f.attempt(ctx, sessionID, creds, sub, true), nil
}

// Resume resubmits the pending submission once after the provider sent the
// visitor back. It returns a nil outcome when nothing was pending. The
// pending submission is gone afterwards whatever the result, and a second
// 401 is reported as a plain failure.
func (f *Flow) Resume(ctx context.Context, sessionID string, creds hubapi.Credentials) (*Outcome, error) {
	if !f.guard.TryAcquire(sessionID) {
		return nil, ErrUploadInProgress
	}
	defer f.guard.Release(sessionID)

	sub, err := f.pending.Take(ctx, sessionID)
	if errors.Is(err, storage.ErrNoPending) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take pending submission: %w", err)
	}

	log := f.logger.WithFields(logrus.Fields{
		"session":    sessionID,
		"submission": sub.ID,
	})
	log.Info("resubmitting pending upload after login")

	f.advance(log, models.UploadStateAwaitingAuth, models.UploadStateSubmitting)
	out := f.attempt(ctx, sessionID, creds, sub, false)
	if !out.State.IsTerminal() {
		log.WithField("state", out.State).Error("resubmission did not finish")
	}
	return out, nil
}

// Discard drops any pending submission, e.g. when the provider reports an error
func (f *Flow) Discard(ctx context.Context, sessionID string) error {
	return f.pending.Discard(ctx, sessionID)
}

func (f *Flow) attempt(ctx context.Context, sessionID string, creds hubapi.Credentials, sub *models.Submission, mayDefer bool) *Outcome {
	log := f.logger.WithFields(logrus.Fields{
		"session":      sessionID,
		"file":         sub.FileName,
		"resubmission": !mayDefer,
	})
	metrics.UploadBytes.Observe(float64(sub.Size()))

	if mayDefer {
		f.advance(log, models.UploadStateIdle, models.UploadStateSubmitting)
	}
	outcome := f.send(ctx, sessionID, creds, sub, mayDefer, log)
	f.advance(log, models.UploadStateSubmitting, outcome.State)
	metrics.Uploads.WithLabelValues(string(outcome.State), strconv.FormatBool(!mayDefer)).Inc()
	return outcome
}

func (f *Flow) send(ctx context.Context, sessionID string, creds hubapi.Credentials, sub *models.Submission, mayDefer bool, log logrus.FieldLogger) *Outcome {
	res, err := f.api.Upload(ctx, creds, sub)
	if err == nil {
		log.WithField("message", res.Message).Info("upload succeeded")
		return &Outcome{State: models.UploadStateSucceeded, Message: res.Message}
	}

	var serr *hubapi.StatusError
	if !errors.As(err, &serr) {
		log.WithError(err).Error("upload error")
		return &Outcome{State: models.UploadStateFailed, Message: fmt.Sprintf("Failed to upload file: %v", err)}
	}

	if errors.Is(err, hubapi.ErrUnauthorized) && mayDefer {
		log.Info("authentication required, starting auth flow")
		return f.deferForLogin(ctx, sessionID, creds, sub, log)
	}

	log.WithField("status", serr.StatusCode).Warn("upload rejected")
	return &Outcome{State: models.UploadStateFailed, Message: serr.UserMessage()}
}

func (f *Flow) deferForLogin(ctx context.Context, sessionID string, creds hubapi.Credentials, sub *models.Submission, log logrus.FieldLogger) *Outcome {
	if err := f.pending.Put(ctx, sessionID, sub); err != nil {
		log.WithError(err).Error("failed to store pending submission")
		return &Outcome{State: models.UploadStateFailed, Message: "Failed to save upload for after sign-in"}
	}

	loginURL, err := f.api.LoginURL(ctx, creds)
	if err != nil {
		metrics.LoginRedirects.WithLabelValues("upload", "error").Inc()
		log.WithError(err).Error("authentication error")
		// The visitor is told the upload failed, so nothing may resume it
		if derr := f.pending.Discard(ctx, sessionID); derr != nil {
			log.WithError(derr).Warn("failed to discard pending submission")
		}
		return &Outcome{State: models.UploadStateFailed, Message: fmt.Sprintf("Failed to start authentication: %v", err)}
	}

	metrics.LoginRedirects.WithLabelValues("upload", "redirect").Inc()
	return &Outcome{State: models.UploadStateAwaitingAuth, LoginURL: loginURL}
}

// advance checks one step of the upload state machine. An illegal step is a
// bug in the flow and is logged rather than surfaced to the visitor.
func (f *Flow) advance(log logrus.FieldLogger, from, to models.UploadState) bool {
	if from.CanTransition(to) {
		return true
	}
	log.WithFields(logrus.Fields{
		"from": from,
		"to":   to,
	}).Error("invalid upload state transition")
	return false
}
