package upload

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/producthub/producthub/internal/hubapi"
	"github.com/producthub/producthub/internal/models"
	"github.com/producthub/producthub/internal/storage"
)

// scriptedAPI answers uploads from a queue of responses
type scriptedAPI struct {
	mu        sync.Mutex
	responses []func() (*hubapi.UploadResult, error)
	uploads   []*models.Submission
	loginURL  string
	loginErr  error
	logins    int
	block     chan struct{}
}

func (s *scriptedAPI) Upload(ctx context.Context, creds hubapi.Credentials, sub *models.Submission) (*hubapi.UploadResult, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, sub)
	if len(s.responses) == 0 {
		return &hubapi.UploadResult{StatusCode: http.StatusOK, Message: "Upload successful"}, nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next()
}

func (s *scriptedAPI) LoginURL(ctx context.Context, creds hubapi.Credentials) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
	return s.loginURL, s.loginErr
}

func (s *scriptedAPI) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

func unauthorized() (*hubapi.UploadResult, error) {
	return nil, &hubapi.StatusError{Op: "upload", StatusCode: http.StatusUnauthorized, Message: "Authentication required"}
}

func serverError(msg string) func() (*hubapi.UploadResult, error) {
	return func() (*hubapi.UploadResult, error) {
		return nil, &hubapi.StatusError{Op: "upload", StatusCode: http.StatusInternalServerError, Message: msg}
	}
}

func ok(msg string) func() (*hubapi.UploadResult, error) {
	return func() (*hubapi.UploadResult, error) {
		return &hubapi.UploadResult{StatusCode: http.StatusOK, Message: msg}, nil
	}
}

func newTestFlow(t *testing.T, api API) (*Flow, *storage.PendingStore) {
	t.Helper()
	flow, pending, _ := newLoggedTestFlow(t, api)
	return flow, pending
}

func newLoggedTestFlow(t *testing.T, api API) (*Flow, *storage.PendingStore, *test.Hook) {
	t.Helper()

	db, err := storage.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pending := storage.NewPendingStore(db, time.Hour)
	logger, hook := test.NewNullLogger()
	return NewFlow(api, pending, logger), pending, hook
}

func transitionErrors(hook *test.Hook) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "invalid upload state transition" {
			n++
		}
	}
	return n
}

func submission() *models.Submission {
	return &models.Submission{
		BrandName: "Acme",
		Company:   models.CompanyUpThere,
		Season:    "SS26",
		FileName:  "master.xlsx",
		Content:   []byte("xlsx"),
	}
}

func TestSubmitSuccess(t *testing.T) {
	api := &scriptedAPI{responses: []func() (*hubapi.UploadResult, error){ok("Files processed successfully")}}
	flow, _ := newTestFlow(t, api)

	out, err := flow.Submit(context.Background(), "sess", hubapi.Credentials{}, submission())
	require.NoError(t, err)
	assert.Equal(t, models.UploadStateSucceeded, out.State)
	assert.Equal(t, "Files processed successfully", out.Message)
	assert.Equal(t, 0, api.logins)
}

func TestSubmitServerFailureShowsServerMessage(t *testing.T) {
	api := &scriptedAPI{responses: []func() (*hubapi.UploadResult, error){serverError("disk full")}}
	flow, _ := newTestFlow(t, api)

	out, err := flow.Submit(context.Background(), "sess", hubapi.Credentials{}, submission())
	require.NoError(t, err)
	assert.Equal(t, models.UploadStateFailed, out.State)
	assert.Equal(t, "disk full", out.Message)
}

func TestSubmitTransportFailure(t *testing.T) {
	api := &scriptedAPI{responses: []func() (*hubapi.UploadResult, error){
		func() (*hubapi.UploadResult, error) { return nil, errors.New("connection refused") },
	}}
	flow, _ := newTestFlow(t, api)

	out, err := flow.Submit(context.Background(), "sess", hubapi.Credentials{}, submission())
	require.NoError(t, err)
	assert.Equal(t, models.UploadStateFailed, out.State)
	assert.Equal(t, "Failed to upload file: connection refused", out.Message)
}

func TestUnauthorizedDefersAndRedirects(t *testing.T) {
	api := &scriptedAPI{
		responses: []func() (*hubapi.UploadResult, error){unauthorized},
		loginURL:  "https://login.example.com/authorize",
	}
	flow, pending := newTestFlow(t, api)
	ctx := context.Background()

	out, err := flow.Submit(ctx, "sess", hubapi.Credentials{}, submission())
	require.NoError(t, err)
	assert.Equal(t, models.UploadStateAwaitingAuth, out.State)
	assert.Empty(t, out.Message, "401 must not surface as a visible error")
	assert.Equal(t, "https://login.example.com/authorize", out.LoginURL)
	assert.Equal(t, 1, api.logins)

	has, err := pending.Has(ctx, "sess")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestUnauthorizedLoginURLFailure(t *testing.T) {
	api := &scriptedAPI{
		responses: []func() (*hubapi.UploadResult, error){unauthorized},
		loginErr:  hubapi.ErrNoLoginURL,
	}
	flow, pending := newTestFlow(t, api)
	ctx := context.Background()

	out, err := flow.Submit(ctx, "sess", hubapi.Credentials{}, submission())
	require.NoError(t, err)
	assert.Equal(t, models.UploadStateFailed, out.State)
	assert.Equal(t, "Failed to start authentication: No auth URL received", out.Message)

	// the visitor was told it failed, so a later login must not resend it
	has, err := pending.Has(ctx, "sess")
	require.NoError(t, err)
	assert.False(t, has)

	out, err = flow.Resume(ctx, "sess", hubapi.Credentials{})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, api.uploadCount())
}

func TestRoundTripFollowsStateMachine(t *testing.T) {
	api := &scriptedAPI{
		responses: []func() (*hubapi.UploadResult, error){unauthorized, unauthorized},
		loginURL:  "https://login.example.com/authorize",
	}
	flow, _, hook := newLoggedTestFlow(t, api)
	ctx := context.Background()

	out, err := flow.Submit(ctx, "sess", hubapi.Credentials{}, submission())
	require.NoError(t, err)
	assert.False(t, out.State.IsTerminal())

	out, err = flow.Resume(ctx, "sess", hubapi.Credentials{})
	require.NoError(t, err)
	assert.True(t, out.State.IsTerminal())

	assert.Equal(t, 0, transitionErrors(hook))
}

func TestAdvanceRejectsIllegalStep(t *testing.T) {
	flow, _, hook := newLoggedTestFlow(t, &scriptedAPI{})

	assert.True(t, flow.advance(flow.logger, models.UploadStateSubmitting, models.UploadStateFailed))
	assert.Equal(t, 0, transitionErrors(hook))

	assert.False(t, flow.advance(flow.logger, models.UploadStateSucceeded, models.UploadStateSubmitting))
	assert.Equal(t, 1, transitionErrors(hook))
}

func TestResumeResubmitsExactlyOnce(t *testing.T) {
	api := &scriptedAPI{
		responses: []func() (*hubapi.UploadResult, error){unauthorized, ok("")},
		loginURL:  "https://login.example.com/authorize",
	}
	flow, pending := newTestFlow(t, api)
	ctx := context.Background()

	sub := submission()
	_, err := flow.Submit(ctx, "sess", hubapi.Credentials{}, sub)
	require.NoError(t, err)

	out, err := flow.Resume(ctx, "sess", hubapi.Credentials{})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, models.UploadStateSucceeded, out.State)
	assert.Equal(t, 2, api.uploadCount())
	assert.Equal(t, sub.BrandName, api.uploads[1].BrandName)
	assert.Equal(t, sub.Content, api.uploads[1].Content)

	// nothing left to resume
	out, err = flow.Resume(ctx, "sess", hubapi.Credentials{})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 2, api.uploadCount())

	has, err := pending.Has(ctx, "sess")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestResumeClearsPendingOnFailure(t *testing.T) {
	api := &scriptedAPI{
		responses: []func() (*hubapi.UploadResult, error){unauthorized, serverError("disk full")},
		loginURL:  "https://login.example.com/authorize",
	}
	flow, pending := newTestFlow(t, api)
	ctx := context.Background()

	_, err := flow.Submit(ctx, "sess", hubapi.Credentials{}, submission())
	require.NoError(t, err)

	out, err := flow.Resume(ctx, "sess", hubapi.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, models.UploadStateFailed, out.State)
	assert.Equal(t, "disk full", out.Message)

	has, err := pending.Has(ctx, "sess")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSecondUnauthorizedIsPlainFailure(t *testing.T) {
	api := &scriptedAPI{
		responses: []func() (*hubapi.UploadResult, error){unauthorized, unauthorized},
		loginURL:  "https://login.example.com/authorize",
	}
	flow, pending := newTestFlow(t, api)
	ctx := context.Background()

	_, err := flow.Submit(ctx, "sess", hubapi.Credentials{}, submission())
	require.NoError(t, err)
	require.Equal(t, 1, api.logins)

	out, err := flow.Resume(ctx, "sess", hubapi.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, models.UploadStateFailed, out.State)
	assert.Empty(t, out.LoginURL)
	assert.Equal(t, "Authentication required", out.Message)
	assert.Equal(t, 1, api.logins, "redirect must not loop")

	has, err := pending.Has(ctx, "sess")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestResumeWithoutPending(t *testing.T) {
	api := &scriptedAPI{}
	flow, _ := newTestFlow(t, api)

	out, err := flow.Resume(context.Background(), "sess", hubapi.Credentials{})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 0, api.uploadCount())
}

func TestDiscard(t *testing.T) {
	api := &scriptedAPI{
		responses: []func() (*hubapi.UploadResult, error){unauthorized},
		loginURL:  "https://login.example.com/authorize",
	}
	flow, _ := newTestFlow(t, api)
	ctx := context.Background()

	_, err := flow.Submit(ctx, "sess", hubapi.Credentials{}, submission())
	require.NoError(t, err)
	require.NoError(t, flow.Discard(ctx, "sess"))

	out, err := flow.Resume(ctx, "sess", hubapi.Credentials{})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, api.uploadCount())
}

func TestConcurrentSubmitIsRejected(t *testing.T) {
	api := &scriptedAPI{block: make(chan struct{})}
	flow, _ := newTestFlow(t, api)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := flow.Submit(ctx, "sess", hubapi.Credentials{}, submission())
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return flow.guard.InFlight() == 1 }, time.Second, time.Millisecond)

	_, err := flow.Submit(ctx, "sess", hubapi.Credentials{}, submission())
	assert.ErrorIs(t, err, ErrUploadInProgress)

	// other sessions are unaffected by the guard
	other := make(chan error, 1)
	go func() {
		_, err := flow.Submit(ctx, "other", hubapi.Credentials{}, submission())
		other <- err
	}()

	close(api.block)
	<-done
	require.NoError(t, <-other)
	assert.Equal(t, 2, api.uploadCount())
	assert.Equal(t, 0, flow.guard.InFlight())
}

func TestGuard(t *testing.T) {
	g := NewGuard()
	assert.True(t, g.TryAcquire("a"))
	assert.False(t, g.TryAcquire("a"))
	assert.True(t, g.TryAcquire("b"))
	g.Release("a")
	assert.True(t, g.TryAcquire("a"))
}
