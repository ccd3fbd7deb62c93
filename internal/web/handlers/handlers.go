package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/producthub/producthub/internal/auth"
	"github.com/producthub/producthub/internal/hubapi"
	"github.com/producthub/producthub/internal/metrics"
	"github.com/producthub/producthub/internal/models"
	"github.com/producthub/producthub/internal/redirect"
	"github.com/producthub/producthub/internal/upload"
	"github.com/producthub/producthub/internal/version"
	webmiddleware "github.com/producthub/producthub/internal/web/middleware"
	"github.com/producthub/producthub/internal/web/templates"
)

// multipartMemory is how much of a form is kept in memory before spilling to disk
const multipartMemory = 32 << 20

// Handlers holds dependencies for HTTP handlers
type Handlers struct {
	gate           *auth.Gate
	flow           *upload.Flow
	sessionManager *auth.SessionManager
	templates      map[string]*template.Template
	static         fs.FS
	logger         logrus.FieldLogger
}

// New creates a new Handlers instance
func New(gate *auth.Gate, flow *upload.Flow, sessionManager *auth.SessionManager, logger logrus.FieldLogger) (*Handlers, error) {
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Handlers{
		gate:           gate,
		flow:           flow,
		sessionManager: sessionManager,
		templates:      pages,
		static:         templates.Static(),
		logger:         logger,
	}, nil
}

func (h *Handlers) requestLogger(r *http.Request) logrus.FieldLogger {
	sid, _ := auth.GetSessionIDFromContext(r.Context())
	return h.logger.WithField("session", sid)
}

// Home runs the session gate. A redirect signal is handled first and then
// stripped from the address bar with a redirect to the same path.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	creds := hubapi.CredentialsFor(w, r)

	if sig := redirect.Parse(r.URL.Query()); sig.Present() {
		h.handleSignal(w, r, creds, sig)
		return
	}

	log := h.requestLogger(r)

	res, carried, err := h.sessionManager.PopGateDecision(w, r)
	if err != nil {
		log.WithError(err).Warn("failed to read gate decision")
	}
	if !carried {
		res = h.gate.Resolve(r.Context(), creds, redirect.Signal{})
	}

	if !res.Authenticated {
		h.render(w, r, http.StatusOK, "signin", TemplateData{Error: res.Error})
		return
	}

	message, _, err := h.sessionManager.PopFlash(w, r, auth.FlashMessage)
	if err != nil {
		log.WithError(err).Warn("failed to read flash message")
	}

	h.renderUploadForm(w, r, http.StatusOK, message)
}

func (h *Handlers) handleSignal(w http.ResponseWriter, r *http.Request, creds hubapi.Credentials, sig redirect.Signal) {
	ctx := r.Context()
	sid, _ := auth.GetSessionIDFromContext(ctx)
	log := h.requestLogger(r).WithField("signal", sig.Kind.String())

	res := h.gate.Resolve(ctx, creds, sig)

	switch sig.Kind {
	case redirect.Error:
		log.WithField("reason", sig.Reason).Warn("provider reported an authentication error")
		if err := h.flow.Discard(ctx, sid); err != nil {
			log.WithError(err).Warn("failed to discard pending submission")
		}

	case redirect.Success:
		message := "Authentication successful"
		out, err := h.flow.Resume(ctx, sid, creds)
		switch {
		case errors.Is(err, upload.ErrUploadInProgress):
			message = err.Error()
		case err != nil:
			log.WithError(err).Error("failed to resume pending upload")
			message = "Failed to upload file"
		case out != nil:
			message = out.Message
		}
		if err := h.sessionManager.AddFlash(w, r, auth.FlashMessage, message); err != nil {
			log.WithError(err).Warn("failed to save flash message")
		}
	}

	if err := h.sessionManager.SaveGateDecision(w, r, res); err != nil {
		log.WithError(err).Warn("failed to save gate decision")
	}

	http.Redirect(w, r, redirect.Strip(r.URL).String(), http.StatusSeeOther)
}

// Login requests the provider login URL and sends the browser there
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	loginURL, err := h.gate.LoginURL(r.Context(), hubapi.CredentialsFor(w, r))
	if err != nil {
		metrics.LoginRedirects.WithLabelValues("sign_in", "error").Inc()
		h.render(w, r, http.StatusBadGateway, "signin", TemplateData{Error: err.Error()})
		return
	}

	metrics.LoginRedirects.WithLabelValues("sign_in", "redirect").Inc()
	http.Redirect(w, r, loginURL, http.StatusSeeOther)
}

// Upload validates the form and hands it to the deferred upload flow.
// An invalid form never reaches the upload API.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(r)

	sub, err := h.parseSubmission(r)
	if err != nil {
		log.WithError(err).Info("rejected upload form")
		h.renderUploadForm(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sid, _ := auth.GetSessionIDFromContext(r.Context())
	out, err := h.flow.Submit(r.Context(), sid, hubapi.CredentialsFor(w, r), sub)
	if err != nil {
		h.renderUploadForm(w, r, http.StatusConflict, err.Error())
		return
	}

	if out.State == models.UploadStateAwaitingAuth {
		http.Redirect(w, r, out.LoginURL, http.StatusSeeOther)
		return
	}

	if err := h.sessionManager.AddFlash(w, r, auth.FlashMessage, out.Message); err != nil {
		// Without the flash the redirect would lose the outcome
		log.WithError(err).Warn("failed to save flash message")
		h.renderUploadForm(w, r, http.StatusOK, out.Message)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) parseSubmission(r *http.Request) (*models.Submission, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &models.ValidationError{Reason: tooLargeMessage(tooLarge.Limit)}
		}
		return nil, &models.ValidationError{Reason: "Invalid upload form"}
	}

	sub := &models.Submission{
		BrandName: strings.TrimSpace(r.FormValue(models.FieldBrandName)),
		Company:   models.Company(r.FormValue(models.FieldCompany)),
		Season:    strings.TrimSpace(r.FormValue(models.FieldSeason)),
	}

	file, header, err := r.FormFile(models.FieldFile)
	if err == nil {
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return nil, &models.ValidationError{Reason: "Failed to read uploaded file"}
		}
		sub.FileName = header.Filename
		sub.ContentType = header.Header.Get("Content-Type")
		sub.Content = content
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return sub, nil
}

func tooLargeMessage(limit int64) string {
	return fmt.Sprintf("File is too large (limit %s)", humanize.Bytes(uint64(limit)))
}

// CSRFFailure answers a form post the CSRF check rejected. The check reads
// the token from the body, so a body over the size limit lands here too and
// gets the size message instead of a token error.
func (h *Handlers) CSRFFailure(w http.ResponseWriter, r *http.Request) {
	tooLarge, ok := webmiddleware.BodyTooLarge(r)
	if !ok {
		webmiddleware.CSRFFailureHandler(w, r)
		return
	}

	h.requestLogger(r).WithField("limit", tooLarge.Limit).Info("rejected oversized form")
	if r.URL.Path == "/upload" {
		h.renderUploadForm(w, r, http.StatusRequestEntityTooLarge, tooLargeMessage(tooLarge.Limit))
		return
	}
	http.Error(w, tooLargeMessage(tooLarge.Limit), http.StatusRequestEntityTooLarge)
}

func (h *Handlers) renderUploadForm(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, status, "upload", TemplateData{
		Message:   message,
		Companies: models.Companies,
		Accept:    models.AcceptAttr(),
	})
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, name string, data TemplateData) {
	if err := h.renderTemplate(w, r, status, name, data); err != nil {
		h.logger.WithError(err).WithField("template", name).Error("error rendering template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// About renders the about page
func (h *Handlers) About(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "about", TemplateData{Version: version.GetVersion()})
}

// Health reports liveness
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// ServeStatic serves the embedded static files
func (h *Handlers) ServeStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/static/")
	if name == "" || strings.HasSuffix(name, "/") {
		h.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, h.static, path.Clean(name))
}

// NotFound renders the 404 error page
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "404", TemplateData{})
}
