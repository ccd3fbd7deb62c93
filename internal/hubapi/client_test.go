package hubapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/producthub/producthub/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	c, err := NewClient(srv.URL, 0, logger)
	require.NoError(t, err)
	return c
}

func testSubmission() *models.Submission {
	return &models.Submission{
		BrandName:   "Acme",
		Company:     models.CompanyUpThere,
		Season:      "SS26",
		FileName:    "master.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     []byte("spreadsheet-bytes"),
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewClient("/api", 0, logger)
	require.Error(t, err)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
		err    bool
	}{
		{"authenticated", http.StatusOK, `{"isAuthenticated": true}`, true, false},
		{"anonymous", http.StatusOK, `{"isAuthenticated": false}`, false, false},
		{"missing field", http.StatusOK, `{}`, false, false},
		{"truthy string", http.StatusOK, `{"isAuthenticated": "yes"}`, true, false},
		{"zero", http.StatusOK, `{"isAuthenticated": 0}`, false, false},
		{"server error body", http.StatusInternalServerError, `{"isAuthenticated": false, "error": "boom"}`, false, false},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, pathStatus, r.URL.Path)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			got, err := c.Status(context.Background(), Credentials{})
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusForwardsAndRelaysCookies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "abc", cookie.Value)
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "refreshed"})
		io.WriteString(w, `{"isAuthenticated": true}`)
	})

	var relayed []*http.Cookie
	creds := Credentials{
		Cookies:   []*http.Cookie{{Name: "session", Value: "abc"}},
		SetCookie: func(c *http.Cookie) { relayed = append(relayed, c) },
	}

	ok, err := c.Status(context.Background(), creds)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, relayed, 1)
	assert.Equal(t, "refreshed", relayed[0].Value)
}

func TestLoginURL(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, pathLoginURL, r.URL.Path)
			io.WriteString(w, `{"auth_url": "https://login.example.com/authorize?state=x"}`)
		})
		got, err := c.LoginURL(context.Background(), Credentials{})
		require.NoError(t, err)
		assert.Equal(t, "https://login.example.com/authorize?state=x", got)
	})

	t.Run("missing field", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{}`)
		})
		_, err := c.LoginURL(context.Background(), Credentials{})
		assert.ErrorIs(t, err, ErrNoLoginURL)
	})

	t.Run("non-2xx", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error": "boom"}`)
		})
		_, err := c.LoginURL(context.Background(), Credentials{})
		var serr *StatusError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, http.StatusInternalServerError, serr.StatusCode)
		assert.Equal(t, "HTTP error! status: 500", err.Error())
	})
}

func TestUploadSendsMultipartForm(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathUpload, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Acme", r.FormValue(models.FieldBrandName))
		assert.Equal(t, "UP THERE", r.FormValue(models.FieldCompany))
		assert.Equal(t, "SS26", r.FormValue(models.FieldSeason))

		f, hdr, err := r.FormFile(models.FieldFile)
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "master.xlsx", hdr.Filename)
		assert.Equal(t, "spreadsheet-bytes", string(data))

		io.WriteString(w, `{"success": true, "message": "Files processed successfully"}`)
	})

	res, err := c.Upload(context.Background(), Credentials{}, testSubmission())
	require.NoError(t, err)
	assert.Equal(t, "Files processed successfully", res.Message)
}

func TestUploadResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantErr     bool
		wantUnauth  bool
	}{
		{"success without message", http.StatusOK, `{}`, "Upload successful", false, false},
		{"success with empty body", http.StatusOK, ``, "Upload successful", false, false},
		{"server message", http.StatusInternalServerError, `{"message": "disk full"}`, "disk full", true, false},
		{"no message", http.StatusBadRequest, `{"success": false}`, "Upload failed: 400", true, false},
		{"html error", http.StatusBadGateway, `<html></html>`, "Upload failed: 502", true, false},
		{"unauthorized", http.StatusUnauthorized, `{"message": "Authentication required"}`, "Authentication required", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			res, err := c.Upload(context.Background(), Credentials{}, testSubmission())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.wantMessage, res.Message)
				return
			}

			var serr *StatusError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.wantMessage, serr.UserMessage())
			assert.Equal(t, tt.wantUnauth, errors.Is(err, ErrUnauthorized))
		})
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathHealth, r.URL.Path)
		io.WriteString(w, `{"status": "healthy"}`)
	})
	require.NoError(t, c.Health(context.Background()))

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	require.Error(t, c.Health(context.Background()))
}
