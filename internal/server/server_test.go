package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baf-site/internal/aggregate"
	"baf-site/internal/cms"
	"baf-site/internal/config"
	"baf-site/internal/metrics"
)

func init() { gin.SetMode(gin.TestMode) }

// write is the last admin request the fake CMS saw.
type write struct {
	Auth   string
	Method string
	Path   string
	Form   map[string]string
	File   string
}

// fakeCMS is a minimal Payload stand-in.
type fakeCMS struct {
	failCatalog atomic.Bool
	failNotify  atomic.Bool
	notified    atomic.Int32

	mu   sync.Mutex
	last write
}

func (f *fakeCMS) lastWrite() write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeCMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/AboutSection":
		_, _ = io.WriteString(w, `{"docs":[{"id":"a1","description1":"We design","description2":"spaces"}]}`)
	case r.Method == http.MethodGet && r.URL.Path == "/api/events":
		if s := r.URL.Query().Get("where[slug][equals]"); s != "" {
			if s == "archived" {
				_, _ = io.WriteString(w, `{"docs":[{"event_name":"Archived Talk","slug":"archived"}]}`)
				return
			}
			_, _ = io.WriteString(w, `{"docs":[]}`)
			return
		}
		_, _ = io.WriteString(w, `{"docs":[{"event_name":"One","slug":"one"},{"event_name":"Two","slug":"two"},{"event_name":"Three","slug":"three"}]}`)
	case r.Method == http.MethodGet && r.URL.Path == "/api/BrandsSection":
		_, _ = io.WriteString(w, `{"docs":[{"Title":"Oak","Slug":"oak"},{"Title":"Elm","Slug":"elm"}]}`)
	case r.Method == http.MethodGet && r.URL.Path == "/api/catalog":
		if f.failCatalog.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"docs":[{"Title":"Sofa","Slug":"sofa"}]}`)
	case r.Method == http.MethodGet && r.URL.Path == "/api/progress":
		_, _ = io.WriteString(w, `{"docs":[{"design_projects_completed":120,"client_satisfaction_rate":98.5,"years_of_experience":12}]}`)
	case r.Method == http.MethodPost && r.URL.Path == "/api/admins/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "admin@example.com" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"errors":[{"message":"The email or password provided is incorrect."}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"tok-123","user":{"email":"admin@example.com"},"exp":1900000000}`)
	case r.Method == http.MethodPost && r.URL.Path == "/api/notifications":
		if f.failNotify.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		f.notified.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"doc":{"id":"n1"}}`)
	default:
		rec := write{
			Auth:   r.Header.Get("Authorization"),
			Method: r.Method,
			Path:   r.URL.Path,
			Form:   map[string]string{},
		}
		if r.Method != http.MethodDelete {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				for k, v := range r.MultipartForm.Value {
					rec.Form[k] = v[0]
				}
				for k, fhs := range r.MultipartForm.File {
					rec.File = k + ":" + fhs[0].Filename
				}
			}
		}
		f.mu.Lock()
		f.last = rec
		f.mu.Unlock()
		doc, _ := json.Marshal(map[string]any{"doc": map[string]string{
			"id": "new1", "event_name": rec.Form["event_name"], "Title": rec.Form["Title"],
		}})
		_, _ = w.Write(doc)
	}
}

type harness struct {
	fake *fakeCMS
	srv  *Server
	reg  *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := &fakeCMS{}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	client, err := cms.New(config.CMS{
		BaseURL: ts.URL,
		Timeout: 2 * time.Second,
		Endpoints: config.Endpoints{
			About:         "/api/AboutSection?depth=1",
			Events:        "/api/events?limit=10&depth=1",
			Brands:        "/api/BrandsSection?depth=1",
			Catalog:       "/api/catalog?depth=1",
			Progress:      "/api/progress?limit=1",
			Login:         "/api/admins/login",
			Notifications: "/api/notifications",
			AboutAdmin:    "/api/AboutSection",
			EventsAdmin:   "/api/events",
			BrandsAdmin:   "/api/BrandsSection",
		},
	}, nil, m)
	require.NoError(t, err)

	srv := New(Options{
		CMS:      client,
		Fetcher:  aggregate.NewFetcher(client, time.Second, nil, m),
		Metrics:  m,
		Gatherer: reg,
	})
	return &harness{fake: fake, srv: srv, reg: reg}
}

func (h *harness) do(method, path string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error.Code
}

func TestHealthzAndRequestID(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Len(t, rec.Header().Get(headerRequestID), 36)

	rec = h.do(http.MethodGet, "/healthz", nil, map[string]string{headerRequestID: "abc-1"})
	assert.Equal(t, "abc-1", rec.Header().Get(headerRequestID))
}

func TestContent(t *testing.T) {
	h := newHarness(t)
	h.fake.failCatalog.Store(true)

	rec := h.do(http.MethodGet, "/api/content", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)

	about, ok := out["about"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "We design", about["description1"])
	assert.Len(t, out["events"], 3)
	assert.Len(t, out["brands"], 2)
	assert.Equal(t, []any{}, out["catalog"], "a failed collection is an empty array, not null")
}

func TestContent_InvalidEndpointConfig(t *testing.T) {
	fake := &fakeCMS{}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	client, err := cms.New(config.CMS{
		BaseURL: ts.URL,
		Endpoints: config.Endpoints{
			About:   "/api/AboutSection?depth=1",
			Events:  "https://elsewhere.example/api/events",
			Brands:  "/api/BrandsSection?depth=1",
			Catalog: "/api/catalog?depth=1",
		},
	}, nil, nil)
	require.NoError(t, err)
	h := &harness{fake: fake, srv: New(Options{CMS: client, Fetcher: aggregate.NewFetcher(client, time.Second, nil, nil)})}

	rec := h.do(http.MethodGet, "/api/content", nil, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "content_unavailable", env.Error.Code)
	assert.Equal(t, errContentUnavailable.Error(), env.Error.Message, "configuration details stay in the logs")
}

func TestContent_ClientGone(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/content", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, statusClientClosed, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestEventDetail(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/events/two", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "one", out["prev"])
	assert.Equal(t, "three", out["next"])
	assert.Equal(t, "Two", out["item"].(map[string]any)["name"])

	rec = h.do(http.MethodGet, "/api/events/one", nil, nil)
	out = decode(t, rec)
	assert.Equal(t, "", out["prev"], "no wrap-around")
	assert.Equal(t, "two", out["next"])

	rec = h.do(http.MethodGet, "/api/events/archived", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, "falls back to the slug query")
	assert.Equal(t, "Archived Talk", decode(t, rec)["item"].(map[string]any)["name"])

	rec = h.do(http.MethodGet, "/api/events/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestBrandAndCatalogDetail(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/brands/elm", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "oak", out["prev"])
	assert.Equal(t, "", out["next"])

	rec = h.do(http.MethodGet, "/api/brands/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/catalog/sofa", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	h.fake.failCatalog.Store(true)
	rec = h.do(http.MethodGet, "/api/catalog/sofa", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/api/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.EqualValues(t, 120, out["design_projects_completed"])
	assert.EqualValues(t, 98.5, out["client_satisfaction_rate"])
}

func TestContact(t *testing.T) {
	h := newHarness(t)
	jsonHdr := map[string]string{"Content-Type": "application/json"}
	body := `{"name":"Ana","email":"ana@example.com","phone":"+39 02 1234","message":"Hello there"}`

	rec := h.do(http.MethodPost, "/api/contact", strings.NewReader(body), jsonHdr)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodPost, "/api/contact", strings.NewReader(strings.Replace(body, "Hello there", "  hello   THERE ", 1)), jsonHdr)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate", errorCode(t, rec))

	rec = h.do(http.MethodPost, "/api/contact", strings.NewReader(`{"name":"Ana","email":"not-an-email","message":"x"}`), jsonHdr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, int32(1), h.fake.notified.Load())
}

func TestContact_DownstreamFailureAllowsRetry(t *testing.T) {
	h := newHarness(t)
	jsonHdr := map[string]string{"Content-Type": "application/json"}
	body := `{"name":"Bo","email":"bo@example.com","message":"Quote please"}`

	h.fake.failNotify.Store(true)
	rec := h.do(http.MethodPost, "/api/contact", strings.NewReader(body), jsonHdr)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	h.fake.failNotify.Store(false)
	rec = h.do(http.MethodPost, "/api/contact", strings.NewReader(body), jsonHdr)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `site_contact_submissions_total{result="error"} 1`)
	assert.Contains(t, rec.Body.String(), `site_contact_submissions_total{result="ok"} 1`)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	jsonHdr := map[string]string{"Content-Type": "application/json"}

	rec := h.do(http.MethodPost, "/admin/login", strings.NewReader(`{"username":"admin@example.com","password":"secret"}`), jsonHdr)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "tok-123", out["token"])
	assert.NotNil(t, out["user"])

	rec = h.do(http.MethodPost, "/admin/login", strings.NewReader(`{"email":"admin@example.com","password":"wrong"}`), jsonHdr)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "The email or password provided is incorrect.", env.Error.Message)

	rec = h.do(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"secret"}`), jsonHdr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_RequiresToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodDelete, "/admin/events/e1", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	rec = h.do(http.MethodDelete, "/admin/events/e1", nil, map[string]string{"Authorization": "Bearer " + expired})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Empty(t, h.fake.lastWrite().Method, "nothing reached the CMS")
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG fake"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestAdmin_EventWritesForwarded(t *testing.T) {
	h := newHarness(t)
	auth := "Bearer tok-123"

	body, ct := multipartBody(t, map[string]string{"name": "Open House", "description": "Doors open"}, "image", "poster.png")
	rec := h.do(http.MethodPost, "/admin/events", body, map[string]string{"Authorization": auth, "Content-Type": ct})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Open House", decode(t, rec)["name"])
	assert.Equal(t, http.MethodPost, h.fake.lastWrite().Method)
	assert.Equal(t, "/api/events", h.fake.lastWrite().Path)
	assert.Equal(t, auth, h.fake.lastWrite().Auth)
	assert.Equal(t, "Open House", h.fake.lastWrite().Form["event_name"])
	assert.Equal(t, "Doors open", h.fake.lastWrite().Form["description"])
	assert.Equal(t, "image:poster.png", h.fake.lastWrite().File)

	body, ct = multipartBody(t, map[string]string{"description": "Moved"}, "", "")
	rec = h.do(http.MethodPut, "/admin/events/e9", body, map[string]string{"Authorization": auth, "Content-Type": ct})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.MethodPut, h.fake.lastWrite().Method)
	assert.Equal(t, "/api/events/e9", h.fake.lastWrite().Path)
	assert.Empty(t, h.fake.lastWrite().File)

	rec = h.do(http.MethodDelete, "/admin/events/e9", nil, map[string]string{"Authorization": auth})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.MethodDelete, h.fake.lastWrite().Method)

	body, ct = multipartBody(t, map[string]string{"description": "no name"}, "", "")
	rec = h.do(http.MethodPost, "/admin/events", body, map[string]string{"Authorization": auth, "Content-Type": ct})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_BrandAndAboutWrites(t *testing.T) {
	h := newHarness(t)
	auth := "Bearer tok-123"

	body, ct := multipartBody(t, map[string]string{"title": "Walnut & Co"}, "Image", "logo.png")
	rec := h.do(http.MethodPost, "/admin/brands", body, map[string]string{"Authorization": auth, "Content-Type": ct})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/BrandsSection", h.fake.lastWrite().Path)
	assert.Equal(t, "Walnut & Co", h.fake.lastWrite().Form["Title"])
	assert.Equal(t, "Image:logo.png", h.fake.lastWrite().File)

	rec = h.do(http.MethodDelete, "/admin/brands/b1", nil, map[string]string{"Authorization": auth})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/api/BrandsSection/b1", h.fake.lastWrite().Path)

	body, ct = multipartBody(t, map[string]string{"id": "a1", "description1": "New", "description2": "Copy"}, "", "")
	rec = h.do(http.MethodPut, "/admin/about", body, map[string]string{"Authorization": auth, "Content-Type": ct})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.MethodPut, h.fake.lastWrite().Method)
	assert.Equal(t, "/api/AboutSection/a1", h.fake.lastWrite().Path)
	assert.Equal(t, "New", h.fake.lastWrite().Form["description1"])
}
