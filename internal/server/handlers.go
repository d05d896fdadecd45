package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"baf-site/internal/aggregate"
	"baf-site/internal/cms"
	"baf-site/internal/logger"
	"baf-site/internal/metrics"
	"baf-site/internal/model"
	"baf-site/internal/store"
)

type handlers struct {
	cms     *cms.Client
	fetcher *aggregate.Fetcher
	dedup   *store.Dedup
	log     *logger.Logger
	metrics *metrics.Metrics
}

// detail is the payload of the per-item pages.
type detail[T any] struct {
	Item T      `json:"item"`
	Prev string `json:"prev"`
	Next string `json:"next"`
}

func (h *handlers) content(c *gin.Context) {
	b, err := h.fetcher.FetchAll(c.Request.Context())
	if err != nil && c.Request.Context().Err() != nil {
		// client went away; nobody reads the answer
		h.log.Debug("content fetch abandoned", "error", err, "request_id", c.GetString(ctxRequestID))
		c.AbortWithStatus(statusClientClosed)
		return
	}
	if err != nil {
		h.log.Error("content fetch failed", "error", err, "request_id", c.GetString(ctxRequestID))
		RespondError(c, http.StatusInternalServerError, "content_unavailable", errContentUnavailable)
		return
	}
	RespondOK(c, b)
}

func (h *handlers) eventDetail(c *gin.Context) {
	slug := c.Param("slug")
	evs, err := h.cms.Events(c.Request.Context())
	if err != nil {
		// the list is only needed for prev/next; the slug query below still answers
		h.log.Warn("events list failed", "error", err)
	}
	prev, next := model.Neighbors(model.EventSlugs(evs), slug)
	for _, e := range evs {
		if e.Slug == slug {
			RespondOK(c, detail[model.Event]{Item: e, Prev: prev, Next: next})
			return
		}
	}
	ev, err := h.cms.EventBySlug(c.Request.Context(), slug)
	if err != nil {
		respondCMSError(c, err)
		return
	}
	if ev == nil {
		RespondError(c, http.StatusNotFound, "not_found", errors.New("event not found"))
		return
	}
	RespondOK(c, detail[model.Event]{Item: *ev})
}

func (h *handlers) brandDetail(c *gin.Context) {
	slug := c.Param("slug")
	bs, err := h.cms.Brands(c.Request.Context())
	if err != nil {
		respondCMSError(c, err)
		return
	}
	for _, b := range bs {
		if b.Slug == slug {
			prev, next := model.Neighbors(model.BrandSlugs(bs), slug)
			RespondOK(c, detail[model.Brand]{Item: b, Prev: prev, Next: next})
			return
		}
	}
	RespondError(c, http.StatusNotFound, "not_found", errors.New("brand not found"))
}

func (h *handlers) catalogDetail(c *gin.Context) {
	slug := c.Param("slug")
	items, err := h.cms.Catalog(c.Request.Context())
	if err != nil {
		respondCMSError(c, err)
		return
	}
	for _, it := range items {
		if it.Slug == slug {
			prev, next := model.Neighbors(model.CatalogSlugs(items), slug)
			RespondOK(c, detail[model.CatalogItem]{Item: it, Prev: prev, Next: next})
			return
		}
	}
	RespondError(c, http.StatusNotFound, "not_found", errors.New("catalog item not found"))
}

func (h *handlers) stats(c *gin.Context) {
	st, err := h.cms.Progress(c.Request.Context())
	if err != nil {
		respondCMSError(c, err)
		return
	}
	RespondOK(c, st)
}

type contactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Message string `json:"message" binding:"required"`
}

func (h *handlers) contact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.IncContact("invalid")
		RespondError(c, http.StatusBadRequest, "invalid", errors.New("name, a valid email and message are required"))
		return
	}
	key := store.SubmissionKey(req.Email, req.Message)
	if h.dedup.CheckAndMark(key) {
		h.metrics.IncContact("duplicate")
		RespondError(c, http.StatusConflict, "duplicate", errors.New("this message was already sent"))
		return
	}
	err := h.cms.SubmitNotification(c.Request.Context(), model.Notification{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Message: req.Message,
	})
	if err != nil {
		h.dedup.Forget(key)
		h.metrics.IncContact("error")
		h.log.Error("contact submit failed", "error", err, "email", req.Email)
		respondCMSError(c, err)
		return
	}
	h.metrics.IncContact("ok")
	c.JSON(http.StatusCreated, gin.H{"status": model.NotificationUnread})
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid", errors.New("email and password are required"))
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = strings.TrimSpace(req.Username)
	}
	if email == "" {
		RespondError(c, http.StatusBadRequest, "invalid", errors.New("email and password are required"))
		return
	}
	res, err := h.cms.Login(c.Request.Context(), email, req.Password)
	if err != nil {
		h.log.Warn("admin login failed", "email", email, "error", err)
		var se *cms.StatusError
		var ue *url.Error
		switch {
		case errors.As(err, &se) && se.Status < 500:
			RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New(se.Message()))
		case errors.As(err, &se), errors.As(err, &ue):
			RespondError(c, http.StatusBadGateway, "cms_error", err)
		default:
			// 2xx without a token or user
			RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		}
		return
	}
	RespondOK(c, res)
}

// upload opens the optional file part named field. The returned close func is never nil.
func upload(c *gin.Context, field string) (*cms.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &cms.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}, func() { _ = f.Close() }, nil
}

func firstForm(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.PostForm(k)); v != "" {
			return v
		}
	}
	return ""
}

func (h *handlers) saveAbout(c *gin.Context) {
	up, done, err := upload(c, "image")
	defer done()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid", err)
		return
	}
	in := cms.AboutInput{
		Description1: firstForm(c, "description1"),
		Description2: firstForm(c, "description2"),
		Image:        up,
	}
	a, err := h.cms.SaveAbout(c.Request.Context(), adminSession(c).Token(), c.PostForm("id"), in)
	if err != nil {
		respondCMSError(c, err)
		return
	}
	RespondOK(c, a)
}

func (h *handlers) eventInput(c *gin.Context) (cms.EventInput, func(), error) {
	up, done, err := upload(c, "image")
	return cms.EventInput{
		Name:        firstForm(c, "name", "event_name"),
		Description: firstForm(c, "description"),
		Image:       up,
	}, done, err
}

func (h *handlers) createEvent(c *gin.Context) {
	in, done, err := h.eventInput(c)
	defer done()
	if err == nil && in.Name == "" {
		err = errors.New("name is required")
	}
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid", err)
		return
	}
	ev, err := h.cms.CreateEvent(c.Request.Context(), adminSession(c).Token(), in)
	if err != nil {
		respondCMSError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (h *handlers) updateEvent(c *gin.Context) {
	in, done, err := h.eventInput(c)
	defer done()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid", err)
		return
	}
	ev, err := h.cms.UpdateEvent(c.Request.Context(), adminSession(c).Token(), c.Param("id"), in)
	if err != nil {
		respondCMSError(c, err)
		return
	}
	RespondOK(c, ev)
}

func (h *handlers) deleteEvent(c *gin.Context) {
	if err := h.cms.DeleteEvent(c.Request.Context(), adminSession(c).Token(), c.Param("id")); err != nil {
		respondCMSError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) brandInput(c *gin.Context) (cms.BrandInput, func(), error) {
	up, done, err := upload(c, "image")
	if err == nil && up == nil {
		up, done, err = upload(c, "Image")
	}
	return cms.BrandInput{
		Title: firstForm(c, "title", "Title"),
		Slug:  firstForm(c, "slug", "Slug"),
		Image: up,
	}, done, err
}

func (h *handlers) createBrand(c *gin.Context) {
	in, done, err := h.brandInput(c)
	defer done()
	if err == nil && in.Title == "" {
		err = errors.New("title is required")
	}
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid", err)
		return
	}
	b, err := h.cms.CreateBrand(c.Request.Context(), adminSession(c).Token(), in)
	if err != nil {
		respondCMSError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *handlers) updateBrand(c *gin.Context) {
	in, done, err := h.brandInput(c)
	defer done()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid", err)
		return
	}
	b, err := h.cms.UpdateBrand(c.Request.Context(), adminSession(c).Token(), c.Param("id"), in)
	if err != nil {
		respondCMSError(c, err)
		return
	}
	RespondOK(c, b)
}

func (h *handlers) deleteBrand(c *gin.Context) {
	if err := h.cms.DeleteBrand(c.Request.Context(), adminSession(c).Token(), c.Param("id")); err != nil {
		respondCMSError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
