package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"baf-site/internal/model"
)

// Upload is an image file attached to an admin form.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type AboutInput struct {
	Description1 string
	Description2 string
	Image        *Upload
}

type EventInput struct {
	Name        string
	Description string
	Image       *Upload
}

type BrandInput struct {
	Title string
	Slug  string
	Image *Upload
}

type LoginResult struct {
	Token string         `json:"token"`
	User  map[string]any `json:"user"`
	Exp   int64          `json:"exp,omitempty"`
}

// Login exchanges admin credentials for a token. The CMS expects the
// username in the "email" field.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return LoginResult{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.ep.Login, bytes.NewReader(body))
	if err != nil {
		return LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.do(req, "login")
	if err != nil {
		return LoginResult{}, err
	}
	var out struct {
		LoginResult
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return LoginResult{}, fmt.Errorf("cms: decode login: %w", err)
	}
	if out.Token == "" || out.User == nil {
		msg := out.Message
		if msg == "" {
			msg = "login failed"
		}
		return LoginResult{}, fmt.Errorf("cms: %s", msg)
	}
	return out.LoginResult, nil
}

// SaveAbout creates the about section when id is empty and updates it otherwise.
func (c *Client) SaveAbout(ctx context.Context, token, id string, in AboutInput) (*model.About, error) {
	fields := map[string]string{"description1": in.Description1, "description2": in.Description2}
	doc, err := c.writeForm(ctx, token, CollectionAbout, c.ep.AboutAdmin, id, fields, "image", in.Image)
	if err != nil {
		return nil, err
	}
	return model.AboutFromDoc(doc), nil
}

func (c *Client) CreateEvent(ctx context.Context, token string, in EventInput) (model.Event, error) {
	return c.saveEvent(ctx, token, "", in)
}

func (c *Client) UpdateEvent(ctx context.Context, token, id string, in EventInput) (model.Event, error) {
	if id == "" {
		return model.Event{}, errors.New("cms: event id required")
	}
	return c.saveEvent(ctx, token, id, in)
}

func (c *Client) saveEvent(ctx context.Context, token, id string, in EventInput) (model.Event, error) {
	fields := map[string]string{"event_name": in.Name, "description": in.Description}
	doc, err := c.writeForm(ctx, token, CollectionEvents, c.ep.EventsAdmin, id, fields, "image", in.Image)
	if err != nil {
		return model.Event{}, err
	}
	return model.EventFromDoc(doc), nil
}

func (c *Client) DeleteEvent(ctx context.Context, token, id string) error {
	return c.delete(ctx, token, CollectionEvents, c.ep.EventsAdmin, id)
}

func (c *Client) CreateBrand(ctx context.Context, token string, in BrandInput) (model.Brand, error) {
	return c.saveBrand(ctx, token, "", in)
}

func (c *Client) UpdateBrand(ctx context.Context, token, id string, in BrandInput) (model.Brand, error) {
	if id == "" {
		return model.Brand{}, errors.New("cms: brand id required")
	}
	return c.saveBrand(ctx, token, id, in)
}

func (c *Client) saveBrand(ctx context.Context, token, id string, in BrandInput) (model.Brand, error) {
	fields := map[string]string{"Title": in.Title}
	if in.Slug != "" {
		fields["Slug"] = in.Slug
	}
	doc, err := c.writeForm(ctx, token, CollectionBrands, c.ep.BrandsAdmin, id, fields, "Image", in.Image)
	if err != nil {
		return model.Brand{}, err
	}
	return model.BrandFromDoc(doc), nil
}

func (c *Client) DeleteBrand(ctx context.Context, token, id string) error {
	return c.delete(ctx, token, CollectionBrands, c.ep.BrandsAdmin, id)
}

// SubmitNotification posts a contact-form message. Status defaults to unread
// and phone is always sent as a string.
func (c *Client) SubmitNotification(ctx context.Context, n model.Notification) error {
	if n.Status == "" {
		n.Status = model.NotificationUnread
	}
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.ep.Notifications, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req, "notifications")
	return err
}

func itemPath(root, id string) string {
	if id == "" {
		return root
	}
	return strings.TrimRight(root, "/") + "/" + url.PathEscape(id)
}

// writeForm POSTs (id empty) or PUTs a multipart form and decodes the returned document.
func (c *Client) writeForm(ctx context.Context, token, collection, root, id string, fields map[string]string, fileField string, up *Upload) (map[string]any, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	body, contentType, err := buildMultipart(fields, fileField, up)
	if err != nil {
		return nil, err
	}
	method := http.MethodPost
	if id != "" {
		method = http.MethodPut
	}
	req, err := c.newRequest(ctx, method, itemPath(root, id), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	raw, err := c.do(req, collection)
	if err != nil {
		return nil, err
	}
	return decodeDoc(raw)
}

func (c *Client) delete(ctx context.Context, token, collection, root, id string) error {
	if token == "" {
		return ErrUnauthorized
	}
	if id == "" {
		return fmt.Errorf("cms: %s id required", collection)
	}
	req, err := c.newRequest(ctx, http.MethodDelete, itemPath(root, id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	_, err = c.do(req, collection)
	return err
}

func buildMultipart(fields map[string]string, fileField string, up *Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if up != nil && up.Body != nil {
		ct := up.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		name := up.Filename
		if name == "" {
			name = "upload"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, name))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, up.Body); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
