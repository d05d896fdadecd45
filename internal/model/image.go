package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ImageRef is either a bare URL or an uploaded media object.
// UpdatedAt is only used to bust caches in Src.
type ImageRef struct {
	URL       string
	Alt       string
	UpdatedAt time.Time
}

func (r ImageRef) IsZero() bool { return r.URL == "" }

// Src is the URL to render; it carries ?v=<updatedAt ms> when the update time is known.
func (r ImageRef) Src() string {
	if r.URL == "" || r.UpdatedAt.IsZero() {
		return r.URL
	}
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	return r.URL + sep + "v=" + strconv.FormatInt(r.UpdatedAt.UnixMilli(), 10)
}

type imageJSON struct {
	URL       string `json:"url"`
	Alt       string `json:"alt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	Src       string `json:"src"`
}

func (r ImageRef) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	out := imageJSON{URL: r.URL, Alt: r.Alt, Src: r.Src()}
	if !r.UpdatedAt.IsZero() {
		out.UpdatedAt = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

func (r *ImageRef) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	ref, err := imageFromAny(v)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// imageFromAny accepts nil, a URL string, or a media object map.
func imageFromAny(v any) (ImageRef, error) {
	switch t := v.(type) {
	case nil:
		return ImageRef{}, nil
	case string:
		return ImageRef{URL: strings.TrimSpace(t)}, nil
	case map[string]any:
		ref := ImageRef{
			URL: pickStr(t, "url", "src"),
			Alt: pickStr(t, "alt", "filename"),
		}
		if s := pickStr(t, "updatedAt", "updated_at"); s != "" {
			if ts, err := parseTimeFlexible(s); err == nil {
				ref.UpdatedAt = ts
			}
		}
		return ref, nil
	default:
		return ImageRef{}, fmt.Errorf("image: unsupported value %T", v)
	}
}
