package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Records arrive as loose JSON maps; different CMS iterations spell the same
// field differently (Slug vs slug, Title vs title). Everything is decoded here,
// once, into the canonical structs.

// lookup finds the first alias present in m. Exact keys win over case-insensitive ones.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	for _, k := range keys {
		for mk, v := range m {
			if v != nil && strings.EqualFold(mk, k) {
				return v, true
			}
		}
	}
	return nil, false
}

// pickStr returns the first non-empty string (or number) under any alias.
func pickStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case json.Number:
			return t.String()
		}
	}
	return ""
}

func pickNum(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		v, ok := lookup(m, k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t
		case json.Number:
			if f, err := t.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func pickImage(m map[string]any, keys ...string) ImageRef {
	for _, k := range keys {
		if v, ok := lookup(m, k); ok {
			if ref, err := imageFromAny(v); err == nil && !ref.IsZero() {
				return ref
			}
		}
	}
	return ImageRef{}
}

func pickTime(m map[string]any, keys ...string) *time.Time {
	if s := pickStr(m, keys...); s != "" {
		if t, err := parseTimeFlexible(s); err == nil {
			return &t
		}
	}
	return nil
}

func pickMaps(m map[string]any, keys ...string) []map[string]any {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if mm, ok := it.(map[string]any); ok {
			out = append(out, mm)
		}
	}
	return out
}

// Parse timestamps in a few common formats (RFC3339, epoch seconds, common layouts)
func parseTimeFlexible(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if len(s) >= 10 {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC(), nil
		}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %s", s)
}

func slugOr(m map[string]any, title string) string {
	if s := pickStr(m, "slug", "Slug"); s != "" {
		return s
	}
	if title == "" {
		return ""
	}
	return slug.Make(title)
}

// AboutFromDoc decodes an AboutSection document.
func AboutFromDoc(m map[string]any) *About {
	if m == nil {
		return nil
	}
	return &About{
		ID:           pickStr(m, "id", "_id"),
		Description1: pickStr(m, "description1", "description"),
		Description2: pickStr(m, "description2"),
		Image:        pickImage(m, "image", "Image"),
	}
}

func EventFromDoc(m map[string]any) Event {
	name := pickStr(m, "event_name", "name", "title")
	ev := Event{
		ID:               pickStr(m, "id", "_id"),
		Name:             name,
		Description:      pickStr(m, "description"),
		Image:            pickImage(m, "image", "Image"),
		Slug:             slugOr(m, name),
		Date:             pickTime(m, "date", "startDate"),
		EndDate:          pickTime(m, "endDate", "end_date"),
		Status:           pickStr(m, "status"),
		Location:         pickStr(m, "location"),
		Category:         pickStr(m, "category"),
		RegistrationLink: pickStr(m, "registrationLink", "registration_link"),
	}
	for _, sp := range pickMaps(m, "speakers") {
		ev.Speakers = append(ev.Speakers, Speaker{
			Name:  pickStr(sp, "name"),
			Role:  pickStr(sp, "role", "designation", "title"),
			Image: pickImage(sp, "image", "photo"),
		})
	}
	return ev
}

func BrandFromDoc(m map[string]any) Brand {
	title := pickStr(m, "Title", "title", "name")
	b := Brand{
		ID:    pickStr(m, "id", "_id"),
		Title: title,
		Slug:  slugOr(m, title),
		Image: pickImage(m, "Main Image", "mainImage", "main_image", "Image", "image", "logo"),
	}
	// Either a list of sections or numbered flat fields ("Content", "Content 2", ...).
	if secs := pickMaps(m, "content", "sections"); len(secs) > 0 {
		for _, s := range secs {
			if html := pickStr(s, "html", "content", "description", "text"); html != "" {
				b.Content = append(b.Content, html)
			}
			if img := pickImage(s, "image"); !img.IsZero() {
				b.Gallery = append(b.Gallery, img)
			}
		}
	} else {
		for _, k := range []string{"Content", "Content 2", "Content 3", "Content 4"} {
			if html := pickStr(m, k); html != "" {
				b.Content = append(b.Content, html)
			}
		}
	}
	for _, k := range []string{"Image 1", "Image 2", "Image 3"} {
		if img := pickImage(m, k); !img.IsZero() {
			b.Gallery = append(b.Gallery, img)
		}
	}
	return b
}

func CatalogFromDoc(m map[string]any) CatalogItem {
	title := pickStr(m, "Title", "title", "name")
	c := CatalogItem{
		ID:          pickStr(m, "id", "_id"),
		Title:       title,
		Slug:        slugOr(m, title),
		Description: pickStr(m, "description", "Description"),
		Image:       pickImage(m, "Image", "image"),
	}
	if v, ok := lookup(m, "gallery", "images"); ok {
		if arr, ok := v.([]any); ok {
			for _, it := range arr {
				// Payload array fields wrap uploads as {image: {...}}.
				if mm, ok := it.(map[string]any); ok {
					if inner, nested := lookup(mm, "image"); nested {
						it = inner
					}
				}
				if img, err := imageFromAny(it); err == nil && !img.IsZero() {
					c.Gallery = append(c.Gallery, img)
				}
			}
		}
	}
	return c
}

func StatsFromDoc(m map[string]any) Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		DesignProjectsCompleted: int(pickNum(m, "design_projects_completed")),
		ClientSatisfactionRate:  pickNum(m, "client_satisfaction_rate"),
		YearsOfExperience:       int(pickNum(m, "years_of_experience")),
	}
}

func EventsFromDocs(docs []map[string]any) []Event {
	out := make([]Event, 0, len(docs))
	for _, d := range docs {
		out = append(out, EventFromDoc(d))
	}
	return out
}

func BrandsFromDocs(docs []map[string]any) []Brand {
	out := make([]Brand, 0, len(docs))
	for _, d := range docs {
		out = append(out, BrandFromDoc(d))
	}
	return out
}

func CatalogFromDocs(docs []map[string]any) []CatalogItem {
	out := make([]CatalogItem, 0, len(docs))
	for _, d := range docs {
		out = append(out, CatalogFromDoc(d))
	}
	return out
}
