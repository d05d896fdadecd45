package cms

import (
	"context"
	"net/url"

	"baf-site/internal/model"
)

// Collection names used for logs and metric labels.
const (
	CollectionAbout    = "about"
	CollectionEvents   = "events"
	CollectionBrands   = "brands"
	CollectionCatalog  = "catalog"
	CollectionProgress = "progress"
)

// About returns the first AboutSection document, or nil when there is none.
func (c *Client) About(ctx context.Context) (*model.About, error) {
	docs, err := c.List(ctx, CollectionAbout, c.ep.About)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return model.AboutFromDoc(docs[0]), nil
}

func (c *Client) Events(ctx context.Context) ([]model.Event, error) {
	docs, err := c.List(ctx, CollectionEvents, c.ep.Events)
	if err != nil {
		return nil, err
	}
	return model.EventsFromDocs(docs), nil
}

func (c *Client) Brands(ctx context.Context) ([]model.Brand, error) {
	docs, err := c.List(ctx, CollectionBrands, c.ep.Brands)
	if err != nil {
		return nil, err
	}
	return model.BrandsFromDocs(docs), nil
}

func (c *Client) Catalog(ctx context.Context) ([]model.CatalogItem, error) {
	docs, err := c.List(ctx, CollectionCatalog, c.ep.Catalog)
	if err != nil {
		return nil, err
	}
	return model.CatalogFromDocs(docs), nil
}

// Progress returns the site stats; zero values when the collection is empty.
func (c *Client) Progress(ctx context.Context) (model.Stats, error) {
	docs, err := c.List(ctx, CollectionProgress, c.ep.Progress)
	if err != nil {
		return model.Stats{}, err
	}
	if len(docs) == 0 {
		return model.Stats{}, nil
	}
	return model.StatsFromDoc(docs[0]), nil
}

// EventBySlug queries the events collection directly with a slug filter.
// Returns nil, nil when no event matches.
func (c *Client) EventBySlug(ctx context.Context, slug string) (*model.Event, error) {
	q := url.Values{}
	q.Set("where[slug][equals]", slug)
	q.Set("depth", "10")
	q.Set("limit", "1")
	docs, err := c.List(ctx, CollectionEvents, c.ep.EventsAdmin+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	ev := model.EventFromDoc(docs[0])
	return &ev, nil
}
