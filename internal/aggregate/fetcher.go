// Package aggregate builds the home page content bundle from several CMS
// collections fetched in parallel.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"baf-site/internal/cms"
	"baf-site/internal/logger"
	"baf-site/internal/metrics"
	"baf-site/internal/model"
)

// Reader is the set of collection reads one bundle is made of.
// *cms.Client implements it. Validate reports a configuration that no read
// could succeed with.
type Reader interface {
	Validate() error
	About(ctx context.Context) (*model.About, error)
	Events(ctx context.Context) ([]model.Event, error)
	Brands(ctx context.Context) ([]model.Brand, error)
	Catalog(ctx context.Context) ([]model.CatalogItem, error)
}

const DefaultTimeout = 15 * time.Second

var ErrNoReader = errors.New("aggregate: no content reader configured")

type Fetcher struct {
	src     Reader
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewFetcher wires a Reader with a per-request timeout (<=0 means DefaultTimeout).
func NewFetcher(src Reader, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Fetcher{src: src, timeout: timeout, log: log.With("component", "aggregate"), metrics: m}
}

// collection is one leg of the fan-out. load stores its own result; the
// field it writes is fixed here, not by completion order.
type collection struct {
	name string
	load func(ctx context.Context) error
}

// FetchAll issues every collection read concurrently, waits for all of them
// to settle and merges the results into a new bundle. A failed collection
// contributes its empty default and is logged; it never fails the call.
//
// An error is returned only when the fetch cannot run at all (no reader, or a
// reader whose configuration is invalid; no request is sent), or when ctx was
// cancelled by the caller (the cycle is abandoned and no bundle is produced).
func (f *Fetcher) FetchAll(ctx context.Context) (*model.ContentBundle, error) {
	if f == nil || f.src == nil {
		return nil, ErrNoReader
	}
	if err := f.src.Validate(); err != nil {
		f.log.Error("content fetch not started", "error", err)
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		about   *model.About
		events  []model.Event
		brands  []model.Brand
		catalog []model.CatalogItem
	)
	legs := []collection{
		{cms.CollectionAbout, func(c context.Context) (err error) { about, err = f.src.About(c); return }},
		{cms.CollectionEvents, func(c context.Context) (err error) { events, err = f.src.Events(c); return }},
		{cms.CollectionBrands, func(c context.Context) (err error) { brands, err = f.src.Brands(c); return }},
		{cms.CollectionCatalog, func(c context.Context) (err error) { catalog, err = f.src.Catalog(c); return }},
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	// Plain Group, not WithContext: one failure must not cancel the others.
	var g errgroup.Group
	for _, leg := range legs {
		g.Go(func() error {
			if err := f.settle(ctx, leg); err != nil {
				mu.Lock()
				failed = append(failed, leg.name)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		f.log.Debug("content fetch abandoned", "error", err)
		return nil, err
	}

	b := model.NewContentBundle()
	if !slices.Contains(failed, cms.CollectionAbout) {
		b.About = about
	}
	if !slices.Contains(failed, cms.CollectionEvents) && events != nil {
		b.Events = events
	}
	if !slices.Contains(failed, cms.CollectionBrands) && brands != nil {
		b.Brands = brands
	}
	if !slices.Contains(failed, cms.CollectionCatalog) && catalog != nil {
		b.Catalog = catalog
	}

	elapsed := time.Since(start)
	f.metrics.ObserveFetch(elapsed, len(failed) == 0)
	f.log.Debug("content fetched",
		"duration", elapsed.Truncate(time.Millisecond).String(),
		"events", len(b.Events), "brands", len(b.Brands), "catalog", len(b.Catalog),
		"about", b.About != nil, "failed", failed)
	return b, nil
}

func (f *Fetcher) settle(ctx context.Context, leg collection) error {
	c, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	err := leg.load(c)
	if err != nil && ctx.Err() == nil {
		f.log.Warn("content fetch failed", "collection", leg.name, "error", err)
	}
	return err
}
