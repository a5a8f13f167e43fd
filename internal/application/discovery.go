package application

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// CollisionMode selects how repeated logical filenames are handled.
type CollisionMode string

const (
	// CollisionRename keeps every occurrence under a numbered name.
	CollisionRename CollisionMode = "rename"
	// CollisionFirst keeps the first occurrence and drops the rest.
	CollisionFirst CollisionMode = "first"
)

// DiscoveryConfig configures object discovery.
type DiscoveryConfig struct {
	Layouts    []string // path prefixes before the area key, e.g. co/2021/60cm/rgbir_cog
	Workers    int      // concurrent listings
	Collisions CollisionMode
	Timeout    time.Duration // per listing
}

// Discovery is the outcome of listing and filtering.
type Discovery struct {
	Tasks       []domain.TransferTask
	Listings    int // successful (layout, area) listings
	ObjectsSeen int
	Duplicates  int
	Failures    []domain.AreaFailure
}

// Discoverer turns a catalog into transfer tasks.
type Discoverer struct {
	source  output.SourceStore
	cfg     DiscoveryConfig
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewDiscoverer creates a discoverer.
func NewDiscoverer(source output.SourceStore, cfg DiscoveryConfig, metrics output.MetricsCollector, logger *slog.Logger) *Discoverer {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Collisions == "" {
		cfg.Collisions = CollisionRename
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &Discoverer{source: source, cfg: cfg, metrics: metrics, logger: logger}
}

// AreaPrefix returns the listing prefix for one area under layout.
func AreaPrefix(layout string, area domain.AreaKey) string {
	layout = strings.Trim(layout, "/")
	if layout == "" {
		return string(area) + "/"
	}
	return path.Join(layout, string(area)) + "/"
}

type listing struct {
	area    domain.AreaKey
	prefix  string
	objects []output.StorageObject
	err     error
}

// Discover lists every (layout, area) pair once, after dropping any listing
// cache the source keeps from an earlier run, keeps catalog tiles and
// assigns physical names. Listings run concurrently; tasks are built in a
// single pass over areas in sorted order, layouts in configured order and
// keys in listing order, so names do not depend on scheduling.
func (d *Discoverer) Discover(ctx context.Context, catalog *domain.Catalog) (*Discovery, error) {
	if r, ok := d.source.(output.Refresher); ok {
		r.Refresh()
	}

	areas := catalog.AreaKeys()

	listings := make([]listing, 0, len(areas)*len(d.cfg.Layouts))
	for _, area := range areas {
		for _, layout := range d.cfg.Layouts {
			listings = append(listings, listing{area: area, prefix: AreaPrefix(layout, area)})
		}
	}

	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for i := range listings {
		g.Go(func() error {
			l := &listings[i]
			start := time.Now()
			l.err = withTimeout(ctx, d.cfg.Timeout, func(ctx context.Context) error {
				var err error
				l.objects, err = d.source.List(ctx, l.prefix)
				return err
			})
			d.metrics.ObserveStorageDuration("list", time.Since(start))
			d.metrics.IncStorageOperations("list", l.err == nil)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return d.resolve(catalog, listings), nil
}

func (d *Discoverer) resolve(catalog *domain.Catalog, listings []listing) *Discovery {
	resolver := domain.NewCollisionResolver()
	out := &Discovery{}

	for _, l := range listings {
		if l.err != nil {
			lerr := &domain.ListingError{Prefix: l.prefix, AreaKey: l.area, Err: l.err}
			d.logger.Warn("area listing failed, skipping",
				"area_key", l.area,
				"prefix", l.prefix,
				"error", lerr,
			)
			d.metrics.IncListings(false)
			out.Failures = append(out.Failures, domain.AreaFailure{
				AreaKey: l.area,
				Prefix:  l.prefix,
				Error:   l.err.Error(),
			})
			continue
		}
		d.metrics.IncListings(true)
		out.Listings++

		for _, obj := range l.objects {
			out.ObjectsSeen++
			ref, ok := domain.ParseObjectKey(obj.Key)
			if !ok || !catalog.Contains(ref.ID) {
				continue
			}

			logical := ref.LogicalFilename()
			if resolver.Seen(logical) > 0 {
				out.Duplicates++
				if d.cfg.Collisions == CollisionFirst {
					d.logger.Debug("dropping duplicate tile",
						"source_key", obj.Key,
						"target_key", logical,
					)
					continue
				}
			}

			out.Tasks = append(out.Tasks, domain.TransferTask{
				Seq:          len(out.Tasks),
				SourceKey:    obj.Key,
				PhysicalName: resolver.Resolve(logical),
				Tile:         ref,
			})
		}
	}

	d.logger.Info("discovery complete",
		"areas", len(catalog.AreaKeys()),
		"listings", len(listings),
		"listings_failed", len(out.Failures),
		"objects_seen", out.ObjectsSeen,
		"tasks", len(out.Tasks),
		"duplicates", out.Duplicates,
	)
	return out
}
