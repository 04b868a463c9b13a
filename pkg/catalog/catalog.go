package catalog

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/txn2/mcp-sapbo/pkg/client"
)

// defaultTTL is how long a cached snapshot is served before a read
// triggers a synchronous refresh.
const defaultTTL = 5 * time.Minute

// Gateway is the slice of the BO client the catalog needs.
type Gateway interface {
	ListUniverses(ctx context.Context) ([]client.Universe, error)
	UniverseOutline(ctx context.Context, universeID string) ([]client.OutlineObject, error)
}

// Config configures the catalog cache.
type Config struct {
	TTL time.Duration

	// StaleFallback serves the previous snapshot when a refresh fails
	// instead of propagating the error. Off by default: a refresh failure
	// surfaces as CatalogUnavailableError.
	StaleFallback bool
}

// Catalog caches universe metadata with a pull-based TTL: every read
// compares the snapshot age against the TTL and refreshes synchronously
// when stale. There is no background refresh. Concurrent readers share one
// in-flight fetch per key.
type Catalog struct {
	gw            Gateway
	ttl           time.Duration
	staleFallback bool

	mu      sync.RWMutex
	sources *sourceSnapshot
	columns map[string]*columnSnapshot

	group singleflight.Group
}

// sourceSnapshot is an atomically replaced view of the universe list.
// Every lookup map references only entries present in the same snapshot.
type sourceSnapshot struct {
	list      []DataSource
	byName    map[string]DataSource
	fetchedAt time.Time
}

// columnSnapshot is the cached column list of one data source.
type columnSnapshot struct {
	list      []ColumnDescriptor
	byName    map[string]ColumnDescriptor
	fetchedAt time.Time
}

// New creates a catalog over the given gateway.
func New(gw Gateway, cfg Config) *Catalog {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &Catalog{
		gw:            gw,
		ttl:           ttl,
		staleFallback: cfg.StaleFallback,
		columns:       make(map[string]*columnSnapshot),
	}
}

// ListDataSources returns the cached catalog, refreshing it when stale.
func (c *Catalog) ListDataSources(ctx context.Context) ([]DataSource, error) {
	snap, _, err := c.freshSources(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.list), nil
}

// ResolveDataSource looks a universe up by display name, case-insensitive.
// A name not present in the cache triggers one refresh before the lookup
// fails.
func (c *Catalog) ResolveDataSource(ctx context.Context, name string) (DataSource, error) {
	snap, refreshed, err := c.freshSources(ctx)
	if err != nil {
		return DataSource{}, err
	}
	if ds, ok := snap.byName[strings.ToLower(name)]; ok {
		return ds, nil
	}
	if !refreshed {
		snap, err = c.refreshSources(ctx, snap)
		if err != nil {
			return DataSource{}, err
		}
		if ds, ok := snap.byName[strings.ToLower(name)]; ok {
			return ds, nil
		}
	}
	return DataSource{}, client.NotFound("data source", name)
}

// ListColumns returns the cached column list of a data source, fetching it
// on first access and refreshing when stale.
func (c *Catalog) ListColumns(ctx context.Context, ds DataSource) ([]ColumnDescriptor, error) {
	snap, _, err := c.freshColumns(ctx, ds)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.list), nil
}

// ResolveColumn looks a column up by name on a data source,
// case-insensitive, refreshing once before the lookup fails.
func (c *Catalog) ResolveColumn(ctx context.Context, ds DataSource, name string) (ColumnDescriptor, error) {
	snap, refreshed, err := c.freshColumns(ctx, ds)
	if err != nil {
		return ColumnDescriptor{}, err
	}
	if col, ok := snap.byName[strings.ToLower(name)]; ok {
		return col, nil
	}
	if !refreshed {
		snap, err = c.refreshColumns(ctx, ds, snap)
		if err != nil {
			return ColumnDescriptor{}, err
		}
		if col, ok := snap.byName[strings.ToLower(name)]; ok {
			return col, nil
		}
	}
	return ColumnDescriptor{}, client.NotFound("column", name)
}

// Invalidate drops all cached metadata.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = nil
	c.columns = make(map[string]*columnSnapshot)
}

// freshSources returns a fresh source snapshot, refreshing when stale. The
// second result reports whether this call performed or joined a refresh.
func (c *Catalog) freshSources(ctx context.Context) (*sourceSnapshot, bool, error) {
	c.mu.RLock()
	snap := c.sources
	c.mu.RUnlock()

	if snap != nil && !c.stale(snap.fetchedAt) {
		return snap, false, nil
	}

	fresh, err := c.refreshSources(ctx, snap)
	if err != nil {
		if c.staleFallback && snap != nil {
			return snap, false, nil
		}
		return nil, false, err
	}
	return fresh, true, nil
}

// refreshSources replaces the source snapshot, sharing one in-flight fetch
// across concurrent callers. prev is the snapshot the caller observed: a
// flight that finds a newer snapshot already installed returns it without
// fetching, while prev == current forces a real fetch (lazy population on
// a name miss).
func (c *Catalog) refreshSources(ctx context.Context, prev *sourceSnapshot) (*sourceSnapshot, error) {
	v, err, _ := c.group.Do("sources", func() (any, error) {
		c.mu.RLock()
		current := c.sources
		c.mu.RUnlock()
		if current != nil && current != prev && !c.stale(current.fetchedAt) {
			return current, nil
		}

		universes, err := c.gw.ListUniverses(ctx)
		if err != nil {
			c.noteSchemaMismatch(err)
			return nil, client.Wrap(client.KindCatalogUnavailable, err, "fetching data source catalog")
		}

		snap := buildSourceSnapshot(universes)
		c.mu.Lock()
		c.sources = snap
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sourceSnapshot), nil
}

// freshColumns returns a fresh column snapshot for a data source.
func (c *Catalog) freshColumns(ctx context.Context, ds DataSource) (*columnSnapshot, bool, error) {
	c.mu.RLock()
	snap := c.columns[ds.ID]
	c.mu.RUnlock()

	if snap != nil && !c.stale(snap.fetchedAt) {
		return snap, false, nil
	}

	fresh, err := c.refreshColumns(ctx, ds, snap)
	if err != nil {
		if c.staleFallback && snap != nil {
			return snap, false, nil
		}
		return nil, false, err
	}
	return fresh, true, nil
}

// refreshColumns replaces the column snapshot of one data source, sharing
// one in-flight fetch across concurrent callers.
func (c *Catalog) refreshColumns(ctx context.Context, ds DataSource, prev *columnSnapshot) (*columnSnapshot, error) {
	v, err, _ := c.group.Do("columns:"+ds.ID, func() (any, error) {
		c.mu.RLock()
		current := c.columns[ds.ID]
		c.mu.RUnlock()
		if current != nil && current != prev && !c.stale(current.fetchedAt) {
			return current, nil
		}

		objects, err := c.gw.UniverseOutline(ctx, ds.ID)
		if err != nil {
			c.noteSchemaMismatch(err)
			return nil, client.Wrap(client.KindCatalogUnavailable, err, "fetching columns of "+ds.Name)
		}

		snap := buildColumnSnapshot(objects, ds.ID)
		c.mu.Lock()
		c.columns[ds.ID] = snap
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*columnSnapshot), nil
}

func (c *Catalog) stale(fetchedAt time.Time) bool {
	return time.Since(fetchedAt) >= c.ttl
}

// noteSchemaMismatch drops the whole cache when the remote service answers
// with a shape we no longer understand; the next read starts from scratch.
func (c *Catalog) noteSchemaMismatch(err error) {
	if client.KindOf(err) == client.KindProtocol {
		c.Invalidate()
	}
}

func buildSourceSnapshot(universes []client.Universe) *sourceSnapshot {
	snap := &sourceSnapshot{
		list:      make([]DataSource, 0, len(universes)),
		byName:    make(map[string]DataSource, len(universes)),
		fetchedAt: time.Now(),
	}
	for _, u := range universes {
		if u.Name == "" {
			continue
		}
		ds := newDataSource(u)
		snap.list = append(snap.list, ds)
		key := strings.ToLower(ds.Name)
		if _, exists := snap.byName[key]; !exists {
			snap.byName[key] = ds
		}
	}
	return snap
}

func buildColumnSnapshot(objects []client.OutlineObject, dataSourceID string) *columnSnapshot {
	snap := &columnSnapshot{
		list:      make([]ColumnDescriptor, 0, len(objects)),
		byName:    make(map[string]ColumnDescriptor, len(objects)),
		fetchedAt: time.Now(),
	}
	for _, o := range objects {
		col := newColumnDescriptor(o, dataSourceID)
		snap.list = append(snap.list, col)
		key := strings.ToLower(col.Name)
		if _, exists := snap.byName[key]; !exists {
			snap.byName[key] = col
		}
	}
	return snap
}
