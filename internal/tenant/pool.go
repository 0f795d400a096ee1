package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/jewelry-storefront/internal/metrics"
)

// ErrDatabaseUnavailable wraps failures to open a client database.
var ErrDatabaseUnavailable = errors.New("database unavailable")

// Opener opens and verifies a database connection for a DSN.
type Opener func(ctx context.Context, dsn string) (*sql.DB, error)

// ConfigSource returns client configurations.  *Loader implements it.
type ConfigSource interface {
	Load(id string) (ClientConfig, error)
}

const (
	healthTimeout = 2 * time.Second
	openTimeout   = 10 * time.Second
	retireAfter   = 30 * time.Second
)

// Pool owns one *sql.DB per client.  Handles are opened on first use,
// reused while they answer a ping and replaced when they do not.  A
// replaced handle stays open for a grace period so requests already
// holding it can finish.
type Pool struct {
	configs     ConfigSource
	open        Opener
	log         *zap.Logger
	retireAfter time.Duration

	mu      sync.Mutex
	conns   map[string]*sql.DB
	retired map[*sql.DB]*time.Timer
	group   singleflight.Group
}

// NewPool builds an empty pool.
func NewPool(configs ConfigSource, open Opener, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		configs:     configs,
		open:        open,
		log:         log,
		retireAfter: retireAfter,
		conns:       make(map[string]*sql.DB),
		retired:     make(map[*sql.DB]*time.Timer),
	}
}

// Resolve loads the configuration of id and returns it with a live
// connection.  A client whose catalog is not database-backed still
// resolves while its database is down, with a nil DB, so the catalog
// stays browsable; handlers that need the database report it unavailable.
func (p *Pool) Resolve(ctx context.Context, id string) (*Tenant, error) {
	cfg, err := p.configs.Load(id)
	if err != nil {
		return nil, err
	}
	db, err := p.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDatabaseUnavailable) && cfg.CatalogSource != CatalogDatabase {
			p.log.Warn("client database down, serving without it", zap.String("client", id), zap.Error(err))
			return &Tenant{ID: id, Config: cfg}, nil
		}
		return nil, err
	}
	return &Tenant{ID: id, Config: cfg, DB: db}, nil
}

// Get returns a healthy connection for id.
func (p *Pool) Get(ctx context.Context, id string) (*sql.DB, error) {
	p.mu.Lock()
	db, ok := p.conns[id]
	p.mu.Unlock()

	if ok {
		pctx, cancel := context.WithTimeout(ctx, healthTimeout)
		err := db.PingContext(pctx)
		cancel()
		if err == nil {
			return db, nil
		}
		p.log.Warn("client database unhealthy, reconnecting", zap.String("client", id), zap.Error(err))
		p.evict(id, db)
	}

	v, err, _ := p.group.Do(id, func() (interface{}, error) {
		// Another caller may have finished an open between our check and Do.
		p.mu.Lock()
		if db, ok := p.conns[id]; ok {
			p.mu.Unlock()
			return db, nil
		}
		p.mu.Unlock()

		cfg, err := p.configs.Load(id)
		if err != nil {
			return nil, err
		}
		// Detached from the caller; every waiter shares this open.
		octx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()
		db, err := p.open(octx, cfg.DatabaseURL)
		metrics.ConnectionOpened(id, err)
		if err != nil {
			return nil, fmt.Errorf("%w: client %s: %w", ErrDatabaseUnavailable, id, err)
		}

		p.mu.Lock()
		p.conns[id] = db
		n := len(p.conns)
		p.mu.Unlock()
		metrics.SetOpenConnections(n)
		p.log.Info("client database connected", zap.String("client", id))
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

// evict drops db from the cache if it is still the cached handle for id
// and schedules it to be closed once in-flight users are done with it.
func (p *Pool) evict(id string, db *sql.DB) {
	p.mu.Lock()
	if cur, ok := p.conns[id]; !ok || cur != db {
		p.mu.Unlock()
		return
	}
	delete(p.conns, id)
	n := len(p.conns)
	p.retired[db] = time.AfterFunc(p.retireAfter, func() { p.retire(db) })
	p.mu.Unlock()
	metrics.SetOpenConnections(n)
}

func (p *Pool) retire(db *sql.DB) {
	p.mu.Lock()
	_, ok := p.retired[db]
	delete(p.retired, db)
	p.mu.Unlock()
	if ok {
		_ = db.Close()
	}
}

// Close closes and forgets the connection for id, if any.
func (p *Pool) Close(id string) error {
	p.mu.Lock()
	db, ok := p.conns[id]
	delete(p.conns, id)
	n := len(p.conns)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	metrics.SetOpenConnections(n)
	return db.Close()
}

// CloseAll closes every cached connection, including replaced handles
// still in their grace period.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	conns := p.conns
	retired := p.retired
	p.conns = make(map[string]*sql.DB)
	p.retired = make(map[*sql.DB]*time.Timer)
	p.mu.Unlock()

	var errs []error
	for db, timer := range retired {
		timer.Stop()
		_ = db.Close()
	}
	for id, db := range conns {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close client %s: %w", id, err))
			continue
		}
		p.log.Info("client database closed", zap.String("client", id))
	}
	metrics.SetOpenConnections(0)
	return errors.Join(errs...)
}

// Len reports how many connections are cached.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}
