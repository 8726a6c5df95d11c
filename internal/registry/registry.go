// Package registry keeps the live database connectors of a process.
package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tablereader/internal/dbclient"
	"tablereader/internal/domain"
	"tablereader/internal/errors"
	"tablereader/internal/logger"
)

// OpenFunc creates a connector for a stored connection.
type OpenFunc func(conn *domain.DatabaseConnection, password string) (dbclient.Connector, error)

// PasswordFunc resolves the password of a stored connection.
type PasswordFunc func(connID string) (string, error)

// Registry maps opaque keys to live connectors. One instance lives on the
// application context; there is no package-level registry.
type Registry struct {
	mu         sync.Mutex
	connectors map[string]dbclient.Connector

	store    domain.DatabaseConnectionStore
	password PasswordFunc
	open     OpenFunc
	log      *zap.SugaredLogger
}

// New returns a registry. store and password may be nil, in which case
// only explicitly registered connectors can be retrieved.
func New(store domain.DatabaseConnectionStore, password PasswordFunc) *Registry {
	return &Registry{
		connectors: make(map[string]dbclient.Connector),
		store:      store,
		password:   password,
		open:       dbclient.NewConnector,
		log:        logger.ComponentLogger("registry"),
	}
}

// Register stores c under a fresh key and returns the key.
func (r *Registry) Register(c dbclient.Connector) string {
	key := uuid.New().String()
	r.mu.Lock()
	r.connectors[key] = c
	r.mu.Unlock()
	return key
}

// RegisterAs stores c under key, closing any connector it replaces.
func (r *Registry) RegisterAs(key string, c dbclient.Connector) {
	r.mu.Lock()
	old := r.connectors[key]
	r.connectors[key] = c
	r.mu.Unlock()
	if old != nil && old != c {
		r.closeOne(key, old)
	}
}

// Get returns the connector stored under key.
func (r *Registry) Get(key string) (dbclient.Connector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connectors[key]
	return c, ok
}

// Connector returns the live connector for a stored connection, opening it
// on first use. The connection ID is the registry key.
func (r *Registry) Connector(ctx context.Context, connID string) (dbclient.Connector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.connectors[connID]; ok {
		return c, nil
	}
	if r.store == nil {
		return nil, errors.NotFoundf("connection %s is not registered", connID)
	}
	conn, err := r.store.GetConnection(connID)
	if err != nil {
		return nil, errors.Wrapf(err, "connection %s", connID)
	}
	var password string
	if r.password != nil {
		if password, err = r.password(connID); err != nil {
			return nil, errors.Wrapf(err, "password for connection %s", connID)
		}
	}
	c, err := r.open(conn, password)
	if err != nil {
		return nil, err
	}
	if err := c.TestConnection(ctx); err != nil {
		c.Close()
		return nil, errors.Wrapf(err, "connect %s", conn.Name)
	}
	r.connectors[connID] = c
	r.log.Infow("connector opened", "connection", conn.Name, logger.FieldDriver, conn.Driver)
	return c, nil
}

// Deregister removes and closes the connector under key.
func (r *Registry) Deregister(key string) {
	r.mu.Lock()
	c, ok := r.connectors[key]
	delete(r.connectors, key)
	r.mu.Unlock()
	if ok {
		r.closeOne(key, c)
	}
}

// Len returns the number of live connectors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connectors)
}

// Close closes every connector and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	all := r.connectors
	r.connectors = make(map[string]dbclient.Connector)
	r.mu.Unlock()

	var errs []error
	for key, c := range all {
		if err := c.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close connector %s", key))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) closeOne(key string, c dbclient.Connector) {
	if err := c.Close(); err != nil {
		r.log.Warnw("close connector", "key", key, logger.FieldError, err)
	}
}
