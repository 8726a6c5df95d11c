package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablereader/internal/dbclient"
	"tablereader/internal/domain"
	"tablereader/internal/errors"
)

type fakeConnector struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeConnector) TestConnection(context.Context) error { return nil }

func (f *fakeConnector) Query(context.Context, string) (dbclient.Cursor, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeConnector) Introspect(context.Context) (*dbclient.SchemaInfo, error) {
	return &dbclient.SchemaInfo{}, nil
}

func (f *fakeConnector) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type memStore struct {
	conns map[string]*domain.DatabaseConnection
}

func (m *memStore) CreateConnection(c *domain.DatabaseConnection) error {
	m.conns[c.ID] = c
	return nil
}

func (m *memStore) GetConnection(id string) (*domain.DatabaseConnection, error) {
	c, ok := m.conns[id]
	if !ok {
		return nil, errors.NotFoundf("connection %s", id)
	}
	return c, nil
}

func (m *memStore) ListConnections() ([]domain.DatabaseConnection, error) { return nil, nil }

func (m *memStore) UpdateConnection(c *domain.DatabaseConnection) error { return nil }

func (m *memStore) DeleteConnection(id string) error { return nil }

func TestRegisterGetDeregister(t *testing.T) {
	r := New(nil, nil)
	c := &fakeConnector{}

	key := r.Register(c)
	require.NotEmpty(t, key)

	got, ok := r.Get(key)
	require.True(t, ok)
	assert.Same(t, c, got)

	r.Deregister(key)
	_, ok = r.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 1, c.closed)

	// deregistering twice is a no-op
	r.Deregister(key)
	assert.Equal(t, 1, c.closed)
}

func TestRegisterAsReplaces(t *testing.T) {
	r := New(nil, nil)
	a, b := &fakeConnector{}, &fakeConnector{}
	r.RegisterAs("k", a)
	r.RegisterAs("k", b)
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 0, b.closed)
	assert.Equal(t, 1, r.Len())
}

func TestConnectorOpensOnce(t *testing.T) {
	store := &memStore{conns: map[string]*domain.DatabaseConnection{
		"c1": {ID: "c1", Name: "warehouse", Driver: domain.DatabaseDriverSQLite},
	}}
	var opened int
	var gotPassword string
	r := New(store, func(string) (string, error) { return "pw", nil })
	r.open = func(conn *domain.DatabaseConnection, password string) (dbclient.Connector, error) {
		opened++
		gotPassword = password
		return &fakeConnector{}, nil
	}

	c1, err := r.Connector(context.Background(), "c1")
	require.NoError(t, err)
	c2, err := r.Connector(context.Background(), "c1")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, 1, opened)
	assert.Equal(t, "pw", gotPassword)

	_, err = r.Connector(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestConnectorWithoutStore(t *testing.T) {
	_, err := New(nil, nil).Connector(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCloseReleasesAll(t *testing.T) {
	r := New(nil, nil)
	conns := []*fakeConnector{{}, {}, {}}
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *fakeConnector) {
			defer wg.Done()
			r.Register(c)
		}(c)
	}
	wg.Wait()
	require.Equal(t, 3, r.Len())

	require.NoError(t, r.Close())
	assert.Equal(t, 0, r.Len())
	for _, c := range conns {
		assert.Equal(t, 1, c.closed)
	}
}
