package secret

import (
	"os"
	"strings"
	"sync"
)

// EnvPrefix starts the environment variables EnvStore reads.
const EnvPrefix = "TABLEREADER_SECRET_"

// EnvStore reads secrets from environment variables. Values set at runtime
// live in memory and shadow the environment for the life of the process.
type EnvStore struct {
	mu      sync.RWMutex
	values  map[string][]byte
	deleted map[string]bool
	lookup  func(string) (string, bool)
}

func NewEnvStore() *EnvStore {
	return &EnvStore{
		values:  map[string][]byte{},
		deleted: map[string]bool{},
		lookup:  os.LookupEnv,
	}
}

// EnvName maps a key to its variable: "db-conn:1f2e" becomes
// TABLEREADER_SECRET_DB_CONN_1F2E.
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString(EnvPrefix)
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (e *EnvStore) Set(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.values[key] = append([]byte(nil), value...)
	delete(e.deleted, key)
	return nil
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.values[key]; ok {
		return append([]byte(nil), v...), nil
	}
	if e.deleted[key] {
		return nil, nil
	}
	if v, ok := e.lookup(EnvName(key)); ok {
		return []byte(v), nil
	}
	return nil, nil
}

func (e *EnvStore) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.values, key)
	e.deleted[key] = true
	return nil
}
