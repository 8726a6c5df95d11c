package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"tablereader/internal/dbclient"
	"tablereader/internal/domain"
	"tablereader/internal/errors"
	"tablereader/internal/logger"
	"tablereader/internal/registry"
	"tablereader/internal/secret"
)

// ─────────────────────────────────────────────────────────────
// Connection Service: stored database connections
// ─────────────────────────────────────────────────────────────

// CreateDBConnInput is the service-layer DTO for creating/updating connections.
type CreateDBConnInput struct {
	Name      string `json:"name"`
	Driver    string `json:"driver"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	SSLMode   string `json:"sslMode"`
	ExtraJSON string `json:"extraJson"`
}

// ConnectionService manages stored connections and hands out live
// connectors through the registry. It is the ConnectorProvider of the
// database source.
type ConnectionService struct {
	store    domain.DatabaseConnectionStore
	secrets  secret.SecretStore
	registry *registry.Registry
	log      *zap.SugaredLogger
}

func NewConnectionService(
	store domain.DatabaseConnectionStore,
	secrets secret.SecretStore,
	reg *registry.Registry,
) *ConnectionService {
	return &ConnectionService{
		store:    store,
		secrets:  secrets,
		registry: reg,
		log:      logger.ComponentLogger("service.connections"),
	}
}

// ── Connection CRUD ────────────────────────────────────────

func (s *ConnectionService) ListConnections() ([]domain.DatabaseConnection, error) {
	return s.store.ListConnections()
}

func (s *ConnectionService) GetConnection(idOrName string) (*domain.DatabaseConnection, error) {
	return s.store.GetConnection(idOrName)
}

func validateConn(input CreateDBConnInput) (domain.DatabaseDriver, error) {
	if strings.TrimSpace(input.Name) == "" {
		return "", errors.Configurationf("connection name must not be empty")
	}
	driver, ok := domain.ParseDatabaseDriver(strings.ToLower(input.Driver))
	if !ok {
		return "", errors.WithHint(errors.Configurationf("unsupported driver %q", input.Driver),
			"use one of mysql, postgres, mongodb, sqlite")
	}
	if input.Host == "" {
		return "", errors.Configurationf("connection %s needs a host (or file path for sqlite)", input.Name)
	}
	return driver, nil
}

func (s *ConnectionService) CreateConnection(input CreateDBConnInput) (*domain.DatabaseConnection, error) {
	driver, err := validateConn(input)
	if err != nil {
		return nil, err
	}
	conn := &domain.DatabaseConnection{
		Name:      input.Name,
		Driver:    driver,
		Host:      input.Host,
		Port:      input.Port,
		Database:  input.Database,
		Username:  input.Username,
		SSLMode:   input.SSLMode,
		ExtraJSON: input.ExtraJSON,
	}
	if err := s.store.CreateConnection(conn); err != nil {
		return nil, errors.Wrap(err, "create connection")
	}
	if input.Password != "" && s.secrets != nil {
		if err := s.secrets.Set(secret.ConnectionKey(conn.ID), []byte(input.Password)); err != nil {
			s.log.Warnw("Failed to store connection password", "connection", conn.Name, logger.FieldError, err)
		}
	}
	return conn, nil
}

func (s *ConnectionService) UpdateConnection(idOrName string, input CreateDBConnInput) error {
	conn, err := s.store.GetConnection(idOrName)
	if err != nil {
		return err
	}
	driver, err := validateConn(input)
	if err != nil {
		return err
	}
	conn.Name = input.Name
	conn.Driver = driver
	conn.Host = input.Host
	conn.Port = input.Port
	conn.Database = input.Database
	conn.Username = input.Username
	conn.SSLMode = input.SSLMode
	if input.ExtraJSON != "" {
		conn.ExtraJSON = input.ExtraJSON
	}
	if err := s.store.UpdateConnection(conn); err != nil {
		return err
	}
	if input.Password != "" && s.secrets != nil {
		if err := s.secrets.Set(secret.ConnectionKey(conn.ID), []byte(input.Password)); err != nil {
			return errors.Wrap(err, "store password")
		}
	}
	// next use reconnects with the new settings
	s.registry.Deregister(conn.ID)
	return nil
}

func (s *ConnectionService) DeleteConnection(idOrName string) error {
	conn, err := s.store.GetConnection(idOrName)
	if err != nil {
		return err
	}
	s.registry.Deregister(conn.ID)
	if s.secrets != nil {
		_ = s.secrets.Delete(secret.ConnectionKey(conn.ID))
	}
	return s.store.DeleteConnection(conn.ID)
}

// ── Connectors ─────────────────────────────────────────────

// Connector returns the live connector of a connection given by id or name.
func (s *ConnectionService) Connector(ctx context.Context, idOrName string) (dbclient.Connector, error) {
	conn, err := s.store.GetConnection(idOrName)
	if err != nil {
		return nil, err
	}
	return s.registry.Connector(ctx, conn.ID)
}

func (s *ConnectionService) TestConnection(ctx context.Context, idOrName string) error {
	c, err := s.Connector(ctx, idOrName)
	if err != nil {
		return err
	}
	return c.TestConnection(ctx)
}

func (s *ConnectionService) Introspect(ctx context.Context, idOrName string) (*dbclient.SchemaInfo, error) {
	c, err := s.Connector(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	return c.Introspect(ctx)
}

// Close tears down all live connectors.
func (s *ConnectionService) Close() error {
	return s.registry.Close()
}
