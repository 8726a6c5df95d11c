package dbclient

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"tablereader/internal/domain"
	"tablereader/internal/errors"
)

func newMock(t *testing.T) (*sqlConnector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return wrapDB("mysql", db), mock
}

func TestQueryFetchesBatches(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectQuery("SELECT id, name FROM people").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("ada")).
			AddRow(int64(2), "bob").
			AddRow(int64(3), nil))

	cur, err := c.Query(context.Background(), "SELECT id, name FROM people")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, cur.Columns())

	page, err := cur.FetchBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, [][]any{{int64(1), "ada"}, {int64(2), "bob"}}, page.Rows)

	page, err = cur.FetchBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Equal(t, 3, page.TotalFetched)
	assert.Equal(t, [][]any{{int64(3), nil}}, page.Rows)

	page, err = cur.FetchBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)

	require.NoError(t, cur.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRejectsWrites(t *testing.T) {
	c, mock := newMock(t)
	for _, q := range []string{"DELETE FROM people", "update people set a = 1", "DROP TABLE x"} {
		_, err := c.Query(context.Background(), q)
		require.Error(t, err, q)
		assert.True(t, errors.IsConfiguration(err), q)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsReadQuery(t *testing.T) {
	assert.True(t, isReadQuery("  select 1"))
	assert.True(t, isReadQuery("WITH t AS (SELECT 1) SELECT * FROM t"))
	assert.True(t, isReadQuery("PRAGMA table_info('x')"))
	assert.False(t, isReadQuery("INSERT INTO t VALUES (1)"))
	assert.False(t, isReadQuery(""))
}

func TestFetchBatchCanceled(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(1))

	cur, err := c.Query(context.Background(), "SELECT a FROM t")
	require.NoError(t, err)
	defer cur.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cur.FetchBatch(ctx, 10)
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
}

func TestCloseClosesOpenCursors(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(1).AddRow(2))
	mock.ExpectClose()

	_, err := c.Query(context.Background(), "SELECT a FROM t")
	require.NoError(t, err)
	assert.Len(t, c.cursors, 1)

	require.NoError(t, c.Close())
	assert.Empty(t, c.cursors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospectSQLite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	c := wrapDB("sqlite", db)

	mock.ExpectQuery("SELECT name FROM sqlite_master").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("orders"))
	mock.ExpectQuery("pragma_table_info").WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).
			AddRow("id", "INTEGER").
			AddRow("total", "REAL"))

	schema, err := c.Introspect(context.Background())
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "orders", schema.Tables[0].Name)
	assert.Equal(t, []ColumnInfo{{Name: "id", Type: "INTEGER"}, {Name: "total", Type: "REAL"}}, schema.Tables[0].Columns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnectorUnsupportedDriver(t *testing.T) {
	_, err := NewConnector(&domain.DatabaseConnection{Driver: "oracle"}, "")
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestBuildDSNs(t *testing.T) {
	conn := &domain.DatabaseConnection{Host: "db.local", Database: "shop", Username: "app"}

	cfg, err := mysql.ParseDSN(buildMySQLDSN(conn, "s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "s3cret", cfg.Passwd)
	assert.Equal(t, "db.local:3306", cfg.Addr)
	assert.Equal(t, "shop", cfg.DBName)
	assert.True(t, cfg.ParseTime)

	assert.Equal(t, `host=db.local port=5432 user=app password='it\'s' dbname=shop sslmode=disable`,
		buildPostgresDSN(conn, "it's"))
	assert.Equal(t, "file:/tmp/x.db?mode=ro&_pragma=busy_timeout(5000)",
		buildSQLiteDSN(&domain.DatabaseConnection{Host: "/tmp/x.db"}))
}

func TestBuildMongoURI(t *testing.T) {
	uri, db := buildMongoURI(&domain.DatabaseConnection{Host: "localhost"}, "")
	assert.Equal(t, "mongodb://localhost:27017", uri)
	assert.Equal(t, "test", db)

	uri, db = buildMongoURI(&domain.DatabaseConnection{
		Host: "mongodb+srv://u:<password>@cluster.example.net/sales?retryWrites=true",
	}, "pw")
	assert.Equal(t, "mongodb+srv://u:pw@cluster.example.net/sales?retryWrites=true", uri)
	assert.Equal(t, "sales", db)

	uri, _ = buildMongoURI(&domain.DatabaseConnection{
		Host: "h", Port: 1, Username: "u", ExtraJSON: `{"replicaSet":"rs0","authSource":"admin"}`,
	}, "p")
	assert.Equal(t, "mongodb://u:p@h:1/?authSource=admin&replicaSet=rs0", uri)
}

func TestParseMongoQuery(t *testing.T) {
	mq, err := parseMongoQuery(`{"collection":"users","filter":{"_id":{"$oid":"65a1b2c3d4e5f60718293a4b"}}}`)
	require.NoError(t, err)
	assert.Equal(t, "find", mq.Operation)
	_, isOID := mq.Filter["_id"].(bson.ObjectID)
	assert.True(t, isOID)

	for _, q := range []string{`not json`, `{"filter":{}}`, `{"collection":"c","operation":"deleteMany"}`} {
		_, err := parseMongoQuery(q)
		require.Error(t, err, q)
		assert.True(t, errors.IsConfiguration(err), q)
	}
}

func TestNormalizeBSON(t *testing.T) {
	oid, err := bson.ObjectIDFromHex("65a1b2c3d4e5f60718293a4b")
	require.NoError(t, err)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "65a1b2c3d4e5f60718293a4b", normalizeBSON(oid))
	assert.Equal(t, ts, normalizeBSON(bson.NewDateTimeFromTime(ts)))
	assert.Equal(t, int32(4), normalizeBSON(int32(4)))
	assert.Nil(t, normalizeBSON(nil))
	assert.Equal(t, `[1,"a"]`, normalizeBSON(bson.A{int32(1), "a"}))
	assert.Equal(t, `{"k":"v"}`, normalizeBSON(bson.D{{Key: "k", Value: "v"}}))
}

func TestMongoCursorColumnOrder(t *testing.T) {
	c := &mongoCursor{known: map[string]int{}}
	c.addColumns([]bson.D{
		{{Key: "name", Value: "a"}, {Key: "_id", Value: 1}},
		{{Key: "age", Value: 3}},
	})
	c.addColumns([]bson.D{{{Key: "zip", Value: "x"}, {Key: "age", Value: 4}, {Key: "city", Value: "y"}}})
	assert.Equal(t, []string{"_id", "age", "name", "city", "zip"}, c.Columns())
}
