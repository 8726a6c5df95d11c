package dbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"tablereader/internal/domain"
	"tablereader/internal/errors"
	"tablereader/internal/logger"
)

// mongoConnector implements Connector for MongoDB.
type mongoConnector struct {
	client *mongo.Client
	dbName string
	log    *zap.SugaredLogger
}

// mongoQuery is the JSON structure users write for MongoDB queries.
type mongoQuery struct {
	Collection string         `json:"collection"`
	Operation  string         `json:"operation,omitempty"` // find (default) or aggregate
	Filter     map[string]any `json:"filter,omitempty"`
	Projection map[string]any `json:"projection,omitempty"`
	Sort       map[string]any `json:"sort,omitempty"`
	Limit      int64          `json:"limit,omitempty"`
	Pipeline   []any          `json:"pipeline,omitempty"` // for aggregate
}

// parseMongoQuery decodes a query and converts its Extended JSON fields
// ($oid, $date, ...) to BSON values.
func parseMongoQuery(query string) (mongoQuery, error) {
	var mq mongoQuery
	if err := json.Unmarshal([]byte(query), &mq); err != nil {
		return mq, errors.WithHint(errors.Wrap(errors.AsConfiguration(err), "invalid query JSON"),
			`write the query as {"collection": "...", "filter": {...}}`)
	}
	if mq.Collection == "" {
		return mq, errors.Configurationf("query must specify 'collection'")
	}
	switch mq.Operation {
	case "":
		mq.Operation = "find"
	case "find", "aggregate":
	default:
		return mq, errors.Configurationf("unsupported operation %q, only find and aggregate can be read", mq.Operation)
	}
	mq.Filter = unmarshalEJSON(mq.Filter)
	mq.Projection = unmarshalEJSON(mq.Projection)
	mq.Sort = unmarshalEJSON(mq.Sort)
	return mq, nil
}

// buildMongoURI returns the connection URI and the database to use. A host
// that already is a full connection string is used as is.
func buildMongoURI(conn *domain.DatabaseConnection, password string) (uri, dbName string) {
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri = conn.Host
		// Atlas connection strings carry a placeholder
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
	} else {
		port := conn.Port
		if port == 0 {
			port = 27017
		}
		if conn.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, password, conn.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
		}
		if conn.ExtraJSON != "" && conn.ExtraJSON != "{}" {
			var extras map[string]string
			if json.Unmarshal([]byte(conn.ExtraJSON), &extras) == nil && len(extras) > 0 {
				keys := make([]string, 0, len(extras))
				for k := range extras {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				params := make([]string, len(keys))
				for i, k := range keys {
					params[i] = k + "=" + extras[k]
				}
				uri += "/?" + strings.Join(params, "&")
			}
		}
	}

	dbName = conn.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	if dbName == "" {
		dbName = "test"
	}
	return uri, dbName
}

// databaseFromURI extracts the path of user:pass@host/DB_NAME?params.
func databaseFromURI(uri string) string {
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		uri = strings.TrimPrefix(uri, prefix)
	}
	if at := strings.LastIndex(uri, "@"); at != -1 {
		uri = uri[at+1:]
	}
	slash := strings.Index(uri, "/")
	if slash == -1 {
		return ""
	}
	path := uri[slash+1:]
	if q := strings.Index(path, "?"); q != -1 {
		path = path[:q]
	}
	return path
}

func newMongoConnector(conn *domain.DatabaseConnection, password string) (*mongoConnector, error) {
	uri, dbName := buildMongoURI(conn, password)
	log := logger.ComponentLogger("dbclient.mongo").With(logger.FieldDriver, "mongodb")

	logURI := uri
	if password != "" {
		logURI = strings.ReplaceAll(logURI, password, "***")
	}
	log.Debugw("connecting", "uri", logURI, "database", dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	return &mongoConnector{client: client, dbName: dbName, log: log}, nil
}

// unmarshalEJSON re-encodes a map[string]any field and uses bson.UnmarshalExtJSON
// to convert MongoDB Extended JSON types ($oid, $date, $numberLong, etc.) to BSON.
func unmarshalEJSON(field map[string]any) map[string]any {
	if field == nil {
		return nil
	}
	raw, err := json.Marshal(field)
	if err != nil {
		return field
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return field
	}
	result := make(map[string]any, len(doc))
	for _, elem := range doc {
		result[elem.Key] = elem.Value
	}
	return result
}

func (m *mongoConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *mongoConnector) Query(ctx context.Context, query string) (Cursor, error) {
	mq, err := parseMongoQuery(query)
	if err != nil {
		return nil, err
	}
	m.log.Debugw("query", "collection", mq.Collection, "operation", mq.Operation)

	coll := m.client.Database(m.dbName).Collection(mq.Collection)
	var cursor *mongo.Cursor
	switch mq.Operation {
	case "aggregate":
		pipeline := mq.Pipeline
		if pipeline == nil {
			pipeline = []any{}
		}
		cursor, err = coll.Aggregate(ctx, pipeline)
	default:
		opts := options.Find()
		if mq.Projection != nil {
			opts.SetProjection(mq.Projection)
		}
		if mq.Sort != nil {
			opts.SetSort(mq.Sort)
		}
		if mq.Limit > 0 {
			opts.SetLimit(mq.Limit)
		}
		filter := mq.Filter
		if filter == nil {
			filter = map[string]any{}
		}
		cursor, err = coll.Find(ctx, filter, opts)
	}
	if err != nil {
		return nil, errors.Wrap(err, mq.Operation)
	}
	return &mongoCursor{cursor: cursor, known: map[string]int{}}, nil
}

// mongoCursor turns documents into rows. Columns are added in the order they
// are first seen; within one batch new fields sort with _id first, then
// alphabetically.
type mongoCursor struct {
	cursor  *mongo.Cursor
	columns []string
	known   map[string]int
	fetched int
	done    bool
}

func (c *mongoCursor) Columns() []string { return slices.Clone(c.columns) }

func (c *mongoCursor) FetchBatch(ctx context.Context, n int) (*QueryPage, error) {
	if n <= 0 {
		n = DefaultFetchSize
	}
	if c.done {
		return &QueryPage{Columns: c.Columns(), TotalFetched: c.fetched}, nil
	}

	var docs []bson.D
	for len(docs) < n && c.cursor.Next(ctx) {
		var doc bson.D
		if err := c.cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode")
		}
		docs = append(docs, doc)
	}
	if err := c.cursor.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Canceled(ctx.Err())
		}
		return nil, errors.Wrap(err, "cursor")
	}

	c.addColumns(docs)
	rows := make([][]any, len(docs))
	for i, doc := range docs {
		row := make([]any, len(c.columns))
		for _, elem := range doc {
			row[c.known[elem.Key]] = normalizeBSON(elem.Value)
		}
		rows[i] = row
	}
	c.fetched += len(docs)

	page := &QueryPage{
		Columns:      c.Columns(),
		Rows:         rows,
		TotalFetched: c.fetched,
		HasMore:      len(docs) == n,
	}
	if !page.HasMore {
		c.Close()
	}
	return page, nil
}

func (c *mongoCursor) addColumns(docs []bson.D) {
	var fresh []string
	seen := map[string]bool{}
	for _, doc := range docs {
		for _, elem := range doc {
			if _, ok := c.known[elem.Key]; !ok && !seen[elem.Key] {
				seen[elem.Key] = true
				fresh = append(fresh, elem.Key)
			}
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		if fresh[i] == "_id" {
			return true
		}
		if fresh[j] == "_id" {
			return false
		}
		return fresh[i] < fresh[j]
	})
	for _, name := range fresh {
		c.known[name] = len(c.columns)
		c.columns = append(c.columns, name)
	}
}

func (c *mongoCursor) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.cursor.Close(ctx)
}

// normalizeBSON maps BSON values onto the plain Go values the type mapper
// understands. Nested documents and arrays become Extended JSON text.
func normalizeBSON(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int32, int64, float64:
		return val
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC()
	case bson.Decimal128:
		return val.String()
	case bson.D:
		raw, err := bson.MarshalExtJSON(val, false, false)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	case bson.A:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = normalizeBSON(item)
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (m *mongoConnector) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db := m.client.Database(m.dbName)
	collections, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	sort.Strings(collections)

	schema := &SchemaInfo{}
	for _, collName := range collections {
		// sample one document for field names
		cursor, err := db.Collection(collName).Find(ctx, bson.M{}, options.Find().SetLimit(1))
		if err != nil {
			schema.Tables = append(schema.Tables, TableInfo{Name: collName})
			continue
		}
		var cols []ColumnInfo
		if cursor.Next(ctx) {
			var doc bson.D
			if cursor.Decode(&doc) == nil {
				for _, elem := range doc {
					cols = append(cols, ColumnInfo{Name: elem.Key, Type: fmt.Sprintf("%T", elem.Value)})
				}
			}
		}
		cursor.Close(ctx)
		schema.Tables = append(schema.Tables, TableInfo{Name: collName, Columns: cols})
	}
	return schema, nil
}

func (m *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
