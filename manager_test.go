package activeobjects

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/activeobjects/cache"
	"gorm.io/activeobjects/dialect"
	"gorm.io/activeobjects/logger"
	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

var companyDefs = []schema.EntityDef{
	{Name: "Company", Fields: []schema.FieldDef{
		{Name: "Name", Type: types.String},
		{Name: "Cool", Type: types.Bool, Default: schema.Default("false")},
	}},
	{Name: "Token", PrimaryKeyType: types.UUID, Fields: []schema.FieldDef{
		{Name: "Value", Type: types.String},
	}},
}

func newMockManager(t *testing.T, d dialect.Dialect, opts ...Option) (*EntityManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	opts = append([]Option{
		WithLogger(logger.Discard),
		WithNamingStrategy(schema.NamingStrategy{SingularTable: true}),
	}, opts...)
	em, err := Open(d, &DBProvider{DB: db}, opts...)
	require.NoError(t, err)
	require.NoError(t, em.Register(companyDefs...))
	return em, mock
}

func TestEntityManager_GetReusesHandle(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())

	h, err := em.Get("Company", 1)
	require.NoError(t, err)
	assert.Equal(t, cache.Identity{Type: "Company", ID: int64(1)}, h.Identity())

	for _, id := range []interface{}{1, int64(1), "1", uint8(1)} {
		again, err := em.Get("company", id)
		require.NoError(t, err)
		assert.Same(t, h, again)
	}

	handles, err := em.GetMany("Company", 1, 2)
	require.NoError(t, err)
	assert.Same(t, h, handles[0])
	assert.Equal(t, int64(2), handles[1].ID())

	assert.NoError(t, mock.ExpectationsWereMet(), "handles are created without reading the database")
}

func TestEntityManager_GetErrors(t *testing.T) {
	em, _ := newMockManager(t, dialect.SQLite())

	_, err := em.Get("Unknown", 1)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = em.Get("Company", "not a number")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = em.Get("Company", nil)
	assert.ErrorIs(t, err, ErrInvalidValue)

	h, _ := em.Get("Company", 1)
	_, err = h.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.ErrorIs(t, h.Set("ID", 2), ErrInvalidValue)
	assert.ErrorIs(t, h.Set("Cool", "maybe"), ErrInvalidValue)
}

func TestHandle_SetGetWithoutSQL(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	ctx := context.Background()

	h, _ := em.Get("Company", 1)
	require.NoError(t, h.Set("cool", true))

	cool, err := h.GetBool(ctx, "COOL")
	require.NoError(t, err)
	assert.True(t, cool)
	assert.Equal(t, []string{"cool"}, h.Dirty())

	id, err := h.Get(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandle_Save(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO "company" DEFAULT VALUES RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	h, err := em.Create(ctx, "Company", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.ID())

	require.NoError(t, h.Set("cool", true))
	mock.ExpectExec(`UPDATE "company" SET "cool" = ? WHERE "id" = ?`).
		WithArgs(true, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, h.Save(ctx))
	assert.Empty(t, h.Dirty())

	cool, err := h.GetBool(ctx, "cool")
	require.NoError(t, err)
	assert.True(t, cool, "saved value stays cached")

	require.NoError(t, h.Save(ctx), "nothing dirty, nothing issued")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandle_SaveFailureKeepsDirtyFields(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	ctx := context.Background()

	h, _ := em.Get("Company", 7)
	require.NoError(t, h.Set("name", "acme"))

	mock.ExpectExec(`UPDATE "company" SET "name" = ? WHERE "id" = ?`).
		WithArgs("acme", int64(7)).
		WillReturnError(errors.New("connection reset"))
	err := h.Save(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, `UPDATE "company" SET "name" = ? WHERE "id" = ?`, perr.SQL)
	assert.Equal(t, []string{"name"}, h.Dirty())

	mock.ExpectExec(`UPDATE "company" SET "name" = ? WHERE "id" = ?`).
		WithArgs("acme", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, h.Save(ctx), "retry")
	assert.Empty(t, h.Dirty())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandle_SaveNull(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())

	h, _ := em.Get("Company", 3)
	require.NoError(t, h.Set("Name", nil))
	require.NoError(t, h.Set("Cool", false))

	mock.ExpectExec(`UPDATE "company" SET "name" = NULL, "cool" = ? WHERE "id" = ?`).
		WithArgs(false, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, h.Save(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandle_LazyLoad(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	ctx := context.Background()
	h, _ := em.Get("Company", 1)

	mock.ExpectQuery(`SELECT "name" FROM "company" WHERE "id" = ?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("acme"))
	for i := 0; i < 3; i++ {
		name, err := h.GetString(ctx, "name")
		require.NoError(t, err)
		assert.Equal(t, "acme", name)
	}

	mock.ExpectQuery(`SELECT "cool" FROM "company" WHERE "id" = ?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"cool"}).AddRow(nil))
	for i := 0; i < 2; i++ {
		cool, err := h.Get(ctx, "cool")
		require.NoError(t, err)
		assert.Nil(t, cool, "null is cached as absence")
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandle_LoadFailureLeavesCacheUnchanged(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	ctx := context.Background()
	h, _ := em.Get("Company", 9)

	mock.ExpectQuery(`SELECT "name" FROM "company" WHERE "id" = ?`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	_, err := h.Get(ctx, "name")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.ErrorIs(t, err, ErrPersistence)

	mock.ExpectQuery(`SELECT "name" FROM "company" WHERE "id" = ?`).
		WithArgs(int64(9)).
		WillReturnError(errors.New("timeout"))
	_, err = h.Get(ctx, "name")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.False(t, h.cache.Has("name"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityManager_CreateUUIDKey(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO "token" ("id","value") VALUES (?,?)`).
		WithArgs(sqlmock.AnyArg(), "secret").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h, err := em.Create(ctx, "Token", map[string]interface{}{"value": "secret"})
	require.NoError(t, err)

	id, ok := h.ID().(uuid.UUID)
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, id)

	again, err := em.Get("Token", id.String())
	require.NoError(t, err)
	assert.Same(t, h, again)

	value, err := h.GetString(ctx, "value")
	require.NoError(t, err)
	assert.Equal(t, "secret", value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityManager_CreateErrors(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	ctx := context.Background()

	_, err := em.Create(ctx, "Company", map[string]interface{}{"color": "red"})
	assert.ErrorIs(t, err, ErrUnknownField)

	mock.ExpectQuery(`INSERT INTO "company" ("name") VALUES (?) RETURNING "id"`).
		WithArgs("acme").
		WillReturnError(errors.New("disk I/O error"))
	_, err = em.Create(ctx, "Company", map[string]interface{}{"name": "acme"})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityManager_FindQuery(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	ctx := context.Background()

	mock.ExpectQuery(`SELECT "id","name" FROM "company" WHERE cool = ? ORDER BY name LIMIT 10`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "acme").AddRow(2, "globex"))
	handles, err := em.FindQuery(ctx, "Company", Query{Where: "cool = ?", Args: []interface{}{true}, OrderBy: "name", Limit: 10, Fields: []string{"Name"}})
	require.NoError(t, err)
	require.Len(t, handles, 2)

	first, _ := em.Get("Company", 1)
	assert.Same(t, first, handles[0])
	name, err := handles[1].GetString(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "globex", name, "preloaded")

	mock.ExpectQuery(`SELECT "id" FROM "company"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	handles, err = em.Find(ctx, "Company", "")
	require.NoError(t, err)
	assert.Equal(t, []*Handle{first}, handles)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityManager_FindWithRawQuery(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	ctx := context.Background()

	mock.ExpectQuery(`SELECT c.id AS company_id, c.name FROM company c WHERE c.name LIKE ?`).
		WithArgs("a%").
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "name"}).AddRow(4, "acme"))
	handles, err := em.FindWithRawQuery(ctx, "Company", "company_id",
		`SELECT c.id AS company_id, c.name FROM company c WHERE c.name LIKE ?`, "a%")
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, int64(4), handles[0].ID())

	name, err := handles[0].GetString(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "acme", name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityManager_Count(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())

	mock.ExpectQuery(`SELECT COUNT(*) FROM "company" WHERE cool = ?`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	count, err := em.Count(context.Background(), "Company", "cool = ?", true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityManager_Delete(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	ctx := context.Background()

	handles, _ := em.GetMany("Company", 1, 2)
	require.NoError(t, handles[0].Set("name", "gone"))

	mock.ExpectExec(`DELETE FROM "company" WHERE "id" IN (?,?)`).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, em.Delete(ctx, handles...))

	assert.Empty(t, handles[0].Dirty(), "cache cleared")
	fresh, _ := em.Get("Company", 1)
	assert.NotSame(t, handles[0], fresh, "evicted from the identity map")
	assert.True(t, fresh.Equals(handles[0]))

	mock.ExpectExec(`DELETE FROM "company" WHERE cool = ?`).
		WithArgs(false).
		WillReturnResult(sqlmock.NewResult(0, 5))
	affected, err := em.DeleteWhere(ctx, "Company", "cool = ?", false)
	require.NoError(t, err)
	assert.Equal(t, int64(5), affected)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandle_EqualsAndHash(t *testing.T) {
	em1, _ := newMockManager(t, dialect.SQLite())
	em2, _ := newMockManager(t, dialect.SQLite())

	a, _ := em1.Get("Company", 1)
	b, _ := em2.Get("Company", int64(1))
	c, _ := em1.Get("Company", 2)

	assert.NotSame(t, a, b)
	assert.True(t, a.Equals(b), "identity is table and key, whatever the manager")
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equals(c))
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.False(t, a.Equals(nil))
}

func TestEntityManager_PostgresPlaceholders(t *testing.T) {
	var buf bytes.Buffer
	em, mock := newMockManager(t, dialect.Postgres(),
		WithLogger(logger.New(log.New(&buf, "", 0), logger.Config{LogLevel: logger.Info})))

	h, _ := em.Get("Company", 5)
	require.NoError(t, h.Set("cool", true))
	mock.ExpectExec(`UPDATE "company" SET "cool" = $1 WHERE "id" = $2`).
		WithArgs(true, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, h.Save(context.Background()))

	assert.Contains(t, buf.String(), `UPDATE "company" SET "cool" = true WHERE "id" = 5`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(dialect.SQLite(), nil)
	assert.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = Open(dialect.SQLite(), &DBProvider{DB: db}, WithRelationsCache(cache.Config{Capacity: -1}))
	var cerr *cache.ConfigError
	assert.True(t, errors.As(err, &cerr))

	_, err = OpenDB("oracle", "", PoolConfig{})
	assert.ErrorIs(t, err, dialect.ErrUnsupported)

	_, err = OpenDB("sqlite", ":memory:", PoolConfig{MaxOpenConns: -1})
	assert.ErrorContains(t, err, "MaxOpenConns")
}

func TestEntityManager_DeleteRejectsUnconvertibleKey(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite())
	d, ok := em.Registry().Lookup("Company")
	require.True(t, ok)

	h := &Handle{manager: em, descriptor: d, identity: cache.Identity{Type: "Company", ID: "acme"}, cache: cache.NewEntityCache()}
	err := em.Delete(context.Background(), h)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing is deleted")
}
