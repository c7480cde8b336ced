package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/habitat-api/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func f(v float64) *float64 { return &v }

var null *float64

func TestPostgresStore_GetHeat(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT country, min_gradient, .* FROM heat WHERE country = \$1`).
		WithArgs("GBR").
		WillReturnRows(pgxmock.NewRows(heatColumns).
			AddRow("GBR", null, null, f(-1999.0), f(0.0001), f(5.0), f(0.5)))

	rec, err := s.GetHeat(context.Background(), "GBR")
	require.NoError(t, err)
	assert.Equal(t, "GBR", rec.Country)
	assert.False(t, rec.Min.Valid)
	assert.True(t, rec.Avg.Valid)
	assert.Equal(t, 0.0001, rec.Avg.Line.Offset)
	assert.Equal(t, 5.0, rec.Max.Line.Gradient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetHeat_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM heat WHERE country = \$1`).
		WithArgs("ATA").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetHeat(context.Background(), "ATA")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAir_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM air WHERE country = \$1`).
		WithArgs("GBR").
		WillReturnError(errors.New("conn closed"))

	_, err := s.GetAir(context.Background(), "GBR")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "get air GBR")
}

func TestPostgresStore_ListAir(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT country, co2_gradient, co2_offset, no_gradient, no_offset FROM air ORDER BY country`).
		WillReturnRows(pgxmock.NewRows(airColumns).
			AddRow("FRA", f(1.0), f(2.0), null, null).
			AddRow("GBR", null, null, f(3.0), f(4.0)))

	recs, err := s.ListAir(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].CO2.Valid)
	assert.False(t, recs[0].NO.Valid)
	assert.False(t, recs[1].CO2.Valid)
	assert.Equal(t, 4.0, recs[1].NO.Line.Offset)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListHeat_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM heat ORDER BY country`).WillReturnRows(pgxmock.NewRows(heatColumns))

	recs, err := s.ListHeat(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPostgresStore_UpsertAir(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_air"}, airColumns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "air" .* COALESCE`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.UpsertAir(context.Background(), []model.AirRecord{
		{Country: "GBR", CO2: line(1, 2)},
		{Country: "ATA"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertHeat_NothingToWrite(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.UpsertHeat(context.Background(), []model.HeatRecord{{Country: "ATA"}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MigrateAndPing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS heat`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), OpenConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
