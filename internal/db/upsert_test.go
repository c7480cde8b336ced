package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var airCols = []string{"country", "co2_gradient", "co2_offset", "no_gradient", "no_offset"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "air",
		Columns:      airCols,
		ConflictKeys: []string{"country"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "air",
		ConflictKeys: []string{"country"},
	}, [][]any{{"GBR", 1.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "air",
		Columns: airCols,
	}, [][]any{{"GBR", 1.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock := newMock(t)
	rows := [][]any{
		{"GBR", 1.0, 2.0, nil, nil},
		{"FRA", nil, nil, 3.0, 4.0},
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_air"}, airCols).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "air" .* ON CONFLICT \("country"\) DO UPDATE SET "co2_gradient" = COALESCE\(EXCLUDED."co2_gradient", "air"."co2_gradient"\)`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "air",
		Columns:      airCols,
		ConflictKeys: []string{"country"},
		Coalesce:     true,
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_air"}, airCols).WillReturnError(errors.New("copy broke"))
	mock.ExpectRollback()

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "air",
		Columns:      airCols,
		ConflictKeys: []string{"country"},
	}, [][]any{{"GBR", 1.0, 2.0, nil, nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for air")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BeginFails(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "air",
		Columns:      airCols,
		ConflictKeys: []string{"country"},
	}, [][]any{{"GBR", 1.0, 2.0, nil, nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestUpsertSQL(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "heat",
		Columns:      []string{"country", "avg_gradient"},
		ConflictKeys: []string{"country"},
	}
	assert.Equal(t,
		`INSERT INTO "heat" ("country", "avg_gradient") SELECT "country", "avg_gradient" FROM "_tmp" ON CONFLICT ("country") DO UPDATE SET "avg_gradient" = EXCLUDED."avg_gradient"`,
		upsertSQL(cfg, "_tmp"))

	cfg.Coalesce = true
	assert.Contains(t, upsertSQL(cfg, "_tmp"), `"avg_gradient" = COALESCE(EXCLUDED."avg_gradient", "heat"."avg_gradient")`)
}

func TestUpdateColumns_Explicit(t *testing.T) {
	cfg := UpsertConfig{Columns: []string{"a", "b", "c"}, ConflictKeys: []string{"a"}, UpdateCols: []string{"c"}}
	assert.Equal(t, []string{"c"}, updateColumns(cfg))
	cfg.UpdateCols = nil
	assert.Equal(t, []string{"b", "c"}, updateColumns(cfg))
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"heat", `"heat"`},
		{"public.heat", `"public"."heat"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"country", "co2_gradient"`, quoteAndJoin([]string{"country", "co2_gradient"}))
}
