package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resultColumns = []string{
	"id", "algorithm", "best_score", "parameters", "iterations", "evaluations",
	"failures", "heuristic", "started_at", "duration_ms", "error",
}

func TestResultStore_Recent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id1, id2 := uuid.New(), uuid.New()
	started := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	failure := "no candidate could be evaluated"

	rows := pgxmock.NewRows(resultColumns).
		AddRow(id1, "GA", "42.125", []byte(`{"fast_ma_period":300}`), 100, 10100, 3, false, started, int64(1500), nil).
		AddRow(id2, "PSO", nil, []byte(`{}`), 0, 50, 50, true, started.Add(-time.Hour), int64(20), &failure)

	mock.ExpectQuery("SELECT id, algorithm, best_score").
		WithArgs("", 10).
		WillReturnRows(rows)

	results, err := NewResultStore(mock).Recent(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, id1, results[0].ID)
	assert.True(t, results[0].BestScore.Valid)
	assert.Equal(t, "42.125", results[0].BestScore.Decimal.String())
	assert.Equal(t, 300.0, results[0].Parameters["fast_ma_period"])
	assert.Nil(t, results[0].Error)

	assert.False(t, results[1].BestScore.Valid)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, failure, *results[1].Error)
	assert.True(t, results[1].Heuristic)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultStore_DefaultLimitAndFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM optimization_runs").
		WithArgs("GA", DefaultResultLimit).
		WillReturnRows(pgxmock.NewRows(resultColumns))

	results, err := NewResultStore(mock).Recent(context.Background(), "GA", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultStore_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	dbErr := errors.New("timeout")
	mock.ExpectQuery("FROM optimization_runs").
		WithArgs("", 5).
		WillReturnError(dbErr)

	_, err = NewResultStore(mock).Recent(context.Background(), "", 5)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
