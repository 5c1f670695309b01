package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// scoreArg matches the NUMERIC score argument by value
type scoreArg struct {
	want  string
	valid bool
}

func (a scoreArg) Match(v interface{}) bool {
	d, ok := v.(decimal.NullDecimal)
	if !ok || d.Valid != a.valid {
		return false
	}
	return !a.valid || d.Decimal.Equal(decimal.RequireFromString(a.want))
}

func TestPostgresSink_Publish(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := sampleResult(optimizer.AlgorithmGA)
	mock.ExpectExec("INSERT INTO optimization_runs").
		WithArgs(
			r.ID, "GA",
			scoreArg{want: "42.125", valid: true},
			pgxmock.AnyArg(), 10, 110, 2, false,
			pgxmock.AnyArg(), int64(1500), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := NewPostgresSink(mock)
	require.NoError(t, s.Publish(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_NoCandidateStoresNullScore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := &optimizer.RunResult{Algorithm: optimizer.AlgorithmPSO, Err: optimizer.ErrNoCandidate}
	mock.ExpectExec("INSERT INTO optimization_runs").
		WithArgs(
			r.ID, "PSO", scoreArg{},
			pgxmock.AnyArg(), 0, 0, 0, false,
			pgxmock.AnyArg(), int64(0), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := NewPostgresSink(mock)
	require.NoError(t, s.Publish(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_ExecError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	dbErr := errors.New("relation does not exist")
	mock.ExpectExec("INSERT INTO optimization_runs").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(dbErr)

	err = NewPostgresSink(mock).Publish(context.Background(), sampleResult(optimizer.AlgorithmGA))
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
