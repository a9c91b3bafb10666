package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "projections", []string{"county_fips", "scenario"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"projections"}, []string{"county_fips", "scenario", "population"}).WillReturnResult(3)

	rows := [][]any{
		{"36029", "S3", int64(950000)},
		{"36029", "S5b", int64(1020000)},
		{"48201", "S3", int64(5100000)},
	}
	n, err := CopyFrom(context.Background(), mock, "projections", []string{"county_fips", "scenario", "population"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"projections"}, []string{"county_fips"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"36029"}}
	_, err = CopyFrom(context.Background(), mock, "projections", []string{"county_fips"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO projections")
	assert.NoError(t, mock.ExpectationsWereMet())
}
