package variantstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantdb-pipeline/internal/domain"
)

// The error paths use sqlmock so a real database never has to be broken on
// purpose. Every failure must come back as a StoreError with the cause
// attached for logs but hidden from the message.

func TestSQLiteStore_BeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cause := errors.New("database is locked")
	mock.ExpectBegin().WillReturnError(cause)

	store := NewSQLiteStore(db, "/tmp/x.db", testLogger())
	_, err = store.Begin(context.Background())

	require.Error(t, err)
	var se *domain.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "begin transaction", se.Op)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Error(), "locked", "cause details stay out of the message")
}

func TestSQLiteStore_InsertFailureWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cause := errors.New("disk I/O error")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT OR IGNORE INTO patient_variant").
		WithArgs("Patient1", "NC_000011.10:g.2164285C>T").
		WillReturnError(cause)

	store := NewSQLiteStore(db, "/tmp/x.db", testLogger())
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)

	err = tx.InsertPatientVariant(context.Background(), domain.PatientVariant{
		PatientID: "Patient1", GenomicHGVS: "NC_000011.10:g.2164285C>T",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store error during insert patient variant", err.Error())
}

func TestSQLiteStore_CountFailureWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM patient_variant").
		WillReturnError(errors.New("table vanished"))

	store := NewSQLiteStore(db, "/tmp/x.db", testLogger())
	_, err = store.CountPatientVariants(context.Background())

	require.Error(t, err)
	var se *domain.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "count patient_variant", se.Op)
}
