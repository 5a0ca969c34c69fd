package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, time.Second, nil), mock
}

func TestOpenWithoutDSN(t *testing.T) {
	s, err := Open(Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, s, "empty DSN disables the ledger")

	// Nil store is safe to use.
	prefix, err := s.PrefixForTaxID(context.Background(), "OM1100020467")
	require.NoError(t, err)
	assert.Equal(t, "", prefix)
	assert.NoError(t, s.Close())
}

func TestPrefixForTaxID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT branchcode \|\| 'PO' AS prefix FROM branch WHERE trnno = \$1`).
		WithArgs("OM1100020467").
		WillReturnRows(sqlmock.NewRows([]string{"prefix"}).AddRow("MCTPO"))

	prefix, err := s.PrefixForTaxID(context.Background(), "OM1100020467")
	require.NoError(t, err)
	assert.Equal(t, "MCTPO", prefix)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrefixForTaxIDNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM branch WHERE trnno`).
		WithArgs("OM9999999999").
		WillReturnError(sql.ErrNoRows)

	prefix, err := s.PrefixForTaxID(context.Background(), "OM9999999999")
	require.NoError(t, err, "a missing branch is not an error")
	assert.Equal(t, "", prefix)
}

func TestPrefixForTaxIDQueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM branch WHERE trnno`).
		WithArgs("OM1100020467").
		WillReturnError(errors.New("connection refused"))

	_, err := s.PrefixForTaxID(context.Background(), "OM1100020467")
	assert.Error(t, err)
}

func TestPODetail(t *testing.T) {
	s, mock := newMockStore(t)

	vendorRows := sqlmock.NewRows([]string{"vendorid", "vendorname", "creditdays", "currency", "branchname", "trno"}).
		AddRow("V-77", "Gulf Valves LLC", "30", "OMR", "Muscat Trading", "OM1100020467")
	mock.ExpectQuery(`FROM vendor v`).
		WithArgs("ATCPO012345").
		WillReturnRows(vendorRows)

	itemRows := sqlmock.NewRows([]string{"docid", "docdt", "totpovalue", "netcostamt", "payterm", "currency"}).
		AddRow("ATCPO012345", "2026-05-01", "1200.500", nil, "NET30", "OMR")
	mock.ExpectQuery(`FROM pohdr p`).
		WithArgs("V-77", "ATCPO012345").
		WillReturnRows(itemRows)

	vendor, items, err := s.PODetail(context.Background(), "ATCPO012345")
	require.NoError(t, err)
	require.NotNil(t, vendor)
	require.NotNil(t, items)

	assert.NotContains(t, vendor.Columns, "vendorid", "join key must not reach display output")
	assert.Equal(t, "Gulf Valves LLC", vendor.Cell(0, "vendorname"))
	assert.Equal(t, "Muscat Trading", vendor.Cell(0, "branchname"))

	assert.Equal(t, "ATCPO012345", items.Cell(0, "docid"))
	assert.Equal(t, "", items.Cell(0, "netcostamt"), "NULL renders as empty string")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPODetailNoVendorShortCircuits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM vendor v`).
		WithArgs("ATCPO999").
		WillReturnRows(sqlmock.NewRows([]string{"vendorid", "vendorname", "creditdays", "currency", "branchname", "trno"}))

	vendor, items, err := s.PODetail(context.Background(), "ATCPO999")
	require.NoError(t, err)
	assert.Nil(t, vendor)
	assert.Nil(t, items)
	assert.NoError(t, mock.ExpectationsWereMet(), "the item query must not run without a vendor")
}

func TestPODetailVendorQueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM vendor v`).
		WithArgs("ATCPO012345").
		WillReturnError(errors.New("timeout"))

	_, _, err := s.PODetail(context.Background(), "ATCPO012345")
	assert.Error(t, err)
}

func TestTableHelpers(t *testing.T) {
	var nilTable *Table
	assert.True(t, nilTable.Empty())
	assert.Equal(t, "", nilTable.Cell(0, "anything"))

	tbl := &Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}
	assert.False(t, tbl.Empty())
	assert.Equal(t, "2", tbl.Cell(0, "b"))
	assert.Equal(t, "", tbl.Cell(1, "b"))
	assert.Equal(t, "", tbl.Cell(0, "missing"))
}
