package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/aquila-erp/invoice-extractor/internal/common"
)

// Config holds the ledger connection parameters. An empty DSN means the
// ledger is not configured and lookups are disabled.
type Config struct {
	DSN          string
	QueryTimeout time.Duration
}

// Table is the display-safe tabular form of a ledger result set. NULLs are
// rendered as empty strings.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Empty reports whether the table carries no rows.
func (t *Table) Empty() bool { return t == nil || len(t.Rows) == 0 }

// Cell returns a value by row index and column name, "" when out of range.
func (t *Table) Cell(row int, column string) string {
	if t == nil || row < 0 || row >= len(t.Rows) {
		return ""
	}
	for i, c := range t.Columns {
		if c == column && i < len(t.Rows[row]) {
			return t.Rows[row][i]
		}
	}
	return ""
}

// Store runs read-only queries against the external transactional ledger.
// Failures are reported as errors for the caller to log and treat as
// "no result"; Store never retains a connection between calls.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// Open connects to the ledger. Returns (nil, nil) when no DSN is configured:
// absence of the ledger is a disabled feature, not an error.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		logger.Info("ledger.disabled", "reason", "no DSN configured")
		return nil, nil
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, common.NewAppError("LEDGER_OPEN", "open ledger", err)
	}
	// One connection at a time: acquired, used, released per call.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	logger.Info("ledger.configured")
	return &Store{db: db, timeout: cfg.QueryTimeout, logger: logger}, nil
}

// NewStore wraps an existing handle; used by tests.
func NewStore(db *sql.DB, timeout time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{db: db, timeout: timeout, logger: logger}
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const prefixQuery = `SELECT branchcode || 'PO' AS prefix FROM branch WHERE trnno = $1`

// PrefixForTaxID returns the PO prefix registered for a tax ID, or "" when
// no branch matches.
func (s *Store) PrefixForTaxID(ctx context.Context, taxID string) (string, error) {
	if s == nil || s.db == nil {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var prefix string
	err := s.db.QueryRowContext(ctx, prefixQuery, taxID).Scan(&prefix)
	if err == sql.ErrNoRows {
		s.logger.Warn("ledger.prefix.not_found", "tax_id", taxID)
		return "", nil
	}
	if err != nil {
		return "", common.NewAppError("LEDGER_QUERY", fmt.Sprintf("prefix lookup for %s", taxID), err)
	}
	s.logger.Info("ledger.prefix.found", "tax_id", taxID, "prefix", prefix)
	return prefix, nil
}

const vendorQuery = `
SELECT v.vendorid,
       v.vendorname,
       v.creditdays,
       cr.currency,
       b.branchname,
       COALESCE(v.trnno, 'UNREGISTERED SUPPLIER') AS trno
FROM vendor v
JOIN currency cr ON v.currency = cr.currencyid
JOIN pohdr p ON v.vendorid = p.supplier
JOIN branch b ON b.branchid = p.branchname
WHERE v.cancel = 'F'
  AND v.inactive = 'F'
  AND v.controlaccount <> 7865220001998
  AND p.docid = $1
ORDER BY v.vendorname`

const poQuery = `
SELECT p.docid,
       p.docdt,
       p.totpovalue,
       p.netcostamt,
       p.payterm,
       c.currency
FROM pohdr p
JOIN currency c ON p.currency = c.currencyid
WHERE p.cancel = 'F'
  AND TRIM(LOWER(p.approval)) = 'yes'
  AND p.supplier = $1
  AND p.docid = $2
GROUP BY p.docid, p.docdt, p.totpovalue, p.netcostamt, p.payterm, c.currency
ORDER BY p.docid`

// PODetail fetches the owning vendor and the approved PO line detail for a
// resolved PO number. No vendor row short-circuits to (nil, nil): line items
// are meaningless without an owning vendor.
func (s *Store) PODetail(ctx context.Context, poNumber string) (*Table, *Table, error) {
	if s == nil || s.db == nil {
		return nil, nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vendor, err := s.queryTable(ctx, vendorQuery, poNumber)
	if err != nil {
		return nil, nil, common.NewAppError("LEDGER_QUERY", fmt.Sprintf("vendor lookup for %s", poNumber), err)
	}
	if vendor.Empty() {
		s.logger.Warn("ledger.vendor.not_found", "po_number", poNumber)
		return nil, nil, nil
	}

	supplierID := vendor.Cell(0, "vendorid")
	// vendorid is a join key, not display data
	vendor = vendor.dropColumn("vendorid")

	items, err := s.queryTable(ctx, poQuery, supplierID, poNumber)
	if err != nil {
		return vendor, nil, common.NewAppError("LEDGER_QUERY", fmt.Sprintf("po detail for %s", poNumber), err)
	}

	s.logger.Info("ledger.po_detail.ok",
		"po_number", poNumber,
		"vendor_rows", len(vendor.Rows),
		"item_rows", len(items.Rows),
	)
	return vendor, items, nil
}

// queryTable runs a query and converts the result set to the display form.
func (s *Store) queryTable(ctx context.Context, query string, args ...any) (*Table, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: cols}
	for rows.Next() {
		raw := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range raw {
			if v.Valid {
				row[i] = v.String
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

func (t *Table) dropColumn(name string) *Table {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return t
	}
	out := &Table{Columns: append(append([]string{}, t.Columns[:idx]...), t.Columns[idx+1:]...)}
	for _, r := range t.Rows {
		if idx < len(r) {
			out.Rows = append(out.Rows, append(append([]string{}, r[:idx]...), r[idx+1:]...))
		} else {
			out.Rows = append(out.Rows, append([]string{}, r...))
		}
	}
	return out
}
