package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
)

const (
	listCompaniesSQL = `SELECT ticker, name, name_normalized, market_cap, avg_volume, sector, updated_at
    FROM companies
    ORDER BY ticker;`

	getCompanySQL = `SELECT ticker, name, name_normalized, market_cap, avg_volume, sector, updated_at
    FROM companies
    WHERE ticker = $1;`

	searchCompaniesSQL = `SELECT ticker, name, name_normalized, market_cap, avg_volume, sector, updated_at
    FROM companies
    WHERE ticker ILIKE $1 OR name ILIKE $1
    ORDER BY ticker
    LIMIT $2;`

	upsertCompanySQL = `INSERT INTO companies (
        ticker, name, name_normalized, market_cap, avg_volume, sector, updated_at
    ) VALUES ($1,$2,$3,$4,$5,$6,now())
    ON CONFLICT (ticker) DO UPDATE
    SET name            = EXCLUDED.name,
        name_normalized = EXCLUDED.name_normalized,
        market_cap      = EXCLUDED.market_cap,
        avg_volume      = EXCLUDED.avg_volume,
        sector          = EXCLUDED.sector,
        updated_at      = now();`

	insertSignalSQL = `INSERT INTO signals (
        contract_id,
        ticker,
        agency_name,
        contract_description,
        award_amount,
        potential_ceiling,
        market_cap_at_time,
        impact_ratio,
        contract_date,
        source_url,
        detected_at,
        price_at_contract,
        price_before_1h,
        price_before_6h,
        price_before_24h,
        price_after_1m,
        price_after_1h,
        price_after_6h,
        price_after_24h
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
    )
    ON CONFLICT (contract_id) DO NOTHING;`

	signalColumns = `id, contract_id, ticker, agency_name, contract_description,
        award_amount, potential_ceiling, market_cap_at_time, impact_ratio,
        contract_date, source_url, detected_at, price_at_contract,
        price_before_1h, price_before_6h, price_before_24h,
        price_after_1m, price_after_1h, price_after_6h, price_after_24h`

	getSignalSQL = `SELECT ` + signalColumns + ` FROM signals WHERE id = $1;`

	listUnenrichedSQL = `SELECT ` + signalColumns + `
    FROM signals
    WHERE price_at_contract IS NULL
      AND contract_date IS NOT NULL
    ORDER BY detected_at DESC
    LIMIT $1;`

	listSignalsBetweenSQL = `SELECT ` + signalColumns + `
    FROM signals
    WHERE detected_at >= $1
      AND detected_at < $2
    ORDER BY detected_at ASC;`

	updateSignalPricesSQL = `UPDATE signals
    SET price_at_contract = $2,
        price_before_1h   = $3,
        price_before_6h   = $4,
        price_before_24h  = $5,
        price_after_1m    = $6,
        price_after_1h    = $7,
        price_after_6h    = $8,
        price_after_24h   = $9
    WHERE id = $1
      AND price_at_contract IS NULL;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// CompanyStore defines operations over the company reference set.
type CompanyStore interface {
	ListCompanies(ctx context.Context) ([]Company, error)
	GetCompany(ctx context.Context, ticker string) (Company, error)
	SearchCompanies(ctx context.Context, query string, limit int) ([]Company, error)
	UpsertCompany(ctx context.Context, company Company) error
}

// SignalStore defines read and enrichment operations over persisted signals.
type SignalStore interface {
	ListSignals(ctx context.Context, filter SignalFilter) ([]Signal, error)
	CountSignals(ctx context.Context, filter SignalFilter) (int64, error)
	GetSignal(ctx context.Context, id int64) (Signal, error)
	ListUnenrichedSignals(ctx context.Context, limit int) ([]Signal, error)
	UpdateSignalPrices(ctx context.Context, id int64, prices SignalPrices) (bool, error)
}

// SignalWriter is the transactional write surface for a single pipeline run.
// All inserts become visible together at Commit, or not at all.
type SignalWriter interface {
	InsertSignalIfAbsent(ctx context.Context, signal Signal) (bool, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// SignalPrices carries the enrichment payload for a signal's price columns.
type SignalPrices struct {
	AtContract *decimal.Decimal
	Before1H   *decimal.Decimal
	Before6H   *decimal.Decimal
	Before24H  *decimal.Decimal
	After1M    *decimal.Decimal
	After1H    *decimal.Decimal
	After6H    *decimal.Decimal
	After24H   *decimal.Decimal
}

// Store aggregates access to companies and signals.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func. Guards against two processes running the pipeline over the
// same lookback window.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// ListCompanies returns the full company reference set.
func (s *Store) ListCompanies(ctx context.Context) ([]Company, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCompaniesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list companies: %w", queryErr)
	}
	defer rows.Close()

	companies := make([]Company, 0)
	for rows.Next() {
		company, scanErr := scanCompany(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		companies = append(companies, company)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return companies, nil
}

// GetCompany fetches a single company by ticker.
func (s *Store) GetCompany(ctx context.Context, ticker string) (Company, error) {
	pool, err := s.getPool()
	if err != nil {
		return Company{}, err
	}

	rows, queryErr := pool.Query(ctx, getCompanySQL, strings.ToUpper(ticker))
	if queryErr != nil {
		return Company{}, fmt.Errorf("get company: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Company{}, rows.Err()
		}
		return Company{}, ErrNotFound
	}
	return scanCompany(rows)
}

// SearchCompanies searches by ticker or name.
func (s *Store) SearchCompanies(ctx context.Context, query string, limit int) ([]Company, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	pattern := "%" + query + "%"
	rows, queryErr := pool.Query(ctx, searchCompaniesSQL, pattern, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("search companies: %w", queryErr)
	}
	defer rows.Close()

	companies := make([]Company, 0, limit)
	for rows.Next() {
		company, scanErr := scanCompany(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		companies = append(companies, company)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return companies, nil
}

// UpsertCompany inserts or refreshes a company reference row.
func (s *Store) UpsertCompany(ctx context.Context, company Company) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertCompanySQL,
		strings.ToUpper(company.Ticker),
		company.Name,
		company.NameNormalized,
		decimalArg(company.MarketCap),
		int64Arg(company.AvgVolume),
		stringArg(company.Sector),
	)
	if execErr != nil {
		return fmt.Errorf("upsert company: %w", execErr)
	}
	return nil
}

// BeginBatch opens the transactional write scope for a pipeline run.
func (s *Store) BeginBatch(ctx context.Context) (SignalWriter, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &signalBatch{tx: tx}, nil
}

type signalBatch struct {
	tx pgx.Tx
}

// InsertSignalIfAbsent inserts a signal keyed by contract_id. A pre-existing
// row is left untouched; returns whether a new row was written. The insert
// runs inside a savepoint so a constraint failure (unknown ticker, numeric
// overflow) is rolled back on its own and does not abort the batch
// transaction for the remaining contracts.
func (b *signalBatch) InsertSignalIfAbsent(ctx context.Context, signal Signal) (bool, error) {
	detectedAt := signal.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}

	savepoint, err := b.tx.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin savepoint: %w", err)
	}

	cmdTag, err := savepoint.Exec(ctx, insertSignalSQL,
		signal.ContractID,
		signal.Ticker,
		signal.AgencyName,
		signal.Description,
		signal.AwardAmount.String(),
		decimalArg(signal.PotentialCeiling),
		decimalArg(signal.MarketCapAtTime),
		signal.ImpactRatio.String(),
		timeArg(signal.ContractDate),
		stringArg(signal.SourceURL),
		detectedAt,
		decimalArg(signal.PriceAtContract),
		decimalArg(signal.PriceBefore1H),
		decimalArg(signal.PriceBefore6H),
		decimalArg(signal.PriceBefore24H),
		decimalArg(signal.PriceAfter1M),
		decimalArg(signal.PriceAfter1H),
		decimalArg(signal.PriceAfter6H),
		decimalArg(signal.PriceAfter24H),
	)
	if err != nil {
		_ = savepoint.Rollback(ctx)
		return false, fmt.Errorf("insert signal: %w", err)
	}
	if err := savepoint.Commit(ctx); err != nil {
		return false, fmt.Errorf("release savepoint: %w", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

func (b *signalBatch) Commit(ctx context.Context) error {
	if err := b.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (b *signalBatch) Rollback(ctx context.Context) {
	_ = b.tx.Rollback(ctx)
}

// ListSignals returns a page of signals matching the filter.
func (s *Store) ListSignals(ctx context.Context, filter SignalFilter) ([]Signal, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	where, args := signalFilterClause(filter)

	orderBy := "contract_date DESC NULLS LAST"
	if filter.SortBy == "detected_at" {
		orderBy = "detected_at DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(
		`SELECT %s FROM signals %s ORDER BY %s LIMIT %d OFFSET %d;`,
		signalColumns, where, orderBy, limit, filter.Offset,
	)

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list signals: %w", queryErr)
	}
	defer rows.Close()

	signals := make([]Signal, 0, limit)
	for rows.Next() {
		signal, scanErr := scanSignal(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		signals = append(signals, signal)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return signals, nil
}

// CountSignals counts signals matching the filter.
func (s *Store) CountSignals(ctx context.Context, filter SignalFilter) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	where, args := signalFilterClause(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM signals %s;`, where)

	var count int64
	if scanErr := pool.QueryRow(ctx, query, args...).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count signals: %w", scanErr)
	}
	return count, nil
}

// GetSignal fetches a single signal by id.
func (s *Store) GetSignal(ctx context.Context, id int64) (Signal, error) {
	pool, err := s.getPool()
	if err != nil {
		return Signal{}, err
	}

	rows, queryErr := pool.Query(ctx, getSignalSQL, id)
	if queryErr != nil {
		return Signal{}, fmt.Errorf("get signal: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Signal{}, rows.Err()
		}
		return Signal{}, ErrNotFound
	}
	return scanSignal(rows)
}

// ListSignalsBetween returns signals detected in [from, to) in ascending
// detection order. Used by the export command.
func (s *Store) ListSignalsBetween(ctx context.Context, from, to time.Time) ([]Signal, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSignalsBetweenSQL, from.UTC(), to.UTC())
	if queryErr != nil {
		return nil, fmt.Errorf("list signals between: %w", queryErr)
	}
	defer rows.Close()

	var signals []Signal
	for rows.Next() {
		signal, scanErr := scanSignal(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		signals = append(signals, signal)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return signals, nil
}

// ListUnenrichedSignals returns signals still missing price data.
func (s *Store) ListUnenrichedSignals(ctx context.Context, limit int) ([]Signal, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listUnenrichedSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list unenriched signals: %w", queryErr)
	}
	defer rows.Close()

	signals := make([]Signal, 0, limit)
	for rows.Next() {
		signal, scanErr := scanSignal(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		signals = append(signals, signal)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return signals, nil
}

// UpdateSignalPrices backfills price columns on a signal that has none yet.
// Rows already enriched are never overwritten.
func (s *Store) UpdateSignalPrices(ctx context.Context, id int64, prices SignalPrices) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	cmdTag, execErr := pool.Exec(ctx, updateSignalPricesSQL,
		id,
		decimalArg(prices.AtContract),
		decimalArg(prices.Before1H),
		decimalArg(prices.Before6H),
		decimalArg(prices.Before24H),
		decimalArg(prices.After1M),
		decimalArg(prices.After1H),
		decimalArg(prices.After6H),
		decimalArg(prices.After24H),
	)
	if execErr != nil {
		return false, fmt.Errorf("update signal prices: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

func signalFilterClause(filter SignalFilter) (string, []interface{}) {
	clauses := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)

	if filter.MinImpact != nil {
		args = append(args, filter.MinImpact.String())
		clauses = append(clauses, fmt.Sprintf("impact_ratio >= $%d", len(args)))
	}
	if filter.Ticker != "" {
		args = append(args, strings.ToUpper(filter.Ticker))
		clauses = append(clauses, fmt.Sprintf("ticker = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanCompany(rows pgx.Rows) (Company, error) {
	var (
		company    Company
		normalized sql.NullString
		marketCap  sql.NullString
		avgVolume  sql.NullInt64
		sector     sql.NullString
	)

	if err := rows.Scan(
		&company.Ticker,
		&company.Name,
		&normalized,
		&marketCap,
		&avgVolume,
		&sector,
		&company.UpdatedAt,
	); err != nil {
		return Company{}, err
	}

	if normalized.Valid {
		company.NameNormalized = normalized.String
	}
	capValue, err := nullDecimal(marketCap)
	if err != nil {
		return Company{}, fmt.Errorf("parse market cap: %w", err)
	}
	company.MarketCap = capValue
	if avgVolume.Valid {
		volume := avgVolume.Int64
		company.AvgVolume = &volume
	}
	if sector.Valid {
		value := sector.String
		company.Sector = &value
	}

	return company, nil
}

func scanSignal(rows pgx.Rows) (Signal, error) {
	var (
		signal       Signal
		agency       sql.NullString
		description  sql.NullString
		award        string
		ceiling      sql.NullString
		marketCap    sql.NullString
		impact       string
		contractDate sql.NullTime
		sourceURL    sql.NullString
		priceCols    [8]sql.NullString
	)

	if err := rows.Scan(
		&signal.ID,
		&signal.ContractID,
		&signal.Ticker,
		&agency,
		&description,
		&award,
		&ceiling,
		&marketCap,
		&impact,
		&contractDate,
		&sourceURL,
		&signal.DetectedAt,
		&priceCols[0],
		&priceCols[1],
		&priceCols[2],
		&priceCols[3],
		&priceCols[4],
		&priceCols[5],
		&priceCols[6],
		&priceCols[7],
	); err != nil {
		return Signal{}, err
	}

	if agency.Valid {
		signal.AgencyName = agency.String
	}
	if description.Valid {
		signal.Description = description.String
	}

	var err error
	signal.AwardAmount, err = decimal.NewFromString(award)
	if err != nil {
		return Signal{}, fmt.Errorf("parse award amount: %w", err)
	}
	signal.ImpactRatio, err = decimal.NewFromString(impact)
	if err != nil {
		return Signal{}, fmt.Errorf("parse impact ratio: %w", err)
	}
	if signal.PotentialCeiling, err = nullDecimal(ceiling); err != nil {
		return Signal{}, fmt.Errorf("parse potential ceiling: %w", err)
	}
	if signal.MarketCapAtTime, err = nullDecimal(marketCap); err != nil {
		return Signal{}, fmt.Errorf("parse market cap: %w", err)
	}

	if contractDate.Valid {
		date := contractDate.Time
		signal.ContractDate = &date
	}
	if sourceURL.Valid {
		url := sourceURL.String
		signal.SourceURL = &url
	}

	targets := []**decimal.Decimal{
		&signal.PriceAtContract,
		&signal.PriceBefore1H,
		&signal.PriceBefore6H,
		&signal.PriceBefore24H,
		&signal.PriceAfter1M,
		&signal.PriceAfter1H,
		&signal.PriceAfter6H,
		&signal.PriceAfter24H,
	}
	for i, col := range priceCols {
		value, parseErr := nullDecimal(col)
		if parseErr != nil {
			return Signal{}, fmt.Errorf("parse price column: %w", parseErr)
		}
		*targets[i] = value
	}

	return signal, nil
}

func nullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	value, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func decimalArg(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func int64Arg(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func stringArg(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
