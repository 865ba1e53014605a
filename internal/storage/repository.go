package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"crisiswatch/internal/model"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertAttackSQL = `INSERT INTO verified_threats (
        event_id,
        ticker,
        crash_ts,
        current_price,
        z_score,
        projected_loss,
        smoking_gun_headline,
        smoking_gun_link,
        article_ts,
        latency_minutes,
        panic_score,
        correlation_confidence,
        responses,
        archived_at,
        response_deployed
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
    )
    ON CONFLICT (event_id) DO UPDATE
    SET
        crash_ts               = EXCLUDED.crash_ts,
        current_price          = EXCLUDED.current_price,
        z_score                = EXCLUDED.z_score,
        projected_loss         = EXCLUDED.projected_loss,
        smoking_gun_headline   = EXCLUDED.smoking_gun_headline,
        smoking_gun_link       = EXCLUDED.smoking_gun_link,
        article_ts             = EXCLUDED.article_ts,
        latency_minutes        = EXCLUDED.latency_minutes,
        panic_score            = EXCLUDED.panic_score,
        correlation_confidence = EXCLUDED.correlation_confidence,
        responses              = EXCLUDED.responses;`

	listRecentAttacksSQL = `SELECT
        event_id,
        ticker,
        crash_ts,
        current_price,
        z_score,
        projected_loss,
        smoking_gun_headline,
        smoking_gun_link,
        article_ts,
        latency_minutes,
        panic_score,
        correlation_confidence,
        responses,
        archived_at,
        response_deployed
    FROM verified_threats
    ORDER BY archived_at DESC
    LIMIT $1;`

	listAttacksBetweenSQL = `SELECT
        event_id,
        ticker,
        crash_ts,
        current_price,
        z_score,
        projected_loss,
        smoking_gun_headline,
        smoking_gun_link,
        article_ts,
        latency_minutes,
        panic_score,
        correlation_confidence,
        responses,
        archived_at,
        response_deployed
    FROM verified_threats
    WHERE archived_at >= $1 AND archived_at < $2
    ORDER BY archived_at;`

	markDeployedSQL = `UPDATE verified_threats
    SET response_deployed = TRUE
    WHERE event_id = $1;`

	countAttacksSQL = `SELECT COUNT(*) FROM verified_threats;`

	insertDeploymentSQL = `INSERT INTO deployed_measures (
        event_id,
        ticker,
        strategy,
        deploy_price,
        deployed_at,
        status
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, event_id, ticker, strategy, deploy_price, deployed_at, status;`

	listActiveDeploymentsSQL = `SELECT
        id,
        event_id,
        ticker,
        strategy,
        deploy_price,
        deployed_at,
        status,
        recovery_pct,
        effectiveness,
        checked_at
    FROM deployed_measures
    WHERE deployed_at >= $1
      AND status = 'active'
    ORDER BY deployed_at;`

	updateDeploymentOutcomeSQL = `UPDATE deployed_measures
    SET recovery_pct = $2, effectiveness = $3, checked_at = $4
    WHERE id = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ThreatArchive persists verified attack packages.
type ThreatArchive interface {
	ArchiveAttack(ctx context.Context, pkg model.AttackPackage) error
	ListRecentAttacks(ctx context.Context, limit int) ([]model.AttackPackage, error)
	ListAttacksBetween(ctx context.Context, from, to time.Time) ([]model.AttackPackage, error)
	MarkDeployed(ctx context.Context, eventID string) error
	CountAttacks(ctx context.Context) (int64, error)
}

// DeploymentStore records deployed countermeasures and their outcomes.
type DeploymentStore interface {
	InsertDeployment(ctx context.Context, rec DeploymentRecord) (DeploymentRecord, error)
	ListActiveDeployments(ctx context.Context, since time.Time) ([]DeploymentRecord, error)
	UpdateDeploymentOutcome(ctx context.Context, id int64, recoveryPct decimal.Decimal, effectiveness string) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to verified threats and deployed measures.
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

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
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
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ArchiveAttack persists a verified attack package.
func (s *Store) ArchiveAttack(ctx context.Context, pkg model.AttackPackage) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	responses, err := json.Marshal(pkg.Responses)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}

	_, execErr := pool.Exec(ctx, insertAttackSQL,
		pkg.EventID,
		pkg.Ticker,
		pkg.CrashTimestamp,
		pkg.CurrentPrice.String(),
		pkg.ZScore,
		pkg.ProjectedLossPct,
		pkg.SmokingGunHeadline,
		pkg.SmokingGunLink,
		pkg.ArticleTimestamp,
		pkg.LatencyMinutes,
		pkg.PanicScore,
		pkg.Confidence,
		responses,
		pkg.ArchivedAt,
		pkg.Deployed,
	)
	if execErr != nil {
		return fmt.Errorf("archive attack: %w", execErr)
	}
	return nil
}

// ListRecentAttacks lists archived attacks ordered by descending archival time.
func (s *Store) ListRecentAttacks(ctx context.Context, limit int) ([]model.AttackPackage, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAttacksSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent attacks: %w", queryErr)
	}
	defer rows.Close()

	attacks := make([]model.AttackPackage, 0, limit)
	for rows.Next() {
		pkg, scanErr := scanAttack(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		attacks = append(attacks, pkg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return attacks, nil
}

// ListAttacksBetween lists attacks archived inside [from, to) in
// ascending archival order.
func (s *Store) ListAttacksBetween(ctx context.Context, from, to time.Time) ([]model.AttackPackage, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAttacksBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list attacks between: %w", queryErr)
	}
	defer rows.Close()

	var attacks []model.AttackPackage
	for rows.Next() {
		pkg, scanErr := scanAttack(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		attacks = append(attacks, pkg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return attacks, nil
}

// MarkDeployed flips the deployment flag on an archived attack.
func (s *Store) MarkDeployed(ctx context.Context, eventID string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, markDeployedSQL, eventID)
	if execErr != nil {
		return fmt.Errorf("mark deployed: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountAttacks counts archived attacks.
func (s *Store) CountAttacks(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countAttacksSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count attacks: %w", scanErr)
	}
	return count, nil
}

// InsertDeployment records a deployed countermeasure.
func (s *Store) InsertDeployment(ctx context.Context, rec DeploymentRecord) (DeploymentRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return DeploymentRecord{}, err
	}

	status := rec.Status
	if status == "" {
		status = "active"
	}

	row := pool.QueryRow(ctx, insertDeploymentSQL,
		rec.EventID,
		rec.Ticker,
		rec.Strategy,
		rec.DeployPrice.String(),
		rec.DeployedAt,
		status,
	)

	var out DeploymentRecord
	var priceStr string
	if scanErr := row.Scan(
		&out.ID,
		&out.EventID,
		&out.Ticker,
		&out.Strategy,
		&priceStr,
		&out.DeployedAt,
		&out.Status,
	); scanErr != nil {
		return DeploymentRecord{}, fmt.Errorf("insert deployment: %w", scanErr)
	}

	price, convErr := decimal.NewFromString(priceStr)
	if convErr != nil {
		return DeploymentRecord{}, fmt.Errorf("parse deploy price: %w", convErr)
	}
	out.DeployPrice = price

	return out, nil
}

// ListActiveDeployments lists active deployments since the given time.
func (s *Store) ListActiveDeployments(ctx context.Context, since time.Time) ([]DeploymentRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveDeploymentsSQL, since)
	if queryErr != nil {
		return nil, fmt.Errorf("list active deployments: %w", queryErr)
	}
	defer rows.Close()

	records := make([]DeploymentRecord, 0)
	for rows.Next() {
		var rec DeploymentRecord
		var priceStr string
		var recoveryStr sql.NullString
		var effectiveness sql.NullString
		var checkedAt sql.NullTime
		if err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&rec.Ticker,
			&rec.Strategy,
			&priceStr,
			&rec.DeployedAt,
			&rec.Status,
			&recoveryStr,
			&effectiveness,
			&checkedAt,
		); err != nil {
			return nil, err
		}

		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse deploy price: %w", convErr)
		}
		rec.DeployPrice = price

		if recoveryStr.Valid {
			recovery, convErr := decimal.NewFromString(recoveryStr.String)
			if convErr != nil {
				return nil, fmt.Errorf("parse recovery pct: %w", convErr)
			}
			rec.RecoveryPct = &recovery
		}
		if effectiveness.Valid {
			v := effectiveness.String
			rec.Effectiveness = &v
		}
		if checkedAt.Valid {
			t := checkedAt.Time
			rec.CheckedAt = &t
		}

		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// UpdateDeploymentOutcome records the measured recovery for a deployment.
func (s *Store) UpdateDeploymentOutcome(ctx context.Context, id int64, recoveryPct decimal.Decimal, effectiveness string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, updateDeploymentOutcomeSQL, id, recoveryPct.String(), effectiveness, time.Now().UTC())
	if execErr != nil {
		return fmt.Errorf("update deployment outcome: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanAttack(rows pgx.Rows) (model.AttackPackage, error) {
	var (
		pkg          model.AttackPackage
		priceStr     string
		responsesRaw json.RawMessage
	)

	if err := rows.Scan(
		&pkg.EventID,
		&pkg.Ticker,
		&pkg.CrashTimestamp,
		&priceStr,
		&pkg.ZScore,
		&pkg.ProjectedLossPct,
		&pkg.SmokingGunHeadline,
		&pkg.SmokingGunLink,
		&pkg.ArticleTimestamp,
		&pkg.LatencyMinutes,
		&pkg.PanicScore,
		&pkg.Confidence,
		&responsesRaw,
		&pkg.ArchivedAt,
		&pkg.Deployed,
	); err != nil {
		return model.AttackPackage{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return model.AttackPackage{}, fmt.Errorf("parse current price: %w", err)
	}
	pkg.CurrentPrice = price

	if len(responsesRaw) > 0 {
		if err := json.Unmarshal(responsesRaw, &pkg.Responses); err != nil {
			return model.AttackPackage{}, fmt.Errorf("decode responses: %w", err)
		}
	}

	return pkg, nil
}

var _ ThreatArchive = (*Store)(nil)
var _ DeploymentStore = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
