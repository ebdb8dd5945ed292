package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/tariff-catalog/constants"
	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/entity"
	"github.com/joseph-ayodele/tariff-catalog/internal/pipeline"
)

// insertBatch keeps multi-row inserts under the postgres parameter limit.
const insertBatch = 500

// RunSource describes where a run's PDF came from.
type RunSource struct {
	Path        string
	ContentHash string
}

type CatalogRepository interface {
	SaveRun(ctx context.Context, providerID string, src RunSource, res pipeline.Result) (*entity.ExtractionRun, error)
	SaveFailedRun(ctx context.Context, providerID, runID string, src RunSource, cause error) (*entity.ExtractionRun, error)
	GetCatalog(ctx context.Context, providerID string) ([]entity.Procedure, error)
	GetRun(ctx context.Context, runID string) (*entity.ExtractionRun, error)
	ListRuns(ctx context.Context, providerID string, limit int) ([]entity.ExtractionRun, error)
	FindRunByHash(ctx context.Context, providerID, contentHash string) (*entity.ExtractionRun, error)
}

type catalogRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewCatalogRepository(db *DB, logger *slog.Logger) CatalogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &catalogRepo{db: db, logger: logger}
}

// SaveRun stores the run and replaces the provider's catalog in one
// transaction; a new upload supersedes the previous catalog.
func (r *catalogRepo) SaveRun(ctx context.Context, providerID string, src RunSource, res pipeline.Result) (*entity.ExtractionRun, error) {
	rep := res.Report
	report, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	now := time.Now().UTC()
	runStatus := string(rep.Status)
	run := &entity.ExtractionRun{
		ID:                rep.RunID,
		ProviderID:        providerID,
		Status:            string(constants.JobStatusSucceeded),
		RunStatus:         &runStatus,
		SourcePath:        nullable(src.Path),
		ContentHash:       nullable(src.ContentHash),
		TotalPages:        rep.TotalPages,
		ContributingPages: rep.ContributingPages,
		Procedures:        res.Catalog.Len(),
		Conflicts:         len(rep.Conflicts),
		Report:            report,
		StartedAt:         rep.StartedAt,
		FinishedAt:        &rep.FinishedAt,
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.upsertProvider(ctx, tx, providerID, now); err != nil {
			return err
		}
		if err := r.insertRun(ctx, tx, run); err != nil {
			return err
		}
		// a cancelled or failed run never wipes a good catalog
		if rep.Status == constants.RunTotalFailure || rep.Status == constants.RunCancelled {
			return nil
		}
		return r.replaceProcedures(ctx, tx, providerID, run.ID, res.Catalog, now)
	})
	if err != nil {
		r.logger.Error("catalog save failed", "provider_id", providerID, "run_id", run.ID, "error", err)
		return nil, fmt.Errorf("save extraction run: %w: %w", common.ErrDatabase, err)
	}
	r.logger.Info("catalog saved", "provider_id", providerID, "run_id", run.ID, "procedures", run.Procedures, "status", runStatus)
	return run, nil
}

func (r *catalogRepo) SaveFailedRun(ctx context.Context, providerID, runID string, src RunSource, cause error) (*entity.ExtractionRun, error) {
	now := time.Now().UTC()
	msg := cause.Error()
	run := &entity.ExtractionRun{
		ID:           runID,
		ProviderID:   providerID,
		Status:       string(constants.JobStatusFailed),
		SourcePath:   nullable(src.Path),
		ContentHash:  nullable(src.ContentHash),
		ErrorMessage: &msg,
		StartedAt:    now,
		FinishedAt:   &now,
	}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.upsertProvider(ctx, tx, providerID, now); err != nil {
			return err
		}
		return r.insertRun(ctx, tx, run)
	})
	if err != nil {
		r.logger.Error("failed run save failed", "provider_id", providerID, "run_id", runID, "error", err)
		return nil, fmt.Errorf("save extraction run: %w: %w", common.ErrDatabase, err)
	}
	r.logger.Warn("extraction run failed", "provider_id", providerID, "run_id", runID, "error", msg)
	return run, nil
}

func (r *catalogRepo) upsertProvider(ctx context.Context, tx *sql.Tx, providerID string, now time.Time) error {
	q, args := r.db.builder().Insert(ProvidersTable.Name).
		Columns("id", "name", "created_at", "updated_at").
		Values(providerID, providerID, now, now).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) { u.SetExcluded("updated_at") }),
		).
		Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	return nil
}

func (r *catalogRepo) insertRun(ctx context.Context, tx *sql.Tx, run *entity.ExtractionRun) error {
	var report any
	if len(run.Report) > 0 {
		report = string(run.Report)
	}
	q, args := r.db.builder().Insert(ExtractionRunsTable.Name).
		Columns("id", "provider_id", "status", "run_status", "source_path", "content_hash",
			"total_pages", "contributing_pages", "procedures", "conflicts", "report",
			"error_message", "started_at", "finished_at").
		Values(run.ID, run.ProviderID, run.Status, run.RunStatus, run.SourcePath, run.ContentHash,
			run.TotalPages, run.ContributingPages, run.Procedures, run.Conflicts, report,
			run.ErrorMessage, run.StartedAt, run.FinishedAt).
		Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *catalogRepo) replaceProcedures(ctx context.Context, tx *sql.Tx, providerID, runID string, cat *catalog.ProcedureCatalog, now time.Time) error {
	q, args := r.db.builder().Delete(ProceduresTable.Name).
		Where(entsql.EQ("provider_id", providerID)).
		Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("delete procedures: %w", err)
	}

	cands := cat.Candidates()
	for start := 0; start < len(cands); start += insertBatch {
		end := min(start+insertBatch, len(cands))
		ins := r.db.builder().Insert(ProceduresTable.Name).
			Columns("provider_id", "run_id", "code", "description", "value_cents", "page", "updated_at")
		for _, c := range cands[start:end] {
			var cents any
			if c.Value != nil {
				cents = int64(*c.Value)
			}
			ins.Values(providerID, runID, c.Code, c.Description, cents, c.Page, now)
		}
		q, args := ins.Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert procedures: %w", err)
		}
	}
	return nil
}

func (r *catalogRepo) GetCatalog(ctx context.Context, providerID string) ([]entity.Procedure, error) {
	q, args := r.db.builder().
		Select("code", "description", "value_cents", "page", "run_id", "updated_at").
		From(r.db.builder().Table(ProceduresTable.Name)).
		Where(entsql.EQ("provider_id", providerID)).
		Query()
	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to load catalog", "provider_id", providerID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.Procedure
	for rows.Next() {
		p := entity.Procedure{ProviderID: providerID}
		var cents sql.NullInt64
		if err := rows.Scan(&p.Code, &p.Description, &cents, &p.Page, &p.RunID, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if cents.Valid {
			v := catalog.Amount(cents.Int64)
			p.Value = &v
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		if exists, err := r.providerExists(ctx, providerID); err != nil {
			return nil, err
		} else if !exists {
			return nil, common.NewAppError("NOT_FOUND", "provider not found: "+providerID, common.ErrNotFound)
		}
	}
	slices.SortFunc(out, func(a, b entity.Procedure) int { return catalog.CompareCodes(a.Code, b.Code) })
	return out, nil
}

func (r *catalogRepo) providerExists(ctx context.Context, providerID string) (bool, error) {
	q, args := r.db.builder().Select("id").
		From(r.db.builder().Table(ProvidersTable.Name)).
		Where(entsql.EQ("id", providerID)).
		Query()
	var id string
	err := r.db.SQL.QueryRowContext(ctx, q, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

var runColumns = []string{
	"id", "provider_id", "status", "run_status", "source_path", "content_hash",
	"total_pages", "contributing_pages", "procedures", "conflicts", "report",
	"error_message", "started_at", "finished_at",
}

func (r *catalogRepo) GetRun(ctx context.Context, runID string) (*entity.ExtractionRun, error) {
	q, args := r.db.builder().Select(runColumns...).
		From(r.db.builder().Table(ExtractionRunsTable.Name)).
		Where(entsql.EQ("id", runID)).
		Query()
	run, err := scanRun(r.db.SQL.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "extraction run not found: "+runID, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to load run", "run_id", runID, "error", err)
		return nil, err
	}
	return run, nil
}

func (r *catalogRepo) FindRunByHash(ctx context.Context, providerID, contentHash string) (*entity.ExtractionRun, error) {
	q, args := r.db.builder().Select(runColumns...).
		From(r.db.builder().Table(ExtractionRunsTable.Name)).
		Where(entsql.And(
			entsql.EQ("provider_id", providerID),
			entsql.EQ("content_hash", contentHash),
			entsql.EQ("status", string(constants.JobStatusSucceeded)),
			// only runs whose catalog was stored count as done
			entsql.In("run_status", string(constants.RunOK), string(constants.RunPartial)),
		)).
		OrderBy(entsql.Desc("started_at")).
		Limit(1).
		Query()
	run, err := scanRun(r.db.SQL.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "no run for content hash", common.ErrNotFound)
	}
	return run, err
}

func (r *catalogRepo) ListRuns(ctx context.Context, providerID string, limit int) ([]entity.ExtractionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	q, args := r.db.builder().Select(runColumns...).
		From(r.db.builder().Table(ExtractionRunsTable.Name)).
		Where(entsql.EQ("provider_id", providerID)).
		OrderBy(entsql.Desc("started_at")).
		Limit(limit).
		Query()
	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to list runs", "provider_id", providerID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.ExtractionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*entity.ExtractionRun, error) {
	var (
		run                           entity.ExtractionRun
		runStatus, path, hash, errMsg sql.NullString
		report                        []byte
		finished                      sql.NullTime
	)
	if err := s.Scan(&run.ID, &run.ProviderID, &run.Status, &runStatus, &path, &hash,
		&run.TotalPages, &run.ContributingPages, &run.Procedures, &run.Conflicts, &report,
		&errMsg, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.RunStatus = nullString(runStatus)
	run.SourcePath = nullString(path)
	run.ContentHash = nullString(hash)
	run.ErrorMessage = nullString(errMsg)
	if len(report) > 0 {
		run.Report = json.RawMessage(report)
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func (r *catalogRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
