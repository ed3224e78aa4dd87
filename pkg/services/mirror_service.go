package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	dsmysql "github.com/ekaya-inc/mirror-engine/pkg/adapters/datasource/mysql"
	"github.com/ekaya-inc/mirror-engine/pkg/apperrors"
	"github.com/ekaya-inc/mirror-engine/pkg/config"
	"github.com/ekaya-inc/mirror-engine/pkg/mirror"
	"github.com/ekaya-inc/mirror-engine/pkg/retry"
)

// MirrorService runs one complete synchronization of a single table from the
// source database into the target database.
type MirrorService struct {
	cfg      *config.Config
	logger   *zap.Logger
	retryCfg *retry.Config
}

// RunReport summarizes one synchronization run.
type RunReport struct {
	RunID      string
	Table      string
	SourceRows int
	TargetRows int
	Counts     mirror.Counts
	Duration   time.Duration
}

// NewMirrorService creates the orchestrator. If logger is nil, a no-op logger
// is used; if retryCfg is nil, connection attempts use retry defaults scaled
// by cfg.ConnectRetries.
func NewMirrorService(cfg *config.Config, logger *zap.Logger, retryCfg *retry.Config) *MirrorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
		retryCfg.MaxRetries = cfg.ConnectRetries
	}
	return &MirrorService{cfg: cfg, logger: logger, retryCfg: retryCfg}
}

// Run executes one sync: connect both sides, bootstrap the target table if
// needed, snapshot both tables, diff, and apply the diff transactionally.
// A run either commits all of its changes or none of them; the next run
// recomputes everything from fresh snapshots, so reruns after failure are
// safe.
func (s *MirrorService) Run(ctx context.Context) (*RunReport, error) {
	started := time.Now()
	table := s.cfg.TableName
	runID := uuid.NewString()
	logger := s.logger.With(
		zap.String("run_id", runID),
		zap.String("table", table),
	)

	logger.Info("Starting mirror run",
		zap.String("source", fmt.Sprintf("%s:%d/%s", s.cfg.Source.Host, s.cfg.Source.Port, s.cfg.Source.Database)),
		zap.String("target", fmt.Sprintf("%s:%d/%s", s.cfg.Target.Host, s.cfg.Target.Port, s.cfg.Target.Database)))

	source, err := dsmysql.NewAdapter(ctx, s.adapterConfig(s.cfg.Source), s.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("connect source: %w", err)
	}
	defer source.Close()

	target, err := dsmysql.NewAdapter(ctx, s.adapterConfig(s.cfg.Target), s.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("connect target: %w", err)
	}
	defer target.Close()

	srcSchema := dsmysql.NewIntrospector(source)
	tgtSchema := dsmysql.NewIntrospector(target)

	exists, err := srcSchema.TableExists(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("check source table: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s.%s", apperrors.ErrTableNotFound, source.Database(), table)
	}

	bootstrap := mirror.NewBootstrapper(srcSchema, tgtSchema, target.DB(), logger)
	if err := bootstrap.EnsureTargetTable(ctx, table); err != nil {
		return nil, err
	}

	columns, pk, err := s.resolveSchema(ctx, srcSchema, tgtSchema, table)
	if err != nil {
		return nil, err
	}

	srcSnapshot, err := mirror.NewLoader(source.DB(), logger).Load(ctx, table, columns, pk, false)
	if err != nil {
		return nil, fmt.Errorf("snapshot source: %w", err)
	}
	tgtSnapshot, err := mirror.NewLoader(target.DB(), logger).Load(ctx, table, columns, pk, true)
	if err != nil {
		return nil, fmt.Errorf("snapshot target: %w", err)
	}

	diff := mirror.Diff(srcSnapshot, tgtSnapshot)
	logger.Info("Computed diff",
		zap.Int("to_insert", len(diff.ToInsert)),
		zap.Int("to_update", len(diff.ToUpdate)),
		zap.Int("to_delete", len(diff.ToDelete)))

	applier := mirror.NewApplier(target.DB(), table, columns, pk, s.cfg.BatchSize, logger)
	counts, err := applier.Apply(ctx, diff, srcSnapshot, tgtSnapshot)
	if err != nil {
		return nil, fmt.Errorf("apply diff: %w", err)
	}

	report := &RunReport{
		RunID:      runID,
		Table:      table,
		SourceRows: len(srcSnapshot),
		TargetRows: len(tgtSnapshot),
		Counts:     counts,
		Duration:   time.Since(started),
	}

	logger.Info("Mirror run complete",
		zap.Int("inserted", counts.Inserted),
		zap.Int("updated", counts.Updated),
		zap.Int("deleted", counts.Deleted),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// resolveSchema determines the shared business column list and the primary
// key, and verifies both sides agree. Tracking columns are excluded from the
// business list so they never take part in equality, even when the source
// itself happens to carry them.
func (s *MirrorService) resolveSchema(ctx context.Context, src, tgt *dsmysql.Introspector, table string) ([]string, []string, error) {
	srcColumns, err := src.Columns(ctx, table)
	if err != nil {
		return nil, nil, fmt.Errorf("introspect source columns: %w", err)
	}
	pk, err := src.PrimaryKey(ctx, table)
	if err != nil {
		return nil, nil, fmt.Errorf("introspect source primary key: %w", err)
	}

	tgtPK, err := tgt.PrimaryKey(ctx, table)
	if err != nil {
		return nil, nil, fmt.Errorf("introspect target primary key: %w", err)
	}
	if !stringSlicesEqual(pk, tgtPK) {
		return nil, nil, fmt.Errorf("%w: primary key is %v on source, %v on target",
			apperrors.ErrSchemaDrift, pk, tgtPK)
	}

	tgtColumns, err := tgt.Columns(ctx, table)
	if err != nil {
		return nil, nil, fmt.Errorf("introspect target columns: %w", err)
	}
	tgtSet := make(map[string]struct{}, len(tgtColumns))
	for _, c := range tgtColumns {
		tgtSet[c] = struct{}{}
	}

	columns := make([]string, 0, len(srcColumns))
	for _, c := range srcColumns {
		if c == mirror.OperationColumn || c == mirror.UpdatedColumn {
			continue
		}
		if _, ok := tgtSet[c]; !ok {
			return nil, nil, fmt.Errorf("%w: column %s exists on source but not on target",
				apperrors.ErrSchemaDrift, c)
		}
		columns = append(columns, c)
	}

	return columns, pk, nil
}

func (s *MirrorService) adapterConfig(db config.DatabaseConfig) *dsmysql.Config {
	return &dsmysql.Config{
		Host:           db.Host,
		Port:           db.Port,
		User:           db.User,
		Password:       db.Password,
		Database:       db.Database,
		ConnectTimeout: s.cfg.ConnectTimeout,
	}
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
