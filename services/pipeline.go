package services

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"leiloes-caixa/config"
	"leiloes-caixa/models"
	"leiloes-caixa/storage"
	"leiloes-caixa/utils"
)

// Stages recorded on a RunRecord, in execution order.
const (
	StageAcquire      = "acquire"
	StageArchiveRaw   = "archive-raw"
	StageTransform    = "transform"
	StageArchiveClean = "archive-clean"
	StageDone         = "done"
)

// Fetcher obtains the raw export for a region as a local file.
type Fetcher interface {
	Acquire(ctx context.Context, region models.RegionCode) (string, error)
}

// Archiver uploads local files under bucket keys.
type Archiver interface {
	Put(ctx context.Context, localPath, key string) error
}

// TableTransformer cleans an archived raw export.
type TableTransformer interface {
	TransformDetailed(ctx context.Context, sourceKey string) (*models.CleanedTable, error)
}

// Pipeline runs acquire → archive → transform → archive for each region,
// one region at a time.
type Pipeline struct {
	fetcher     Fetcher
	archiver    Archiver
	transformer TableTransformer
	ledger      storage.RunLedger
	reporter    *ReportService
	limiter     *rate.Limiter
	logger      *utils.Logger

	now func() time.Time
}

// NewPipeline wires the collaborators. A nil ledger discards run records.
func NewPipeline(cfg *config.Config, fetcher Fetcher, archiver Archiver, transformer TableTransformer,
	ledger storage.RunLedger, logger *utils.Logger) *Pipeline {
	if ledger == nil {
		ledger = storage.NopLedger{}
	}
	limit := rate.Inf
	if cfg.RegionDelay > 0 {
		limit = rate.Every(cfg.RegionDelay)
	}
	return &Pipeline{
		fetcher:     fetcher,
		archiver:    archiver,
		transformer: transformer,
		ledger:      ledger,
		reporter:    NewReportService(logger),
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
		now:         time.Now,
	}
}

// Run processes regions in order. A failure in one region is logged and
// recorded and the batch moves on to the next; regions already archived are
// left as they are. Cancelling ctx stops the batch before the next region.
func (p *Pipeline) Run(ctx context.Context, regions []models.RegionCode) *models.RunReport {
	p.logger.Info("[pipeline] Starting batch for %d regions", len(regions))

	records := make([]*models.RunRecord, 0, len(regions))
	for i, region := range regions {
		if err := p.limiter.Wait(ctx); err != nil {
			p.logger.Warn("[pipeline] Batch stopped before %s: %v", region, err)
			break
		}

		p.logger.Info("[pipeline] Region %s (%d/%d)", region, i+1, len(regions))
		rec := p.newRecord(region)

		localPath, err := p.fetcher.Acquire(ctx, region)
		if err == nil {
			err = p.ingest(ctx, rec, localPath)
		}
		p.finish(ctx, rec, err)
		records = append(records, rec)
	}

	report := p.reporter.Generate(records)
	p.logger.Info("[pipeline] Batch complete: %d succeeded, %d failed", report.Succeeded, report.Failed)
	return report
}

// ProcessLocal archives and transforms a file that is already on disk, as if
// it had just been acquired for region.
func (p *Pipeline) ProcessLocal(ctx context.Context, region models.RegionCode, localPath string) (*models.RunRecord, error) {
	rec := p.newRecord(region)
	err := p.ingest(ctx, rec, localPath)
	p.finish(ctx, rec, err)
	return rec, err
}

func (p *Pipeline) newRecord(region models.RegionCode) *models.RunRecord {
	started := p.now()
	return &models.RunRecord{
		Region:    region,
		RunDate:   started.Format(time.DateOnly),
		Stage:     StageAcquire,
		StartedAt: started,
	}
}

func (p *Pipeline) ingest(ctx context.Context, rec *models.RunRecord, localPath string) error {
	raw := &models.RawListing{
		Region:      rec.Region,
		LocalPath:   localPath,
		BaseName:    models.BaseName(localPath),
		ExtractedAt: rec.StartedAt,
	}
	raw.Key = models.RawKey(raw.BaseName, raw.ExtractedAt)

	rec.Stage = StageArchiveRaw
	rec.RawKey = raw.Key
	if err := p.archiver.Put(ctx, raw.LocalPath, raw.Key); err != nil {
		return err
	}

	rec.Stage = StageTransform
	cleaned, err := p.transformer.TransformDetailed(ctx, raw.Key)
	if err != nil {
		return err
	}
	cleaned.Key = models.IntegratedKey(raw.BaseName)
	rec.RawRows = cleaned.RawRows
	rec.CleanRows = cleaned.RowCount

	rec.Stage = StageArchiveClean
	rec.IntegratedKey = cleaned.Key
	if err := p.archiver.Put(ctx, cleaned.LocalPath, cleaned.Key); err != nil {
		return err
	}

	rec.Stage = StageDone
	return nil
}

func (p *Pipeline) finish(ctx context.Context, rec *models.RunRecord, err error) {
	rec.Duration = p.now().Sub(rec.StartedAt)
	if err != nil {
		rec.Status = models.RunFailed
		rec.Error = err.Error()
		p.logger.Error("[pipeline] %s failed at %s: %v", rec.Region, rec.Stage, err)
	} else {
		rec.Status = models.RunSucceeded
		p.logger.Info("[pipeline] %s done: %s → %s (%d/%d rows kept)",
			rec.Region, rec.RawKey, rec.IntegratedKey, rec.CleanRows, rec.RawRows)
	}

	// Ledger failures do not change the region's outcome.
	if lerr := p.ledger.Record(context.WithoutCancel(ctx), rec); lerr != nil {
		p.logger.Warn("[pipeline] Could not record run for %s: %v", rec.Region, lerr)
	}
}
