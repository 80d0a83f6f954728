package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"leiloes-caixa/models"
	"leiloes-caixa/storage"
)

// fakeFetcher "downloads" canned exports into a staging directory.
type fakeFetcher struct {
	dir     string
	exports map[models.RegionCode]string
	errs    map[models.RegionCode]error
	calls   []models.RegionCode
}

func (f *fakeFetcher) Acquire(_ context.Context, region models.RegionCode) (string, error) {
	f.calls = append(f.calls, region)
	if err := f.errs[region]; err != nil {
		return "", err
	}
	path := filepath.Join(f.dir, "leiloes_"+string(region)+".csv")
	if err := os.WriteFile(path, []byte(f.exports[region]), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type memLedger struct {
	mu      sync.Mutex
	records []models.RunRecord
	err     error
}

func (l *memLedger) Record(_ context.Context, rec *models.RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.records = append(l.records, *rec)
	return nil
}

func (l *memLedger) FetchAll(context.Context) ([]*models.RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	out := make([]*models.RunRecord, len(l.records))
	for i := range l.records {
		rec := l.records[i]
		out[i] = &rec
	}
	return out, nil
}

func (l *memLedger) Close() error { return nil }

var runDay = time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC)

type pipelineFixture struct {
	pipeline *Pipeline
	fetcher  *fakeFetcher
	bucket   storage.Bucket
	ledger   *memLedger
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	cfg := loadConfig(t, "dialect: semicolon_shifted\n")
	gw, bucket := newTestGateway(t, cfg)

	fetcher := &fakeFetcher{
		dir: t.TempDir(),
		exports: map[models.RegionCode]string{
			"MG": semicolonExport,
			"SP": "Lista de Im\xf3veis da Caixa\nN\xba do im\xf3vel;UF;Cidade\n1;SP;SANTOS\n2;SP;\n",
		},
		errs: map[models.RegionCode]error{},
	}
	ledger := &memLedger{}

	p := NewPipeline(cfg, fetcher, gw, NewTransformer(cfg, gw, newTestLogger()), ledger, newTestLogger())
	p.now = func() time.Time { return runDay }

	return &pipelineFixture{pipeline: p, fetcher: fetcher, bucket: bucket, ledger: ledger}
}

func (f *pipelineFixture) read(t *testing.T, key string) string {
	t.Helper()
	rc, err := f.bucket.Download(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func (f *pipelineFixture) download(t *testing.T, key string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), filepath.Base(key))
	require.NoError(t, os.WriteFile(path, []byte(f.read(t, key)), 0o644))
	return path
}

func TestPipelineRunArchivesRawAndCleaned(t *testing.T) {
	f := newPipelineFixture(t)

	report := f.pipeline.Run(context.Background(), []models.RegionCode{"MG", "SP"})

	require.Equal(t, []models.RegionCode{"MG", "SP"}, f.fetcher.calls)
	require.Equal(t, 2, report.Regions)
	require.Equal(t, 2, report.Succeeded)
	require.Zero(t, report.Failed)
	require.Equal(t, 6, report.RawRows)
	require.Equal(t, 3, report.CleanRows)
	require.Equal(t, 3, report.DroppedRows)

	// Raw copies are archived byte for byte under dated keys.
	require.Equal(t, semicolonExport, f.read(t, "data/raw/leiloes_MG_01_02_2024.csv"))
	require.Equal(t, "Nº do imóvel,UF,Cidade\n1,SP,SANTOS\n", f.read(t, "data/integrated/leiloes_SP.csv"))

	mg := report.Records[0]
	require.Equal(t, StageDone, mg.Stage)
	require.Equal(t, "2024-02-01", mg.RunDate)
	require.Equal(t, "data/raw/leiloes_MG_01_02_2024.csv", mg.RawKey)
	require.Equal(t, "data/integrated/leiloes_MG.csv", mg.IntegratedKey)

	require.Len(t, f.ledger.records, 2)
}

func TestPipelineUsesTodayInRawKeys(t *testing.T) {
	f := newPipelineFixture(t)
	f.pipeline.now = time.Now

	report := f.pipeline.Run(context.Background(), []models.RegionCode{"MG", "SP"})
	require.Equal(t, 2, report.Succeeded)

	today := time.Now().Format(models.ExtractionDateLayout)
	for _, region := range []string{"MG", "SP"} {
		f.read(t, "data/raw/leiloes_"+region+"_"+today+".csv")

		table, err := storage.NewGateway(f.bucket, nil, newTestLogger()).ReadTable(
			f.download(t, "data/integrated/leiloes_"+region+".csv"))
		require.NoError(t, err)
		for _, row := range table.Rows {
			for _, field := range row {
				require.NotEmpty(t, strings.TrimSpace(field))
			}
		}
	}
}

func TestPipelineContinuesAfterFailures(t *testing.T) {
	f := newPipelineFixture(t)
	f.fetcher.errs["MG"] = errors.New("portal timeout")
	f.fetcher.exports["RJ"] = "titulo\na;b\n1;2;3\n"

	report := f.pipeline.Run(context.Background(), []models.RegionCode{"MG", "RJ", "SP"})

	require.Equal(t, []models.RegionCode{"MG", "RJ", "SP"}, f.fetcher.calls)
	require.Equal(t, 3, report.Regions)
	require.Equal(t, 1, report.Succeeded)
	require.Equal(t, 2, report.Failed)

	mg, rj, sp := report.Records[0], report.Records[1], report.Records[2]
	require.True(t, mg.Failed())
	require.Equal(t, StageAcquire, mg.Stage)
	require.Contains(t, mg.Error, "portal timeout")

	// The raw RJ export is kept even though it could not be parsed.
	require.True(t, rj.Failed())
	require.Equal(t, StageTransform, rj.Stage)
	require.Equal(t, "titulo\na;b\n1;2;3\n", f.read(t, rj.RawKey))
	_, err := f.bucket.Download(context.Background(), "data/integrated/leiloes_RJ.csv")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.False(t, sp.Failed())
}

func TestPipelineStopsWhenCancelled(t *testing.T) {
	f := newPipelineFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := f.pipeline.Run(ctx, []models.RegionCode{"MG", "SP"})
	require.Zero(t, report.Regions)
	require.Empty(t, f.fetcher.calls)
}

func TestPipelineLedgerErrorsDoNotFailRegion(t *testing.T) {
	f := newPipelineFixture(t)
	f.ledger.err = errors.New("db down")

	report := f.pipeline.Run(context.Background(), []models.RegionCode{"SP"})
	require.Equal(t, 1, report.Succeeded)
}

func TestPipelineProcessLocal(t *testing.T) {
	f := newPipelineFixture(t)

	path := filepath.Join(t.TempDir(), "leiloes_BA.csv")
	require.NoError(t, os.WriteFile(path, []byte("t\nid;cidade\n1;SALVADOR\n"), 0o644))

	rec, err := f.pipeline.ProcessLocal(context.Background(), "BA", path)
	require.NoError(t, err)
	require.Equal(t, models.RunSucceeded, rec.Status)
	require.Equal(t, "id,cidade\n1,SALVADOR\n", f.read(t, rec.IntegratedKey))
	require.Empty(t, f.fetcher.calls)

	_, err = f.pipeline.ProcessLocal(context.Background(), "BA", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	require.Len(t, f.ledger.records, 2)
	require.Equal(t, StageArchiveRaw, f.ledger.records[1].Stage)
}
