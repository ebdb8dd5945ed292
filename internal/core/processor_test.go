package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tariff-catalog/constants"
	"github.com/joseph-ayodele/tariff-catalog/internal/catalog"
	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/entity"
	"github.com/joseph-ayodele/tariff-catalog/internal/pipeline"
	"github.com/joseph-ayodele/tariff-catalog/internal/repository"
)

type fakeRunner struct {
	calls  int
	runIDs []string
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, in pipeline.Input) (pipeline.Result, error) {
	f.calls++
	f.runIDs = append(f.runIDs, common.RunIDFromContext(ctx))
	if f.err != nil {
		return pipeline.Result{}, f.err
	}
	merged := catalog.Merge([]catalog.CandidateProcedure{
		{Code: "A1.01", Description: "Consulta", Value: catalog.AmountPtr(15.75), Page: 1},
	})
	return pipeline.Result{
		Catalog: merged.Catalog,
		Report: pipeline.RunReport{
			RunID:             common.RunIDFromContext(ctx),
			ProviderID:        in.ProviderID,
			Status:            constants.RunOK,
			TotalPages:        1,
			ContributingPages: 1,
		},
	}, nil
}

type fakeRepo struct {
	repository.CatalogRepository
	saved  []string
	failed []error
	byHash map[string]*entity.ExtractionRun
}

func (f *fakeRepo) SaveRun(_ context.Context, providerID string, src repository.RunSource, res pipeline.Result) (*entity.ExtractionRun, error) {
	f.saved = append(f.saved, providerID)
	run := &entity.ExtractionRun{ID: res.Report.RunID, ProviderID: providerID}
	if f.byHash == nil {
		f.byHash = map[string]*entity.ExtractionRun{}
	}
	f.byHash[providerID+src.ContentHash] = run
	return run, nil
}

func (f *fakeRepo) SaveFailedRun(_ context.Context, providerID, runID string, _ repository.RunSource, cause error) (*entity.ExtractionRun, error) {
	f.failed = append(f.failed, cause)
	return &entity.ExtractionRun{ID: runID, ProviderID: providerID}, nil
}

func (f *fakeRepo) FindRunByHash(_ context.Context, providerID, hash string) (*entity.ExtractionRun, error) {
	if run, ok := f.byHash[providerID+hash]; ok {
		return run, nil
	}
	return nil, common.NewAppError("NOT_FOUND", "no run", common.ErrNotFound)
}

func writePDF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tabela.pdf")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessSavesAndExports(t *testing.T) {
	runner := &fakeRunner{}
	repo := &fakeRepo{}
	exportDir := filepath.Join(t.TempDir(), "out")
	p := NewProcessor(nil, runner, repo, exportDir)

	jobID := uuid.NewString()
	out, err := p.Process(context.Background(), Job{ID: jobID, ProviderID: "unimed", Path: writePDF(t, "%PDF-1.7 one")})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !out.Saved || out.Skipped || out.RunID != jobID {
		t.Errorf("outcome = %+v", out)
	}
	if runner.runIDs[0] != jobID {
		t.Errorf("pipeline run id = %q, want job id", runner.runIDs[0])
	}
	if len(out.Exports) != 2 {
		t.Fatalf("exports = %v, want xlsx and pdf", out.Exports)
	}
	for _, path := range out.Exports {
		if st, err := os.Stat(path); err != nil || st.Size() == 0 {
			t.Errorf("export %s missing or empty: %v", path, err)
		}
	}
}

func TestProcessSkipsKnownContent(t *testing.T) {
	runner := &fakeRunner{}
	repo := &fakeRepo{}
	p := NewProcessor(nil, runner, repo, "")
	path := writePDF(t, "%PDF-1.7 same bytes")

	if _, err := p.Process(context.Background(), Job{ProviderID: "amil", Path: path}); err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	out, err := p.Process(context.Background(), Job{ProviderID: "amil", Path: path})
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if !out.Skipped || runner.calls != 1 {
		t.Errorf("second run skipped=%v calls=%d, want skipped with one pipeline call", out.Skipped, runner.calls)
	}

	out, err = p.Process(context.Background(), Job{ProviderID: "amil", Path: path, Force: true})
	if err != nil || out.Skipped || runner.calls != 2 {
		t.Errorf("forced run = %+v, %v, calls=%d", out, err, runner.calls)
	}
}

func TestProcessRecordsMalformedDocument(t *testing.T) {
	runner := &fakeRunner{}
	repo := &fakeRepo{}
	p := NewProcessor(nil, runner, repo, "")

	_, err := p.Process(context.Background(), Job{ProviderID: "amil", Path: writePDF(t, "not a pdf")})
	if !errors.Is(err, common.ErrMalformedDocument) {
		t.Fatalf("Process() error = %v, want ErrMalformedDocument", err)
	}
	if runner.calls != 0 {
		t.Error("pipeline ran for a file without PDF header")
	}
	if len(repo.failed) != 1 {
		t.Errorf("failed runs recorded = %d, want 1", len(repo.failed))
	}
}

func TestProcessPipelineError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("rasterize: broken xref")}
	repo := &fakeRepo{}
	p := NewProcessor(nil, runner, repo, "")

	if _, err := p.Process(context.Background(), Job{ProviderID: "amil", Path: writePDF(t, "%PDF-1.4")}); err == nil {
		t.Fatal("Process() error = nil")
	}
	if len(repo.failed) != 1 || len(repo.saved) != 0 {
		t.Errorf("failed=%d saved=%d, want 1 and 0", len(repo.failed), len(repo.saved))
	}
}

func TestProcessWithoutRepository(t *testing.T) {
	p := NewProcessor(nil, &fakeRunner{}, nil, "")
	out, err := p.Process(context.Background(), Job{ProviderID: "x", Path: writePDF(t, "%PDF-1.7")})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Saved || out.Result.Catalog.Len() != 1 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestProcessRequiresProvider(t *testing.T) {
	p := NewProcessor(nil, &fakeRunner{}, nil, "")
	if _, err := p.Process(context.Background(), Job{Path: "x.pdf"}); !errors.Is(err, common.ErrValidation) {
		t.Errorf("Process() error = %v, want ErrValidation", err)
	}
	if _, err := p.Process(context.Background(), Job{ProviderID: "bad id/../x", Path: "x.pdf"}); !errors.Is(err, common.ErrValidation) {
		t.Errorf("Process() error = %v, want ErrValidation for an unsafe provider id", err)
	}
	if _, err := p.Process(context.Background(), Job{ID: "job-1", ProviderID: "unimed", Path: "x.pdf"}); !errors.Is(err, common.ErrValidation) {
		t.Errorf("Process() error = %v, want ErrValidation for a non-UUID job id", err)
	}
}
