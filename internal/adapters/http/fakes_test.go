package httpadapter

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/kirillkom/pii-redactor/internal/config"
	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/pipeline"
	"github.com/kirillkom/pii-redactor/internal/core/projection"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/identity"
)

const testToken = "alice-token"

type verifierFake struct{}

func (verifierFake) Verify(token string) (domain.User, error) {
	if token != testToken {
		return domain.User{}, domain.ErrUnauthorized
	}
	return domain.User{Email: "alice@example.com"}, nil
}

type runnerFake struct {
	mu      sync.Mutex
	started []domain.SourceFile
	user    string
	err     error
}

func (f *runnerFake) Start(ctx context.Context, file domain.SourceFile) (pipeline.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return pipeline.Snapshot{}, f.err
	}
	if user, err := (identity.ContextProvider{}).CurrentUser(ctx); err == nil {
		f.user = user.Email
	}
	f.started = append(f.started, file)
	return pipeline.Snapshot{RunID: "run-1", FileName: file.Name, Attempt: 1, State: pipeline.State{Phase: pipeline.PhaseUploading, Progress: 20}}, nil
}

func (f *runnerFake) Retry(_ context.Context, runID string) (pipeline.Snapshot, error) {
	if f.err != nil {
		return pipeline.Snapshot{}, f.err
	}
	return pipeline.Snapshot{RunID: runID, Attempt: 2}, nil
}

func (f *runnerFake) Status(_ context.Context, runID string) (pipeline.Snapshot, error) {
	if f.err != nil {
		return pipeline.Snapshot{}, f.err
	}
	return pipeline.Snapshot{RunID: runID, State: pipeline.State{Phase: pipeline.PhaseComplete, Progress: 100}}, nil
}

type redactorFake struct {
	gotID      string
	gotIndices []int
	err        error
}

func (f *redactorFake) Apply(_ context.Context, id string, indices []int) (domain.Document, error) {
	f.gotID, f.gotIndices = id, indices
	if f.err != nil {
		return domain.Document{}, f.err
	}
	return domain.Document{
		ID:       id,
		Status:   domain.StatusRedacted,
		Findings: []domain.Finding{{Kind: domain.KindSSN, Value: "123-45-6789", Redacted: true}},
		Metadata: domain.RedactedMetadata{RedactedText: "ssn [REDACTED-SSN]"},
	}, nil
}

type readerFake struct {
	gotQuery domain.DocumentQuery
	gotLimit int
	err      error
}

func (f *readerFake) GetByID(_ context.Context, id string) (domain.Document, error) {
	if f.err != nil {
		return domain.Document{}, f.err
	}
	return domain.Document{ID: id, Status: domain.StatusProcessing, Findings: []domain.Finding{}, Metadata: domain.PendingMetadata{}}, nil
}

func (f *readerFake) List(_ context.Context, query domain.DocumentQuery, limit int) ([]domain.Document, error) {
	f.gotQuery, f.gotLimit = query, limit
	return []domain.Document{}, f.err
}

func (f *readerFake) Events(context.Context, string) ([]domain.DocumentEvent, error) {
	return nil, f.err
}

type downloaderFake struct{ err error }

func (f downloaderFake) Download(_ context.Context, _ string, view domain.DownloadView) (domain.Artifact, io.ReadCloser, error) {
	if f.err != nil {
		return domain.Artifact{}, nil, f.err
	}
	if view == domain.ViewRedacted {
		return domain.Artifact{Filename: "payroll_REDACTED.txt", ContentType: "text/plain; charset=utf-8"},
			io.NopCloser(strings.NewReader("ssn [REDACTED-SSN]")), nil
	}
	return domain.Artifact{Filename: "payroll.pdf", ContentType: "application/pdf"}, io.NopCloser(strings.NewReader("%PDF")), nil
}

type dashboardFake struct {
	mu       sync.Mutex
	criteria projection.Criteria
}

func (f *dashboardFake) Dashboard(_ context.Context, criteria projection.Criteria) (projection.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criteria = criteria
	return projection.Build(nil, 20), nil
}

type metricsFake struct {
	mu         sync.Mutex
	redactions int
}

func (m *metricsFake) RecordRedaction(domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redactions++
}

func (m *metricsFake) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) })
}

func (m *metricsFake) Middleware(_ string, next http.Handler) http.Handler { return next }

type testEnv struct {
	runner    *runnerFake
	redactor  *redactorFake
	reader    *readerFake
	download  downloaderFake
	dashboard *dashboardFake
	metrics   *metricsFake
}

func newTestEnv() *testEnv {
	return &testEnv{
		runner:    &runnerFake{},
		redactor:  &redactorFake{},
		reader:    &readerFake{},
		dashboard: &dashboardFake{},
		metrics:   &metricsFake{},
	}
}

func (e *testEnv) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Services{
		Runner:    e.runner,
		Redactor:  e.redactor,
		Documents: e.reader,
		Downloads: e.download,
		Dashboard: e.dashboard,
		Verifier:  verifierFake{},
		Metrics:   e.metrics,
	}).Handler()
}

func authorized(r *http.Request) *http.Request {
	r.Header.Set("Authorization", "Bearer "+testToken)
	return r
}
