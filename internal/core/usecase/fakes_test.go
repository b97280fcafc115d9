package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/pipeline"
)

const testOwner = "alice@example.com"

type repoFake struct {
	mu        sync.Mutex
	docs      map[string]domain.Document
	createErr error
	updateErr error
	getErr    error
	filterErr error
	updates   []domain.Document

	filterQuery domain.DocumentQuery
	filterSort  string
	filterLimit int
}

func newRepoFake(docs ...domain.Document) *repoFake {
	f := &repoFake{docs: make(map[string]domain.Document)}
	for _, d := range docs {
		f.docs[d.ID] = d.Clone()
	}
	return f
}

func (f *repoFake) Create(_ context.Context, doc domain.Document) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Document{}, f.createErr
	}
	f.docs[doc.ID] = doc.Clone()
	return doc.Clone(), nil
}

func (f *repoFake) Update(_ context.Context, doc domain.Document) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.Document{}, f.updateErr
	}
	current, ok := f.docs[doc.ID]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	if !current.Status.CanAdvanceTo(doc.Status) {
		return domain.Document{}, domain.ErrInvalidTransition
	}
	f.updates = append(f.updates, doc.Clone())
	f.docs[doc.ID] = doc.Clone()
	return doc.Clone(), nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.Document{}, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (f *repoFake) Filter(_ context.Context, query domain.DocumentQuery, sortBy string, limit int) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filterQuery, f.filterSort, f.filterLimit = query, sortBy, limit
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	out := make([]domain.Document, 0, len(f.docs))
	for _, d := range f.docs {
		if query.Owner != "" && d.Owner != query.Owner {
			continue
		}
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *repoFake) stored(id string) domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id].Clone()
}

func (f *repoFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

type storageFake struct {
	mu      sync.Mutex
	err     error
	uploads map[string][]byte
	opened  []string
}

func (f *storageFake) Upload(_ context.Context, key string, data io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	uri := "file:///uploads/" + key
	f.uploads[uri] = raw
	return uri, nil
}

func (f *storageFake) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, uri)
	raw, ok := f.uploads[uri]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type identityFake struct {
	email string
	err   error
}

func (f identityFake) CurrentUser(context.Context) (domain.User, error) {
	if f.err != nil {
		return domain.User{}, f.err
	}
	return domain.User{Email: f.email}, nil
}

type extractorFake struct {
	text  string
	err   error
	calls int
	mu    sync.Mutex
}

func (f *extractorFake) Extract(context.Context, string, domain.FileKind) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type detectorFake struct {
	detection domain.Detection
	err       error
	gotText   []string
	mu        sync.Mutex
}

func (f *detectorFake) Detect(_ context.Context, text string) (domain.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotText = append(f.gotText, text)
	if f.err != nil {
		return domain.Detection{}, f.err
	}
	return f.detection, nil
}

type rewriterFake struct {
	rewrite    domain.Rewrite
	err        error
	gotText    string
	gotTargets []domain.RedactionTarget
}

func (f *rewriterFake) Rewrite(_ context.Context, text string, targets []domain.RedactionTarget) (domain.Rewrite, error) {
	f.gotText = text
	f.gotTargets = targets
	if f.err != nil {
		return domain.Rewrite{}, f.err
	}
	return f.rewrite, nil
}

type eventsFake struct {
	mu        sync.Mutex
	published []domain.DocumentEvent
	err       error
}

func (f *eventsFake) PublishDocumentEvent(_ context.Context, event domain.DocumentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}

func (f *eventsFake) SubscribeDocumentEvents(context.Context, func(context.Context, domain.DocumentEvent) error) error {
	return nil
}

func (f *eventsFake) types() []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.EventType, 0, len(f.published))
	for _, e := range f.published {
		out = append(out, e.Type)
	}
	return out
}

type eventStoreFake struct {
	events    map[string][]domain.DocumentEvent
	err       error
	appendErr error
}

func (f *eventStoreFake) AppendEvent(_ context.Context, event domain.DocumentEvent) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	if f.events == nil {
		f.events = make(map[string][]domain.DocumentEvent)
	}
	f.events[event.DocumentID] = append(f.events[event.DocumentID], event)
	return nil
}

func (f *eventStoreFake) ListEvents(_ context.Context, documentID string) ([]domain.DocumentEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events[documentID], nil
}

type observerFake struct {
	mu     sync.Mutex
	states []pipeline.State
}

func (f *observerFake) Observe(state pipeline.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *observerFake) phases() []pipeline.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pipeline.Phase, 0, len(f.states))
	for _, s := range f.states {
		out = append(out, s.Phase)
	}
	return out
}

type runStoreFake struct {
	mu   sync.Mutex
	runs map[string]*pipeline.Run
}

func (f *runStoreFake) Save(run *pipeline.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs == nil {
		f.runs = make(map[string]*pipeline.Run)
	}
	f.runs[run.ID()] = run
}

func (f *runStoreFake) Get(id string) (*pipeline.Run, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	return run, ok
}

func analyzedDocument(id string) domain.Document {
	return domain.Document{
		ID:        id,
		Name:      "contract.pdf",
		FileKind:  domain.FileKindPDF,
		MimeType:  "application/pdf",
		SourceURI: "file:///uploads/" + id,
		Owner:     testOwner,
		Status:    domain.StatusAnalyzed,
		Findings: []domain.Finding{
			{Kind: domain.KindName, Value: "John Smith", Confidence: 0.97},
			{Kind: domain.KindEmail, Value: "john@x.com", Confidence: 0.99},
		},
		Metadata: domain.AnalyzedMetadata{
			ExtractedText:   "John Smith, john@x.com",
			RiskLevel:       domain.RiskMedium,
			AnalysisSummary: "one name, one email",
		},
	}
}

func pdfFile() domain.SourceFile {
	return domain.SourceFile{Name: "contract.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")}
}
