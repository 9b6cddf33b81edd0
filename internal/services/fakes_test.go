package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"resuchain/resume-pipeline/internal/apperror"
	"resuchain/resume-pipeline/internal/models"
)

// memRepository keeps copies of records so callers never share state with it.
type memRepository struct {
	mu        sync.Mutex
	records   map[uuid.UUID]models.ResumeRecord
	createErr error
	updateErr error
}

func newMemRepository() *memRepository {
	return &memRepository{records: make(map[uuid.UUID]models.ResumeRecord)}
}

func (r *memRepository) Create(_ context.Context, resume *models.ResumeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if err := resume.BeforeCreate(nil); err != nil {
		return err
	}
	r.records[resume.ID] = *resume
	return nil
}

func (r *memRepository) FindByID(_ context.Context, id uuid.UUID) (*models.ResumeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, apperror.NotFound(nil)
	}
	return &record, nil
}

func (r *memRepository) FindByOwnerAndID(ctx context.Context, ownerID string, id uuid.UUID) (*models.ResumeRecord, error) {
	record, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != ownerID {
		return nil, apperror.NotFound(nil)
	}
	return record, nil
}

func (r *memRepository) ListByOwner(_ context.Context, ownerID string) ([]models.ResumeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ResumeRecord
	for _, record := range r.records {
		if record.OwnerID == ownerID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].UploadedAt.After(out[b].UploadedAt) })
	return out, nil
}

func (r *memRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	records, err := r.ListByOwner(ctx, ownerID)
	return int64(len(records)), err
}

func (r *memRepository) Update(_ context.Context, resume *models.ResumeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.records[resume.ID]; !ok {
		return apperror.NotFound(nil)
	}
	r.records[resume.ID] = *resume
	return nil
}

func (r *memRepository) ClaimPending(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok || record.ProcessingStatus != models.StatusPending {
		return false, nil
	}
	record.ProcessingStatus = models.StatusProcessing
	r.records[id] = record
	return true, nil
}

func (r *memRepository) Delete(_ context.Context, resume *models.ResumeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[resume.ID]
	if !ok || record.OwnerID != resume.OwnerID {
		return apperror.NotFound(nil)
	}
	delete(r.records, resume.ID)
	return nil
}

func (r *memRepository) FindPending(_ context.Context, limit int) ([]models.ResumeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ResumeRecord
	for _, record := range r.records {
		if record.ProcessingStatus == models.StatusPending {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].UploadedAt.Before(out[b].UploadedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepository) Ping(context.Context) error { return nil }

// remove deletes a record directly, as another replica would.
func (r *memRepository) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
}

func (r *memRepository) get(id uuid.UUID) models.ResumeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

func (r *memRepository) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type memStorage struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	n         int
	storeErr  error
	deleteErr error
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: make(map[string][]byte)}
}

func (s *memStorage) Store(_ context.Context, originalName string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return "", s.storeErr
	}
	s.n++
	locator := BuildLocator(fmt.Sprintf("blob%d", s.n), originalName)
	s.blobs[locator] = append([]byte(nil), data...)
	return locator, nil
}

func (s *memStorage) Read(_ context.Context, locator string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[locator]
	if !ok {
		return nil, apperror.StorageFailure("blob not found", nil)
	}
	return blob, nil
}

func (s *memStorage) Delete(_ context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.blobs, locator)
	return nil
}

func (s *memStorage) has(locator string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[locator]
	return ok
}

func (s *memStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

type parserFunc func(ctx context.Context, text string) (*models.ParseResult, error)

func (f parserFunc) Parse(ctx context.Context, text string) (*models.ParseResult, error) {
	return f(ctx, text)
}

type recordingPublisher struct {
	mu        sync.Mutex
	events    []StatusEvent
	err       error
	onPublish func(StatusEvent)
}

func (p *recordingPublisher) Publish(_ context.Context, resume *models.ResumeRecord) error {
	event := NewStatusEvent(resume)

	p.mu.Lock()
	p.events = append(p.events, event)
	hook := p.onPublish
	p.mu.Unlock()

	if hook != nil {
		hook(event)
	}
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) statuses() []models.ProcessingStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ProcessingStatus, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

type recordingIndex struct {
	mu        sync.Mutex
	indexed   []uuid.UUID
	removed   []uuid.UUID
	indexErr  error
	removeErr error
}

func (i *recordingIndex) Index(_ context.Context, resume *models.ResumeRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.indexed = append(i.indexed, resume.ID)
	return i.indexErr
}

func (i *recordingIndex) Remove(_ context.Context, resumeID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removed = append(i.removed, resumeID)
	return i.removeErr
}

func (i *recordingIndex) Search(context.Context, string, string, int) ([]models.SearchHit, error) {
	return []models.SearchHit{{ResumeID: "r1", Score: 0.5}}, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	ids    []uuid.UUID
	reject bool
}

func (d *recordingDispatcher) Enqueue(resumeID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return false
	}
	d.ids = append(d.ids, resumeID)
	return true
}

var errBoom = errors.New("boom")
