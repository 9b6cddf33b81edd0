package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resuchain/resume-pipeline/internal/apperror"
	"resuchain/resume-pipeline/internal/models"
)

type serviceFixture struct {
	svc        ResumeService
	repo       *memRepository
	storage    *memStorage
	publisher  *recordingPublisher
	index      *recordingIndex
	dispatcher *recordingDispatcher
}

func okParser() parserFunc {
	return func(context.Context, string) (*models.ParseResult, error) {
		return &models.ParseResult{
			Skills:     json.RawMessage(`[{"name":"Go"}]`),
			Education:  json.RawMessage(`[{"school":"MIT"}]`),
			Experience: json.RawMessage(`[]`),
		}, nil
	}
}

func newServiceFixture(t *testing.T, parser Parser) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		repo:       newMemRepository(),
		storage:    newMemStorage(),
		publisher:  &recordingPublisher{},
		index:      &recordingIndex{},
		dispatcher: &recordingDispatcher{},
	}
	f.svc = NewResumeService(f.repo, f.storage, NewTextExtractor(), parser, f.publisher, f.index)
	f.svc.SetDispatcher(f.dispatcher)
	return f
}

func (f *serviceFixture) upload(t *testing.T, owner string) *models.ResumeRecord {
	t.Helper()
	record, err := f.svc.Upload(context.Background(), owner, "cv.docx", buildDOCX(t, "Jane Doe", "Go Engineer"))
	require.NoError(t, err)
	return record
}

func TestUploadCreatesPendingRecord(t *testing.T) {
	f := newServiceFixture(t, okParser())

	record := f.upload(t, "user-1")

	assert.Equal(t, models.StatusPending, record.ProcessingStatus)
	assert.Equal(t, 0, record.VerificationProgress)
	assert.Equal(t, "user-1", record.OwnerID)
	assert.Equal(t, "cv.docx", record.FileName)
	assert.Equal(t, "Jane Doe\nGo Engineer\n", record.RawText)
	assert.Nil(t, record.ProcessedAt)
	assert.True(t, f.storage.has(record.FilePath))

	stored := f.repo.get(record.ID)
	assert.Equal(t, record.FilePath, stored.FilePath)
	assert.Equal(t, []uuid.UUID{record.ID}, f.dispatcher.ids)
	assert.Equal(t, []models.ProcessingStatus{models.StatusPending}, f.publisher.statuses())
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	f := newServiceFixture(t, okParser())

	_, err := f.svc.Upload(context.Background(), "user-1", "cv.pdf", nil)

	assert.ErrorIs(t, err, apperror.ErrEmptyFile)
	assert.Zero(t, f.storage.len())
	assert.Zero(t, f.repo.len())
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	f := newServiceFixture(t, okParser())

	for _, name := range []string{"cv.txt", "cv", "cv.pdf.exe"} {
		_, err := f.svc.Upload(context.Background(), "user-1", name, []byte("hello"))
		assert.ErrorIs(t, err, apperror.ErrUnsupportedFormat, name)
	}
	assert.Zero(t, f.storage.len())
	assert.Zero(t, f.repo.len())
}

func TestUploadAcceptsUppercaseExtension(t *testing.T) {
	f := newServiceFixture(t, okParser())

	record, err := f.svc.Upload(context.Background(), "user-1", "CV.PDF", buildPDF(t, "Jane Doe"))
	require.NoError(t, err)
	assert.Contains(t, record.RawText, "Jane Doe")
}

func TestUploadCorruptDocumentLeavesBlob(t *testing.T) {
	f := newServiceFixture(t, okParser())

	_, err := f.svc.Upload(context.Background(), "user-1", "cv.pdf", []byte("definitely not a pdf"))

	assert.ErrorIs(t, err, apperror.ErrCorruptDocument)
	assert.Equal(t, 1, f.storage.len())
	assert.Zero(t, f.repo.len())
	assert.Empty(t, f.dispatcher.ids)
}

func TestUploadStorageFailure(t *testing.T) {
	f := newServiceFixture(t, okParser())
	f.storage.storeErr = apperror.StorageFailure("disk full", nil)

	_, err := f.svc.Upload(context.Background(), "user-1", "cv.docx", buildDOCX(t, "Jane"))

	assert.ErrorIs(t, err, apperror.ErrStorageFailure)
	assert.Zero(t, f.repo.len())
}

func TestUploadCleansUpBlobWhenCreateFails(t *testing.T) {
	f := newServiceFixture(t, okParser())
	f.repo.createErr = errBoom

	_, err := f.svc.Upload(context.Background(), "user-1", "cv.docx", buildDOCX(t, "Jane"))

	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, f.storage.len())
}

func TestUploadSurvivesPublishAndDispatchFailures(t *testing.T) {
	f := newServiceFixture(t, okParser())
	f.publisher.err = errBoom
	f.dispatcher.reject = true

	record := f.upload(t, "user-1")

	assert.Equal(t, models.StatusPending, f.repo.get(record.ID).ProcessingStatus)
}

func TestProcessCompletesRecord(t *testing.T) {
	f := newServiceFixture(t, okParser())
	record := f.upload(t, "user-1")

	require.NoError(t, f.svc.Process(context.Background(), record.ID))

	stored := f.repo.get(record.ID)
	assert.Equal(t, models.StatusCompleted, stored.ProcessingStatus)
	assert.Equal(t, models.ParsedProgress, stored.VerificationProgress)
	require.NotNil(t, stored.ProcessedAt)
	assert.JSONEq(t, `[{"name":"Go"}]`, string(stored.ParsedSkills))
	assert.JSONEq(t, `[{"school":"MIT"}]`, string(stored.ParsedEducation))
	assert.JSONEq(t, `[]`, string(stored.ParsedExperience))

	assert.Equal(t, []models.ProcessingStatus{
		models.StatusPending, models.StatusProcessing, models.StatusCompleted,
	}, f.publisher.statuses())
	assert.Equal(t, []uuid.UUID{record.ID}, f.index.indexed)
}

func TestProcessSendsRawText(t *testing.T) {
	var got string
	f := newServiceFixture(t, parserFunc(func(ctx context.Context, text string) (*models.ParseResult, error) {
		got = text
		return okParser()(ctx, text)
	}))
	record := f.upload(t, "user-1")

	require.NoError(t, f.svc.Process(context.Background(), record.ID))
	assert.Equal(t, record.RawText, got)
}

func TestProcessParserFailureMarksFailed(t *testing.T) {
	f := newServiceFixture(t, parserFunc(func(context.Context, string) (*models.ParseResult, error) {
		return nil, apperror.Remote("status 500", nil)
	}))
	record := f.upload(t, "user-1")

	err := f.svc.Process(context.Background(), record.ID)
	assert.ErrorIs(t, err, apperror.ErrRemote)

	stored := f.repo.get(record.ID)
	assert.Equal(t, models.StatusFailed, stored.ProcessingStatus)
	assert.Nil(t, stored.ProcessedAt)
	assert.Empty(t, stored.ParsedSkills)
	assert.Equal(t, 0, stored.VerificationProgress)
	assert.Equal(t, []models.ProcessingStatus{
		models.StatusPending, models.StatusProcessing, models.StatusFailed,
	}, f.publisher.statuses())
	assert.Empty(t, f.index.indexed)
}

func TestProcessInvalidSectionMarksFailed(t *testing.T) {
	f := newServiceFixture(t, parserFunc(func(context.Context, string) (*models.ParseResult, error) {
		return &models.ParseResult{Skills: json.RawMessage(`{broken`)}, nil
	}))
	record := f.upload(t, "user-1")

	err := f.svc.Process(context.Background(), record.ID)
	assert.ErrorIs(t, err, apperror.ErrSerialization)
	assert.Equal(t, models.StatusFailed, f.repo.get(record.ID).ProcessingStatus)
}

func TestProcessTimeoutStillRecordsFailure(t *testing.T) {
	f := newServiceFixture(t, parserFunc(func(ctx context.Context, _ string) (*models.ParseResult, error) {
		<-ctx.Done()
		return nil, apperror.Remote("parser call failed", ctx.Err())
	}))
	record := f.upload(t, "user-1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.svc.Process(ctx, record.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.StatusFailed, f.repo.get(record.ID).ProcessingStatus)
}

func TestProcessSkipsNonPendingRecords(t *testing.T) {
	var calls atomic.Int32
	f := newServiceFixture(t, parserFunc(func(ctx context.Context, text string) (*models.ParseResult, error) {
		calls.Add(1)
		return okParser()(ctx, text)
	}))
	record := f.upload(t, "user-1")

	require.NoError(t, f.svc.Process(context.Background(), record.ID))
	require.NoError(t, f.svc.Process(context.Background(), record.ID))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, models.StatusCompleted, f.repo.get(record.ID).ProcessingStatus)
}

func TestProcessConcurrentDispatchRunsOnce(t *testing.T) {
	var calls atomic.Int32
	f := newServiceFixture(t, parserFunc(func(ctx context.Context, text string) (*models.ParseResult, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return okParser()(ctx, text)
	}))
	record := f.upload(t, "user-1")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.Process(context.Background(), record.ID))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, models.StatusCompleted, f.repo.get(record.ID).ProcessingStatus)
}

func TestProcessMissingRecord(t *testing.T) {
	f := newServiceFixture(t, okParser())

	err := f.svc.Process(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestProcessIndexFailureKeepsCompletion(t *testing.T) {
	f := newServiceFixture(t, okParser())
	f.index.indexErr = errBoom
	record := f.upload(t, "user-1")

	require.NoError(t, f.svc.Process(context.Background(), record.ID))
	assert.Equal(t, models.StatusCompleted, f.repo.get(record.ID).ProcessingStatus)
}

func TestProcessSkipsIndexWhenRecordDeletedAfterCompletion(t *testing.T) {
	f := newServiceFixture(t, okParser())
	record := f.upload(t, "user-1")
	f.publisher.onPublish = func(event StatusEvent) {
		if event.Status == models.StatusCompleted {
			f.repo.remove(record.ID)
		}
	}

	require.NoError(t, f.svc.Process(context.Background(), record.ID))
	assert.Empty(t, f.index.indexed)
}

func TestProcessStoresScalarSections(t *testing.T) {
	f := newServiceFixture(t, parserFunc(func(context.Context, string) (*models.ParseResult, error) {
		return &models.ParseResult{
			Skills:     json.RawMessage(`"Go, SQL"`),
			Education:  json.RawMessage(`7`),
			Experience: json.RawMessage(`[]`),
		}, nil
	}))
	record := f.upload(t, "user-1")

	require.NoError(t, f.svc.Process(context.Background(), record.ID))

	stored := f.repo.get(record.ID)
	assert.Equal(t, models.StatusCompleted, stored.ProcessingStatus)
	assert.Equal(t, `"Go, SQL"`, string(stored.ParsedSkills))
	assert.Equal(t, `7`, string(stored.ParsedEducation))
}

func TestProcessAcrossServicesSharingStoreRunsOnce(t *testing.T) {
	var calls atomic.Int32
	parser := parserFunc(func(ctx context.Context, text string) (*models.ParseResult, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return okParser()(ctx, text)
	})
	f := newServiceFixture(t, parser)
	record := f.upload(t, "user-1")

	// Separate service instances share only the store, like API replicas.
	replicas := make([]ResumeService, 4)
	for i := range replicas {
		replicas[i] = NewResumeService(f.repo, f.storage, NewTextExtractor(), parser, nil, nil)
	}

	var wg sync.WaitGroup
	for _, replica := range replicas {
		wg.Add(1)
		go func(svc ResumeService) {
			defer wg.Done()
			assert.NoError(t, svc.Process(context.Background(), record.ID))
		}(replica)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, models.StatusCompleted, f.repo.get(record.ID).ProcessingStatus)
}

func TestProgressUpdateDuringProcessingKeepsStatus(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := newServiceFixture(t, parserFunc(func(ctx context.Context, text string) (*models.ParseResult, error) {
		close(started)
		<-release
		return okParser()(ctx, text)
	}))
	record := f.upload(t, "user-1")

	done := make(chan error, 1)
	go func() { done <- f.svc.Process(context.Background(), record.ID) }()
	<-started

	updated, err := f.svc.UpdateProgress(context.Background(), record.ID, 60)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, updated.ProcessingStatus)
	assert.Equal(t, 60, updated.VerificationProgress)

	close(release)
	require.NoError(t, <-done)

	stored := f.repo.get(record.ID)
	assert.Equal(t, models.StatusCompleted, stored.ProcessingStatus)
	assert.Equal(t, models.ParsedProgress, stored.VerificationProgress)
}

func TestDefaultDispatcherProcessesInBackground(t *testing.T) {
	repo := newMemRepository()
	svc := NewResumeService(repo, newMemStorage(), NewTextExtractor(), okParser(), nil, nil)

	record, err := svc.Upload(context.Background(), "user-1", "cv.docx", buildDOCX(t, "Jane"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return repo.get(record.ID).ProcessingStatus == models.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUpdateProgress(t *testing.T) {
	f := newServiceFixture(t, okParser())
	record := f.upload(t, "user-1")
	ctx := context.Background()

	updated, err := f.svc.UpdateProgress(ctx, record.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, updated.VerificationProgress)

	updated, err = f.svc.UpdateProgress(ctx, record.ID, 150)
	require.NoError(t, err)
	assert.Equal(t, 100, updated.VerificationProgress)

	updated, err = f.svc.UpdateProgress(ctx, record.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, -5, updated.VerificationProgress)

	assert.Equal(t, -5, f.repo.get(record.ID).VerificationProgress)
	assert.Equal(t, models.StatusPending, f.repo.get(record.ID).ProcessingStatus)

	_, err = f.svc.UpdateProgress(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGetOneIsOwnerScoped(t *testing.T) {
	f := newServiceFixture(t, okParser())
	record := f.upload(t, "user-1")
	ctx := context.Background()

	got, err := f.svc.GetOne(ctx, "user-1", record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	_, err = f.svc.GetOne(ctx, "user-2", record.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.GetOne(ctx, "user-1", uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListAllNewestFirst(t *testing.T) {
	f := newServiceFixture(t, okParser())
	first := f.upload(t, "user-1")
	time.Sleep(2 * time.Millisecond)
	second := f.upload(t, "user-1")
	f.upload(t, "user-2")

	records, err := f.svc.ListAll(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, first.ID, records[1].ID)

	records, err = f.svc.ListAll(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeleteRemovesRecordBlobAndIndex(t *testing.T) {
	f := newServiceFixture(t, okParser())
	record := f.upload(t, "user-1")

	require.NoError(t, f.svc.Delete(context.Background(), "user-1", record.ID))

	assert.Zero(t, f.repo.len())
	assert.False(t, f.storage.has(record.FilePath))
	assert.Equal(t, []uuid.UUID{record.ID}, f.index.removed)
}

func TestDeleteForeignRecordIsNotFound(t *testing.T) {
	f := newServiceFixture(t, okParser())
	record := f.upload(t, "user-1")

	err := f.svc.Delete(context.Background(), "user-2", record.ID)

	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, 1, f.repo.len())
	assert.True(t, f.storage.has(record.FilePath))
}

func TestDeleteToleratesBlobAndIndexFailures(t *testing.T) {
	f := newServiceFixture(t, okParser())
	record := f.upload(t, "user-1")
	f.storage.deleteErr = errBoom
	f.index.removeErr = errBoom

	require.NoError(t, f.svc.Delete(context.Background(), "user-1", record.ID))
	assert.Zero(t, f.repo.len())
}

func TestStats(t *testing.T) {
	f := newServiceFixture(t, okParser())
	ctx := context.Background()

	stats, err := f.svc.Stats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, &models.StatsResponse{}, stats)

	a := f.upload(t, "user-1")
	b := f.upload(t, "user-1")
	c := f.upload(t, "user-1")
	f.upload(t, "user-2")

	require.NoError(t, f.svc.Process(ctx, a.ID))
	_, err = f.svc.UpdateProgress(ctx, b.ID, 100)
	require.NoError(t, err)
	_, err = f.svc.UpdateProgress(ctx, c.ID, -5)
	require.NoError(t, err)

	stats, err = f.svc.Stats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalResumes)
	assert.Equal(t, 1, stats.CompletedResumes)
	assert.InDelta(t, 40.0, stats.AverageProgress, 1e-9)
}

func TestSearchDelegatesToIndex(t *testing.T) {
	f := newServiceFixture(t, okParser())

	hits, err := f.svc.Search(context.Background(), "user-1", "golang", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	svc := NewResumeService(newMemRepository(), newMemStorage(), NewTextExtractor(), okParser(), nil, nil)
	_, err = svc.Search(context.Background(), "user-1", "golang", 5)
	assert.ErrorIs(t, err, ErrIndexDisabled)
}
