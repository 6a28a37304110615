package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mocks "github.com/retainer-prof/internal/mock"
	"github.com/retainer-prof/internal/storage"
	"github.com/retainer-prof/internal/testutil"
	"github.com/retainer-prof/pkg/compression"
	"github.com/retainer-prof/pkg/config"
	apperrors "github.com/retainer-prof/pkg/errors"
	"github.com/retainer-prof/pkg/model"
	"github.com/retainer-prof/pkg/utils"
)

func writeSnapshot(t *testing.T, statics string) string {
	t.Helper()
	doc := testutil.SingleThreadSnapshot
	if statics != "" {
		doc = strings.Replace(doc, `"roots": {"threads": [1]}`,
			`"roots": {"threads": [1]}, "static_objects": [`+statics+`]`, 1)
	}
	return testutil.WriteSnapshot(t, doc)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Profile: config.ProfileConfig{
			Scheme:         "info",
			StackChunkSize: 16,
			CensusTop:      5,
			OutputDir:      t.TempDir(),
		},
	}
}

// readReport decodes the report.json written for task.
func readReport(t *testing.T, svc *Service, task string) *model.Report {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(svc.config.Profile.OutputDir, task, ReportFile))
	require.NoError(t, err)
	rep := &model.Report{}
	require.NoError(t, json.Unmarshal(raw, rep))
	return rep
}

func newService(t *testing.T, opts ...Option) *Service {
	return New(testConfig(t), &utils.NullLogger{}, opts...)
}

type fakeExporter struct {
	mu       sync.Mutex
	exported []string
	err      error
}

func (e *fakeExporter) Export(_ context.Context, rep *model.Report) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exported = append(e.exported, rep.TaskUUID)
	return e.err
}

func TestService_RunLocal(t *testing.T) {
	svc := newService(t)
	input := writeSnapshot(t, "")

	rep, err := svc.Run(context.Background(), &Request{TaskUUID: "t-1", InputFile: input})
	require.NoError(t, err)

	assert.Equal(t, "t-1", rep.TaskUUID)
	assert.Equal(t, "info", rep.Scheme)
	assert.Equal(t, model.TaskStatusCompleted, rep.Status)
	assert.Equal(t, 2, rep.TotalObjects)
	assert.Equal(t, 1, rep.Unreached)
	require.Len(t, rep.Sets, 1)
	assert.Equal(t, []string{"Main.main"}, rep.Sets[0].Retainers)
	assert.Equal(t, 2, rep.Sets[0].Objects)
	require.NotNil(t, rep.Pass)
	assert.Equal(t, uint32(1), rep.Pass.Marker)
	assert.Equal(t, 2, rep.Pass.ObjectsVisited)

	require.Len(t, rep.OutputFiles, 3)
	for _, f := range rep.OutputFiles {
		assert.FileExists(t, f.LocalPath)
		assert.Empty(t, f.COSKey)
	}

	text, err := os.ReadFile(filepath.Join(svc.config.Profile.OutputDir, "t-1", CensusFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), "# scheme=info objects=2"))
	assert.Contains(t, string(text), "{Main.main}")

	written := readReport(t, svc, "t-1")
	assert.Equal(t, model.TaskStatusCompleted, written.Status)
	for _, f := range written.OutputFiles {
		assert.Empty(t, f.COSKey)
	}

	raw, err := os.ReadFile(filepath.Join(svc.config.Profile.OutputDir, "t-1", CompressedReportFile))
	require.NoError(t, err)
	assert.Equal(t, compression.TypeZstd, compression.DetectType(raw))
}

func TestService_RunCompressedSnapshot(t *testing.T) {
	comp, err := compression.NewZstdCompressor(compression.LevelFastest)
	require.NoError(t, err)
	defer comp.Close()
	input := testutil.WriteCompressedSnapshot(t, testutil.SingleThreadSnapshot, comp)

	rep, err := newService(t).Run(context.Background(), &Request{InputFile: input, Validate: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TotalObjects)
	assert.Equal(t, input, rep.InputFile)
}

func TestService_RunGeneratesTaskUUID(t *testing.T) {
	svc := newService(t)
	rep, err := svc.Run(context.Background(), &Request{InputFile: writeSnapshot(t, "")})
	require.NoError(t, err)
	assert.Len(t, rep.TaskUUID, 36)
}

func TestService_RunPublishes(t *testing.T) {
	repo := &mocks.MockCensusRepository{}
	repo.ExpectSavePass(nil).Once()
	store := &mocks.MockStorage{}
	store.ExpectAnyPutFile(nil).Times(3)
	exp := &fakeExporter{}

	svc := newService(t, WithRepository(repo), WithStorage(store), WithExporter(exp))
	rep, err := svc.Run(context.Background(), &Request{TaskUUID: "t-2", InputFile: writeSnapshot(t, ""), Scheme: "ccs"})
	require.NoError(t, err)

	assert.Equal(t, "ccs", rep.Scheme)
	assert.Equal(t, []string{"SYSTEM"}, rep.Sets[0].Retainers)
	assert.Equal(t, []string{"t-2"}, exp.exported)
	for _, f := range rep.OutputFiles {
		assert.Equal(t, storage.ArtifactKey("t-2", f.Name), f.COSKey)
	}
	repo.AssertExpectations(t)
	store.AssertExpectations(t)
	store.AssertCalled(t, "PutFile", mock.Anything, "census/t-2/report.json.zst", mock.Anything)

	written := readReport(t, svc, "t-2")
	require.Len(t, written.OutputFiles, 3)
	for _, f := range written.OutputFiles {
		assert.Equal(t, storage.ArtifactKey("t-2", f.Name), f.COSKey)
	}
}

func TestService_RunUploadFailure(t *testing.T) {
	store := &mocks.MockStorage{}
	store.ExpectAnyPutFile(apperrors.Wrap(apperrors.CodeUploadError, "bucket gone", errors.New("403")))

	svc := newService(t, WithStorage(store))
	rep, err := svc.Run(context.Background(), &Request{TaskUUID: "t-3", InputFile: writeSnapshot(t, "")})
	require.Error(t, err)
	assert.True(t, apperrors.IsUploadError(err))
	require.NotNil(t, rep)
	assert.Equal(t, model.TaskStatusFailed, rep.Status)
	assert.Contains(t, rep.Error, "bucket gone")
	for _, f := range rep.OutputFiles {
		assert.Empty(t, f.COSKey)
	}

	written := readReport(t, svc, "t-3")
	assert.Equal(t, model.TaskStatusFailed, written.Status)
	assert.Contains(t, written.Error, "bucket gone")
	for _, f := range written.OutputFiles {
		assert.Empty(t, f.COSKey)
	}
}

func TestService_RunPersistFailure(t *testing.T) {
	repo := &mocks.MockCensusRepository{}
	repo.ExpectSavePass(apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save pass", errors.New("locked")))
	exp := &fakeExporter{}

	svc := newService(t, WithRepository(repo), WithExporter(exp))
	_, err := svc.Run(context.Background(), &Request{TaskUUID: "t-4", InputFile: writeSnapshot(t, "")})
	require.Error(t, err)
	assert.True(t, apperrors.IsDatabaseError(err))
	assert.Empty(t, exp.exported)
}

func TestService_RunErrors(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *Request
		code string
	}{
		{
			name: "missing snapshot",
			req: func(t *testing.T) *Request {
				return &Request{InputFile: filepath.Join(t.TempDir(), "absent.json")}
			},
			code: apperrors.CodeNotFound,
		},
		{
			name: "unknown scheme",
			req: func(t *testing.T) *Request {
				return &Request{InputFile: writeSnapshot(t, ""), Scheme: "closure-type"}
			},
			code: apperrors.CodeConfigError,
		},
		{
			name: "non-static object on static list",
			req: func(t *testing.T) *Request {
				return &Request{InputFile: writeSnapshot(t, "2"), ResetStatics: true}
			},
			code: apperrors.CodeInvariantViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mocks.MockStorage{}
			svc := newService(t, WithStorage(store))
			rep, err := svc.Run(context.Background(), tt.req(t))
			require.Error(t, err)
			assert.Nil(t, rep)
			assert.Equal(t, tt.code, apperrors.GetErrorCode(err))
			store.AssertNotCalled(t, "PutFile", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_InitializeSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = config.DatabaseConfig{Enabled: true, Type: "sqlite", Path: ":memory:"}
	cfg.Storage = config.StorageConfig{Type: "local", LocalPath: t.TempDir()}

	svc := New(cfg, &utils.NullLogger{})
	require.NoError(t, svc.Initialize(context.Background()))
	defer svc.Close()
	require.NoError(t, svc.HealthCheck(context.Background()))

	rep, err := svc.Run(context.Background(), &Request{TaskUUID: "t-db", InputFile: writeSnapshot(t, "")})
	require.NoError(t, err)

	stored, err := svc.repo.GetPassByUUID(context.Background(), "t-db")
	require.NoError(t, err)
	assert.Equal(t, rep.TotalWords, stored.TotalWords)
	assert.Len(t, stored.Sets, 1)

	ok, err := svc.storage.Exists(context.Background(), storage.ArtifactKey("t-db", CensusFile))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_InitializeBadStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage = config.StorageConfig{Type: "s3"}

	err := New(cfg, nil).Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize storage")
}
