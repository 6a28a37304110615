// Package service runs profiling tasks end to end: snapshot in, census
// report out, with optional persistence and upload.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/retainer-prof/internal/census"
	"github.com/retainer-prof/internal/formatter"
	"github.com/retainer-prof/internal/repository"
	"github.com/retainer-prof/internal/retainer"
	"github.com/retainer-prof/internal/snapshot"
	"github.com/retainer-prof/internal/storage"
	"github.com/retainer-prof/pkg/compression"
	"github.com/retainer-prof/pkg/config"
	apperrors "github.com/retainer-prof/pkg/errors"
	"github.com/retainer-prof/pkg/model"
	"github.com/retainer-prof/pkg/utils"
	"github.com/retainer-prof/pkg/writer"
)

// Output file names inside a task directory.
const (
	ReportFile           = "report.json"
	CensusFile           = "census.txt"
	CompressedReportFile = "report.json.zst"
)

// CensusExporter mirrors census rows into a shared database.
type CensusExporter interface {
	Export(ctx context.Context, rep *model.Report) error
}

// Request describes one profiling task. Zero fields fall back to the
// profile section of the configuration.
type Request struct {
	TaskUUID     string
	InputFile    string
	Scheme       string
	OutputDir    string
	TopN         int
	Validate     bool
	ResetStatics bool
}

// Service is the main application service.
type Service struct {
	config     *config.Config
	logger     utils.Logger
	clock      utils.Clock
	formatters *formatter.Registry

	repo     repository.CensusRepository
	exporter CensusExporter
	storage  storage.Storage

	repos *repository.Repositories
}

// Option configures a Service.
type Option func(*Service)

// WithRepository persists every report through repo.
func WithRepository(repo repository.CensusRepository) Option {
	return func(s *Service) { s.repo = repo }
}

// WithExporter mirrors census rows through e after each run.
func WithExporter(e CensusExporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithStorage uploads the output files of every run to store.
func WithStorage(store storage.Storage) Option {
	return func(s *Service) { s.storage = store }
}

// WithClock replaces the wall clock.
func WithClock(c utils.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	s := &Service{
		config: cfg,
		logger: logger,
		clock:  utils.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.formatters = formatter.NewRegistry(cfg.Profile.CensusTop)
	return s
}

// Initialize opens the database and object storage named by the
// configuration, unless they were injected with options.
func (s *Service) Initialize(ctx context.Context) error {
	if s.repo == nil && s.config.Database.Enabled {
		if err := s.initDatabase(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
	}
	if s.storage == nil && s.config.Storage.Type != "" {
		store, err := storage.New(&s.config.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		s.storage = store
		s.logger.Info("Storage initialized (%s)", s.config.Storage.Type)
	}
	return nil
}

func (s *Service) initDatabase(ctx context.Context) error {
	db := s.config.Database
	s.logger.Info("Connecting to database (%s)...", db.Type)

	gormDB, err := repository.NewGormDB(&repository.DBConfig{
		Type:     db.Type,
		Path:     db.Path,
		Host:     db.Host,
		Port:     db.Port,
		Database: db.Database,
		User:     db.User,
		Password: db.Password,
		MaxConns: db.MaxConns,
		Tracing:  true,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to open database", err)
	}
	repos, err := repository.NewRepositories(gormDB, db.Type)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to create repositories", err)
	}
	if err := repos.Migrate(ctx); err != nil {
		repos.Close()
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to migrate schema", err)
	}

	s.repos = repos
	s.repo = repos.Census
	if s.exporter == nil && db.Type != string(repository.DBTypeSQLite) {
		s.exporter = repos.Exporter
	}
	s.logger.Info("Database connection established")
	return nil
}

// Close releases the database connection, if one was opened.
func (s *Service) Close() error {
	if s.repos == nil {
		return nil
	}
	return s.repos.Close()
}

// HealthCheck pings the database, if one was opened.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.repos == nil {
		return nil
	}
	if err := s.repos.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Run profiles one snapshot. Load, pass and census errors abort the task and
// are returned unchanged; no report is produced. Publish errors return the
// report marked failed together with the error.
func (s *Service) Run(ctx context.Context, req *Request) (*model.Report, error) {
	req = s.withDefaults(req)
	task := model.NewTask(req.TaskUUID, req.InputFile, req.Scheme)
	task.OutputDir = filepath.Join(req.OutputDir, req.TaskUUID)
	task.CreateTime = s.clock.Now()
	task.Start(s.clock.Now())

	log := s.logger.WithFields(map[string]interface{}{"task": task.TaskUUID, "scheme": task.Scheme})
	log.Info("Profiling %s", task.InputFile)
	timer := utils.NewTimer("task "+task.TaskUUID, utils.WithLogger(log), utils.WithClock(s.clock))

	rep, err := s.profile(ctx, task, req, timer)
	if err != nil {
		task.Finish(s.clock.Now(), model.TaskStatusFailed, err.Error())
		log.Error("Task failed: %v", err)
		return nil, err
	}

	phase := timer.Start("write")
	err = s.writeOutputs(task, rep, req.TopN)
	phase.Stop()
	if err != nil {
		task.Finish(s.clock.Now(), model.TaskStatusFailed, err.Error())
		log.Error("Task failed: %v", err)
		return nil, err
	}

	phase = timer.Start("publish")
	err = s.publish(ctx, rep)
	phase.Stop()
	if err != nil {
		rep.Status = model.TaskStatusFailed
		rep.Error = err.Error()
		task.Finish(s.clock.Now(), model.TaskStatusFailed, rep.Error)
		log.Error("Failed to publish results: %v", err)
		if werr := s.writeReports(task, rep); werr != nil {
			log.Warn("Failed to rewrite report after publish failure: %v", werr)
		}
		return rep, err
	}

	task.Finish(s.clock.Now(), rep.Status, "")
	s.formatters.Format(rep, log)
	timer.PrintSummary()
	return rep, nil
}

func (s *Service) withDefaults(req *Request) *Request {
	r := *req
	p := s.config.Profile
	if r.TaskUUID == "" {
		r.TaskUUID = uuid.NewString()
	}
	if r.Scheme == "" {
		r.Scheme = p.Scheme
	}
	if r.OutputDir == "" {
		r.OutputDir = p.OutputDir
	}
	if r.TopN <= 0 {
		r.TopN = p.CensusTop
	}
	r.Validate = r.Validate || p.Validate
	r.ResetStatics = r.ResetStatics || p.ResetStatics
	return &r
}

// profile loads the snapshot, runs one pass and takes its census.
func (s *Service) profile(ctx context.Context, task *model.Task, req *Request, timer *utils.Timer) (*model.Report, error) {
	scheme, err := retainer.SchemeByName(req.Scheme)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "invalid scheme", err)
	}

	phase := timer.Start("load")
	h, err := snapshot.Load(req.InputFile)
	phase.Stop()
	if err != nil {
		return nil, err
	}

	p := retainer.New(h, retainer.Config{
		Scheme:         scheme,
		StackChunkSize: s.config.Profile.StackChunkSize,
		MaxStackChunks: s.config.Profile.MaxStackChunks,
		Validate:       req.Validate,
		Logger:         s.logger,
		Clock:          s.clock,
	})

	phase = timer.Start("pass")
	res, err := p.Run(ctx)
	phase.Stop()
	if err != nil {
		return nil, err
	}
	if req.ResetStatics {
		if err := p.ResetStaticObjects(h.StaticObjects); err != nil {
			return nil, err
		}
	}

	phase = timer.Start("census")
	c, err := census.Take(p)
	phase.Stop()
	if err != nil {
		return nil, err
	}

	rep := model.NewReport(task)
	rep.Status = model.TaskStatusCompleted
	if c.TotalObjects == 0 {
		rep.Status = model.TaskStatusEmpty
	}
	rep.Pass = &model.PassStats{
		Generation:     res.Generation,
		Marker:         res.Marker,
		ObjectsVisited: res.ObjectsVisited,
		VisitEvents:    res.VisitEvents,
		AvgVisits:      res.AvgVisits,
		RetainerSets:   res.RetainerSets,
		NewSets:        res.NewSets,
		StackChunks:    res.StackChunks,
		MaxStackDepth:  res.MaxStackDepth,
		MaxNestedDepth: res.MaxNestedDepth,
		DurationMS:     res.Duration.Milliseconds(),
	}
	rep.TotalObjects = c.TotalObjects
	rep.TotalWords = c.TotalWords
	rep.Unreached = c.Unreached
	rep.Sets = c.Usage()
	return rep, nil
}

// writeOutputs writes the report, the text census and the compressed report
// into the task directory. With storage configured every file is assigned
// its artifact key first, so the written reports name where each file is
// uploaded.
func (s *Service) writeOutputs(task *model.Task, rep *model.Report, topN int) error {
	if err := os.MkdirAll(task.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create task directory: %w", err)
	}

	textPath := filepath.Join(task.OutputDir, CensusFile)
	f, err := os.Create(textPath)
	if err != nil {
		return fmt.Errorf("failed to create census file: %w", err)
	}
	if err := formatter.WriteText(f, rep, topN); err != nil {
		f.Close()
		return fmt.Errorf("failed to write census file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write census file: %w", err)
	}

	reportPath := filepath.Join(task.OutputDir, ReportFile)
	compressedPath := filepath.Join(task.OutputDir, CompressedReportFile)
	rep.AddOutputFile(ReportFile, reportPath)
	rep.AddOutputFile(CensusFile, textPath)
	rep.AddOutputFile(CompressedReportFile, compressedPath)
	if s.storage != nil {
		for i := range rep.OutputFiles {
			rep.OutputFiles[i].COSKey = storage.ArtifactKey(rep.TaskUUID, rep.OutputFiles[i].Name)
		}
	}
	return s.writeReports(task, rep)
}

// writeReports writes rep as pretty JSON and as compressed JSON.
func (s *Service) writeReports(task *model.Task, rep *model.Report) error {
	reportPath := filepath.Join(task.OutputDir, ReportFile)
	compressedPath := filepath.Join(task.OutputDir, CompressedReportFile)
	if err := writer.NewPrettyJSONWriter[*model.Report]().WriteToFile(rep, reportPath); err != nil {
		return err
	}

	comp, err := compression.NewZstdCompressor(compression.LevelDefault)
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}
	defer comp.Close()
	stats, err := writer.NewCompressedWriter[*model.Report](comp).WriteToFileWithStats(rep, compressedPath)
	if err != nil {
		return err
	}
	s.logger.Debug("Compressed report: %d -> %d bytes (%.1f%%)",
		stats.JSONSize, stats.CompressedSize, stats.CompressionPct)
	return nil
}

// publish persists the report and uploads its files concurrently.
func (s *Service) publish(ctx context.Context, rep *model.Report) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.repo != nil {
		g.Go(func() error {
			if err := s.repo.SavePass(gctx, rep); err != nil {
				return err
			}
			if s.exporter != nil {
				return s.exporter.Export(gctx, rep)
			}
			return nil
		})
	}

	// Keys were assigned by writeOutputs; a failed upload clears its key
	// once every goroutine is done with the report.
	failed := make([]bool, len(rep.OutputFiles))
	if s.storage != nil {
		for i, file := range rep.OutputFiles {
			g.Go(func() error {
				if err := s.storage.PutFile(gctx, file.COSKey, file.LocalPath); err != nil {
					failed[i] = true
					return err
				}
				return nil
			})
		}
	}

	err := g.Wait()
	for i := range failed {
		if failed[i] {
			rep.OutputFiles[i].COSKey = ""
		}
	}
	return err
}
