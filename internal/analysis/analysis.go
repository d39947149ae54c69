// Package analysis runs an uploaded CV through skill extraction, gap analysis and
// guidance generation, then stores and announces the result.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/career-mentor/internal/archive"
	"github.com/spigell/career-mentor/internal/document"
	"github.com/spigell/career-mentor/internal/events"
	"github.com/spigell/career-mentor/internal/gap"
	"github.com/spigell/career-mentor/internal/logger"
	"github.com/spigell/career-mentor/internal/mentor"
	"github.com/spigell/career-mentor/internal/skills"
	"github.com/spigell/career-mentor/internal/storage"
)

// InputError reports a problem with the caller's request rather than with the service.
type InputError struct {
	Message string
	Err     error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *InputError) Unwrap() error { return e.Err }

// Upload is a CV submitted for analysis.
type Upload struct {
	Filename   string
	Data       []byte
	TargetRole string
}

// Deps aggregates the collaborators used by the pipeline. Store, Archiver and
// Publisher are optional.
type Deps struct {
	Extractor *skills.Extractor
	Analyzer  *gap.Analyzer
	Mentor    *mentor.Mentor
	Store     storage.Store
	Archiver  archive.Archiver
	Publisher events.Publisher
	Logger    *zap.Logger
}

// Service is safe for concurrent use.
type Service struct {
	deps  Deps
	newID func() string
	now   func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Archiver == nil {
		deps.Archiver = archive.Nop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Mentor == nil {
		deps.Mentor = mentor.New(nil, deps.Logger, mentor.Options{})
	}
	return &Service{
		deps:  deps,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// state is the run under construction, passed from stage to stage.
type state struct {
	upload Upload
	kind   document.Kind
	text   string
	run    *storage.Run
	log    *zap.Logger
}

type stage struct {
	name string
	run  func(ctx context.Context, st *state) error
}

// Analyze validates the upload and runs every stage in order. Input problems are
// returned as *InputError before any work is done.
func (s *Service) Analyze(ctx context.Context, up Upload) (*storage.Run, error) {
	up.TargetRole = strings.TrimSpace(up.TargetRole)
	up.Filename = strings.TrimSpace(up.Filename)

	if up.TargetRole == "" {
		return nil, &InputError{Message: "target_role is required"}
	}
	// An empty document is analyzed as empty text.
	if up.Filename == "" {
		return nil, &InputError{Message: "file is required"}
	}
	up.Filename = filepath.Base(up.Filename)
	kind, err := document.KindOf(up.Filename)
	if err != nil {
		return nil, &InputError{Message: "Unsupported file type. Use PDF, DOCX or TXT.", Err: err}
	}

	run := &storage.Run{
		ID:         s.newID(),
		TargetRole: up.TargetRole,
		Filename:   up.Filename,
		CreatedAt:  s.now(),
	}
	st := &state{
		upload: up,
		kind:   kind,
		run:    run,
		log:    logger.WithRun(s.deps.Logger, run.ID, run.TargetRole),
	}

	s.publish(ctx, st, events.StatusProcessing, nil)

	for _, step := range s.stages() {
		started := time.Now()
		if err := step.run(ctx, st); err != nil {
			err = fmt.Errorf("%s: %w", step.name, err)
			s.publish(ctx, st, events.StatusFailed, err)
			return nil, err
		}
		st.log.Debug("analysis stage", zap.String("name", step.name), zap.Duration("took", time.Since(started)))
	}

	s.publish(ctx, st, events.StatusCompleted, nil)

	st.log.Info("analysis finished",
		zap.Int("validated_skills", len(run.Skills.ValidatedSkills)),
		zap.Int("missing_core", len(run.Gap.MissingCore)),
		zap.String("roadmap_source", string(run.RoadmapSource)),
		zap.String("projects_source", string(run.ProjectsSource)),
	)

	return run, nil
}

func (s *Service) stages() []stage {
	return []stage{
		{name: "extract_text", run: s.extractText},
		{name: "archive_upload", run: s.archiveUpload},
		{name: "extract_skills", run: s.extractSkills},
		{name: "analyze_gaps", run: s.analyzeGaps},
		{name: "generate_guidance", run: s.generateGuidance},
		{name: "persist", run: s.persist},
	}
}

func (s *Service) extractText(_ context.Context, st *state) error {
	text, err := document.ExtractText(st.upload.Filename, st.upload.Data)
	if err != nil {
		return err
	}
	if text == "" {
		st.log.Warn("no text extracted from document", zap.String("kind", string(st.kind)))
	}
	st.text = text
	return nil
}

// archiveUpload is best effort. A failed upload leaves ArchiveURI empty.
func (s *Service) archiveUpload(ctx context.Context, st *state) error {
	key := st.run.ID + "/" + st.upload.Filename
	uri, err := s.deps.Archiver.Put(ctx, key, st.upload.Data, st.kind.ContentType())
	if err != nil {
		st.log.Warn("failed to archive upload", zap.Error(err))
		return nil
	}
	st.run.ArchiveURI = uri
	return nil
}

func (s *Service) extractSkills(_ context.Context, st *state) error {
	if s.deps.Extractor == nil {
		return errors.New("skill extractor is not configured")
	}
	st.run.Skills = s.deps.Extractor.Extract(st.text)
	return nil
}

func (s *Service) analyzeGaps(_ context.Context, st *state) error {
	if s.deps.Analyzer == nil {
		return errors.New("gap analyzer is not configured")
	}
	st.run.Gap = s.deps.Analyzer.Analyze(st.run.Skills, st.run.TargetRole)
	return nil
}

// generateGuidance asks for the roadmap and the projects concurrently. Both calls
// always produce a result, so the group never fails.
func (s *Service) generateGuidance(ctx context.Context, st *state) error {
	in := mentor.Input{TargetRole: st.run.TargetRole, Skills: st.run.Skills, Gap: st.run.Gap}

	var (
		roadmap         string
		roadmapOutcome  mentor.Outcome
		projects        []mentor.Project
		projectsOutcome mentor.Outcome
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		roadmap, roadmapOutcome = s.deps.Mentor.Roadmap(gctx, in)
		return nil
	})
	g.Go(func() error {
		projects, projectsOutcome = s.deps.Mentor.Projects(gctx, in)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	st.run.Roadmap = roadmap
	st.run.RoadmapSource = roadmapOutcome.Source
	st.run.Projects = projects
	st.run.ProjectsSource = projectsOutcome.Source
	return nil
}

func (s *Service) persist(ctx context.Context, st *state) error {
	if s.deps.Store == nil {
		return nil
	}
	return s.deps.Store.SaveRun(ctx, st.run)
}

// publish never fails the analysis.
func (s *Service) publish(ctx context.Context, st *state, status string, cause error) {
	e := events.Event{RunID: st.run.ID, Status: status, TargetRole: st.run.TargetRole, At: s.now()}
	if cause != nil {
		e.Error = cause.Error()
	}
	if err := s.deps.Publisher.Publish(ctx, e); err != nil {
		st.log.Warn("failed to publish analysis event", zap.String("status", status), zap.Error(err))
	}
}
