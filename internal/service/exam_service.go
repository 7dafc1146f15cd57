package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/config"
	"github.com/stemsi/exstem-integrity/internal/metrics"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stemsi/exstem-integrity/internal/scope"
)

// ExamService handles exam records and serves answer keys from Redis with a
// PostgreSQL fallback.
type ExamService struct {
	exams  ExamStore
	rdb    *redis.Client
	keyTTL time.Duration
	log    zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(exams ExamStore, rdb *redis.Client, keyTTL time.Duration, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:  exams,
		rdb:    rdb,
		keyTTL: keyTTL,
		log:    log.With().Str("component", "exam_service").Logger(),
	}
}

// Create schedules a new exam in the caller's institute.
func (s *ExamService) Create(ctx context.Context, sc *scope.Scope, req model.CreateExamRequest) (*model.Exam, error) {
	if !sc.Can(scope.ManageExams) {
		return nil, ErrForbidden
	}
	instituteID, ok := sc.InstituteFilter()
	if !ok {
		return nil, ErrScopeMissing
	}
	if !req.ScheduleEnd.After(req.ScheduleStart) {
		return nil, ErrValidation
	}

	e := &model.Exam{
		InstituteID:   instituteID,
		CourseID:      req.CourseID,
		Title:         req.Title,
		ScheduleStart: req.ScheduleStart.UTC(),
		ScheduleEnd:   req.ScheduleEnd.UTC(),
		AnswerKey:     req.AnswerKey,
	}
	if e.AnswerKey == nil {
		e.AnswerKey = model.AnswerKey{}
	}
	if err := s.exams.Create(ctx, e); err != nil {
		return nil, storeErr("create exam", err)
	}

	s.log.Info().Str("exam_id", e.ID.String()).Str("institute_id", instituteID.String()).Msg("Exam created")
	return e, nil
}

// Get returns an exam visible to sc.
func (s *ExamService) Get(ctx context.Context, sc *scope.Scope, id uuid.UUID) (*model.Exam, error) {
	e, err := s.exams.GetByID(ctx, sc, id)
	if err != nil {
		return nil, storeErr("get exam", err)
	}
	return e, nil
}

// AnswerKey returns the exam's answer key. The caller must already have
// resolved the exam under its scope.
func (s *ExamService) AnswerKey(ctx context.Context, examID uuid.UUID) (model.AnswerKey, error) {
	cacheKey := config.CacheKey.ExamAnswerKey(examID)

	raw, err := s.rdb.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var key model.AnswerKey
		if jsonErr := json.Unmarshal(raw, &key); jsonErr == nil {
			metrics.AnswerKeyCache("hit")
			return key, nil
		}
		// Corrupt entry: fall through to the database and overwrite it.
		s.log.Warn().Str("exam_id", examID.String()).Msg("Discarding unreadable cached answer key")
	case errors.Is(err, redis.Nil):
		metrics.AnswerKeyCache("miss")
	default:
		// Redis unavailable is not fatal for grading.
		metrics.AnswerKeyCache("error")
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Answer key cache read failed")
	}

	key, err := s.exams.GetAnswerKey(ctx, examID)
	if err != nil {
		return nil, storeErr("get answer key", err)
	}

	// Self-heal the cache for the next grading call.
	if payload, err := json.Marshal(key); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, payload, s.keyTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Answer key cache write failed")
		}
	}
	return key, nil
}

// Score grades answers against the exam's key.
func (s *ExamService) Score(ctx context.Context, examID uuid.UUID, answers model.Answers) (score, maxScore float64, err error) {
	key, err := s.AnswerKey(ctx, examID)
	if err != nil {
		return 0, 0, fmt.Errorf("load answer key: %w", err)
	}
	score, maxScore = key.Score(answers)
	return score, maxScore, nil
}
