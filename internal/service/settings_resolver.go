package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-grading/internal/dto"
	"github.com/noah-isme/sma-adp-grading/internal/grading"
	"github.com/noah-isme/sma-adp-grading/internal/models"
	"github.com/noah-isme/sma-adp-grading/pkg/database"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
)

type classGroupRepo interface {
	FindByID(ctx context.Context, id string) (*models.ClassGroup, error)
	FindAssessmentSettings(ctx context.Context, classGroupID string) (*models.ClassGroupAssessmentSettings, error)
	FindTermSettings(ctx context.Context, classGroupID string) (*models.ClassGroupTermSettings, error)
	UpsertTermSettings(ctx context.Context, exec sqlx.ExtContext, settings *models.ClassGroupTermSettings) error
}

type programSystemReader interface {
	FindProgramDefault(ctx context.Context, programID string) (*models.AssessmentSystem, error)
}

type termStructureReader interface {
	StructureForProgram(ctx context.Context, programID string) (models.TermStructure, error)
}

type classTermWriter interface {
	UpdateTermStructureByClassGroup(ctx context.Context, exec sqlx.ExtContext, classGroupID string, structure models.TermStructure) (int64, error)
}

type transactor interface {
	RunInTransaction(ctx context.Context, fn database.TxFunc) error
}

// AssessmentResolution is the program default of a class group together with
// its customized override, if any.
type AssessmentResolution = grading.Resolved[models.AssessmentSystem, models.AssessmentSystemOverride]

// TermResolution is the program term structure of a class group together
// with its customized override, if any.
type TermResolution = grading.Resolved[models.TermStructure, models.TermStructureOverride]

// SettingsResolver resolves the effective assessment system and term
// structure of a class group from the program default and the class group's
// customized override.
type SettingsResolver struct {
	groups    classGroupRepo
	systems   programSystemReader
	terms     termStructureReader
	classes   classTermWriter
	tx        transactor
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsResolver constructs the resolver. cache may be nil.
func NewSettingsResolver(groups classGroupRepo, systems programSystemReader, terms termStructureReader, classes classTermWriter, tx transactor, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SettingsResolver {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsResolver{
		groups:    groups,
		systems:   systems,
		terms:     terms,
		classes:   classes,
		tx:        tx,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// ResolveAssessmentSystem returns the effective assessment system of a class group.
func (s *SettingsResolver) ResolveAssessmentSystem(ctx context.Context, classGroupID string) (*models.AssessmentSystem, error) {
	key := settingsCacheKey(settingsKindAssessment, classGroupID)
	var cached models.AssessmentSystem
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	resolution, err := s.AssessmentSystemFor(ctx, classGroupID)
	if err != nil {
		return nil, err
	}
	resolved := resolution.Resolve()
	s.cache.Set(ctx, key, resolved)
	return &resolved, nil
}

// AssessmentSystemFor loads the two layers behind ResolveAssessmentSystem
// without consulting the cache.
func (s *SettingsResolver) AssessmentSystemFor(ctx context.Context, classGroupID string) (AssessmentResolution, error) {
	var resolution AssessmentResolution
	group, err := s.findClassGroup(ctx, classGroupID)
	if err != nil {
		return resolution, err
	}

	base, err := s.systems.FindProgramDefault(ctx, group.ProgramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return resolution, appErrors.Clone(appErrors.ErrNotFound, "program has no assessment system")
		}
		return resolution, appErrors.Internal(err, "failed to load program assessment system")
	}
	resolution.Base = *base

	settings, err := s.groups.FindAssessmentSettings(ctx, classGroupID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return resolution, appErrors.Internal(err, "failed to load assessment settings")
	}
	if settings == nil || !settings.IsCustomized {
		return resolution, nil
	}

	var override models.AssessmentSystemOverride
	if err := decodeOverride(settings.Payload, &override); err != nil {
		return resolution, err
	}
	if override.IsEmpty() {
		return resolution, appErrors.Clone(appErrors.ErrInvalidState, "customized assessment settings carry no payload")
	}
	resolution.Override = &override
	return resolution, nil
}

// ResolveTermStructure returns the effective term structure of a class group.
func (s *SettingsResolver) ResolveTermStructure(ctx context.Context, classGroupID string) (*models.TermStructure, error) {
	key := settingsCacheKey(settingsKindTerm, classGroupID)
	var cached models.TermStructure
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	resolution, err := s.TermStructureFor(ctx, classGroupID)
	if err != nil {
		return nil, err
	}
	resolved := resolution.Resolve()
	if err := grading.ValidateTermStructure(resolved); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, err.Error())
	}
	s.cache.Set(ctx, key, resolved)
	return &resolved, nil
}

// TermStructureFor loads the two layers behind ResolveTermStructure without
// consulting the cache.
func (s *SettingsResolver) TermStructureFor(ctx context.Context, classGroupID string) (TermResolution, error) {
	var resolution TermResolution
	group, err := s.findClassGroup(ctx, classGroupID)
	if err != nil {
		return resolution, err
	}

	base, err := s.terms.StructureForProgram(ctx, group.ProgramID)
	if err != nil {
		return resolution, appErrors.Internal(err, "failed to load program term structure")
	}
	if len(base.Terms) == 0 {
		return resolution, appErrors.Clone(appErrors.ErrNotFound, "program has no term structure")
	}
	resolution.Base = base

	settings, err := s.groups.FindTermSettings(ctx, classGroupID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return resolution, appErrors.Internal(err, "failed to load term settings")
	}
	if settings == nil || !settings.IsCustomized {
		return resolution, nil
	}

	var override models.TermStructureOverride
	if err := decodeOverride(settings.Payload, &override); err != nil {
		return resolution, err
	}
	if override.IsEmpty() {
		return resolution, appErrors.Clone(appErrors.ErrInvalidState, "customized term settings carry no payload")
	}
	resolution.Override = &override
	return resolution, nil
}

// SaveTermOverride stores a customized term override for a class group and
// writes the newly resolved structure to every class of the group in the
// same transaction.
func (s *SettingsResolver) SaveTermOverride(ctx context.Context, classGroupID string, req dto.TermSettingsRequest) (*models.TermStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term settings payload")
	}

	resolution, err := s.TermStructureFor(ctx, classGroupID)
	if err != nil && !errors.Is(err, appErrors.ErrInvalidState) {
		return nil, err
	}
	for _, term := range req.Terms {
		known, ok := resolution.Base.FindTerm(term.TermID)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown term %s", term.TermID))
		}
		for _, period := range term.Periods {
			if !hasPeriod(known, period.PeriodID) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown assessment period %s in term %s", period.PeriodID, term.TermID))
			}
		}
	}

	override := models.TermStructureOverride{Terms: req.Terms}
	resolved := grading.Resolved[models.TermStructure, models.TermStructureOverride]{Base: resolution.Base, Override: &override}.Resolve()
	if err := grading.ValidateTermStructure(resolved); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, err.Error())
	}

	payload, err := json.Marshal(override)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to encode term settings")
	}
	settings := &models.ClassGroupTermSettings{ClassGroupID: classGroupID, IsCustomized: true, Payload: types.JSONText(payload)}

	var touched int64
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := s.groups.UpsertTermSettings(ctx, exec, settings); err != nil {
			return err
		}
		n, err := s.classes.UpdateTermStructureByClassGroup(ctx, exec, classGroupID, resolved)
		touched = n
		return err
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to save term settings")
	}

	s.InvalidateClassGroup(ctx, classGroupID)
	s.logger.Info("term settings saved", zap.String("class_group_id", classGroupID), zap.Int64("classes_updated", touched))
	return &resolved, nil
}

// InvalidateClassGroup drops cached settings of a class group.
func (s *SettingsResolver) InvalidateClassGroup(ctx context.Context, classGroupID string) {
	s.cache.Invalidate(ctx, settingsCachePattern(classGroupID))
}

func (s *SettingsResolver) findClassGroup(ctx context.Context, classGroupID string) (*models.ClassGroup, error) {
	group, err := s.groups.FindByID(ctx, classGroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class group not found")
		}
		return nil, appErrors.Internal(err, "failed to load class group")
	}
	return group, nil
}

func decodeOverride(payload types.JSONText, dest interface{}) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return appErrors.Clone(appErrors.ErrInvalidState, "customized settings carry no payload")
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, "customized settings payload is malformed")
	}
	return nil
}

func hasPeriod(term models.Term, periodID string) bool {
	for _, period := range term.Periods {
		if period.ID == periodID {
			return true
		}
	}
	return false
}
