package sqlstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

type moduleRow struct {
	ID               string `gorm:"primaryKey;size:36"`
	Title            string `gorm:"size:200"`
	Description      string `gorm:"type:text"`
	Category         string `gorm:"size:30;index"`
	Difficulty       string `gorm:"size:20;index"`
	EstimatedTime    int
	Sections         []models.ModuleSection `gorm:"serializer:json;type:text"`
	Quiz             models.Quiz            `gorm:"serializer:json;type:text"`
	Tags             []string               `gorm:"serializer:json;type:text"`
	IsActive         bool                   `gorm:"index"`
	CreatedBy        string                 `gorm:"size:36"`
	TotalCompletions int64
	AverageScore     float64
	AverageTime      float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (moduleRow) TableName() string { return "education_modules" }

type completionRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"size:36;uniqueIndex:idx_completion_user_module"`
	ModuleID    string `gorm:"size:36;uniqueIndex:idx_completion_user_module;index"`
	Score       int
	TimeSpent   int
	CompletedAt time.Time
}

func (completionRow) TableName() string { return "module_completions" }

func toModuleRow(m *models.EducationModule) moduleRow {
	return moduleRow{
		ID:               m.ID,
		Title:            m.Title,
		Description:      m.Description,
		Category:         m.Category,
		Difficulty:       m.Difficulty,
		EstimatedTime:    m.EstimatedTime,
		Sections:         m.Sections,
		Quiz:             m.Quiz,
		Tags:             m.Tags,
		IsActive:         m.IsActive,
		CreatedBy:        m.CreatedBy,
		TotalCompletions: m.Statistics.TotalCompletions,
		AverageScore:     m.Statistics.AverageScore,
		AverageTime:      m.Statistics.AverageTime,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

func (row moduleRow) toModel() models.EducationModule {
	return models.EducationModule{
		ID:            row.ID,
		Title:         row.Title,
		Description:   row.Description,
		Category:      row.Category,
		Difficulty:    row.Difficulty,
		EstimatedTime: row.EstimatedTime,
		Sections:      row.Sections,
		Quiz:          row.Quiz,
		Tags:          row.Tags,
		IsActive:      row.IsActive,
		CreatedBy:     row.CreatedBy,
		Statistics: models.ModuleStatistics{
			TotalCompletions: row.TotalCompletions,
			AverageScore:     row.AverageScore,
			AverageTime:      row.AverageTime,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func (s *Store) CreateModule(ctx context.Context, module *models.EducationModule) error {
	if module.ID == "" {
		module.ID = newID()
	}
	row := toModuleRow(module)
	return translate("create module", s.db.WithContext(ctx).Create(&row).Error)
}

func (s *Store) FindModuleByID(ctx context.Context, id string) (*models.EducationModule, error) {
	var row moduleRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate("find module", err)
	}
	module := row.toModel()
	return &module, nil
}

func (s *Store) ListModules(ctx context.Context, filter store.ModuleFilter) ([]models.EducationModule, error) {
	q := s.db.WithContext(ctx)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Difficulty != "" {
		q = q.Where("difficulty = ?", filter.Difficulty)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var rows []moduleRow
	if err := q.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, translate("list modules", err)
	}
	modules := make([]models.EducationModule, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, row.toModel())
	}
	return modules, nil
}

// UpdateModule rewrites the editable content. Statistics, author and
// creation time are left as stored.
func (s *Store) UpdateModule(ctx context.Context, module *models.EducationModule) error {
	row := toModuleRow(module)
	res := s.db.WithContext(ctx).Model(&moduleRow{}).Where("id = ?", module.ID).
		Select("title", "description", "category", "difficulty", "estimated_time", "sections", "quiz", "tags", "is_active", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return translate("update module", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetModuleActive(ctx context.Context, id string, active bool) error {
	res := s.db.WithContext(ctx).Model(&moduleRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_active":  active,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return translate("set module active", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateModuleStatistics(ctx context.Context, id string, stats models.ModuleStatistics) error {
	res := s.db.WithContext(ctx).Model(&moduleRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_completions": stats.TotalCompletions,
		"average_score":     stats.AverageScore,
		"average_time":      stats.AverageTime,
	})
	if res.Error != nil {
		return translate("update module statistics", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountModules(ctx context.Context, activeOnly bool) (int64, error) {
	q := s.db.WithContext(ctx).Model(&moduleRow{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, translate("count modules", err)
	}
	return total, nil
}

func (s *Store) RecordCompletion(ctx context.Context, completion *models.ModuleCompletion) error {
	if completion.ID == "" {
		completion.ID = newID()
	}
	row := completionRow{
		ID:          completion.ID,
		UserID:      completion.UserID,
		ModuleID:    completion.ModuleID,
		Score:       completion.Score,
		TimeSpent:   completion.TimeSpent,
		CompletedAt: completion.CompletedAt.UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&completionRow{}).
			Where("user_id = ? AND module_id = ?", row.UserID, row.ModuleID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return gorm.ErrDuplicatedKey
		}
		return tx.Create(&row).Error
	})
	return translate("record completion", err)
}

func (s *Store) FindCompletion(ctx context.Context, userID, moduleID string) (*models.ModuleCompletion, error) {
	var row completionRow
	err := s.db.WithContext(ctx).First(&row, "user_id = ? AND module_id = ?", userID, moduleID).Error
	if err != nil {
		return nil, translate("find completion", err)
	}
	completion := row.toModel()
	return &completion, nil
}

func (s *Store) ListCompletions(ctx context.Context, filter store.CompletionFilter) ([]models.ModuleCompletion, error) {
	q := s.db.WithContext(ctx)
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.ModuleID != "" {
		q = q.Where("module_id = ?", filter.ModuleID)
	}
	var rows []completionRow
	if err := q.Order("completed_at DESC").Find(&rows).Error; err != nil {
		return nil, translate("list completions", err)
	}
	completions := make([]models.ModuleCompletion, 0, len(rows))
	for _, row := range rows {
		completions = append(completions, row.toModel())
	}
	return completions, nil
}

func (s *Store) CountCompletions(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&completionRow{}).Count(&total).Error; err != nil {
		return 0, translate("count completions", err)
	}
	return total, nil
}

func (row completionRow) toModel() models.ModuleCompletion {
	return models.ModuleCompletion{
		ID:          row.ID,
		UserID:      row.UserID,
		ModuleID:    row.ModuleID,
		Score:       row.Score,
		TimeSpent:   row.TimeSpent,
		CompletedAt: row.CompletedAt,
	}
}
