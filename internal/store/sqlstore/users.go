package sqlstore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

type userRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	FirstName    string `gorm:"size:100"`
	LastName     string `gorm:"size:100"`
	Email        string `gorm:"size:320;uniqueIndex"`
	PasswordHash string `gorm:"size:100"`
	Role         string `gorm:"size:20;index"`
	Department   string `gorm:"size:100"`
	LastLogin    *time.Time
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (row userRow) toModel() models.User {
	return models.User{
		ID:           row.ID,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         row.Role,
		Department:   row.Department,
		LastLogin:    row.LastLogin,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	row := userRow{
		ID:           user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        strings.ToLower(user.Email),
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		Department:   user.Department,
		LastLogin:    user.LastLogin,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&userRow{}).Where("email = ?", row.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return gorm.ErrDuplicatedKey
		}
		return tx.Create(&row).Error
	})
	return translate("create user", err)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate("find user", err)
	}
	user := row.toModel()
	return &user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, translate("find user by email", err)
	}
	user := row.toModel()
	return &user, nil
}

func applyUserFilter(q *gorm.DB, f store.UserFilter) *gorm.DB {
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Department != "" {
		q = q.Where("LOWER(department) = ?", strings.ToLower(f.Department))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	return q
}

func (s *Store) ListUsers(ctx context.Context, filter store.UserFilter) ([]models.User, int64, error) {
	var total int64
	if err := applyUserFilter(s.db.WithContext(ctx).Model(&userRow{}), filter).Count(&total).Error; err != nil {
		return nil, 0, translate("count users", err)
	}

	q := applyUserFilter(s.db.WithContext(ctx), filter).Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var rows []userRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, translate("list users", err)
	}

	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users, total, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, id, role string) (*models.User, error) {
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"role":       role,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return nil, translate("update user role", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}
	return s.FindUserByID(ctx, id)
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Update("last_login", &at)
	if res.Error != nil {
		return translate("touch last login", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context, query store.UserCountQuery) (int64, error) {
	q := s.db.WithContext(ctx).Model(&userRow{})
	if query.LastLoginSince != nil {
		q = q.Where("last_login >= ?", query.LastLoginSince.UTC())
	}
	if query.CreatedSince != nil {
		q = q.Where("created_at >= ?", query.CreatedSince.UTC())
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, translate("count users", err)
	}
	return total, nil
}
