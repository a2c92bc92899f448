// services/user_service.go
package services

import (
	"log"
	"strings"
	"time"

	"fest-event-system/models"

	"gorm.io/gorm"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// ListUsers searches admin/judge accounts by name or email.
func (s *UserService) ListUsers(query string, pendingOnly bool, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.Model(&models.User{}).Order("created_at DESC").Limit(limit)
	if query != "" {
		searchTerm := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", searchTerm, searchTerm)
	}
	if pendingOnly {
		db = db.Where("is_approved = ?", false)
	}

	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return nil, dbErr(err, "search failed")
	}
	return users, nil
}

// ApproveUser flips is_approved in one conditional update.
func (s *UserService) ApproveUser(id, approverID string) (*models.User, error) {
	now := time.Now()
	res := s.DB.Model(&models.User{}).
		Where("id = ? AND is_approved = ?", id, false).
		Updates(map[string]interface{}{
			"is_approved": true,
			"approved_by": approverID,
			"approved_at": now,
		})
	if res.Error != nil {
		return nil, dbErr(res.Error, "failed to approve user")
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "user")
	}
	if res.RowsAffected == 0 {
		return nil, badRequest("user is already approved")
	}
	log.Printf("✅ [USERS] %s approved %s account %s", approverID, user.Role, user.Email)
	return &user, nil
}

func (s *UserService) DeleteUser(id, actorID string) error {
	if id == actorID {
		return badRequest("you cannot delete your own account")
	}
	res := s.DB.Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return dbErr(res.Error, "failed to delete user")
	}
	if res.RowsAffected == 0 {
		return notFound("user")
	}
	return nil
}
