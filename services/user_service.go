package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"firefight-arena/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// EnsureUser upserts a local row for a gateway identity on first touch.
// The identity provider owns the profile; we only mirror what the domain
// needs (wallet owner, KYC, ban and admin flags).
func (s *UserService) EnsureUser(userID, username, email string, isAdmin bool) (*models.User, error) {
	user := &models.User{
		ID:       userID,
		Username: username,
		Email:    email,
		IsAdmin:  isAdmin,
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "email", "is_admin", "updated_at",
		}),
	}).Create(user).Error
	if err != nil {
		return nil, err
	}
	if err := s.DB.First(user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// SetBanned flips the ban flag. Banned users keep their wallet but cannot
// register or submit reports.
func (s *UserService) SetBanned(actor models.Actor, userID string, banned bool, reason string) (*models.User, error) {
	if !actor.IsAdmin {
		return nil, ErrUnauthorized
	}
	if banned && reason == "" {
		return nil, Validationf("ban reason is required")
	}
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("user %s not found", userID)
		}
		return nil, err
	}
	updates := map[string]interface{}{
		"is_banned":  banned,
		"ban_reason": reason,
	}
	if banned {
		now := time.Now()
		updates["banned_at"] = now
	} else {
		updates["banned_at"] = nil
		updates["ban_reason"] = ""
	}
	if err := s.DB.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	log.Printf("[user] admin %s set banned=%t for user %s (%s)", actor.UserID, banned, userID, reason)
	return &user, nil
}

// SetKYCStatus records the KYC review outcome.
func (s *UserService) SetKYCStatus(actor models.Actor, userID, status string) (*models.User, error) {
	if !actor.IsAdmin {
		return nil, ErrUnauthorized
	}
	if !models.ValidKYCStatus(status) {
		return nil, Validationf("unknown kyc status %q", status)
	}
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("user %s not found", userID)
		}
		return nil, err
	}
	if err := s.DB.Model(&user).Update("kyc_status", status).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// --- Fiber handlers ---

// GetMe returns the caller's local profile, creating it on first touch.
func (s *UserService) GetMe(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	user, err := s.EnsureUser(actor.UserID, headerOr(c, "X-User-Name", actor.UserID), c.Get("X-User-Email"), actor.IsAdmin)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// SearchUsers is the admin directory endpoint.
func (s *UserService) SearchUsers(c *fiber.Ctx) error {
	if !actorFromCtx(c).IsAdmin {
		return respondError(c, ErrUnauthorized)
	}
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := s.DB.Model(&models.User{}).Limit(limit).Order("created_at DESC")
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		term := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", term, term)
	}
	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

func (s *UserService) BanUser(c *fiber.Ctx) error {
	type Req struct {
		Banned bool   `json:"banned"`
		Reason string `json:"reason"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	user, err := s.SetBanned(actorFromCtx(c), c.Params("user_id"), req.Banned, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (s *UserService) UpdateKYC(c *fiber.Ctx) error {
	type Req struct {
		Status string `json:"status"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	user, err := s.SetKYCStatus(actorFromCtx(c), c.Params("user_id"), req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func headerOr(c *fiber.Ctx, key, fallback string) string {
	if v := c.Get(key); v != "" {
		return v
	}
	return fallback
}
