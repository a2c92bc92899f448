package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fest-event-system/models"
	"fest-event-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Token subject kinds
const (
	KindUser        = "user"
	KindParticipant = "participant"
)

// passwordCost is lowered by tests.
var passwordCost = bcrypt.DefaultCost

type Claims struct {
	Kind string `json:"kind"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller behind a bearer token.
type Principal struct {
	Kind        string
	ID          string
	Role        string
	User        *models.User
	Participant *models.Participant
}

type AuthService struct {
	DB     *gorm.DB
	secret []byte
	expiry time.Duration
}

func NewAuthService(db *gorm.DB, secret string, expiry time.Duration) *AuthService {
	return &AuthService{DB: db, secret: []byte(secret), expiry: expiry}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *AuthService) IssueToken(kind, subject, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind: kind,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *AuthService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Resolve verifies a bearer token and loads the record behind it.
func (s *AuthService) Resolve(raw string) (*Principal, error) {
	claims, err := s.ParseToken(raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}

	switch claims.Kind {
	case KindUser:
		var user models.User
		if err := s.DB.First(&user, "id = ?", claims.Subject).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "account no longer exists")
			}
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		if !user.IsApproved {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "account is pending admin approval")
		}
		return &Principal{Kind: KindUser, ID: user.ID, Role: user.Role, User: &user}, nil

	case KindParticipant:
		var p models.Participant
		if err := s.DB.First(&p, "id = ?", claims.Subject).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "account no longer exists")
			}
			return nil, fmt.Errorf("failed to load participant: %w", err)
		}
		return &Principal{Kind: KindParticipant, ID: p.ID, Role: models.RoleParticipant, Participant: &p}, nil
	}

	return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
}

type RegisterUserInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=admin judge"`
}

// RegisterUser creates an admin or judge account that waits for approval.
func (s *AuthService) RegisterUser(in RegisterUserInput) (*models.User, error) {
	in.Email = utils.NormalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = models.RoleJudge
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		IsApproved:   false,
	}
	if err := s.DB.Create(user).Error; err != nil {
		if IsDuplicateKey(err) {
			return nil, conflict("email already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log.Printf("👤 [AUTH] Registered %s account %s (awaiting approval)", user.Role, user.Email)
	return user, nil
}

func (s *AuthService) LoginUser(email, password string) (string, *models.User, error) {
	var user models.User
	if err := s.DB.First(&user, "email = ?", utils.NormalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
		}
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return "", nil, fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
	}
	if !user.IsApproved {
		return "", nil, fiber.NewError(fiber.StatusForbidden, "account is pending admin approval")
	}

	token, err := s.IssueToken(KindUser, user.ID, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	now := time.Now()
	if err := s.DB.Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		log.Printf("⚠️ [AUTH] Failed to record last login for %s: %v", user.Email, err)
	} else {
		user.LastLoginAt = &now
	}
	return token, &user, nil
}

// LoginParticipant checks the credential issued at registration.
func (s *AuthService) LoginParticipant(email, password string) (string, *models.Participant, error) {
	var p models.Participant
	if err := s.DB.Preload("Events").First(&p, "email = ?", utils.NormalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
		}
		return "", nil, fmt.Errorf("failed to load participant: %w", err)
	}
	if p.PasswordHash == "" || !CheckPassword(p.PasswordHash, password) {
		return "", nil, fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
	}
	token, err := s.IssueToken(KindParticipant, p.ID, models.RoleParticipant)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, &p, nil
}

// SeedAdmin creates an approved admin from the environment if none has that email.
func (s *AuthService) SeedAdmin(email, password string) error {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	var count int64
	if err := s.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check seed admin: %w", err)
	}
	if count > 0 {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now()
	admin := models.User{
		ID:           uuid.NewString(),
		Name:         "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsApproved:   true,
		ApprovedAt:   &now,
	}
	if err := s.DB.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	log.Printf("✅ [AUTH] Seeded admin account %s", email)
	return nil
}
