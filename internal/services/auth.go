package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"kanban-board/internal/config"
	"kanban-board/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=50"`
	Name     string `json:"name" binding:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Claims is the access token payload. Subject holds the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// TokenRevoker remembers revoked token ids until the token would have expired anyway.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuthService interface {
	Register(db *gorm.DB, req RegisterRequest) (*models.User, error)
	Login(db *gorm.DB, email, password string) (*models.User, error)
	GenerateToken(user *models.User) (string, error)
	ParseToken(ctx context.Context, tokenString string) (*Claims, error)
	RevokeToken(ctx context.Context, claims *Claims) error
}

type AuthServiceImpl struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	cost    int
	revoker TokenRevoker
	now     func() time.Time
}

func NewAuthService(cfg config.AuthConfig, revoker TokenRevoker) *AuthServiceImpl {
	cost := cfg.BCryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthServiceImpl{
		secret:  []byte(cfg.JWTSecret),
		issuer:  cfg.Issuer,
		ttl:     ttl,
		cost:    cost,
		revoker: revoker,
		now:     time.Now,
	}
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) Register(db *gorm.DB, req RegisterRequest) (*models.User, error) {
	email := models.NormalizeEmail(req.Email)

	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, &Error{Kind: ErrEmailTaken, Message: "A record with this value already exists"}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Email:    email,
		Password: string(hashed),
		Name:     req.Name,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &Error{Kind: ErrEmailTaken, Message: "A record with this value already exists"}
		}
		return nil, err
	}

	return &user, nil
}

func (s *AuthServiceImpl) Login(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *AuthServiceImpl) GenerateToken(user *models.User) (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    s.issuer,
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken verifies signature, issuer and expiry, then rejects revoked tokens.
func (s *AuthServiceImpl) ParseToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}

	if s.revoker != nil && claims.ID != "" {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}

	return claims, nil
}

func (s *AuthServiceImpl) RevokeToken(ctx context.Context, claims *Claims) error {
	if s.revoker == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.revoker.Revoke(ctx, claims.ID, ttl)
}
