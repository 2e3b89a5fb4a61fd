package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskflow/backend/internal/database"
	"taskflow/backend/internal/logger"
	"taskflow/backend/internal/models"
	"taskflow/backend/internal/repositories"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenType = "Bearer"

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	CurrentUser(ctx context.Context, email string) (*UserResponse, error)
}

type AuthServiceImpl struct {
	db         *gorm.DB
	users      *repositories.UserRepository
	tokens     *TokenIssuer
	bcryptCost int
	dummyHash  []byte
}

func NewAuthService(db *gorm.DB, users *repositories.UserRepository, tokens *TokenIssuer, bcryptCost int) *AuthServiceImpl {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	// compared against when the email is unknown so both login failure
	// paths cost one bcrypt comparison
	dummy, err := bcrypt.GenerateFromPassword([]byte("taskflow-dummy-password"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy hash: %v", err))
	}

	return &AuthServiceImpl{
		db:         db,
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	if email == "" {
		return nil, NewValidationError("email", "is required")
	}
	if username == "" {
		return nil, NewValidationError("username", "is required")
	}
	if req.Password == "" {
		return nil, NewValidationError("password", "is required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Email:     email,
		Username:  username,
		Password:  string(hashed),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      models.RoleUser,
		Enabled:   true,
	}

	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		taken, err := s.users.ExistsByEmail(tx, email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}

		taken, err = s.users.ExistsByUsername(tx, username)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		if err := s.users.Create(tx, &user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAccountExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l := logger.FromContext(ctx)
	l.Info().Str("user_id", user.ID.String()).Str("username", user.Username).Msg("user registered")

	return s.authResponse(&user)
}

func (s *AuthServiceImpl) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)

	user, err := s.users.FindByEmail(s.db.WithContext(ctx), email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(user.Password, req.Password) || !user.Enabled {
		return nil, ErrInvalidCredentials
	}

	return s.authResponse(user)
}

func (s *AuthServiceImpl) CurrentUser(ctx context.Context, email string) (*UserResponse, error) {
	user, err := s.users.FindByEmail(s.db.WithContext(ctx), normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	resp := ToUserResponse(user)
	return &resp, nil
}

func (s *AuthServiceImpl) authResponse(user *models.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token:    token,
		Type:     tokenType,
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}
