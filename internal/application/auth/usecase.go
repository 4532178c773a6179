package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/okiehn/rechnung-api/internal/application/dto"
	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
	"github.com/okiehn/rechnung-api/pkg/config"
	pkgjwt "github.com/okiehn/rechnung-api/pkg/jwt"
)

// UseCase implements registration and login.
type UseCase struct {
	userRepo repository.UserRepository
	jwtCfg   config.JWTConfig
}

// NewUseCase builds the use case.
func NewUseCase(userRepo repository.UserRepository, jwtCfg config.JWTConfig) *UseCase {
	return &UseCase{userRepo: userRepo, jwtCfg: jwtCfg}
}

// Register creates a new user with a bcrypt-hashed password.
func (uc *UseCase) Register(ctx context.Context, req dto.RegisterRequest) (*entity.User, error) {
	if req.Username == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: username and email are required", domain.ErrValidation)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrValidation)
	}
	// Self-registration only ever produces accountants; admins are seeded
	// out of band (cmd/seed_admin).
	role := req.Role
	if role == "" {
		role = entity.RoleAccountant
	}
	if role != entity.RoleAccountant {
		return nil, fmt.Errorf("%w: role %q cannot be self-registered", domain.ErrValidation, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &entity.User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: string(hash),
		FullName:       req.FullName,
		Role:           role,
		IsActive:       true,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the credentials and returns a signed token with the user.
// Unknown email and wrong password are indistinguishable to the caller.
func (uc *UseCase) Login(ctx context.Context, req dto.LoginRequest) (string, *entity.User, error) {
	user, err := uc.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrUnauthorized
		}
		return "", nil, err
	}
	if !user.IsActive {
		return "", nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return "", nil, domain.ErrUnauthorized
	}

	token, err := pkgjwt.Generate(uc.jwtCfg.Secret, user.ID, user.Role, uc.jwtCfg.Issuer, uc.jwtCfg.Expiration)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}
