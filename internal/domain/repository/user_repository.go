package repository

import (
	"context"

	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// UserRepository defines the persistence port for User (DIP).
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
}
