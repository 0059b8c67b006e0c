package repositories

import (
	"context"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
)

// UserFilters defines filters for user queries
type UserFilters struct {
	Query  string // Search query for name or email
	Limit  int    // Page size
	Offset int    // Offset for pagination
}

// UserRepository is the read-only directory surface the grading service
// needs. User data is owned by the identity provider; this service only
// resolves ids, lists graders, and checks roles for authorization.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)

	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)
	Search(ctx context.Context, query string, filters UserFilters) ([]*models.User, int64, error)

	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}
