package store

import (
	"context"
	"strings"

	"crm-backend/pkg/utils"
)

// EnsureAdmin seeds the bootstrap admin account on startup when no user holds
// the configured email. The admin id keeps the user_admin_<uuid> shape so it
// is recognizable in the table.
func (s *Store) EnsureAdmin(ctx context.Context, email, password string) (Record, error) {
	email = strings.ToLower(email)
	existing, err := s.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}
	admin := Record{
		"id":        utils.NewID("user_admin"),
		"type":      "user",
		"email":     email,
		"password":  utils.HashPassword(password),
		"name":      "Admin",
		"role":      "admin",
		"isBlocked": false,
		"createdAt": utils.NowISO(),
	}
	if err := s.Put(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}
