// Package admin authorises operator actions such as the bulk reset.
package admin

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/rafflegrid/internal/model"
)

// Service checks operator passwords against a bcrypt hash
type Service struct {
	hash []byte
}

// New creates an admin Service. An empty hash disables admin operations.
func New(passwordHash string) *Service {
	passwordHash = strings.TrimSpace(passwordHash)
	if passwordHash == "" {
		return &Service{}
	}
	return &Service{hash: []byte(passwordHash)}
}

// Enabled reports whether an operator password is configured
func (s *Service) Enabled() bool {
	return len(s.hash) > 0
}

// Verify checks an operator password
func (s *Service) Verify(password string) error {
	if !s.Enabled() {
		return model.ErrAdminDisabled
	}
	if password == "" {
		return model.ErrInvalidAdminSecret
	}
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return model.ErrInvalidAdminSecret
		}
		return err
	}
	return nil
}

// HashPassword returns the bcrypt hash to configure for a password
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", &model.ValidationError{Field: "password", Message: "is required"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
