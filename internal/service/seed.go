package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/learning-api/internal/model"
	"github.com/iliyamo/learning-api/internal/repository"
	"github.com/iliyamo/learning-api/internal/utils"
)

// ProductCreator is the slice of the product store the seeder needs.
type ProductCreator interface {
	Create(ctx context.Context, p *model.Product) error
}

// Seeder creates the bootstrap MASTER_ADMIN account and a starter product.
// Running it twice is harmless.
type Seeder struct {
	Users    UserRepository
	Products ProductCreator
	Hasher   utils.PasswordHasher
	Log      logrus.FieldLogger
}

// EnsureMasterAdmin creates the MASTER_ADMIN account if no user has email.
// It reports whether an account was created.
func (s Seeder) EnsureMasterAdmin(ctx context.Context, email, password string) (bool, error) {
	email = repository.NormalizeEmail(email)
	if _, err := s.Users.GetByEmail(ctx, email); err == nil {
		s.Log.WithField("email", email).Info("seed: master admin already exists")
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("seed: lookup admin: %w", err)
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("seed: hash: %w", err)
	}
	u := &model.User{Name: "Master Admin", Email: email, PasswordHash: hash, Role: model.RoleMasterAdmin}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return false, nil
		}
		return false, fmt.Errorf("seed: create admin: %w", err)
	}
	s.Log.WithField("email", email).Info("seed: master admin created")
	return true, nil
}

// EnsureSampleProduct creates the starter "interview-prep" product.
func (s Seeder) EnsureSampleProduct(ctx context.Context) (bool, error) {
	p := &model.Product{
		Name:        "Interview Prep",
		Slug:        "interview-prep",
		Description: "Prepare for technical interviews with top companies",
		IsActive:    true,
	}
	if err := s.Products.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("seed: create product: %w", err)
	}
	s.Log.WithField("slug", p.Slug).Info("seed: product created")
	return true, nil
}
