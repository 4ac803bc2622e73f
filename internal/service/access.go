package service

import (
	"context"
	"errors"

	"github.com/iliyamo/learning-api/internal/apperr"
	"github.com/iliyamo/learning-api/internal/metrics"
	"github.com/iliyamo/learning-api/internal/model"
)

// ErrForbidden is the single denial returned for any product-scoped
// request the caller may not make, whether or not the resource exists.
var ErrForbidden = apperr.New(apperr.KindForbidden, "Forbidden")

// AccessChecker decides whether a user may read a product's content.
// Every call goes to the store; grants are never cached.
type AccessChecker struct {
	grants  GrantRepository
	metrics *metrics.Metrics
}

func NewAccessChecker(grants GrantRepository, m *metrics.Metrics) *AccessChecker {
	return &AccessChecker{grants: grants, metrics: m}
}

// CanAccessProduct reports whether userID holding role may access productID.
// ADMIN and MASTER_ADMIN pass without a store lookup.
func (a *AccessChecker) CanAccessProduct(ctx context.Context, userID string, role model.Role, productID string) (bool, error) {
	if role.BypassesProductGrants() {
		a.metrics.AccessDecision(metrics.DecisionBypass)
		return true, nil
	}
	if userID == "" || productID == "" {
		a.metrics.AccessDecision(metrics.DecisionDeny)
		return false, nil
	}
	ok, err := a.grants.Exists(ctx, userID, productID)
	if err != nil {
		return false, err
	}
	if ok {
		a.metrics.AccessDecision(metrics.DecisionAllow)
	} else {
		a.metrics.AccessDecision(metrics.DecisionDeny)
	}
	return ok, nil
}

// RequireProduct is CanAccessProduct as an error: nil when allowed,
// ErrForbidden when denied.
func (a *AccessChecker) RequireProduct(ctx context.Context, userID string, role model.Role, productID string) error {
	ok, err := a.CanAccessProduct(ctx, userID, role, productID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// RequireOwnedResource gates a resource whose product is resolved through
// lookup (a bookmark target, a topic, a quiz). For regular users a missing
// resource is indistinguishable from a forbidden one; bypass roles see
// notFound so admins can tell the two apart.
func (a *AccessChecker) RequireOwnedResource(ctx context.Context, userID string, role model.Role,
	lookup func(ctx context.Context) (string, error), isNotFound func(error) bool, notFound error) (string, error) {
	productID, err := lookup(ctx)
	if err != nil {
		if isNotFound(err) {
			if role.BypassesProductGrants() {
				return "", notFound
			}
			a.metrics.AccessDecision(metrics.DecisionDeny)
			return "", ErrForbidden
		}
		return "", err
	}
	if err := a.RequireProduct(ctx, userID, role, productID); err != nil {
		return "", err
	}
	return productID, nil
}

// IsForbidden reports whether err is an access denial.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || apperr.KindOf(err) == apperr.KindForbidden
}
