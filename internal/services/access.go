package services

import (
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/auth"
)

// Actor is the authenticated caller. Role always comes from the user
// record, never from client input.
type Actor struct {
	ID    string
	Role  string
	Email string
}

// AccessPolicy names the minimum role for each privileged capability.
type AccessPolicy struct {
	ReviewerRole string
	AdminRole    string
}

func DefaultAccessPolicy() AccessPolicy {
	return AccessPolicy{ReviewerRole: auth.RoleStaff, AdminRole: auth.RoleAdmin}
}

func (p AccessPolicy) CanReview(actor Actor) bool {
	return auth.Allowed(actor.Role, p.ReviewerRole)
}

func (p AccessPolicy) CanAdminister(actor Actor) bool {
	return auth.Allowed(actor.Role, p.AdminRole)
}

func (p AccessPolicy) requireReviewer(actor Actor) error {
	if actor.ID == "" {
		return ErrUnauthenticated
	}
	if !p.CanReview(actor) {
		return ErrForbidden
	}
	return nil
}

func (p AccessPolicy) requireAdmin(actor Actor) error {
	if actor.ID == "" {
		return ErrUnauthenticated
	}
	if !p.CanAdminister(actor) {
		return ErrForbidden
	}
	return nil
}

func requireUser(actor Actor) error {
	if actor.ID == "" || !auth.IsKnownRole(actor.Role) {
		return ErrUnauthenticated
	}
	return nil
}

type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
}

func normalizePage(page, limit, defaultLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func newPagination(page, limit int, total int64) Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{Current: page, Pages: pages, Total: total, Limit: limit}
}
