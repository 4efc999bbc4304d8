package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pub-desk/models"
)

func user(id uint, role models.Role) *models.User {
	return &models.User{ID: id, Role: role}
}

func pub(publisherID uint, status models.Status) *models.Publication {
	return &models.Publication{ID: 100, PublisherID: publisherID, Status: status}
}

func TestCanViewPublication(t *testing.T) {
	owner := user(1, models.RoleUser)
	stranger := user(2, models.RoleUser)
	reviewer := user(3, models.RoleReviewer)
	admin := user(4, models.RoleAdmin)

	published := pub(1, models.StatusPublished)
	pending := pub(1, models.StatusPendingReview)

	// Veröffentlichtes ist öffentlich.
	assert.True(t, CanViewPublication(nil, published))
	assert.True(t, CanViewPublication(stranger, published))

	// Nicht veröffentlichtes sehen nur Besitzer, Admin und Reviewer.
	assert.False(t, CanViewPublication(nil, pending))
	assert.False(t, CanViewPublication(stranger, pending))
	assert.True(t, CanViewPublication(owner, pending))
	assert.True(t, CanViewPublication(admin, pending))
	assert.True(t, CanViewPublication(reviewer, pending))
}

func TestReviewerVisibilityOnCorrections(t *testing.T) {
	reviewer := user(3, models.RoleReviewer)
	other := user(5, models.RoleReviewer)

	corrections := pub(1, models.StatusNeedsCorrection)

	// Ohne Zuordnung keine Sicht auf needs_correction.
	assert.False(t, CanViewPublication(reviewer, corrections))

	// Der eingetragene Reviewer behält die Sicht, andere Reviewer nicht.
	assigned := reviewer.ID
	corrections.ReviewedByID = &assigned
	assert.True(t, CanViewPublication(reviewer, corrections))
	assert.False(t, CanViewPublication(other, corrections))
}

func TestCanUpdatePublication(t *testing.T) {
	owner := user(1, models.RoleUser)
	stranger := user(2, models.RoleUser)
	admin := user(4, models.RoleAdmin)

	assert.True(t, CanUpdatePublication(owner, pub(1, models.StatusPendingReview)))
	assert.True(t, CanUpdatePublication(owner, pub(1, models.StatusNeedsCorrection)))
	assert.False(t, CanUpdatePublication(owner, pub(1, models.StatusPublished)))
	assert.False(t, CanUpdatePublication(owner, pub(1, models.StatusRejected)))

	assert.False(t, CanUpdatePublication(stranger, pub(1, models.StatusPendingReview)))
	assert.False(t, CanUpdatePublication(nil, pub(1, models.StatusPendingReview)))

	// Admins dürfen unabhängig vom Status.
	assert.True(t, CanUpdatePublication(admin, pub(1, models.StatusPublished)))
}

func TestCanDeletePublication(t *testing.T) {
	owner := user(1, models.RoleUser)
	admin := user(4, models.RoleAdmin)

	assert.True(t, CanDeletePublication(owner, pub(1, models.StatusPendingReview)))
	assert.True(t, CanDeletePublication(owner, pub(1, models.StatusRejected)))

	// Besitzer kann Veröffentlichtes nicht löschen, der Admin-Pfad schon.
	assert.False(t, CanDeletePublication(owner, pub(1, models.StatusPublished)))
	assert.True(t, CanDeletePublication(admin, pub(1, models.StatusPublished)))

	assert.False(t, CanDeletePublication(user(2, models.RoleUser), pub(1, models.StatusPendingReview)))
}

func TestCanReviewRoles(t *testing.T) {
	assert.False(t, CanReview(nil))
	assert.False(t, CanReview(user(1, models.RoleUser)))
	assert.True(t, CanReview(user(3, models.RoleReviewer)))
	assert.True(t, CanReview(user(4, models.RoleAdmin)))
}

func TestReviewableStates(t *testing.T) {
	reviewer := user(3, models.RoleReviewer)
	admin := user(4, models.RoleAdmin)

	assert.Equal(t, []models.Status{models.StatusPendingReview}, ReviewableStates(reviewer))
	assert.Equal(t, []models.Status{models.StatusPendingReview, models.StatusNeedsCorrection}, ReviewableStates(admin))
}

func TestCanCreatePublication(t *testing.T) {
	assert.True(t, CanCreatePublication(user(1, models.RoleUser)))
	assert.True(t, CanCreatePublication(user(4, models.RoleAdmin)))
	assert.False(t, CanCreatePublication(user(3, models.RoleReviewer)))
	assert.False(t, CanCreatePublication(nil))
}

func TestCanManageUsers(t *testing.T) {
	assert.True(t, CanManageUsers(user(4, models.RoleAdmin)))
	assert.False(t, CanManageUsers(user(3, models.RoleReviewer)))
	assert.False(t, CanManageUsers(user(1, models.RoleUser)))
	assert.False(t, CanManageUsers(nil))
}
