package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pub-desk/auth"
	"pub-desk/models"
)

func bareUserService() *UserService {
	return &UserService{Logger: zap.NewNop(), JWTSecret: []byte("test-secret")}
}

func TestRegisterRequiresFields(t *testing.T) {
	s := bareUserService()

	_, _, err := s.Register(nil, "", "a@b.c", "pw", "")
	assert.True(t, IsValidationError(err))

	_, _, err = s.Register(nil, "alice", "", "pw", "")
	assert.True(t, IsValidationError(err))

	_, _, err = s.Register(nil, "alice", "a@b.c", "", "")
	assert.True(t, IsValidationError(err))
}

func TestRegisterRoleIgnoredWithoutAdmin(t *testing.T) {
	// Ein Rollenwunsch ohne Admin-Session wird stillschweigend ignoriert,
	// nicht abgelehnt. Eine anonyme Erstregistrierung mit Rollenfeld darf
	// deshalb nicht scheitern.
	role, err := resolveRequestedRole(nil, models.RoleAdmin)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)

	role, err = resolveRequestedRole(nil, models.RoleUser)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)

	role, err = resolveRequestedRole(user(1, models.RoleUser), models.RoleReviewer)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)

	// Auch ein unbekannter Wert ist ohne Admin-Session kein Fehler.
	role, err = resolveRequestedRole(user(1, models.RoleUser), models.Role("superuser"))
	assert.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)
}

func TestRegisterRoleHonoredForAdmin(t *testing.T) {
	role, err := resolveRequestedRole(user(4, models.RoleAdmin), models.RoleReviewer)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleReviewer, role)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	s := bareUserService()

	// Nur ein von einem Admin vorgegebener Wert wird validiert.
	_, _, err := s.Register(user(4, models.RoleAdmin), "bob", "bob@example.com", "pw", models.Role("superuser"))
	assert.True(t, IsValidationError(err))
}

func TestLoginRequiresFields(t *testing.T) {
	s := bareUserService()

	_, _, err := s.Login("", "pw")
	assert.True(t, IsValidationError(err))

	_, _, err = s.Login("a@b.c", "")
	assert.True(t, IsValidationError(err))
}

func TestUserManagementRequiresAdmin(t *testing.T) {
	s := bareUserService()
	stranger := user(1, models.RoleUser)

	_, err := s.Get(stranger, 2)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.List(stranger, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.AddReviewer(stranger, "bob", "bob@example.com", "pw")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Update(stranger, 2, "", "", "")
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, s.Delete(stranger, 2), ErrForbidden)
}

func TestResolveRejectsMalformedToken(t *testing.T) {
	s := bareUserService()

	// Ein unbrauchbares Token scheitert vor jedem Datenbankzugriff.
	_, err := s.Resolve("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	u := &models.User{}
	assert.NoError(t, u.SetPassword("hunter22"))
	assert.NotEqual(t, "hunter22", u.Password)
	assert.True(t, u.CheckPassword("hunter22"))
	assert.False(t, u.CheckPassword("hunter2"))
}
