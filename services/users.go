package services

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pub-desk/auth"
	"pub-desk/models"
)

// UserService verwaltet Konten und Session-Tokens. Eindeutigkeit von
// Benutzername und E-Mail erzwingt die Datenbank beim Schreiben, nicht eine
// vorgelagerte Existenzprüfung.
type UserService struct {
	DB        *gorm.DB
	Logger    *zap.Logger
	JWTSecret []byte
	TokenTTL  time.Duration
}

// NewUserService erstellt eine neue Instanz des UserService.
func NewUserService(db *gorm.DB, logger *zap.Logger, jwtSecret string, tokenTTL time.Duration) *UserService {
	return &UserService{DB: db, Logger: logger, JWTSecret: []byte(jwtSecret), TokenTTL: tokenTTL}
}

// Register legt ein Konto an. Die Rolle ist standardmäßig user; nur ein
// authentifizierter Admin darf sie vorgeben, von allen anderen Aufrufern
// wird ein mitgesendeter Rollenwunsch stillschweigend ignoriert. Das
// allererste Konto wird unabhängig davon zum Admin befördert; Zählung und
// Insert laufen in derselben Transaktion.
func (s *UserService) Register(actor *models.User, username, email, password string, requestedRole models.Role) (*models.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, "", NewValidationError("Please provide username, email and password.")
	}

	role, err := resolveRequestedRole(actor, requestedRole)
	if err != nil {
		return nil, "", err
	}

	user := &models.User{Username: username, Email: email, Role: role}
	if err := user.SetPassword(password); err != nil {
		return nil, "", err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			user.Role = models.RoleAdmin
		}
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", ErrConflict
		}
		return nil, "", err
	}

	token, err := auth.GenerateToken(user.ID, s.JWTSecret, s.TokenTTL)
	if err != nil {
		return nil, "", err
	}
	s.Logger.Info("User registered", zap.String("username", user.Username), zap.String("role", string(user.Role)))
	return user, token, nil
}

// resolveRequestedRole bestimmt die effektive Rolle einer Registrierung.
// Ohne Admin-Session zählt ein Rollenwunsch nicht; nur ein von einem Admin
// vorgegebener Wert wird validiert und übernommen.
func resolveRequestedRole(actor *models.User, requested models.Role) (models.Role, error) {
	if requested == "" || actor == nil || actor.Role != models.RoleAdmin {
		return models.RoleUser, nil
	}
	if !requested.IsValid() {
		return models.RoleUser, NewValidationError("Unknown role.")
	}
	return requested, nil
}

// Login prüft die Zugangsdaten. Unbekannte E-Mail und falsches Passwort sind
// für den Aufrufer nicht unterscheidbar.
func (s *UserService) Login(email, password string) (*models.User, string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, "", NewValidationError("Please provide email and password.")
	}

	var user models.User
	err := s.DB.Where("email = ?", strings.TrimSpace(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !user.CheckPassword(password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, s.JWTSecret, s.TokenTTL)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// Resolve validiert ein Session-Token und löst es zu einem lebenden Konto
// auf. Tokens gelöschter Benutzer sind ungültig; Datenbankfehler bleiben
// Infrastrukturfehler und werden nicht als Token-Problem maskiert.
func (s *UserService) Resolve(token string) (*models.User, error) {
	userID, err := auth.UserIDFromToken(token, s.JWTSecret)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	var user models.User
	if err := s.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return &user, nil
}

// Get liefert ein Konto anhand der ID.
func (s *UserService) Get(actor *models.User, id uint) (*models.User, error) {
	if !CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	return s.load(id)
}

func (s *UserService) load(id uint) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List liefert alle Konten, optional nach Rolle gefiltert.
func (s *UserService) List(actor *models.User, roleFilter models.Role) ([]models.User, error) {
	if !CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	q := s.DB.Model(&models.User{})
	if roleFilter != "" {
		q = q.Where("role = ?", roleFilter)
	}
	var users []models.User
	err := q.Order("created_at ASC").Find(&users).Error
	return users, err
}

// AddReviewer legt ein Konto mit vorbelegter Rolle reviewer an.
func (s *UserService) AddReviewer(actor *models.User, username, email, password string) (*models.User, error) {
	if !CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, NewValidationError("Please provide username, email, and password for the reviewer.")
	}

	reviewer := &models.User{Username: username, Email: email, Role: models.RoleReviewer}
	if err := reviewer.SetPassword(password); err != nil {
		return nil, err
	}
	if err := s.DB.Create(reviewer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}
	s.Logger.Info("Reviewer added", zap.String("username", reviewer.Username))
	return reviewer, nil
}

// Update ändert Benutzername, E-Mail oder Rolle eines Kontos. Der einzige
// verbliebene Admin kann sich nicht selbst degradieren.
func (s *UserService) Update(actor *models.User, id uint, username, email string, role models.Role) (*models.User, error) {
	if !CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	user, err := s.load(id)
	if err != nil {
		return nil, err
	}

	if role != "" && !role.IsValid() {
		return nil, NewValidationError("Unknown role.")
	}
	if role != "" && role != models.RoleAdmin && user.Role == models.RoleAdmin && actor.ID == user.ID {
		var adminCount int64
		if err := s.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&adminCount).Error; err != nil {
			return nil, err
		}
		if adminCount <= 1 {
			return nil, NewValidationError("Cannot change role of the only admin.")
		}
	}

	if strings.TrimSpace(username) != "" {
		user.Username = strings.TrimSpace(username)
	}
	if strings.TrimSpace(email) != "" {
		user.Email = strings.TrimSpace(email)
	}
	if role != "" {
		user.Role = role
	}

	if err := s.DB.Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return user, nil
}

// Delete entfernt ein Konto. Admins können sich nicht selbst löschen.
func (s *UserService) Delete(actor *models.User, id uint) error {
	if !CanManageUsers(actor) {
		return ErrForbidden
	}
	user, err := s.load(id)
	if err != nil {
		return err
	}
	if actor.ID == user.ID {
		return NewValidationError("Admin cannot delete self.")
	}
	return s.DB.Delete(&models.User{}, id).Error
}
