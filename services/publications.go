package services

import (
	"errors"
	"mime/multipart"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pub-desk/models"
	"pub-desk/storage"
)

// PublicationService kapselt den Review-Lebenszyklus einer Publikation samt
// Datei-Lebenszyklus: kein Datensatz ohne Datei, keine verwaiste Datei nach
// einer erfolgreichen Operation.
type PublicationService struct {
	DB     *gorm.DB
	Files  *storage.FileStore
	Logger *zap.Logger
}

// NewPublicationService erstellt eine neue Instanz des PublicationService.
func NewPublicationService(db *gorm.DB, files *storage.FileStore, logger *zap.Logger) *PublicationService {
	return &PublicationService{DB: db, Files: files, Logger: logger}
}

// PublicationInput sind die Metadaten einer Einreichung. Bei Updates bedeuten
// nil-Felder "unverändert".
type PublicationInput struct {
	Title             *string
	Description       *string
	AuthorNames       []string
	Category          *string
	DOI               *string
	DateOfPublication *string
	Volume            *string
}

// PublicationPage ist eine paginierte Ergebnisseite.
type PublicationPage struct {
	Items      []models.Publication
	Pagination Pagination
}

// Create nimmt Datei und Metadaten entgegen. Die Datei wird zuerst
// gespeichert; schlägt danach die Validierung oder der Insert fehl, wird sie
// wieder entfernt.
func (s *PublicationService) Create(actor *models.User, input PublicationInput, file *multipart.FileHeader) (*models.Publication, error) {
	if !CanCreatePublication(actor) {
		return nil, ErrForbidden
	}
	if file == nil {
		return nil, NewValidationError("Publication PDF file is required.")
	}

	relPath, err := s.Files.SaveUpload(file)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrNotPDF) {
			return nil, NewValidationError(err.Error())
		}
		return nil, err
	}

	pub, err := s.buildPublication(input)
	if err != nil {
		s.cleanupFile(relPath)
		return nil, err
	}
	pub.Content = relPath
	pub.PublisherID = actor.ID
	pub.Status = models.StatusPendingReview

	if err := s.DB.Omit(clause.Associations).Create(pub).Error; err != nil {
		s.cleanupFile(relPath)
		return nil, err
	}
	return pub, nil
}

// buildPublication validiert die Pflichtfelder einer Neuanlage.
func (s *PublicationService) buildPublication(input PublicationInput) (*models.Publication, error) {
	pub := &models.Publication{}

	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		return nil, NewValidationError("Title is required.")
	}
	pub.Title = strings.TrimSpace(*input.Title)

	if input.Description != nil {
		// Zeichen zählen, nicht Bytes.
		if utf8.RuneCountInString(*input.Description) > 250 {
			return nil, NewValidationError("Description cannot be more than 250 characters.")
		}
		pub.Description = *input.Description
	}

	authors, err := models.NormalizeAuthors(input.AuthorNames)
	if err != nil {
		return nil, NewValidationError("Author names must be a non-empty array of non-empty strings.")
	}
	pub.AuthorNames = authors

	if input.Category == nil || !models.Category(*input.Category).IsValid() {
		return nil, NewValidationError("Category must be one of: magazine, book, research_paper, journal.")
	}
	pub.Category = models.Category(*input.Category)

	if input.DateOfPublication == nil {
		return nil, NewValidationError("Date of publication is required (e.g., YYYY-MM-DD).")
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(*input.DateOfPublication))
	if err != nil {
		return nil, NewValidationError("Invalid date format for date of publication. Please use YYYY-MM-DD.")
	}
	pub.DateOfPublication = date.UTC()

	if input.DOI != nil {
		pub.DOI = strings.TrimSpace(*input.DOI)
	}
	if input.Volume != nil {
		pub.Volume = *input.Volume
	}
	return pub, nil
}

// Get liefert die Detailansicht, sofern die Sichtbarkeitsregel erfüllt ist.
// Nicht gefunden und nicht berechtigt bleiben unterscheidbare Fehler.
func (s *PublicationService) Get(actor *models.User, id uint) (*models.Publication, error) {
	pub, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !CanViewPublication(actor, pub) {
		return nil, ErrForbidden
	}
	return pub, nil
}

func (s *PublicationService) load(id uint) (*models.Publication, error) {
	var pub models.Publication
	err := s.DB.Preload("Publisher").Preload("ReviewedBy").First(&pub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

// ListPublic ist die öffentliche Suche: Status ist auf published festgenagelt,
// alle übrigen Filter und Sortierungen stehen zur Verfügung.
func (s *PublicationService) ListPublic(filter PublicationFilter) (*PublicationPage, error) {
	base := filter.Apply(s.DB.Model(&models.Publication{}).Where("status = ?", models.StatusPublished))

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var pubs []models.Publication
	err := base.Preload("Publisher").
		Order(filter.OrderClause()).
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Find(&pubs).Error
	if err != nil {
		return nil, err
	}
	return &PublicationPage{Items: pubs, Pagination: NewPagination(filter.Page, filter.Limit, total)}, nil
}

// ListMine liefert alle eigenen Einreichungen, neueste zuerst.
func (s *PublicationService) ListMine(actor *models.User) ([]models.Publication, error) {
	var pubs []models.Publication
	err := s.DB.Where("publisher_id = ?", actor.ID).
		Preload("Publisher").Preload("ReviewedBy").
		Order("created_at DESC").
		Find(&pubs).Error
	return pubs, err
}

// ReviewQueue liefert die auf den Akteur zugeschnittene Warteschlange,
// älteste zuerst.
func (s *PublicationService) ReviewQueue(actor *models.User) ([]models.Publication, error) {
	if !CanReview(actor) {
		return nil, ErrForbidden
	}
	var pubs []models.Publication
	err := s.DB.Where("status IN ?", QueueStates(actor)).
		Preload("Publisher").
		Order("status ASC, created_at ASC").
		Find(&pubs).Error
	return pubs, err
}

// AdminList ist die ungefilterte Verwaltungssicht mit allen Zusatzfiltern.
func (s *PublicationService) AdminList(actor *models.User, filter PublicationFilter) (*PublicationPage, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	base := filter.ApplyAdmin(s.DB.Model(&models.Publication{}))

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var pubs []models.Publication
	err := base.Preload("Publisher").Preload("ReviewedBy").
		Order(filter.AdminOrderClause()).
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Find(&pubs).Error
	if err != nil {
		return nil, err
	}
	return &PublicationPage{Items: pubs, Pagination: NewPagination(filter.Page, filter.Limit, total)}, nil
}

// Update ändert Metadaten und optional die Datei. Eine neue Datei wird zuerst
// gespeichert; die alte wird erst nach erfolgreichem Save gelöscht. Schlägt
// der Save fehl, wird die neue Datei entfernt und der Datensatz behält die
// alte Referenz. Ein Owner-Edit aus needs_correction setzt den Status auf
// pending_review zurück und leert die Reviewer-Felder.
func (s *PublicationService) Update(actor *models.User, id uint, input PublicationInput, file *multipart.FileHeader) (*models.Publication, error) {
	pub, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !CanUpdatePublication(actor, pub) {
		return nil, ErrForbidden
	}

	if err := s.applyInput(pub, input); err != nil {
		return nil, err
	}

	oldContent := pub.Content
	newContent := ""
	if file != nil {
		newContent, err = s.Files.SaveUpload(file)
		if err != nil {
			if errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrNotPDF) {
				return nil, NewValidationError(err.Error())
			}
			return nil, err
		}
		pub.Content = newContent
	}

	if IsOwner(actor, pub) && pub.Status == models.StatusNeedsCorrection {
		pub.Status = models.StatusPendingReview
		pub.ReviewerComments = ""
		pub.ReviewedByID = nil
		pub.ReviewedBy = nil
	}

	if err := s.DB.Omit(clause.Associations).Save(pub).Error; err != nil {
		if newContent != "" {
			s.cleanupFile(newContent)
			pub.Content = oldContent
		}
		return nil, err
	}

	if newContent != "" && oldContent != "" && oldContent != newContent {
		s.cleanupFile(oldContent)
	}
	return s.load(id)
}

// applyInput übernimmt nur die mitgesendeten Felder.
func (s *PublicationService) applyInput(pub *models.Publication, input PublicationInput) error {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return NewValidationError("Title cannot be empty.")
		}
		pub.Title = title
	}
	if input.Description != nil {
		if utf8.RuneCountInString(*input.Description) > 250 {
			return NewValidationError("Description cannot be more than 250 characters.")
		}
		pub.Description = *input.Description
	}
	if input.AuthorNames != nil {
		authors, err := models.NormalizeAuthors(input.AuthorNames)
		if err != nil {
			return NewValidationError("Author names must be a non-empty array of non-empty strings.")
		}
		pub.AuthorNames = authors
	}
	if input.Category != nil {
		if !models.Category(*input.Category).IsValid() {
			return NewValidationError("Category must be one of: magazine, book, research_paper, journal.")
		}
		pub.Category = models.Category(*input.Category)
	}
	if input.DOI != nil {
		pub.DOI = strings.TrimSpace(*input.DOI)
	}
	if input.DateOfPublication != nil {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(*input.DateOfPublication))
		if err != nil {
			return NewValidationError("Invalid date format for date of publication. Please use YYYY-MM-DD.")
		}
		pub.DateOfPublication = date.UTC()
	}
	if input.Volume != nil {
		pub.Volume = *input.Volume
	}
	return nil
}

// Delete entfernt erst den Datensatz, dann die Datei. Ein Fehlschlag der
// Dateilöschung wird geloggt, macht die Löschung aber nicht rückgängig.
func (s *PublicationService) Delete(actor *models.User, id uint) error {
	pub, err := s.load(id)
	if err != nil {
		return err
	}
	if !CanDeletePublication(actor, pub) {
		return ErrForbidden
	}

	if err := s.DB.Delete(&models.Publication{}, id).Error; err != nil {
		return err
	}
	s.cleanupFile(pub.Content)
	return nil
}

// SubmitReview führt den Statusübergang als einzelnes bedingtes Update aus.
// Bei konkurrierenden Reviews gewinnt genau eines; der Verlierer erhält den
// Zustandsfehler statt den Gewinner zu überschreiben.
func (s *PublicationService) SubmitReview(actor *models.User, id uint, target models.Status, comments string) (*models.Publication, error) {
	if !target.IsReviewOutcome() {
		return nil, NewValidationError("Invalid review status. Must be one of: published, rejected, needs_correction.")
	}
	comments = strings.TrimSpace(comments)
	if (target == models.StatusRejected || target == models.StatusNeedsCorrection) && comments == "" {
		return nil, NewValidationError("Reviewer comments are required for rejection or correction requests.")
	}
	if !CanReview(actor) {
		return nil, ErrForbidden
	}

	res := s.DB.Model(&models.Publication{}).
		Where("id = ? AND status IN ?", id, ReviewableStates(actor)).
		Updates(map[string]interface{}{
			"status":            target,
			"reviewer_comments": comments,
			"reviewed_by_id":    actor.ID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Unterscheiden, ob es den Datensatz gar nicht gibt oder nur der
		// Zustand nicht passt.
		if _, err := s.load(id); err != nil {
			return nil, err
		}
		return nil, ErrNotReviewable
	}

	s.Logger.Info("Review submitted",
		zap.Uint("publication_id", id),
		zap.Uint("reviewer_id", actor.ID),
		zap.String("status", string(target)))
	return s.load(id)
}

// SweepOrphans entfernt Dateien unterhalb der Upload-Wurzel, auf die kein
// Datensatz mehr zeigt.
func (s *PublicationService) SweepOrphans() (int, error) {
	var contents []string
	if err := s.DB.Model(&models.Publication{}).Pluck("content", &contents).Error; err != nil {
		return 0, err
	}
	referenced := make(map[string]struct{}, len(contents))
	for _, c := range contents {
		referenced[c] = struct{}{}
	}
	return s.Files.Sweep(referenced)
}

func (s *PublicationService) cleanupFile(relPath string) {
	if relPath == "" {
		return
	}
	if err := s.Files.Remove(relPath); err != nil {
		s.Logger.Warn("Failed to clean up publication file", zap.String("path", relPath), zap.Error(err))
	}
}
