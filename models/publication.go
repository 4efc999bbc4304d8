package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Category ist die geschlossene Menge der Publikationsarten.
type Category string

const (
	CategoryMagazine      Category = "magazine"
	CategoryBook          Category = "book"
	CategoryResearchPaper Category = "research_paper"
	CategoryJournal       Category = "journal"
)

// IsValid prüft, ob der Wert eine bekannte Kategorie ist.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMagazine, CategoryBook, CategoryResearchPaper, CategoryJournal:
		return true
	}
	return false
}

// Status ist der Review-Zustand einer Publikation. Übergänge laufen
// ausschließlich über den Review-Pfad bzw. den Owner-Edit aus needs_correction.
type Status string

const (
	StatusPendingReview   Status = "pending_review"
	StatusNeedsCorrection Status = "needs_correction"
	StatusPublished       Status = "published"
	StatusRejected        Status = "rejected"
)

// IsValid prüft, ob der Wert ein bekannter Status ist.
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingReview, StatusNeedsCorrection, StatusPublished, StatusRejected:
		return true
	}
	return false
}

// ReviewOutcomes sind die einzigen zulässigen Zielstatus einer Review-Aktion.
var ReviewOutcomes = []Status{StatusPublished, StatusRejected, StatusNeedsCorrection}

// IsReviewOutcome prüft, ob der Status als Review-Ergebnis zulässig ist.
func (s Status) IsReviewOutcome() bool {
	for _, o := range ReviewOutcomes {
		if s == o {
			return true
		}
	}
	return false
}

// AuthorList speichert die geordnete Autorenliste als jsonb-Spalte.
type AuthorList []string

// Value serialisiert die Liste für die Datenbank.
func (a AuthorList) Value() (driver.Value, error) {
	if a == nil {
		a = AuthorList{}
	}
	return json.Marshal(a)
}

// Scan liest die jsonb-Spalte zurück in die Liste.
func (a *AuthorList) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for AuthorList", value)
	}
	return json.Unmarshal(b, a)
}

// GormDataType gibt den Spaltentyp für die Migration an.
func (AuthorList) GormDataType() string {
	return "jsonb"
}

// Publication repräsentiert eine eingereichte Arbeit samt Review-Zustand.
// Content verweist relativ zur Upload-Wurzel auf das gespeicherte PDF.
type Publication struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description,omitempty" gorm:"size:250"`
	AuthorNames AuthorList `json:"author_names" gorm:"not null"`
	Category    Category   `json:"category" gorm:"index;not null"`
	Content     string     `json:"content" gorm:"not null"`
	DOI         string     `json:"doi,omitempty" gorm:"column:doi"`

	DateOfPublication time.Time `json:"date_of_publication" gorm:"index;not null"`
	// Wird bei jedem Speichern aus DateOfPublication abgeleitet.
	YearOfPublication int    `json:"year_of_publication" gorm:"index"`
	Volume            string `json:"volume,omitempty"`

	Status           Status `json:"status" gorm:"index;not null;default:'pending_review'"`
	ReviewerComments string `json:"reviewer_comments" gorm:"type:text;default:''"`
	ReviewedByID     *uint  `json:"reviewed_by_id,omitempty" gorm:"index"`
	ReviewedBy       *User  `json:"reviewed_by,omitempty" gorm:"foreignKey:ReviewedByID"`

	PublisherID uint `json:"publisher_id" gorm:"index;not null"`
	Publisher   User `json:"publisher" gorm:"foreignKey:PublisherID"`
}

// TableName gibt explizit den Tabellennamen an.
func (Publication) TableName() string {
	return "publications"
}

// BeforeSave hält YearOfPublication mit DateOfPublication synchron.
func (p *Publication) BeforeSave(tx *gorm.DB) error {
	if p.DateOfPublication.IsZero() {
		p.YearOfPublication = 0
		return nil
	}
	p.YearOfPublication = p.DateOfPublication.UTC().Year()
	return nil
}

// NormalizeAuthors trimmt alle Einträge und verwirft leere. Eine leere
// Ergebnisliste ist ein Fehler, die Autorenliste darf nie leer sein.
func NormalizeAuthors(names []string) (AuthorList, error) {
	out := make(AuthorList, 0, len(names))
	for _, n := range names {
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return nil, errors.New("author names must be non-empty strings")
		}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil, errors.New("author names must be a non-empty list")
	}
	return out, nil
}
