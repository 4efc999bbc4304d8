package services

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"pub-desk/models"
)

// Voreinstellungen für die Paginierung.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

const dateLayout = "2006-01-02"

// PublicationFilter bündelt alle optionalen Suchparameter. Alle Filter werden
// mit logischem AND kombiniert; ungültige numerische Eingaben gelten als
// nicht gesetzt.
type PublicationFilter struct {
	Category   string
	Title      string
	AuthorName string
	DOI        string

	Year      *int
	StartYear *int
	EndYear   *int

	SpecificDate *time.Time
	StartDate    *time.Time
	EndDate      *time.Time

	// Nur im Admin-Profil ausgewertet.
	Status      string
	PublisherID *uint
	ReviewerID  *uint

	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// ParsePublicationFilter liest die Suchparameter aus dem Query-String.
// Seite und Limit fallen bei ungültigen Werten auf ihre Defaults zurück,
// alle anderen ungültigen Werte werden übersprungen.
func ParsePublicationFilter(q url.Values) PublicationFilter {
	f := PublicationFilter{
		Category:   strings.TrimSpace(q.Get("category")),
		Title:      strings.TrimSpace(q.Get("title")),
		AuthorName: strings.TrimSpace(q.Get("authorName")),
		DOI:        strings.TrimSpace(q.Get("doi")),
		Status:     strings.TrimSpace(q.Get("status")),
		SortBy:     q.Get("sortBy"),
		SortOrder:  q.Get("sortOrder"),
		Page:       parsePositiveInt(q.Get("page"), DefaultPage),
		Limit:      parsePositiveInt(q.Get("limit"), DefaultLimit),
	}

	f.Year = parseOptionalInt(q.Get("year"))
	f.StartYear = parseOptionalInt(q.Get("startYear"))
	f.EndYear = parseOptionalInt(q.Get("endYear"))

	f.SpecificDate = parseOptionalDate(q.Get("specificDate"))
	f.StartDate = parseOptionalDate(q.Get("startDate"))
	f.EndDate = parseOptionalDate(q.Get("endDate"))

	f.PublisherID = parseOptionalUint(q.Get("publisherId"))
	f.ReviewerID = parseOptionalUint(q.Get("reviewerId"))

	return f
}

func parsePositiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func parseOptionalInt(s string) *int {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

func parseOptionalUint(s string) *uint {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	u := uint(n)
	return &u
}

func parseOptionalDate(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// Apply hängt alle gesetzten Filter an die Query an.
func (f PublicationFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Title != "" {
		q = q.Where("title ILIKE ?", "%"+f.Title+"%")
	}
	if f.AuthorName != "" {
		// Substring-Suche über die serialisierte Autorenliste.
		q = q.Where("author_names::text ILIKE ?", "%"+f.AuthorName+"%")
	}
	if f.DOI != "" {
		q = q.Where("doi ILIKE ?", "%"+f.DOI+"%")
	}

	if f.Year != nil {
		q = q.Where("year_of_publication = ?", *f.Year)
	} else {
		if f.StartYear != nil {
			q = q.Where("year_of_publication >= ?", *f.StartYear)
		}
		if f.EndYear != nil {
			q = q.Where("year_of_publication <= ?", *f.EndYear)
		}
	}

	// Ein konkreter Tag gewinnt gegen einen Datumsbereich.
	if f.SpecificDate != nil {
		dayStart := f.SpecificDate.Truncate(24 * time.Hour)
		dayEnd := dayStart.Add(24*time.Hour - time.Millisecond)
		q = q.Where("date_of_publication BETWEEN ? AND ?", dayStart, dayEnd)
	} else {
		if f.StartDate != nil {
			q = q.Where("date_of_publication >= ?", f.StartDate.Truncate(24*time.Hour))
		}
		if f.EndDate != nil {
			q = q.Where("date_of_publication <= ?", f.EndDate.Truncate(24*time.Hour).Add(24*time.Hour-time.Millisecond))
		}
	}

	return q
}

// ApplyAdmin hängt zusätzlich die nur Admins zugänglichen Filter an.
func (f PublicationFilter) ApplyAdmin(q *gorm.DB) *gorm.DB {
	q = f.Apply(q)
	if f.Status != "" && models.Status(f.Status).IsValid() {
		q = q.Where("status = ?", f.Status)
	}
	if f.PublisherID != nil {
		q = q.Where("publisher_id = ?", *f.PublisherID)
	}
	if f.ReviewerID != nil {
		q = q.Where("reviewed_by_id = ?", *f.ReviewerID)
	}
	return q
}

// publicSortKeys ist die Whitelist benannter Sortierungen der öffentlichen
// Suche. Unbekannte Schlüssel fallen auf "recent" zurück.
var publicSortKeys = map[string]string{
	"recent":                 "created_at DESC",
	"createdAt_desc":         "created_at DESC",
	"createdAt_asc":          "created_at ASC",
	"dateOfPublication_desc": "date_of_publication DESC",
	"dateOfPublication_asc":  "date_of_publication ASC",
	"year_asc":               "year_of_publication ASC",
	"year_desc":              "year_of_publication DESC",
	"title_asc":              "title ASC",
	"title_desc":             "title DESC",
}

// OrderClause übersetzt den benannten Sortierschlüssel in eine ORDER BY-Klausel.
func (f PublicationFilter) OrderClause() string {
	if clause, ok := publicSortKeys[f.SortBy]; ok {
		return clause
	}
	return publicSortKeys["recent"]
}

// adminSortColumns ist die Spalten-Whitelist für die Admin-Liste.
var adminSortColumns = map[string]string{
	"createdAt":         "created_at",
	"dateOfPublication": "date_of_publication",
	"year":              "year_of_publication",
	"title":             "title",
	"status":            "status",
}

// AdminOrderClause kombiniert Spalte und Richtung aus der Whitelist,
// Default ist created_at DESC.
func (f PublicationFilter) AdminOrderClause() string {
	col, ok := adminSortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}

// Pagination beschreibt eine Ergebnisseite.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
}

// NewPagination berechnet die Seitenangaben aus Gesamtzahl, Seite und Limit.
func NewPagination(page, limit int, total int64) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
		Limit:       limit,
		Total:       total,
	}
}

// Offset gibt den Zeilen-Offset der angefragten Seite zurück.
func (f PublicationFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
