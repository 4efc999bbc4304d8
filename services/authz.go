package services

import (
	"pub-desk/models"
)

// Autorisierungsregeln als reine Funktionen über (Akteur, Publikation).
// Jede mutierende oder sensible Leseoperation konsultiert genau diese
// Funktionen, damit die Regeln nicht über Handler verstreut driften.

// CanCreatePublication: eingeloggte Benutzer und Admins reichen ein,
// Reviewer nicht.
func CanCreatePublication(actor *models.User) bool {
	return actor != nil && (actor.Role == models.RoleUser || actor.Role == models.RoleAdmin)
}

// CanManageUsers: Benutzerverwaltung ist Admins vorbehalten.
func CanManageUsers(actor *models.User) bool {
	return actor != nil && actor.Role == models.RoleAdmin
}

// IsOwner prüft, ob der Akteur der Einreicher der Publikation ist.
func IsOwner(actor *models.User, pub *models.Publication) bool {
	return actor != nil && actor.ID == pub.PublisherID
}

// CanViewPublication entscheidet über die Detailansicht. Veröffentlichte
// Publikationen sind öffentlich. Sonst sehen sie nur Besitzer, Admins und
// Reviewer; Reviewer pauschal bei pending_review, ansonsten nur wenn sie
// bereits als Reviewer eingetragen sind.
func CanViewPublication(actor *models.User, pub *models.Publication) bool {
	if pub.Status == models.StatusPublished {
		return true
	}
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleAdmin || IsOwner(actor, pub) {
		return true
	}
	if actor.Role == models.RoleReviewer {
		if pub.Status == models.StatusPendingReview {
			return true
		}
		return pub.ReviewedByID != nil && *pub.ReviewedByID == actor.ID
	}
	return false
}

// CanUpdatePublication: Besitzer nur solange der Status Korrekturen zulässt,
// Admins unabhängig vom Status.
func CanUpdatePublication(actor *models.User, pub *models.Publication) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleAdmin {
		return true
	}
	if !IsOwner(actor, pub) {
		return false
	}
	return pub.Status == models.StatusPendingReview || pub.Status == models.StatusNeedsCorrection
}

// CanDeletePublication: Besitzer solange nicht veröffentlicht, Admins immer.
func CanDeletePublication(actor *models.User, pub *models.Publication) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleAdmin {
		return true
	}
	return IsOwner(actor, pub) && pub.Status != models.StatusPublished
}

// CanReview prüft die Rolle für Review-Aktionen.
func CanReview(actor *models.User) bool {
	return actor != nil && (actor.Role == models.RoleReviewer || actor.Role == models.RoleAdmin)
}

// ReviewableStates liefert die Ausgangszustände, aus denen der Akteur einen
// Review-Übergang auslösen darf. Admins dürfen zusätzlich aus
// needs_correction heraus reviewen.
func ReviewableStates(actor *models.User) []models.Status {
	states := []models.Status{models.StatusPendingReview}
	if actor != nil && actor.Role == models.RoleAdmin {
		states = append(states, models.StatusNeedsCorrection)
	}
	return states
}

// QueueStates liefert die Status, die in der Review-Queue des Akteurs
// erscheinen. Identisch mit den reviewbaren Ausgangszuständen.
func QueueStates(actor *models.User) []models.Status {
	return ReviewableStates(actor)
}
