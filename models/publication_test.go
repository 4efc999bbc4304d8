package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeforeSaveDerivesYear(t *testing.T) {
	date, err := time.Parse("2006-01-02", "2023-06-15")
	require.NoError(t, err)

	pub := &Publication{DateOfPublication: date}
	require.NoError(t, pub.BeforeSave(nil))
	assert.Equal(t, 2023, pub.YearOfPublication)
}

func TestBeforeSaveClearsYearWithoutDate(t *testing.T) {
	pub := &Publication{YearOfPublication: 1999}
	require.NoError(t, pub.BeforeSave(nil))
	assert.Equal(t, 0, pub.YearOfPublication)
}

func TestNormalizeAuthors(t *testing.T) {
	authors, err := NormalizeAuthors([]string{"  Alice Example ", "Bob"})
	require.NoError(t, err)
	assert.Equal(t, AuthorList{"Alice Example", "Bob"}, authors)
}

func TestNormalizeAuthorsRejectsEmptyList(t *testing.T) {
	_, err := NormalizeAuthors(nil)
	assert.Error(t, err)

	_, err = NormalizeAuthors([]string{})
	assert.Error(t, err)
}

func TestNormalizeAuthorsRejectsBlankEntry(t *testing.T) {
	_, err := NormalizeAuthors([]string{"Alice", "   "})
	assert.Error(t, err)
}

func TestAuthorListValueScanRoundTrip(t *testing.T) {
	in := AuthorList{"Alice", "Bob"}

	raw, err := in.Value()
	require.NoError(t, err)

	var out AuthorList
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)
}

func TestStatusValidation(t *testing.T) {
	assert.True(t, StatusPendingReview.IsValid())
	assert.True(t, StatusPublished.IsValid())
	assert.False(t, Status("draft").IsValid())
}

func TestReviewOutcomes(t *testing.T) {
	assert.True(t, StatusPublished.IsReviewOutcome())
	assert.True(t, StatusRejected.IsReviewOutcome())
	assert.True(t, StatusNeedsCorrection.IsReviewOutcome())
	assert.False(t, StatusPendingReview.IsReviewOutcome())
	assert.False(t, Status("archived").IsReviewOutcome())
}

func TestCategoryValidation(t *testing.T) {
	assert.True(t, CategoryResearchPaper.IsValid())
	assert.False(t, Category("thesis").IsValid())
}
