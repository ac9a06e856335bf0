package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Err_NoCandidates(t *testing.T) {
	r := NewReport(SearchWindow{}, 3, 0)
	require.ErrorIs(t, r.Err(), ErrNoData)
}

func TestReport_Err_AllCandidatesExhausted(t *testing.T) {
	r := NewReport(SearchWindow{}, 1, 2)
	r.Add(Fail(1, ProductRef{ID: "p1"}, errors.New("corrupt archive")))
	r.Add(Skip(2, ProductRef{ID: "p2"}, ReasonQualityMetadata))

	// Candidates existed, so this is the hard empty-output failure, not no-data.
	require.ErrorIs(t, r.Err(), ErrNoFrames)
	assert.NotErrorIs(t, r.Err(), ErrNoData)
}

func TestReport_Err_PartialSuccess(t *testing.T) {
	r := NewReport(SearchWindow{}, 1, 3)
	r.Add(Fail(1, ProductRef{ID: "p1"}, errors.New("download failed")))
	r.Add(Ok(2, ProductRef{ID: "p2"}, 1))
	r.Add(Skip(3, ProductRef{ID: "p3"}, ReasonSampledOut))

	require.NoError(t, r.Err())
	assert.Equal(t, 1, r.FrameCount())

	ok, skipped, failed := r.Counts()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, failed)
}

func TestNewReport_UsesInjectedClock(t *testing.T) {
	frozen := time.Date(2026, time.March, 15, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	r := NewReport(SearchWindow{}, 1, 0)
	assert.Equal(t, frozen, r.GeneratedAt)
}

func TestProductRef_QualityDegraded(t *testing.T) {
	assert.False(t, ProductRef{}.QualityDegraded(), "no statement is not degraded")
	assert.False(t, ProductRef{Quality: "NOMINAL"}.QualityDegraded())
	assert.True(t, ProductRef{Quality: "DEGRADED"}.QualityDegraded())
}
