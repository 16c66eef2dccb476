package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusClean, StatusProbation, true},
		{StatusProbation, StatusProbation, true},
		{StatusProbation, StatusRedemption, true},
		{StatusProbation, StatusConvicted, true},
		{StatusRedemption, StatusClean, true},
		{StatusConvicted, StatusRemediated, true},
		{StatusRemediated, StatusClean, true},
		{StatusClean, StatusConvicted, false},
		{StatusRedemption, StatusConvicted, false},
		{StatusConvicted, StatusClean, false},
		{StatusRemediated, StatusProbation, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestLegalTransitions_ReturnsCopy(t *testing.T) {
	table := LegalTransitions()
	table[StatusClean] = append(table[StatusClean], StatusRemediated)
	assert.False(t, CanTransition(StatusClean, StatusRemediated))
}

func TestParseStatus(t *testing.T) {
	for s, name := range statusNames {
		got, err := ParseStatus(name)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("jailed")
	assert.Error(t, err)
	assert.Equal(t, "status(42)", Status(42).String())
}

func TestParseScopeFilter(t *testing.T) {
	f, err := ParseScopeFilter(" site = DJELFA ")
	require.NoError(t, err)
	assert.Equal(t, &ScopeFilter{Level: ScopeSite, Value: "DJELFA"}, f)
	assert.Equal(t, "site=DJELFA", f.String())
	assert.True(t, f.Matches(Scope{Node: "NE-01", Site: "DJELFA", Region: "CENTER"}))
	assert.False(t, f.Matches(Scope{Site: "ORAN"}))

	f, err = ParseScopeFilter("")
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, f.Matches(Scope{Site: "ORAN"}), "nil filter matches everything")

	for _, bad := range []string{"site", "site=", "planet=earth"} {
		_, err := ParseScopeFilter(bad)
		assert.Error(t, err, bad)
	}
}

func TestOffenseID_StableAcrossZones(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	local := at.In(time.FixedZone("CET", 3600))

	assert.Equal(t, OffenseID("R1", OffenseLicenseHoarding, at), OffenseID("R1", OffenseLicenseHoarding, local))
	assert.NotEqual(t, OffenseID("R1", OffenseLicenseHoarding, at), OffenseID("R1", OffenseSpectrumWaste, at))
	assert.NotEqual(t, OffenseID("R1", OffenseLicenseHoarding, at), OffenseID("R1", OffenseLicenseHoarding, at.Add(time.Nanosecond)))
}

func TestActionFor_CoversEveryOffenseKind(t *testing.T) {
	for _, kind := range OffenseKinds() {
		action, ok := ActionFor(kind)
		assert.True(t, ok, kind)
		assert.Less(t, action.Risk(), 99, kind)
		assert.NotEmpty(t, kind.Unit())
	}
	assert.Less(t, ActionRevokeLicense.Risk(), ActionReclaimSpectrum.Risk())
}
