package rico

import (
	"testing"

	"github.com/de-tools/linkmind/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draft(id string, members ...string) domain.RICOCase {
	c := domain.RICOCase{ID: id, ResourceIDs: members, Status: domain.CaseDraft, CreatedAt: now}
	for _, m := range members {
		c.Charges = append(c.Charges, domain.Charge{ResourceID: m, Kind: domain.OffenseZombiePort})
	}
	return c
}

func TestDocket_FileEnforcesExclusivity(t *testing.T) {
	d := NewDocket()

	created, err := d.File(draft("c1", "R1", "R2"), "c1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = d.File(draft("c1", "R1", "R2"), "c1")
	require.NoError(t, err)
	assert.False(t, created, "filing the same case twice is a no-op")

	_, err = d.File(draft("c2", "R2", "R3"), "c2")
	assert.Error(t, err)
	_, busy := d.OpenCaseOf("R3")
	assert.False(t, busy)
}

func TestDocket_ApprovalRequiresPricing(t *testing.T) {
	d := NewDocket()
	_, err := d.File(draft("c1", "R1"), "c1")
	require.NoError(t, err)

	assert.Error(t, d.Approve("c1"), "unpriced drafts cannot be approved")

	c, _ := d.Get("c1")
	require.NoError(t, d.Annotate("c1", c.Charges, &domain.Pricing{Currency: "USD"}))
	assert.Error(t, d.Approve("c1"), "every charge needs an estimate or an unpriced marker")

	markPriced(t, d, "c1")
	require.NoError(t, d.Approve("c1"))

	c, _ = d.Get("c1")
	assert.Equal(t, domain.CaseApproved, c.Status)
	assert.Error(t, d.Annotate("c1", c.Charges, c.Pricing), "approved cases are not re-priced")

	assert.ErrorIs(t, d.Approve("missing"), domain.ErrCaseNotFound)
}

func TestDocket_ExecutedCasesAreImmutable(t *testing.T) {
	d := NewDocket()
	_, err := d.File(draft("c1", "R1", "R2"), "c1")
	require.NoError(t, err)
	require.NoError(t, d.Annotate("c1", nil, &domain.Pricing{}))
	require.NoError(t, d.Approve("c1"))
	require.NoError(t, d.MarkExecuted("c1", true, now))

	c, _ := d.Get("c1")
	assert.Equal(t, domain.CaseExecuted, c.Status)
	assert.True(t, c.Partial)
	assert.Equal(t, now, c.ExecutedAt)

	assert.Error(t, d.MarkExecuted("c1", false, now))
	assert.Error(t, d.Reject("c1", "late"))
	assert.Error(t, d.Annotate("c1", nil, &domain.Pricing{}))

	_, busy := d.OpenCaseOf("R1")
	assert.False(t, busy, "executed cases release their members")
	assert.Empty(t, d.Open())
}

func TestDocket_RejectReleasesMembers(t *testing.T) {
	d := NewDocket()
	_, err := d.File(draft("c1", "R1"), "c1")
	require.NoError(t, err)
	require.NoError(t, d.Reject("c1", "member redeemed"))

	c, _ := d.Get("c1")
	assert.Equal(t, domain.CaseRejected, c.Status)
	assert.Equal(t, "member redeemed", c.RejectReason)
	_, busy := d.OpenCaseOf("R1")
	assert.False(t, busy)
}

func TestDocket_CloneIsIndependent(t *testing.T) {
	d := NewDocket()
	_, err := d.File(draft("c1", "R1"), "c1")
	require.NoError(t, err)

	cp := d.Clone()
	require.NoError(t, cp.Reject("c1", "dry-run"))
	_, err = cp.File(draft("c2", "R9"), "c2")
	require.NoError(t, err)

	c, _ := d.Get("c1")
	assert.Equal(t, domain.CaseDraft, c.Status)
	assert.Len(t, d.List(), 1)
	_, busy := d.OpenCaseOf("R1")
	assert.True(t, busy)
}
