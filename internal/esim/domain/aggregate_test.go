package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func planOf(id string, allowance int) AttachedPlan {
	return NewAttachedPlan(PlanSource{PlanID: id, Name: id, AllowanceMB: allowance, ValidityDays: 7}, t0)
}

func assertConservation(t *testing.T, e *Esim) {
	t.Helper()
	for _, p := range e.Plans {
		assert.Equal(t, p.AllowanceMB, p.UsedMB+p.RemainingMB, "plan %s", p.PlanID)
		assert.GreaterOrEqual(t, p.RemainingMB, 0, "plan %s", p.PlanID)
		if p.RemainingMB == 0 && p.Status == PlanStatusActive {
			t.Fatalf("plan %s has no remaining allowance but is still active", p.PlanID)
		}
	}
}

func TestNewAttachedPlanSnapshot(t *testing.T) {
	coverage := []string{"us"}
	plan := NewAttachedPlan(PlanSource{PlanID: "p1", AllowanceMB: 1024, ValidityDays: 30, Coverage: coverage}, t0)
	coverage[0] = "mx"

	assert.Equal(t, PlanStatusActive, plan.Status)
	assert.Equal(t, 1024, plan.RemainingMB)
	assert.Equal(t, t0.AddDate(0, 0, 30), plan.ExpiresAt)
	assert.Equal(t, []string{"us"}, plan.Coverage)

	zero := NewAttachedPlan(PlanSource{PlanID: "p0", AllowanceMB: 0, ValidityDays: 1}, t0)
	assert.Equal(t, PlanStatusDepleted, zero.Status)
}

func TestAttachPlanPromotesProvisioned(t *testing.T) {
	e := &Esim{Status: StatusProvisioned}
	later := t0.Add(time.Minute)
	e.AttachPlan(planOf("p1", 100), later)

	assert.Equal(t, StatusActive, e.Status)
	require.NotNil(t, e.ActivatedAt)
	assert.Equal(t, later, *e.ActivatedAt)
	assert.Equal(t, 100, e.TotalAllowance)

	e.AttachPlan(planOf("p2", 200), later.Add(time.Hour))
	assert.Equal(t, later, *e.ActivatedAt, "activation is stamped once")
	assert.Equal(t, 300, e.TotalRemaining())
}

func TestConsumeUsageFIFO(t *testing.T) {
	e := &Esim{Status: StatusProvisioned}
	e.AttachPlan(planOf("p1", 100), t0)
	e.AttachPlan(planOf("p2", 200), t0)

	res := e.ConsumeUsage(150, t0.Add(time.Hour))
	assert.Equal(t, 150, res.AppliedMB)
	assert.Zero(t, res.DiscardedMB)
	assert.Equal(t, []string{"p1"}, res.Depleted)

	assert.Equal(t, PlanStatusDepleted, e.Plans[0].Status)
	assert.Equal(t, 0, e.Plans[0].RemainingMB)
	assert.Equal(t, PlanStatusActive, e.Plans[1].Status)
	assert.Equal(t, 150, e.Plans[1].RemainingMB)
	assert.Equal(t, 150, e.TotalRemaining())
	assert.Equal(t, 200, e.TotalAllowance)
	assert.Equal(t, 150, e.TotalUsed)
	assertConservation(t, e)

	res = e.ConsumeUsage(300, t0.Add(2*time.Hour))
	assert.Equal(t, 150, res.AppliedMB)
	assert.Equal(t, 150, res.DiscardedMB)
	assert.Equal(t, PlanStatusDepleted, e.Plans[1].Status)
	assert.Equal(t, 0, e.TotalRemaining())
	assert.Equal(t, 300, e.TotalUsed)
	assertConservation(t, e)
	require.NotNil(t, e.LastUsedAt)
	assert.Equal(t, t0.Add(2*time.Hour), *e.LastUsedAt)
}

func TestConsumeUsageStopsEarly(t *testing.T) {
	e := &Esim{Status: StatusActive}
	e.Plans = append(e.Plans, planOf("p1", 100), planOf("p2", 100), planOf("p3", 100))

	res := e.ConsumeUsage(100, t0)
	assert.Equal(t, []string{"p1"}, res.Depleted)
	assert.Equal(t, 0, e.Plans[1].UsedMB)
	assert.Equal(t, PlanStatusActive, e.Plans[1].Status)
	assert.Equal(t, PlanStatusActive, e.Plans[2].Status)
}

func TestConsumeUsageSkipsInactivePlans(t *testing.T) {
	e := &Esim{Status: StatusActive}
	deactivated := planOf("old", 500)
	deactivated.Status = PlanStatusDeactivated
	e.Plans = append(e.Plans, deactivated, planOf("p1", 100))
	e.Recalculate()
	assert.Equal(t, 100, e.TotalAllowance)

	e.ConsumeUsage(40, t0)
	assert.Equal(t, 0, e.Plans[0].UsedMB)
	assert.Equal(t, 500, e.Plans[0].RemainingMB)
	assert.Equal(t, 40, e.Plans[1].UsedMB)
	assertConservation(t, e)
}

func TestDeactivateIsAbsolute(t *testing.T) {
	e := &Esim{Status: StatusActive}
	e.Plans = append(e.Plans, planOf("p1", 100), planOf("p2", 200))
	e.ConsumeUsage(120, t0)

	e.Deactivate(t0.Add(time.Hour))
	assert.Equal(t, StatusDeactivated, e.Status)
	for _, p := range e.Plans {
		assert.Equal(t, PlanStatusDeactivated, p.Status)
	}
	assert.Equal(t, 180, e.Plans[1].RemainingMB, "deactivation keeps counters")
	assert.Equal(t, 0, e.TotalRemaining())
	assert.Equal(t, 0, e.TotalAllowance)
	assert.Equal(t, 120, e.TotalUsed)
	require.NotNil(t, e.DeactivatedAt)
}

func TestForceStatusLeavesPlans(t *testing.T) {
	e := &Esim{Status: StatusDeactivated}
	e.Plans = append(e.Plans, planOf("p1", 100))
	e.Plans[0].Status = PlanStatusDeactivated

	e.ForceStatus(StatusActive, t0)
	assert.Equal(t, StatusActive, e.Status)
	assert.Equal(t, PlanStatusDeactivated, e.Plans[0].Status)
}

func TestIsPastExpiry(t *testing.T) {
	plan := planOf("p1", 100)
	assert.False(t, plan.IsPastExpiry(t0.AddDate(0, 0, 7)))
	assert.True(t, plan.IsPastExpiry(t0.AddDate(0, 0, 7).Add(time.Second)))
	assert.False(t, AttachedPlan{}.IsPastExpiry(t0))
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus(" ACTIVE ")
	assert.True(t, ok)
	assert.Equal(t, StatusActive, s)

	_, ok = ParseStatus("suspended")
	assert.False(t, ok)
}

func TestOrderIDFromMetadata(t *testing.T) {
	assert.Equal(t, "ord-1", OrderIDFromMetadata(map[string]any{"orderId": " ord-1 "}))
	assert.Empty(t, OrderIDFromMetadata(map[string]any{"orderId": 42}))
	assert.Empty(t, OrderIDFromMetadata(nil))
}
