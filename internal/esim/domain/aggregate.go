package domain

import "time"

// PlanSource is the catalog data needed to snapshot a plan onto an eSIM.
type PlanSource struct {
	PlanID       string
	Name         string
	AllowanceMB  int
	ValidityDays int
	Coverage     []string
	PackageType  string
}

// UsageResult describes what a single consumption pass did.
type UsageResult struct {
	RequestedMB int
	AppliedMB   int
	DiscardedMB int
	// Depleted holds the plan ids flipped to depleted during this pass, in order.
	Depleted []string
}

// NewAttachedPlan snapshots src at now. A plan whose allowance truncates to
// zero starts out depleted.
func NewAttachedPlan(src PlanSource, now time.Time) AttachedPlan {
	coverage := make([]string, len(src.Coverage))
	copy(coverage, src.Coverage)

	allowance := src.AllowanceMB
	if allowance < 0 {
		allowance = 0
	}
	status := PlanStatusActive
	if allowance == 0 {
		status = PlanStatusDepleted
	}
	return AttachedPlan{
		PlanID:      src.PlanID,
		Name:        src.Name,
		AttachedAt:  now,
		ExpiresAt:   now.AddDate(0, 0, src.ValidityDays),
		AllowanceMB: allowance,
		UsedMB:      0,
		RemainingMB: allowance,
		Status:      status,
		Coverage:    coverage,
		PackageType: src.PackageType,
	}
}

// AttachPlan appends a plan snapshot and promotes a provisioned eSIM to active.
// Callers check the lifecycle guards first.
func (e *Esim) AttachPlan(plan AttachedPlan, now time.Time) {
	e.Plans = append(e.Plans, plan)
	e.Recalculate()
	if e.Status == StatusProvisioned {
		e.Status = StatusActive
		activated := now
		e.ActivatedAt = &activated
	}
	e.UpdatedAt = now
}

// ConsumeUsage drains usageMB from active plans in attachment order. Usage
// beyond the remaining allowance is dropped.
func (e *Esim) ConsumeUsage(usageMB int, now time.Time) UsageResult {
	result := UsageResult{RequestedMB: usageMB}
	left := usageMB

	for i := range e.Plans {
		if left <= 0 {
			break
		}
		plan := &e.Plans[i]
		if plan.Status != PlanStatusActive {
			continue
		}

		consumed := min(plan.RemainingMB, left)
		plan.UsedMB += consumed
		plan.RemainingMB -= consumed
		left -= consumed
		result.AppliedMB += consumed

		if plan.RemainingMB <= 0 {
			plan.RemainingMB = 0
			plan.Status = PlanStatusDepleted
			result.Depleted = append(result.Depleted, plan.PlanID)
		}
	}
	if left > 0 {
		result.DiscardedMB = left
	}

	e.Recalculate()
	used := now
	e.LastUsedAt = &used
	e.UpdatedAt = now
	return result
}

// Deactivate is absolute: every plan is deactivated whatever its remaining allowance.
func (e *Esim) Deactivate(now time.Time) {
	e.Status = StatusDeactivated
	for i := range e.Plans {
		e.Plans[i].Status = PlanStatusDeactivated
	}
	deactivated := now
	e.DeactivatedAt = &deactivated
	e.Recalculate()
	e.UpdatedAt = now
}

// ForceStatus sets the status with no transition guard. Plans are left as they are.
func (e *Esim) ForceStatus(status Status, now time.Time) {
	e.Status = status
	e.UpdatedAt = now
}

// Recalculate rebuilds the stored totals from the plan list.
func (e *Esim) Recalculate() {
	allowance, used := 0, 0
	for _, p := range e.Plans {
		if p.Status == PlanStatusActive {
			allowance += p.AllowanceMB
		}
		used += p.UsedMB
	}
	e.TotalAllowance = allowance
	e.TotalUsed = used
}
