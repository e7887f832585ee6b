// Package donors computes how many donors a blood request still needs and how many
// should be searched for, allowing for drop-off and refusals.
package donors

import "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"

// Strategy names.
const (
	BufferStrategy     = "buffer"
	MultiplierStrategy = "multiplier"
)

// RemainingBagsNeeded returns max(0, bloodQuantity - donorsFoundCount).
func RemainingBagsNeeded(bloodQuantity, donorsFoundCount int) int {
	if bloodQuantity < 0 {
		bloodQuantity = 0
	}
	if donorsFoundCount < 0 {
		donorsFoundCount = 0
	}
	return max(0, bloodQuantity-donorsFoundCount)
}

// TargetStrategy decides the total number of donors to search for.
type TargetStrategy interface {
	TotalDonorsToFind(remainingBagsNeeded int, u urgency.Urgency, rejectedDonorsCount int) int
	Name() string
}

// BufferTarget adds a fixed per-urgency buffer plus the donors who already declined.
type BufferTarget struct {
	ExtraDonors map[urgency.Urgency]int
}

// DefaultBufferTarget returns the buffer formula with urgent=2, regular=1.
func DefaultBufferTarget() BufferTarget {
	return BufferTarget{ExtraDonors: map[urgency.Urgency]int{
		urgency.Urgent:  2,
		urgency.Regular: 1,
	}}
}

// TotalDonorsToFind returns 0 when nothing remains, otherwise remaining + rejected + buffer.
func (b BufferTarget) TotalDonorsToFind(remainingBagsNeeded int, u urgency.Urgency, rejectedDonorsCount int) int {
	if remainingBagsNeeded <= 0 {
		return 0
	}
	return remainingBagsNeeded + max(0, rejectedDonorsCount) + max(0, b.ExtraDonors[u])
}

// Name implements TargetStrategy.
func (BufferTarget) Name() string { return BufferStrategy }

// MultiplierTarget scales the remaining need by urgency and by the donors contacted per bag.
type MultiplierTarget struct {
	UrgencyMultiplier map[urgency.Urgency]int
	DonorsPerBag      int
}

// DefaultMultiplierTarget returns urgent=2, regular=1 and two donors per bag.
func DefaultMultiplierTarget() MultiplierTarget {
	return MultiplierTarget{
		UrgencyMultiplier: map[urgency.Urgency]int{
			urgency.Urgent:  2,
			urgency.Regular: 1,
		},
		DonorsPerBag: 2,
	}
}

// TotalDonorsToFind returns remaining * urgencyMultiplier * donorsPerBag.
// Rejected donors are not counted by this formula.
func (m MultiplierTarget) TotalDonorsToFind(remainingBagsNeeded int, u urgency.Urgency, _ int) int {
	if remainingBagsNeeded <= 0 {
		return 0
	}
	return remainingBagsNeeded * max(0, m.UrgencyMultiplier[u]) * max(0, m.DonorsPerBag)
}

// Name implements TargetStrategy.
func (MultiplierTarget) Name() string { return MultiplierStrategy }
