package opt

import "testing"

func TestConvergenceTrackerDisabled(t *testing.T) {
	tracker := NewConvergenceTracker(DisabledConvergenceConfig())

	for i := 0; i < 100; i++ {
		if tracker.Update(1.0) {
			t.Fatal("Disabled tracker should never converge")
		}
	}
	if tracker.BestCost() != 1.0 {
		t.Errorf("Best cost should still be tracked, got %f", tracker.BestCost())
	}
}

func TestConvergenceTrackerPatience(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{
		Enabled:   true,
		Patience:  3,
		Threshold: 0.01,
	})

	costs := []float64{100, 90, 80, 79.9, 79.8, 79.7}
	want := []bool{false, false, false, false, false, true}

	for i, cost := range costs {
		if got := tracker.Update(cost); got != want[i] {
			t.Errorf("Update(%f) at step %d = %v, want %v", cost, i, got, want[i])
		}
	}

	if tracker.StaleCount() != 3 {
		t.Errorf("Expected stale count 3, got %d", tracker.StaleCount())
	}
	if tracker.BestCost() != 79.7 {
		t.Errorf("Expected best cost 79.7, got %f", tracker.BestCost())
	}
}

func TestConvergenceTrackerImprovementResets(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{
		Enabled:   true,
		Patience:  2,
		Threshold: 0.1,
	})

	tracker.Update(100)
	tracker.Update(99) // stale 1
	tracker.Update(50) // significant, reset
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count reset, got %d", tracker.StaleCount())
	}
	if tracker.Update(49) {
		t.Error("Should not converge after a single stale step")
	}
	if !tracker.Update(48) {
		t.Error("Should converge after two stale steps")
	}
}

func TestConvergenceTrackerZeroCost(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{
		Enabled:   true,
		Patience:  2,
		Threshold: 0.1,
	})

	tracker.Update(0)
	tracker.Update(0)
	if !tracker.Update(0) {
		t.Error("A zero cost cannot improve and should converge after patience")
	}
}
