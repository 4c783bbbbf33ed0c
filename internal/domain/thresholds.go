package domain

// Thresholds is the ordered rank threshold table. Thresholds[i] is the
// cumulative weekly progress required to move from rank i to rank i+1.
// The first entry doubles as the anonymous progress ceiling, the last as
// the weekly goal.
type Thresholds []int

// DefaultThresholds matches the rank ladder shipped with the ReadMark
// client: one read unlocks rank one for signed-in users, the week's goal
// sits at the top of the table.
var DefaultThresholds = Thresholds{3, 7, 12, 18, 25}

// Max returns the final threshold, the largest progress value a week can
// accumulate.
func (t Thresholds) Max() int {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1]
}

// AnonymousCeiling is the progress an anonymous session may bank before
// increments are rejected.
func (t Thresholds) AnonymousCeiling() int {
	if len(t) == 0 {
		return 0
	}
	return t[0]
}

// RankFor returns the highest rank whose threshold is at or below the
// given progress.
func (t Thresholds) RankFor(progress int) int {
	rank := 0
	for _, threshold := range t {
		if progress < threshold {
			break
		}
		rank++
	}
	return rank
}
