package calendar

// validDurations lists the event lengths (minutes) the provider accepts.
var validDurations = []int{5, 10, 15, 20, 25, 30, 45, 50, 60, 75, 80, 90, 120, 150, 180, 240, 300, 360, 420, 480}

// ClosestDuration snaps a requested duration in minutes to the nearest valid
// event length. Non-positive inputs snap to the shortest one.
func ClosestDuration(minutes int) int {
	closest := validDurations[0]
	best := abs(minutes - closest)
	for _, candidate := range validDurations[1:] {
		if diff := abs(minutes - candidate); diff < best {
			closest = candidate
			best = diff
		}
	}
	return closest
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
