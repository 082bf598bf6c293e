package schedule

// Slots returns the bookable start times for a clinic day: workStart
// inclusive up to workEnd exclusive, stepping by slotMinutes. A trailing
// range shorter than a full slot is dropped, so every returned start fits
// a whole slot before workEnd. Pure function, deterministic.
func Slots(workStart, workEnd TimeOfDay, slotMinutes int) []TimeOfDay {
	if slotMinutes <= 0 || workEnd <= workStart {
		return nil
	}

	var out []TimeOfDay
	for t := workStart; t.Add(slotMinutes) <= workEnd; t = t.Add(slotMinutes) {
		out = append(out, t)
	}
	return out
}
