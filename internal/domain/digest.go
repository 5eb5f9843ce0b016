package domain

import (
	"fmt"
	"time"
)

// ComputeDigest counts activity events inside the trailing cadence window
// ending at now. Cadence off always yields zero counts and the "Off"
// timeframe, regardless of event content.
func ComputeDigest(events []ActivityEvent, cadence DigestCadence, now time.Time) Digest {
	days := cadence.Days()
	if days == 0 {
		return Digest{Timeframe: "Off"}
	}

	cutoff := now.AddDate(0, 0, -days)
	var opened, reviewed int
	for _, e := range events {
		if e.Date.Before(cutoff) {
			continue
		}
		switch e.Type {
		case EventOpenedMyPR:
			opened++
		case EventReviewedPR:
			reviewed++
		}
	}

	return Digest{
		Opened:    opened,
		Reviewed:  reviewed,
		Timeframe: fmt.Sprintf("last %d days", days),
	}
}
