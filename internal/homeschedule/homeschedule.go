// v0
// homeschedule.go
package homeschedule

import (
	"time"

	"nrgchamp/ctrlcore/internal/store"
)

// IsHomeBySchedule implements the default occupancy heuristic (spec §6):
// weekdays 15:30-02:00, weekends 09:00-02:00. The window wraps past
// midnight, so "home" on a weekday evening continues to read true until
// 02:00 the following calendar day.
func IsHomeBySchedule(now time.Time) bool {
	weekday := now.Weekday()
	isWeekend := weekday == time.Saturday || weekday == time.Sunday

	start := 15*60 + 30
	if isWeekend {
		start = 9 * 60
	}
	end := 2 * 60 // 02:00, past midnight

	minutesOfDay := now.Hour()*60 + now.Minute()
	if minutesOfDay < end {
		// 00:00-02:00 is still last night's home window.
		return true
	}
	return minutesOfDay >= start
}

// Resolver layers an optional manual override (spec §6's
// user_is_home_override) on top of the schedule heuristic. The stored
// value is a unix timestamp the override holds until; 0 means no override
// is active. An expired override is reset to 0 in the store.
type Resolver struct {
	settings store.SettingsStore
}

func NewResolver(settings store.SettingsStore) *Resolver {
	return &Resolver{settings: settings}
}

// IsHome returns whether the user is considered present right now.
func (r *Resolver) IsHome(now time.Time) bool {
	if until, err := r.settings.UserIsHomeOverride(); err == nil && until > 0 {
		if now.Before(time.Unix(until, 0)) {
			return true
		}
		_ = r.settings.SetUserIsHomeOverride(0)
	}
	return IsHomeBySchedule(now)
}
