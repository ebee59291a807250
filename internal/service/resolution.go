package service

import "time"

// ResolutionClock computes ticket resolution time. Both endpoints are
// normalized to a single civil time zone before subtraction; timestamps
// carrying another zone are converted, so the rule holds regardless of
// how the store returned them.
type ResolutionClock struct {
	loc *time.Location
}

// NewResolutionClock loads the reference time zone by name.
func NewResolutionClock(timeZone string) (*ResolutionClock, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, err
	}
	return &ResolutionClock{loc: loc}, nil
}

// Now returns the current time in the reference zone.
func (c *ResolutionClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Minutes returns whole minutes elapsed between opening and resolution,
// truncating toward zero. A negative result signals an upstream clock
// anomaly and is passed through for the caller to report, not clamped.
func (c *ResolutionClock) Minutes(openedAt, resolvedAt time.Time) int {
	opened := openedAt.In(c.loc)
	resolved := resolvedAt.In(c.loc)
	return int(resolved.Sub(opened) / time.Minute)
}
