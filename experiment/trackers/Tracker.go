// Package trackers implements tracking and saving of per-epoch
// experiment data
package trackers

// Tracker is anything that records a scalar measurement once per
// training epoch and can persist the recorded series to disk
type Tracker interface {
	// Track records value for the given epoch
	Track(epoch int, value float64)

	// Save saves all tracked data to disk
	Save() error
}
