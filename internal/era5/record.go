package era5

// Stat is one reduced statistic, e.g. the area-weighted mean.
type Stat struct {
	Name  string
	Value float64
}

// Record is a collection of statistics of one variable taken over the
// horizontal grid at a given time.
type Record struct {
	// Dimensions
	Timestamp int64
	Variable  string

	// Metrics
	Stats []Stat
}

// Stat returns the value of the named statistic.
func (r *Record) Stat(name string) (float64, bool) {
	for _, s := range r.Stats {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}
