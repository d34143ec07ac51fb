package search

// LayerStats counts what happened at one layer.
type LayerStats struct {
	// Entered is the number of hypotheses that reached the layer.
	Entered uint64
	// Fills is the number of fills enumerated, Entered << popcount(mask).
	Fills        uint64
	DebugPruned  uint64
	FilterPruned uint64
	// Survived is the number of fills passing both prunes.
	Survived uint64
}

// Stats summarises a search run.
type Stats struct {
	Layers     []LayerStats
	Candidates uint64
	Rejected   uint64
	Solutions  uint64
}

func newStats(layers int) *Stats {
	return &Stats{Layers: make([]LayerStats, layers)}
}

// Fills returns the total number of fills enumerated over all layers.
func (s *Stats) Fills() uint64 {
	var n uint64
	for _, l := range s.Layers {
		n += l.Fills
	}
	return n
}
