// Package technique holds the TechniqueLibrary aggregate: a reusable,
// curated catalog of named techniques with embeddings for similarity
// search, separate from the per-mission action history.
package technique

import "time"

// Technique is a curated, searchable entry in the technique library.
type Technique struct {
	ID               string
	Category         string
	Title            string
	Content          string
	ContentEmbedding []float32
	MetaData         map[string]string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Stats is the read-model returned by get_technique_stats: a
// Technique plus the usage counters rolled up from MissionAction rows
// whose technique field matches it.
type Stats struct {
	Technique
	TotalUses   int
	SuccessUses int
	FailureUses int
}

// SuccessRate returns the fraction of recorded uses that succeeded, or
// 0 when the technique has never been used.
func (s *Stats) SuccessRate() float64 {
	if s.TotalUses == 0 {
		return 0
	}
	return float64(s.SuccessUses) / float64(s.TotalUses)
}
