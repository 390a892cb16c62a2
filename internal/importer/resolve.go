package importer

import (
	"sort"
	"strings"
	"time"
)

// Match types reported on a successful resolution, in cascade order.
const (
	MatchID        = "id"
	MatchEmail     = "email"
	MatchShortName = "short_name"
	MatchFullName  = "full_name"
)

// Options are the tunable policy knobs of the pipeline.
type Options struct {
	// SimilarityThreshold is the minimum (exclusive) Jaccard score for a
	// fuzzy-name suggestion.
	SimilarityThreshold float64
	// MaxSuggestions caps the ranked suggestion list.
	MaxSuggestions int
	// BatchSize is the number of rows per worker batch.
	BatchSize int
	// PoolSize bounds the number of concurrently executing batch workers.
	PoolSize int
	// WorkerTimeout is how long a single batch may run before it is
	// abandoned and reported failed.
	WorkerTimeout time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: 0.6,
		MaxSuggestions:      3,
		BatchSize:           100,
		PoolSize:            4,
		WorkerTimeout:       30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = def.SimilarityThreshold
	}
	if o.MaxSuggestions <= 0 {
		o.MaxSuggestions = def.MaxSuggestions
	}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.PoolSize <= 0 {
		o.PoolSize = def.PoolSize
	}
	if o.WorkerTimeout <= 0 {
		o.WorkerTimeout = def.WorkerTimeout
	}
	return o
}

// Suggestion is a fuzzy-name candidate for an unmatched row.
type Suggestion struct {
	Employee *Employee `json:"employee"`
	Score    float64   `json:"score"`
}

// Resolution is the outcome of matching a normalized record against the
// directory. Either Found is true and Employee/MatchType are set, or Found
// is false and Suggestions holds the ranked fuzzy candidates (possibly
// empty).
type Resolution struct {
	Found       bool         `json:"found"`
	Employee    *Employee    `json:"employee,omitempty"`
	MatchType   string       `json:"matchType,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// Resolver matches normalized records to directory entries.
type Resolver struct {
	opts Options
}

// NewResolver creates a resolver with the given policy; zero-valued knobs
// fall back to defaults.
func NewResolver(opts Options) *Resolver {
	return &Resolver{opts: opts.withDefaults()}
}

// Resolve applies the match cascade in strict priority order and returns on
// the first hit: employee id, lower-cased email, lower-cased short name,
// lower-cased full name. When nothing matches it falls through to ranked
// fuzzy-name suggestions. Pure lookup; the directory is never written.
func (r *Resolver) Resolve(rec Record, dir *Directory) Resolution {
	if id, ok := rec[FieldEmployeeID]; ok {
		if emp, ok := dir.ByID[strings.TrimSpace(id)]; ok {
			return Resolution{Found: true, Employee: emp, MatchType: MatchID}
		}
	}
	if email, ok := rec[FieldEmail]; ok {
		if emp, ok := dir.ByEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
			return Resolution{Found: true, Employee: emp, MatchType: MatchEmail}
		}
	}
	if name, ok := rec[FieldEmployeeName]; ok {
		key := strings.ToLower(strings.TrimSpace(name))
		if emp, ok := dir.ByShortName[key]; ok {
			return Resolution{Found: true, Employee: emp, MatchType: MatchShortName}
		}
		if emp, ok := dir.ByFullName[key]; ok {
			return Resolution{Found: true, Employee: emp, MatchType: MatchFullName}
		}
	}

	return Resolution{Suggestions: r.suggest(rec[FieldEmployeeName], dir)}
}

// suggest ranks directory entries by token-set similarity to the input
// name, keeping scores strictly above the threshold, sorted descending,
// capped at MaxSuggestions. Ties break on employee id so repeated runs
// produce identical lists.
func (r *Resolver) suggest(name string, dir *Directory) []Suggestion {
	tokens := Tokenize(name)
	if len(tokens) == 0 {
		return nil
	}

	var candidates []Suggestion
	for _, entry := range dir.entries {
		score := Similarity(tokens, entry.tokens)
		if score > r.opts.SimilarityThreshold {
			candidates = append(candidates, Suggestion{Employee: entry.emp, Score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Employee.ID < candidates[j].Employee.ID
	})

	if len(candidates) > r.opts.MaxSuggestions {
		candidates = candidates[:r.opts.MaxSuggestions]
	}
	return candidates
}
