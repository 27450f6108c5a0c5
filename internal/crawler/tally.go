package crawler

import (
	"sync"

	"bbk-press-crawler/internal/models"
)

// KeyTally summarises the listing walk of one key.
type KeyTally struct {
	Key       models.Key
	URLs      int
	Pages     int
	Truncated bool
}

// Tally is an Observer that counts outcomes. Safe for concurrent use.
type Tally struct {
	mu       sync.Mutex
	fetches  int
	attempts int
	byKind   map[models.OutcomeKind]int
	keys     []KeyTally
}

func NewTally() *Tally {
	return &Tally{byKind: map[models.OutcomeKind]int{}}
}

func (t *Tally) ObserveFetch(o models.FetchOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fetches++
	t.attempts += o.Attempts
	t.byKind[o.Kind]++
}

func (t *Tally) ObserveListing(k models.Key, l Listing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys = append(t.keys, KeyTally{Key: k, URLs: len(l.URLs), Pages: l.Pages, Truncated: l.Truncated})
}

// TallySnapshot is a point-in-time copy of a Tally.
type TallySnapshot struct {
	Fetches   int
	Attempts  int
	Success   int
	Terminal  int
	Exhausted int
	Keys      []KeyTally
}

// Retries is the number of attempts beyond the first of each fetch.
func (s TallySnapshot) Retries() int { return s.Attempts - s.Fetches }

// TruncatedKeys lists keys whose pagination ended on a failed fetch.
func (s TallySnapshot) TruncatedKeys() []models.Key {
	var out []models.Key
	for _, k := range s.Keys {
		if k.Truncated {
			out = append(out, k.Key)
		}
	}
	return out
}

func (t *Tally) Snapshot() TallySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TallySnapshot{
		Fetches:   t.fetches,
		Attempts:  t.attempts,
		Success:   t.byKind[models.FetchSuccess],
		Terminal:  t.byKind[models.FetchTerminal],
		Exhausted: t.byKind[models.FetchExhausted],
		Keys:      append([]KeyTally(nil), t.keys...),
	}
}
