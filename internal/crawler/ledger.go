package crawler

// Ledger records every URL the engine has attempted during one crawl along
// with its outcome. It is owned by a single crawl and is not safe for
// concurrent use.
type Ledger struct {
	key      func(string) string
	order    []string
	outcomes map[string]*PageOutcome
	okCount  int
}

// NewLedger builds a ledger. With canonicalize unset URLs compare as exact
// strings.
func NewLedger(canonicalize bool) *Ledger {
	l := &Ledger{
		key:      func(s string) string { return s },
		outcomes: make(map[string]*PageOutcome),
	}
	if canonicalize {
		l.key = canonicalKey
	}
	return l
}

// MarkVisited records url as pending. It returns false and changes nothing
// when url is already present.
func (l *Ledger) MarkVisited(url string, depth int) bool {
	k := l.key(url)
	if _, ok := l.outcomes[k]; ok {
		return false
	}
	l.outcomes[k] = &PageOutcome{URL: url, Outcome: OutcomePending, Depth: depth}
	l.order = append(l.order, k)
	return true
}

// IsVisited reports whether url has been marked.
func (l *Ledger) IsVisited(url string) bool {
	_, ok := l.outcomes[l.key(url)]
	return ok
}

// Record sets the final outcome for a previously marked url.
func (l *Ledger) Record(url string, outcome Outcome, status int, errMsg string) {
	entry, ok := l.outcomes[l.key(url)]
	if !ok {
		return
	}
	switch {
	case entry.Outcome != OutcomeOK && outcome == OutcomeOK:
		l.okCount++
	case entry.Outcome == OutcomeOK && outcome != OutcomeOK:
		l.okCount--
	}
	entry.Outcome = outcome
	entry.Status = status
	entry.Error = errMsg
}

// Count returns the number of URLs currently recorded with outcome.
func (l *Ledger) Count(outcome Outcome) int {
	if outcome == OutcomeOK {
		return l.okCount
	}
	n := 0
	for _, entry := range l.outcomes {
		if entry.Outcome == outcome {
			n++
		}
	}
	return n
}

// Len returns the number of marked URLs.
func (l *Ledger) Len() int {
	return len(l.order)
}

// Outcomes returns a copy of every entry in the order it was marked.
func (l *Ledger) Outcomes() []PageOutcome {
	out := make([]PageOutcome, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, *l.outcomes[k])
	}
	return out
}
