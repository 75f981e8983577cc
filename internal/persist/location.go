package persist

import "sync"

// Location is the URL tier: the query string is read once when a persistor is
// created and rewritten in place on every save, without navigating.
type Location interface {
	QueryString() string
	ReplaceQuery(encoded string)
}

// StaticLocation is an in-memory Location.
type StaticLocation struct {
	mu       sync.Mutex
	query    string
	replaced int
}

func NewStaticLocation(query string) *StaticLocation {
	return &StaticLocation{query: query}
}

func (l *StaticLocation) QueryString() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

func (l *StaticLocation) ReplaceQuery(encoded string) {
	l.mu.Lock()
	l.query = encoded
	l.replaced++
	l.mu.Unlock()
}

// Replacements counts ReplaceQuery calls.
func (l *StaticLocation) Replacements() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaced
}
