// Package paginate tracks page position for an incrementally loaded list.
package paginate

import "sync"

// Paginator tracks the total item count, the zero-based current page and the
// page size. It never clamps the upper end; callers consult IsAtLast.
type Paginator struct {
	mu      sync.Mutex
	total   int
	page    int
	perPage int
}

// New returns a paginator on page 0 with nothing fetched yet.
func New(perPage int) *Paginator {
	if perPage < 1 {
		perPage = 1
	}
	return &Paginator{perPage: perPage}
}

func (p *Paginator) SetTotal(n int) {
	if n < 0 {
		n = 0
	}
	p.mu.Lock()
	p.total = n
	p.mu.Unlock()
}

func (p *Paginator) SetPage(n int) {
	if n < 0 {
		n = 0
	}
	p.mu.Lock()
	p.page = n
	p.mu.Unlock()
}

// SetPerPage changes the page size without recomputing the page. Non-positive
// sizes are ignored.
func (p *Paginator) SetPerPage(n int) {
	if n < 1 {
		return
	}
	p.mu.Lock()
	p.perPage = n
	p.mu.Unlock()
}

func (p *Paginator) Next() {
	p.mu.Lock()
	p.page++
	p.mu.Unlock()
}

func (p *Paginator) Prev() {
	p.mu.Lock()
	if p.page > 0 {
		p.page--
	}
	p.mu.Unlock()
}

func (p *Paginator) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

func (p *Paginator) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

func (p *Paginator) PerPage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perPage
}

// Offset is the index of the first item on the current page.
func (p *Paginator) Offset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page * p.perPage
}

// IsAtLast reports whether the current page reaches the end of the list.
func (p *Paginator) IsAtLast() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return (p.page+1)*p.perPage >= p.total
}

// PageCount is the number of pages needed for the total, at least one.
func (p *Paginator) PageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total <= 0 {
		return 1
	}
	return (p.total + p.perPage - 1) / p.perPage
}
