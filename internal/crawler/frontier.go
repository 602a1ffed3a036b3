package crawler

// Frontier holds entries that are waiting to be fetched. Its removal order is
// the traversal strategy.
type Frontier interface {
	Push(entry Entry)
	// PushAll adds entries in the order a page returned them.
	PushAll(entries ...Entry)
	// Pop removes the next entry. ok is false when the frontier is empty.
	Pop() (entry Entry, ok bool)
	Len() int
}

// NewFrontier returns the frontier matching strategy.
func NewFrontier(strategy Strategy) Frontier {
	if strategy == StrategyDepthFirst {
		return NewStack()
	}
	return NewQueue()
}

// Queue is a FIFO frontier used for breadth-first and non-recursive crawls.
type Queue struct {
	items []Entry
	head  int
}

// NewQueue returns an empty FIFO frontier.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends entry to the back of the queue.
func (q *Queue) Push(entry Entry) {
	q.items = append(q.items, entry)
}

// PushAll appends entries to the back of the queue.
func (q *Queue) PushAll(entries ...Entry) {
	q.items = append(q.items, entries...)
}

// Pop removes the entry at the front of the queue.
func (q *Queue) Pop() (Entry, bool) {
	if q.head >= len(q.items) {
		return Entry{}, false
	}
	e := q.items[q.head]
	q.items[q.head] = Entry{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return e, true
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	return len(q.items) - q.head
}

// Stack is a LIFO frontier. PushAll pushes in reverse so the first child a
// page returned is the first one popped, which yields the same preorder as
// recursing over each page's links.
type Stack struct {
	items []Entry
}

// NewStack returns an empty LIFO frontier.
func NewStack() *Stack {
	return &Stack{}
}

// Push places entry on top of the stack.
func (s *Stack) Push(entry Entry) {
	s.items = append(s.items, entry)
}

// PushAll pushes entries so that entries[0] ends up on top.
func (s *Stack) PushAll(entries ...Entry) {
	for i := len(entries) - 1; i >= 0; i-- {
		s.items = append(s.items, entries[i])
	}
}

// Pop removes the top entry.
func (s *Stack) Pop() (Entry, bool) {
	if len(s.items) == 0 {
		return Entry{}, false
	}
	last := len(s.items) - 1
	e := s.items[last]
	s.items = s.items[:last]
	return e, true
}

// Len returns the number of stacked entries.
func (s *Stack) Len() int {
	return len(s.items)
}
