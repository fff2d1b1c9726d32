package crawler

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownStrategy is returned when a traversal strategy name is not registered.
var ErrUnknownStrategy = errors.New("unknown crawl strategy")

// Strategy names a traversal order.
type Strategy string

const (
	// BFS visits pages level by level.
	BFS Strategy = "bfs"
	// DFS follows each branch as deep as allowed before backtracking.
	DFS Strategy = "dfs"
)

// frontier holds jobs waiting to be dispatched.
type frontier interface {
	Push(job CrawlJob)
	Pop() (CrawlJob, bool)
	Len() int
}

// strategies maps each strategy to its frontier constructor.
var strategies = map[Strategy]func() frontier{
	BFS: func() frontier { return &fifo{} },
	DFS: func() frontier { return &lifo{} },
}

// ParseStrategy resolves a configured strategy name.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := strategies[s]; !ok {
		return "", fmt.Errorf("%w: %q (available: %s)", ErrUnknownStrategy, name, strings.Join(Strategies(), ", "))
	}
	return s, nil
}

// Strategies lists the registered strategy names in sorted order.
func Strategies() []string {
	names := make([]string, 0, len(strategies))
	for s := range strategies {
		names = append(names, string(s))
	}
	slices.Sort(names)
	return names
}

func newFrontier(s Strategy) (frontier, error) {
	ctor, ok := strategies[s]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
	return ctor(), nil
}

type fifo struct {
	jobs []CrawlJob
	head int
}

func (q *fifo) Push(job CrawlJob) { q.jobs = append(q.jobs, job) }

func (q *fifo) Pop() (CrawlJob, bool) {
	if q.head >= len(q.jobs) {
		return CrawlJob{}, false
	}
	job := q.jobs[q.head]
	q.jobs[q.head] = CrawlJob{}
	q.head++
	// Reclaim the consumed prefix once it dominates the slice.
	if q.head > 64 && q.head*2 > len(q.jobs) {
		q.jobs = append([]CrawlJob(nil), q.jobs[q.head:]...)
		q.head = 0
	}
	return job, true
}

func (q *fifo) Len() int { return len(q.jobs) - q.head }

type lifo struct {
	jobs []CrawlJob
}

func (s *lifo) Push(job CrawlJob) { s.jobs = append(s.jobs, job) }

func (s *lifo) Pop() (CrawlJob, bool) {
	if len(s.jobs) == 0 {
		return CrawlJob{}, false
	}
	job := s.jobs[len(s.jobs)-1]
	s.jobs = s.jobs[:len(s.jobs)-1]
	return job, true
}

func (s *lifo) Len() int { return len(s.jobs) }
