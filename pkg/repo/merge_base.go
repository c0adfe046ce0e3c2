package repo

import (
	"container/heap"
	"fmt"

	"github.com/odvcencio/gitlet/pkg/object"
)

const (
	maxMergeBaseSteps = 1_000_000
	maxMergeBaseDepth = 1_000_000
)

// These vars allow tests to tighten safety limits without affecting
// production defaults.
var (
	mergeBaseStepsLimit = maxMergeBaseSteps
	mergeBaseDepthLimit = maxMergeBaseDepth
)

func mergeBaseLimits() (maxSteps int, maxDepth int) {
	return clampLimit(mergeBaseStepsLimit, maxMergeBaseSteps), clampLimit(mergeBaseDepthLimit, maxMergeBaseDepth)
}

func clampLimit(limit, hardMax int) int {
	if limit <= 0 || limit > hardMax {
		return hardMax
	}
	return limit
}

func mergeBaseStepsLimitError(limit int) error {
	return fmt.Errorf("find merge base: traversal exceeded maximum steps (%d)", limit)
}

func mergeBaseDepthLimitError(limit int) error {
	return fmt.Errorf("find merge base: traversal exceeded maximum depth (%d)", limit)
}

// historyWalk caches commits and generation numbers for one traversal.
// The generation of a root commit is 1; any other commit is one more than
// its highest parent.
type historyWalk struct {
	repo        *Repo
	commits     map[object.Hash]*object.CommitObj
	generations map[object.Hash]uint64
}

func (r *Repo) newHistoryWalk() *historyWalk {
	return &historyWalk{
		repo:        r,
		commits:     make(map[object.Hash]*object.CommitObj),
		generations: make(map[object.Hash]uint64),
	}
}

func (w *historyWalk) commit(h object.Hash) (*object.CommitObj, error) {
	if c, ok := w.commits[h]; ok {
		return c, nil
	}
	c, err := w.repo.Store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("find merge base: read commit %s: %w", h, err)
	}
	w.commits[h] = c
	return c, nil
}

func (w *historyWalk) generation(h object.Hash) (uint64, error) {
	return w.generationRec(h, make(map[object.Hash]bool))
}

func (w *historyWalk) generationRec(h object.Hash, visiting map[object.Hash]bool) (uint64, error) {
	if h == "" {
		return 0, nil
	}
	if g, ok := w.generations[h]; ok {
		return g, nil
	}
	if visiting[h] {
		return 0, fmt.Errorf("find merge base: commit graph cycle detected at %s", h)
	}

	visiting[h] = true
	defer delete(visiting, h)

	c, err := w.commit(h)
	if err != nil {
		return 0, err
	}
	var maxParent uint64
	for _, p := range c.Parents {
		pg, err := w.generationRec(p, visiting)
		if err != nil {
			return 0, err
		}
		maxParent = max(maxParent, pg)
	}
	w.generations[h] = maxParent + 1
	return maxParent + 1, nil
}

type generationItem struct {
	hash       object.Hash
	generation uint64
}

// generationHeap pops the highest generation first, lowest hash on ties.
type generationHeap []generationItem

func (h generationHeap) Len() int { return len(h) }

func (h generationHeap) Less(i, j int) bool {
	if h[i].generation == h[j].generation {
		return h[i].hash < h[j].hash
	}
	return h[i].generation > h[j].generation
}

func (h generationHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *generationHeap) Push(x any) { *h = append(*h, x.(generationItem)) }

func (h *generationHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// IsAncestor reports whether ancestor is reachable from descendant through
// parent links. A commit is its own ancestor.
func (r *Repo) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	return r.newHistoryWalk().isAncestor(ancestor, descendant)
}

func (w *historyWalk) isAncestor(ancestor, descendant object.Hash) (bool, error) {
	if ancestor == "" || descendant == "" {
		return false, nil
	}
	if ancestor == descendant {
		return true, nil
	}
	ga, err := w.generation(ancestor)
	if err != nil {
		return false, err
	}
	gd, err := w.generation(descendant)
	if err != nil {
		return false, err
	}
	if ga >= gd {
		return false, nil
	}

	maxSteps, _ := mergeBaseLimits()
	seen := map[object.Hash]bool{descendant: true}
	queue := generationHeap{{hash: descendant, generation: gd}}
	for steps := 1; queue.Len() > 0; steps++ {
		if steps > maxSteps {
			return false, mergeBaseStepsLimitError(maxSteps)
		}
		item := heap.Pop(&queue).(generationItem)
		if item.hash == ancestor {
			return true, nil
		}
		// Nothing below the ancestor's generation can lead back up to it.
		if item.generation <= ga {
			continue
		}
		c, err := w.commit(item.hash)
		if err != nil {
			return false, err
		}
		for _, p := range c.Parents {
			if seen[p] {
				continue
			}
			seen[p] = true
			pg, err := w.generation(p)
			if err != nil {
				return false, err
			}
			if pg >= ga {
				heap.Push(&queue, generationItem{hash: p, generation: pg})
			}
		}
	}
	return false, nil
}

// FindMergeBase returns the best common ancestor of a and b, or "" when
// their histories share nothing. Candidates are commits reachable from
// both tips; the highest generation wins, then the smallest summed
// distance to the two tips, then the lowest hash.
func (r *Repo) FindMergeBase(a, b object.Hash) (object.Hash, error) {
	if a == "" || b == "" {
		return "", nil
	}
	if a == b {
		return a, nil
	}

	w := r.newHistoryWalk()
	ok, err := w.isAncestor(a, b)
	if err != nil {
		return "", err
	}
	if ok {
		return a, nil
	}
	if ok, err = w.isAncestor(b, a); err != nil {
		return "", err
	} else if ok {
		return b, nil
	}
	return w.mergeBase(a, b)
}

type mergeBaseCandidate struct {
	hash       object.Hash
	generation uint64
	distance   int
}

func (c mergeBaseCandidate) betterThan(o mergeBaseCandidate) bool {
	if o.hash == "" {
		return true
	}
	if c.generation != o.generation {
		return c.generation > o.generation
	}
	if c.distance != o.distance {
		return c.distance < o.distance
	}
	return c.hash < o.hash
}

// mergeBase walks both histories best-first by generation. Each side
// records the distance at which it first reached a commit; a commit seen
// by both sides is a candidate. The walk stops once neither queue can
// produce a commit at or above the best candidate's generation.
func (w *historyWalk) mergeBase(a, b object.Hash) (object.Hash, error) {
	maxSteps, maxDepth := mergeBaseLimits()

	genA, err := w.generation(a)
	if err != nil {
		return "", err
	}
	genB, err := w.generation(b)
	if err != nil {
		return "", err
	}

	// Index 0 walks from a, index 1 from b.
	depth := [2]map[object.Hash]int{{a: 0}, {b: 0}}
	queues := [2]generationHeap{{{hash: a, generation: genA}}, {{hash: b, generation: genB}}}

	var best mergeBaseCandidate
	consider := func(h object.Hash, g uint64) {
		cand := mergeBaseCandidate{hash: h, generation: g, distance: depth[0][h] + depth[1][h]}
		if cand.betterThan(best) {
			best = cand
		}
	}

	for steps := 1; queues[0].Len() > 0 || queues[1].Len() > 0; steps++ {
		if steps > maxSteps {
			return "", mergeBaseStepsLimitError(maxSteps)
		}

		side := 1
		switch {
		case queues[1].Len() == 0:
			side = 0
		case queues[0].Len() == 0:
			side = 1
		case queues[0][0].generation > queues[1][0].generation:
			side = 0
		case queues[0][0].generation == queues[1][0].generation && queues[0][0].hash <= queues[1][0].hash:
			side = 0
		}
		if best.hash != "" && queues[side][0].generation < best.generation {
			break
		}

		item := heap.Pop(&queues[side]).(generationItem)
		itemDepth := depth[side][item.hash]
		if itemDepth > maxDepth {
			return "", mergeBaseDepthLimitError(maxDepth)
		}
		if _, ok := depth[1-side][item.hash]; ok {
			consider(item.hash, item.generation)
			// Ancestors of a common commit are worse candidates.
			continue
		}

		c, err := w.commit(item.hash)
		if err != nil {
			return "", err
		}
		for _, p := range c.Parents {
			if _, seen := depth[side][p]; seen {
				continue
			}
			pg, err := w.generation(p)
			if err != nil {
				return "", err
			}
			if best.hash != "" && pg < best.generation {
				continue
			}
			if itemDepth+1 > maxDepth {
				return "", mergeBaseDepthLimitError(maxDepth)
			}
			depth[side][p] = itemDepth + 1
			heap.Push(&queues[side], generationItem{hash: p, generation: pg})
			if _, ok := depth[1-side][p]; ok {
				consider(p, pg)
			}
		}
	}
	return best.hash, nil
}
