package usecase

import (
	"container/heap"
	"sort"
)

// candidate: кандидат в рекомендации при обходе каталога
type candidate struct {
	vec        CatalogVector
	similarity float64
	seq        int // порядок обхода каталога
}

// better задаёт порядок выдачи: близость по убыванию, популярность по убыванию, порядок обхода по возрастанию.
func better(a, b candidate) bool {
	if a.similarity != b.similarity {
		return a.similarity > b.similarity
	}

	pa, pb := popularityOf(a.vec.Popularity), popularityOf(b.vec.Popularity)
	if pa != pb {
		return pa > pb
	}

	return a.seq < b.seq
}

func popularityOf(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

// worstFirst: min-heap, в корне которого худший из удерживаемых кандидатов
type worstFirst []candidate

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK удерживает k лучших кандидатов за O(log k) на вставку, не храня весь каталог.
type topK struct {
	k int
	h worstFirst
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(worstFirst, 0, k)}
}

func (t *topK) Offer(c candidate) {
	if t.k <= 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, c)
		return
	}
	if better(c, t.h[0]) {
		t.h[0] = c
		heap.Fix(&t.h, 0)
	}
}

func (t *topK) Len() int {
	return len(t.h)
}

// Sorted возвращает кандидатов от лучшего к худшему
func (t *topK) Sorted() []candidate {
	out := make([]candidate, len(t.h))
	copy(out, t.h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}
