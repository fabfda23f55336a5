package dag

// IndexHeap is a min-heap of declaration indices for container/heap. It hands
// out ready nodes earliest-declared first.
type IndexHeap []int

func (h IndexHeap) Len() int           { return len(h) }
func (h IndexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h IndexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *IndexHeap) Push(x any) { *h = append(*h, x.(int)) }

func (h *IndexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
