// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package heap

// LoserTree is a tournament tree over k sources
// identified by the indices 0..k-1. The caller
// owns the sources; the tree only stores indices
// and consults less to compare the current keys
// of two sources.
//
// Exhausted sources lose against every live
// source. Ties are won by the lower index, so a
// merge driven by the tree is stable with respect
// to source order.
type LoserTree struct {
	k    int
	less func(a, b int) bool
	done []bool
	// node[0] holds the overall winner;
	// node[1:k] hold the loser of the match
	// played at each internal node
	node []int
}

// NewLoserTree builds a tree over k sources.
// exhausted reports, for each source, whether
// it has no current key.
func NewLoserTree(k int, less func(a, b int) bool, exhausted func(i int) bool) *LoserTree {
	if k <= 0 {
		panic("heap: loser tree needs at least one source")
	}
	t := &LoserTree{
		k:    k,
		less: less,
		done: make([]bool, k),
		node: make([]int, k),
	}
	for i := range t.done {
		t.done[i] = exhausted(i)
	}
	// play the initial tournament bottom-up;
	// leaves live at positions k..2k-1
	win := make([]int, 2*k)
	for i := 0; i < k; i++ {
		win[k+i] = i
	}
	for n := k - 1; n >= 1; n-- {
		l, r := win[2*n], win[2*n+1]
		if t.beats(l, r) {
			win[n], t.node[n] = l, r
		} else {
			win[n], t.node[n] = r, l
		}
	}
	if k == 1 {
		t.node[0] = 0
	} else {
		t.node[0] = win[1]
	}
	return t
}

// Len returns the number of sources.
func (t *LoserTree) Len() int { return t.k }

// Min returns the index of the source
// holding the smallest current key.
// If every source is exhausted, the returned
// source is exhausted as well.
func (t *LoserTree) Min() int { return t.node[0] }

// Exhausted returns whether source i
// has been marked as exhausted.
func (t *LoserTree) Exhausted(i int) bool { return t.done[i] }

// Replay must be called after the key of
// the current minimum source i has changed
// (or the source has run out, in which case
// exhausted should be true).
func (t *LoserTree) Replay(i int, exhausted bool) {
	if i != t.node[0] {
		panic("heap: Replay of a source that is not the current minimum")
	}
	t.done[i] = exhausted
	winner := i
	for n := (i + t.k) / 2; n >= 1; n /= 2 {
		if t.beats(t.node[n], winner) {
			t.node[n], winner = winner, t.node[n]
		}
	}
	t.node[0] = winner
}

// beats returns whether source a
// is ordered strictly before source b.
func (t *LoserTree) beats(a, b int) bool {
	switch {
	case t.done[a] && t.done[b]:
		return a < b
	case t.done[a]:
		return false
	case t.done[b]:
		return true
	case t.less(a, b):
		return true
	case t.less(b, a):
		return false
	default:
		return a < b
	}
}
