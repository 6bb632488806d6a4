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

// Package heap implements the generic priority
// structures used by the merging operators:
// a binary min-heap (Queue) and a tournament
// tree of losers (LoserTree).
package heap

// Queue is a min-heap of T ordered by a
// comparison function. The zero value is not
// usable; construct a Queue with NewQueue.
type Queue[T any] struct {
	items []T
	less  func(x, y T) bool
}

// NewQueue constructs an empty Queue ordered by less.
func NewQueue[T any](less func(x, y T) bool) *Queue[T] {
	return &Queue[T]{less: less}
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int { return len(q.items) }

// Push adds item to the queue.
func (q *Queue[T]) Push(item T) {
	q.items = append(q.items, item)
	siftUp(q.items, len(q.items)-1, q.less)
}

// Top returns the "smallest" item without removing it.
// Top panics if the queue is empty.
func (q *Queue[T]) Top() T { return q.items[0] }

// Pop removes and returns the "smallest" item.
// Pop panics if the queue is empty.
func (q *Queue[T]) Pop() T {
	ret := q.items[0]
	last := len(q.items) - 1
	q.items[0] = q.items[last]
	var zero T
	q.items[last] = zero
	q.items = q.items[:last]
	if len(q.items) > 0 {
		siftDown(q.items, 0, q.less)
	}
	return ret
}

// FixTop restores the heap ordering after the
// ordering key of the top item has changed.
func (q *Queue[T]) FixTop() {
	if len(q.items) > 1 {
		siftDown(q.items, 0, q.less)
	}
}

func siftUp[T any](x []T, index int, less func(x, y T) bool) {
	for index > 0 {
		p := (index - 1) / 2
		if !less(x[index], x[p]) {
			break
		}
		x[p], x[index] = x[index], x[p]
		index = p
	}
}

func siftDown[T any](x []T, index int, less func(x, y T) bool) {
	for {
		left := (index * 2) + 1
		right := left + 1
		if left >= len(x) {
			break
		}
		c := left
		if len(x) > right && less(x[right], x[left]) {
			c = right
		}
		if !less(x[c], x[index]) {
			break
		}
		x[c], x[index] = x[index], x[c]
		index = c
	}
}
