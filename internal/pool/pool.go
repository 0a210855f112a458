// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package pool keeps constant sized scratch slices around between images,
// to reduce memory allocation overhead when processing batches.
package pool

import (
	"runtime"
	"sync"
)

// Pools of constant sized slices of element type T, keyed by size
type Sized[T any] struct {
	sync.RWMutex
	m map[int]*sync.Pool
}

// Creates a new, empty set of pools
func NewSized[T any]() *Sized[T] {
	return &Sized[T]{m: make(map[int]*sync.Pool)}
}

// Returns the pool for slices of the given size
func (s *Sized[T]) pool(size int) *sync.Pool {
	s.RLock()
	p := s.m[size]
	s.RUnlock()
	if p != nil {
		return p
	}
	s.Lock()
	defer s.Unlock()
	if p = s.m[size]; p == nil {
		p = &sync.Pool{
			New: func() interface{} {
				return make([]T, size)
			},
		}
		s.m[size] = p
	}
	return p
}

// Retrieves a slice of given size from the pool. Contents are undefined.
func (s *Sized[T]) Get(size int) []T {
	return s.pool(size).Get().([]T)
}

// Retrieves a slice of given size from the pool, with all elements zeroed
func (s *Sized[T]) GetZeroed(size int) []T {
	arr := s.Get(size)
	var zero T
	for i := range arr {
		arr[i] = zero
	}
	return arr
}

// Returns a slice to the pool. The caller must not use it afterwards.
func (s *Sized[T]) Put(arr []T) {
	s.pool(cap(arr)).Put(arr[:cap(arr)])
}

// Drops all pooled slices
func (s *Sized[T]) Clear() {
	s.Lock()
	s.m = make(map[int]*sync.Pool)
	s.Unlock()
}

// Scratch flags, e.g. the visited set of the mask flood fill
var Bools = NewSized[bool]()

// Scratch indices, e.g. the queue of the mask flood fill
var Ints = NewSized[int]()

// Clears all memory pools and triggers garbage collection
func ClearPools() {
	Bools.Clear()
	Ints.Clear()
	runtime.GC()
}
