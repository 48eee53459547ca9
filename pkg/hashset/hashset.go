// Package hashset is a minimal generic set.
package hashset

type Set[T comparable] map[T]struct{}

func NewSet[T comparable]() Set[T] {
	return map[T]struct{}{}
}

func (vs Set[T]) Set(v T) {
	vs[v] = struct{}{}
}

func (vs Set[T]) Has(v T) bool {
	_, ok := vs[v]
	return ok
}

func (vs Set[T]) Delete(v T) {
	delete(vs, v)
}
