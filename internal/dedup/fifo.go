// Package dedup implementa un set acotado para deduplicar señales y posts.
package dedup

// FIFO es un set de capacidad fija: al llenarse expulsa la entrada más antigua.
// Una clave expulsada vuelve a parecer nueva; con la capacidad dimensionada al
// volumen diario ese falso negativo solo afecta a entradas de días anteriores.
//
// No es seguro para uso concurrente: lo usa únicamente el loop que lo posee.
type FIFO[K comparable] struct {
	keys map[K]struct{}
	ring []K
	next int
	full bool
}

// NewFIFO crea un set con la capacidad dada (mínimo 1).
func NewFIFO[K comparable](capacity int) *FIFO[K] {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO[K]{
		keys: make(map[K]struct{}, capacity),
		ring: make([]K, capacity),
	}
}

// Contains indica si la clave está en el set.
func (f *FIFO[K]) Contains(k K) bool {
	_, ok := f.keys[k]
	return ok
}

// Add inserta la clave. Devuelve false si ya estaba.
func (f *FIFO[K]) Add(k K) bool {
	if f.Contains(k) {
		return false
	}
	if f.full {
		delete(f.keys, f.ring[f.next])
	}
	f.ring[f.next] = k
	f.keys[k] = struct{}{}
	f.next++
	if f.next == len(f.ring) {
		f.next = 0
		f.full = true
	}
	return true
}

// Len devuelve el número de claves.
func (f *FIFO[K]) Len() int {
	return len(f.keys)
}

// Cap devuelve la capacidad.
func (f *FIFO[K]) Cap() int {
	return len(f.ring)
}
