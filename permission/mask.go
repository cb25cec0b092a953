package permission

// Mask is a 128-bit grant bitmask. Bit positions come from a [Registry].
type Mask struct {
	lo uint64
	hi uint64
}

// Has reports whether bit is set. Out-of-range bits are never set.
func (m Mask) Has(bit int) bool {
	if bit < 0 || bit >= MaxBits {
		return false
	}
	if bit < 64 {
		return m.lo&(1<<bit) != 0
	}
	return m.hi&(1<<(bit-64)) != 0
}

func (m *Mask) set(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	if bit < 64 {
		m.lo |= 1 << bit
	} else {
		m.hi |= 1 << (bit - 64)
	}
}

// Empty reports whether no bit is set.
func (m Mask) Empty() bool {
	return m.lo == 0 && m.hi == 0
}
