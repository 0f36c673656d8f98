package tcr

// nextSlot scans slots cyclically, starting after cursor and visiting cursor
// itself last. It returns the index of the first occupied slot (-1 when every
// slot is empty), the cursor to persist, and how many empty slots were passed.
func nextSlot(slots []Conn, cursor int) (found int, next int, passed int) {
	count := len(slots)
	if count == 0 {
		return -1, cursor, 0
	}

	origin := cursor % count
	next = origin
	for {
		next = (next + 1) % count
		if slots[next] != nil {
			return next, next, passed
		}

		passed++
		if next == origin {
			return -1, next, passed
		}
	}
}

// firstEmpty returns the lowest empty slot index or -1 when the table is full.
func firstEmpty(slots []Conn) int {
	for i, conn := range slots {
		if conn == nil {
			return i
		}
	}

	return -1
}

// slotOf returns the slot holding conn or -1.
func slotOf(slots []Conn, conn Conn) int {
	for i, held := range slots {
		if held != nil && held == conn {
			return i
		}
	}

	return -1
}
