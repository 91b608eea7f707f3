package source

// Segment is the slice of one record type covered by a page
type Segment struct {
	Type   string
	Offset int
	Limit  int
}

// Paginate maps a global page over several record types laid end to end.
// counts holds the number of records per type in the same order as types.
func Paginate(types []string, counts []int, pageSize, pageNumber int) (segments []Segment, total int, hasMore bool) {
	for _, c := range counts {
		total += c
	}
	if pageSize <= 0 || pageNumber < 1 {
		return nil, total, false
	}

	start := (pageNumber - 1) * pageSize
	end := start + pageSize
	base := 0
	for i, t := range types {
		c := counts[i]
		lo := max(start, base)
		hi := min(end, base+c)
		if lo < hi {
			segments = append(segments, Segment{Type: t, Offset: lo - base, Limit: hi - lo})
		}
		base += c
	}
	return segments, total, end < total
}
