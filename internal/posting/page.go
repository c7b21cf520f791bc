package posting

// Pagination bounds applied to category reads.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ClampPage bounds offset and limit. A non-positive limit falls back to
// DefaultLimit.
func ClampPage(offset, limit int) (int, int) {
	offset = max(offset, 0)
	if limit <= 0 {
		limit = DefaultLimit
	}
	return offset, min(limit, MaxLimit)
}

// Window returns the [offset, offset+limit) slice of snapshot as a Page. Data
// is never nil.
func Window(snapshot []Posting, offset, limit int) Page {
	total := len(snapshot)
	offset = min(max(offset, 0), total)
	end := min(offset+max(limit, 0), total)
	data := make([]Posting, end-offset)
	copy(data, snapshot[offset:end])
	return Page{Total: total, Data: data}
}
