package posting

import (
	"slices"
	"time"
)

// Complete reports whether p carries every field the shape requires.
func (s Shape) Complete(p Posting) bool {
	if s == ShapeEducation {
		return p.PostDate != "" && p.PostBoard != "" && p.PostName != "" && p.Link != ""
	}
	return p.PostDate != "" &&
		p.PostBoard != "" &&
		p.PostName != "" &&
		p.Qualification != "" &&
		p.AdvtNo != "" &&
		p.LastDate != "" &&
		p.Link != ""
}

// Normalize drops incomplete postings, removes duplicate identities keeping the
// first occurrence, and orders the result by post date, newest first.
func Normalize(shape Shape, in []Posting) []Posting {
	out := make([]Posting, 0, len(in))
	for _, p := range in {
		if shape.Complete(p) {
			out = append(out, p)
		}
	}
	out = Dedup(out)
	SortByPostDate(out)
	return out
}

// Dedup keeps the first posting for each identity, preserving order.
func Dedup(in []Posting) []Posting {
	seen := make(map[Identity]struct{}, len(in))
	out := make([]Posting, 0, len(in))
	for _, p := range in {
		id := p.Identity()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	return out
}

// SortByPostDate stable-sorts postings by parsed post date, descending.
// Postings with an unparsable date sort after every dated posting.
func SortByPostDate(postings []Posting) {
	type keyed struct {
		p  Posting
		t  time.Time
		ok bool
	}
	keys := make([]keyed, len(postings))
	for i, p := range postings {
		t, err := ParseDate(p.PostDate)
		keys[i] = keyed{p: p, t: t, ok: err == nil}
	}
	slices.SortStableFunc(keys, func(a, b keyed) int {
		switch {
		case a.ok && !b.ok:
			return -1
		case !a.ok && b.ok:
			return 1
		case !a.ok && !b.ok:
			return 0
		}
		return b.t.Compare(a.t)
	})
	for i := range keys {
		postings[i] = keys[i].p
	}
}
