package pipeline

import (
	"strings"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

// RegionPrefix prefixes the category tag of a regional source.
const RegionPrefix = "state_"

// Region is a regional variant of the government jobs listing.
type Region struct {
	Code string
	Name string
	URL  string
}

// Category returns the region's category tag.
func (r Region) Category() string {
	return RegionPrefix + strings.ToLower(r.Code)
}

// DefaultSources lists the fixed freejobalert.com categories.
func DefaultSources() []posting.Source {
	return []posting.Source{
		{Category: "latest", URL: "https://www.freejobalert.com/latest-notifications/", Shape: posting.ShapeSectioned},
		{Category: "defence", URL: "http://www.freejobalert.com/police-defence-jobs/", Shape: posting.ShapeTopic},
		{Category: "railway", URL: "http://www.freejobalert.com/railway-jobs/", Shape: posting.ShapeTopic},
		{Category: "engineering", URL: "http://www.freejobalert.com/engineering-jobs/", Shape: posting.ShapeTopic},
		{Category: "bank", URL: "http://www.freejobalert.com/bank-jobs/", Shape: posting.ShapeTopic},
		{Category: "teaching", URL: "http://www.freejobalert.com/teaching-faculty-jobs/", Shape: posting.ShapeTopic},
		{Category: "education", URL: "https://www.freejobalert.com/education/", Shape: posting.ShapeEducation},
		{Category: "other", URL: "http://www.freejobalert.com/government-jobs/", Shape: posting.ShapeTopic},
	}
}

// ExpandSources appends one topic-shaped source per region. Regions without a
// code or URL are skipped, as are categories already present.
func ExpandSources(sources []posting.Source, regions []Region) []posting.Source {
	out := make([]posting.Source, 0, len(sources)+len(regions))
	seen := make(map[string]struct{}, cap(out))
	add := func(s posting.Source) {
		if _, dup := seen[s.Category]; dup {
			return
		}
		seen[s.Category] = struct{}{}
		out = append(out, s)
	}
	for _, s := range sources {
		add(s)
	}
	for _, r := range regions {
		if r.Code == "" || r.URL == "" {
			continue
		}
		add(posting.Source{Category: r.Category(), URL: r.URL, Shape: posting.ShapeTopic})
	}
	return out
}
