// Package extractor turns fetched listing and detail pages into postings.
//
// Three listing layouts are supported, selected by posting.Shape:
//   - topic: one table.lattbl whose first row is a header; cells 0..6 map to
//     postDate, postBoard, postName, qualification, advtNo, lastDate and the
//     detail link.
//   - sectioned: several table.lattbl, each optionally preceded by an
//     h4.latsec heading; rows are tr.lattrbord and carry the active heading.
//   - education: h4.edtitl headings each followed by a table.edtbl of tr.edthr
//     rows (date, update text, detail link).
//
// Detail pages are parsed by ParseDetailLinks (topic and sectioned) and
// ParseEducationDetail (education).
package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const listingColumns = 7

// Extract parses a listing page of the given shape. Rows that cannot be
// mapped are skipped; a page without the expected structure is a
// posting.ErrParse.
func Extract(shape posting.Shape, body []byte) ([]posting.Posting, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", posting.ErrParse, err)
	}
	switch shape {
	case posting.ShapeTopic:
		return extractTopic(doc)
	case posting.ShapeSectioned:
		return extractSectioned(doc)
	case posting.ShapeEducation:
		return extractEducation(doc)
	default:
		return nil, fmt.Errorf("%w: unsupported shape %q", posting.ErrParse, shape)
	}
}

func extractTopic(doc *goquery.Document) ([]posting.Posting, error) {
	tables := doc.Find("table.lattbl")
	if tables.Length() == 0 {
		return nil, fmt.Errorf("%w: no listing table", posting.ErrParse)
	}
	var out []posting.Posting
	tables.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		if p, ok := rowToPosting(row); ok {
			out = append(out, p)
		}
	})
	return out, nil
}

func extractSectioned(doc *goquery.Document) ([]posting.Posting, error) {
	tables := doc.Find("table.lattbl")
	if tables.Length() == 0 {
		return nil, fmt.Errorf("%w: no listing table", posting.ErrParse)
	}
	var (
		out            []posting.Posting
		currentSection string
	)
	tables.Each(func(_ int, table *goquery.Selection) {
		if heading := table.PrevFiltered("h4.latsec"); heading.Length() > 0 {
			currentSection = cellText(heading)
		}
		table.Find("tr.lattrbord").Each(func(_ int, row *goquery.Selection) {
			p, ok := rowToPosting(row)
			if !ok {
				return
			}
			p.Section = currentSection
			out = append(out, p)
		})
	})
	return out, nil
}

func extractEducation(doc *goquery.Document) ([]posting.Posting, error) {
	headings := doc.Find("h4.edtitl")
	if headings.Length() == 0 {
		return nil, fmt.Errorf("%w: no education sections", posting.ErrParse)
	}
	var out []posting.Posting
	headings.Each(func(_ int, heading *goquery.Selection) {
		section := cellText(heading)
		table := heading.NextFiltered("table.edtbl")
		if table.Length() == 0 {
			return
		}
		table.Find("tr.edthr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 3 {
				return
			}
			link, _ := cells.Eq(2).Find("a").Attr("href")
			out = append(out, posting.Posting{
				PostDate:  cellText(cells.Eq(0)),
				PostBoard: section,
				PostName:  cellText(cells.Eq(1)),
				Link:      strings.TrimSpace(link),
				Section:   section,
				Education: &posting.EducationDetails{},
			})
		})
	})
	return out, nil
}

func rowToPosting(row *goquery.Selection) (posting.Posting, bool) {
	cells := row.Find("td")
	if cells.Length() < listingColumns {
		return posting.Posting{}, false
	}
	link, _ := cells.Eq(6).Find("a").Attr("href")
	lastDate := cellText(cells.Eq(5))
	return posting.Posting{
		PostDate:      cellText(cells.Eq(0)),
		PostBoard:     cellText(cells.Eq(1)),
		PostName:      cellText(cells.Eq(2)),
		Qualification: cellText(cells.Eq(3)),
		AdvtNo:        cellText(cells.Eq(4)),
		LastDate:      lastDate,
		Deadline:      posting.ParseDeadline(lastDate),
		Link:          strings.TrimSpace(link),
	}, true
}

func cellText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
