package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

// DetailLinks are the well-known hrefs found on a posting's detail page.
type DetailLinks struct {
	ApplyOnline     string
	Notification    string
	OfficialWebsite string
}

// Complete reports whether every link was found.
func (d DetailLinks) Complete() bool {
	return d.ApplyOnline != "" && d.Notification != "" && d.OfficialWebsite != ""
}

// Apply copies the links into p.
func (d DetailLinks) Apply(p posting.Posting) posting.Posting {
	p.ApplyOnline = d.ApplyOnline
	p.Notification = d.Notification
	p.OfficialWebsite = d.OfficialWebsite
	return p
}

// ParseDetailLinks scans rows that contain an anchor and matches the first
// cell, case-sensitively, against the three labels. The first row wins per
// label.
func ParseDetailLinks(body []byte) (DetailLinks, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return DetailLinks{}, fmt.Errorf("%w: parse detail html: %w", posting.ErrParse, err)
	}
	var links DetailLinks
	doc.Find("tr").Has("a").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		label := cellText(row.Find("td").First())
		href, ok := row.Find("a").First().Attr("href")
		if !ok || href == "" {
			return true
		}
		switch {
		case strings.Contains(label, "Apply Online") && links.ApplyOnline == "":
			links.ApplyOnline = href
		case strings.Contains(label, "Notification") && links.Notification == "":
			links.Notification = href
		case strings.Contains(label, "Official Website") && links.OfficialWebsite == "":
			links.OfficialWebsite = href
		}
		return !links.Complete()
	})
	return links, nil
}

const importantLinksLabel = "Important Links"

var linkDenylist = map[string]struct{}{
	"Download Mobile App":    {},
	"Join Telegram Channel":  {},
	"Join WhatsApp Channel":  {},
	"Join Whatsapp Channel":  {},
	"Join Whats App Channel": {},
}

// ParseEducationDetail reads the education detail schema: the "Important
// Links" table and the labeled fee, date, age and qualification paragraphs.
// Pages without the links table are not education detail pages and yield
// empty details.
func ParseEducationDetail(body []byte) (posting.EducationDetails, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return posting.EducationDetails{}, fmt.Errorf("%w: parse detail html: %w", posting.ErrParse, err)
	}
	links, found := importantLinks(doc)
	if !found {
		return posting.EducationDetails{}, nil
	}
	details := posting.EducationDetails{ImportantLinks: links}

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cell := row.Find("td").First()
		header := cell.Find("p").Has("strong").First()
		if header.Length() == 0 {
			return
		}
		label := strings.ToLower(cellText(header.Find("strong")))
		header.Remove()
		lines := splitLines(cell)

		switch {
		case strings.Contains(label, "fee"):
			details.ApplicationFee = lines
		case strings.Contains(label, "date"):
			details.ImportantDates = lines
		case strings.Contains(label, "age"):
			details.AgeLimit = lines
		case strings.Contains(label, "qualification"):
			details.Qualification = lines
		}
	})
	return details, nil
}

// importantLinks collects label/href pairs from the table titled "Important
// Links", skipping denylisted entries and everything up to the title row.
// Repeated labels keep their first position and last href. found reports
// whether the table exists.
func importantLinks(doc *goquery.Document) (links []posting.Link, found bool) {
	table := doc.Find("table").Has(`strong:contains("Important Links")`)
	if table.Length() == 0 {
		return nil, false
	}
	index := map[string]int{}
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		label := cellText(row.Find("td").First())
		if _, denied := linkDenylist[label]; denied {
			return
		}
		href, _ := row.Find("a").First().Attr("href")
		if i, seen := index[label]; seen {
			links[i].Href = href
			return
		}
		index[label] = len(links)
		links = append(links, posting.Link{Label: label, Href: href})
	})
	if i, ok := index[importantLinksLabel]; ok {
		links = links[i+1:]
	}
	return links, true
}

// splitLines renders a cell's text with <br> and block boundaries as line
// breaks and returns the non-empty trimmed lines.
func splitLines(cell *goquery.Selection) []string {
	cell.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithNodes(newline())
	})
	cell.Find("p, li, div").Each(func(_ int, block *goquery.Selection) {
		block.AppendNodes(newline())
	})
	text := strings.NewReplacer("\t", " ", "\u00a0", " ").Replace(cell.Text())

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func newline() *html.Node {
	return &html.Node{Type: html.TextNode, Data: "\n"}
}
