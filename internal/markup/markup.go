// Package markup turns the HTML fragments stored by the legacy editor into
// plain text and image references.
package markup

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SegmentKind tells text and image segments apart.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentImage
)

// Segment is one piece of a fragment, in source order.
type Segment struct {
	Kind SegmentKind
	// Text holds normalized text for text segments, the image source for images.
	Text string
}

var (
	// Only tag-shaped text: a bracket that does not open a name is literal.
	residualTagRe = regexp.MustCompile(`</?[A-Za-z!][^<>]*>`)
	spacesRe      = regexp.MustCompile(`[ \t\f\v]+`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
)

// Split tokenizes an HTML fragment. Line breaks and block ends become
// newlines, entities are decoded, non-breaking spaces become plain spaces,
// and every <img src> becomes its own image segment between the text around it.
func Split(fragment string) []Segment {
	var (
		out []Segment
		buf strings.Builder
	)
	flush := func() {
		if t := Tidy(buf.String()); t != "" {
			out = append(out, Segment{Kind: SegmentText, Text: t})
		}
		buf.Reset()
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			return out

		case html.TextToken:
			buf.Write(z.Text())

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Br:
				buf.WriteByte('\n')
			case atom.Img:
				src := attr(tok, "src")
				if src == "" {
					continue
				}
				flush()
				out = append(out, Segment{Kind: SegmentImage, Text: src})
			case atom.P, atom.Div, atom.Li, atom.Tr:
				if buf.Len() > 0 && !strings.HasSuffix(buf.String(), "\n") {
					buf.WriteByte('\n')
				}
			}

		case html.EndTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.P, atom.Div, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3:
				buf.WriteByte('\n')
			}
		}
	}
}

// Text returns the plain text of a fragment, dropping images.
func Text(fragment string) string {
	var parts []string
	for _, s := range Split(fragment) {
		if s.Kind == SegmentText {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Tidy normalizes whitespace and removes any tag text left after decoding.
func Tidy(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = residualTagRe.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spacesRe.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
