package segment

import (
	"strings"
)

// Reserved names. Comparison is case-insensitive.
const (
	titlePhrase     = "fish information"
	sectionSpecies  = "species"
	sectionHabitat  = "habitat"
	sectionFacts    = "interesting facts"
	factsHeading    = "Interesting Facts"
	emphasisMarkers = "*"
)

var reservedSections = map[string]bool{
	sectionSpecies: true,
	sectionHabitat: true,
	sectionFacts:   true,
}

// Segmenter holds the reserved title phrases. The zero value recognises
// only "Fish Information".
type Segmenter struct {
	// Titles are additional lines (matched case-insensitively) that
	// produce a title block.
	Titles []string
}

// Segment splits raw model output into a Document using the default
// Segmenter.
func Segment(raw string) *Document {
	return Segmenter{}.Segment(raw)
}

// Segment splits raw into a Document in a single pass over its lines.
//
// Lines are cleaned (emphasis markers removed, up to two trailing colons
// removed, whitespace trimmed) and empty lines skipped. A title phrase
// becomes a title block; "species" and "habitat" become headings and
// switch the current section; "interesting facts" switches the current
// section without a heading. Outside the facts section a line containing a
// colon becomes a field split at the first colon, borrowing the following
// line as its value when the value is empty; other lines become
// paragraphs. Inside the facts section every line is collected, and the
// collected facts form one list appended after everything else.
func (s Segmenter) Segment(raw string) *Document {
	doc := &Document{Blocks: []Block{}}
	if raw == "" {
		return doc
	}

	lines := strings.Split(raw, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	var (
		current string
		facts   []string
	)

	for i := 0; i < len(lines); i++ {
		line := clean(lines[i])
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case s.isTitle(lower):
			doc.Blocks = append(doc.Blocks, Title(line))

		case reservedSections[lower]:
			current = lower
			if current != sectionFacts {
				doc.Blocks = append(doc.Blocks, Heading(line))
			}

		case current == sectionFacts:
			facts = append(facts, line)

		case strings.Contains(line, ":"):
			key, value, _ := strings.Cut(line, ":")
			key, value = clean(key), clean(value)
			if value == "" {
				// The value sits on the next line. Consume it even if it
				// is blank; there is no further look-ahead.
				if i+1 < len(lines) {
					value = clean(lines[i+1])
				}
				i++
			}
			doc.Blocks = append(doc.Blocks, Field(key, value))

		default:
			doc.Blocks = append(doc.Blocks, Paragraph(line))
		}
	}

	if len(facts) > 0 {
		doc.Blocks = append(doc.Blocks, Facts(facts...))
	}
	return doc
}

func (s Segmenter) isTitle(lower string) bool {
	if lower == titlePhrase {
		return true
	}
	for _, t := range s.Titles {
		if lower == strings.ToLower(strings.TrimSpace(t)) {
			return true
		}
	}
	return false
}

// clean removes emphasis markers, then at most two trailing colons, then
// surrounding whitespace. The order matters: "Species: " keeps its colon
// because the space shields it from the colon strip.
func clean(s string) string {
	s = strings.ReplaceAll(s, emphasisMarkers, "")
	for n := 0; n < 2 && strings.HasSuffix(s, ":"); n++ {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}
