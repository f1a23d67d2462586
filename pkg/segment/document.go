// Package segment turns the free-form text a vision model returns into an
// ordered, typed document: a title, section headings, key/value fields,
// paragraphs and a single trailing list of facts.
//
// Segmentation is deterministic and never fails. Text that does not match any
// of the recognised shapes degrades to paragraphs.
package segment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies a block variant.
type Kind string

const (
	KindTitle     Kind = "title"
	KindHeading   Kind = "heading"
	KindField     Kind = "field"
	KindParagraph Kind = "paragraph"
	KindFacts     Kind = "facts"
)

// Block is one typed unit of a Document. Which fields are meaningful
// depends on Kind: Text for title/heading/paragraph, Key and Value for
// field, Items for facts.
type Block struct {
	Kind  Kind     `json:"type"`
	Text  string   `json:"text,omitempty"`
	Key   string   `json:"key,omitempty"`
	Value string   `json:"value"`
	Items []string `json:"items,omitempty"`
}

// Title returns a title block.
func Title(text string) Block { return Block{Kind: KindTitle, Text: text} }

// Heading returns a section heading block.
func Heading(text string) Block { return Block{Kind: KindHeading, Text: text} }

// Field returns a key/value block.
func Field(key, value string) Block { return Block{Kind: KindField, Key: key, Value: value} }

// Paragraph returns a paragraph block.
func Paragraph(text string) Block { return Block{Kind: KindParagraph, Text: text} }

// Facts returns a fact list block. The items are copied.
func Facts(items ...string) Block {
	return Block{Kind: KindFacts, Items: append([]string(nil), items...)}
}

// MarshalJSON omits "value" for blocks that are not fields.
func (b Block) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind  Kind     `json:"type"`
		Text  string   `json:"text,omitempty"`
		Key   string   `json:"key,omitempty"`
		Value *string  `json:"value,omitempty"`
		Items []string `json:"items,omitempty"`
	}
	w := wire{Kind: b.Kind, Text: b.Text, Key: b.Key, Items: b.Items}
	if b.Kind == KindField {
		v := b.Value
		w.Value = &v
	}
	return json.Marshal(w)
}

// String is a compact debug form, e.g. Field("Species","Clownfish").
func (b Block) String() string {
	switch b.Kind {
	case KindTitle:
		return fmt.Sprintf("Title(%q)", b.Text)
	case KindHeading:
		return fmt.Sprintf("SectionHeading(%q)", b.Text)
	case KindField:
		return fmt.Sprintf("KeyValue(%q, %q)", b.Key, b.Value)
	case KindParagraph:
		return fmt.Sprintf("Paragraph(%q)", b.Text)
	case KindFacts:
		return fmt.Sprintf("FactList(%q)", b.Items)
	}
	return fmt.Sprintf("Block(%s)", b.Kind)
}

// Document is an ordered sequence of blocks. At most one facts block
// exists, and when present it is last.
type Document struct {
	Blocks []Block `json:"blocks"`
}

// Len returns the number of blocks.
func (d *Document) Len() int { return len(d.Blocks) }

// Empty reports whether the document has no blocks.
func (d *Document) Empty() bool { return len(d.Blocks) == 0 }

// Title returns the text of the first title block, or "".
func (d *Document) Title() string {
	for _, b := range d.Blocks {
		if b.Kind == KindTitle {
			return b.Text
		}
	}
	return ""
}

// Fields returns every key/value block in order.
func (d *Document) Fields() []Block {
	var out []Block
	for _, b := range d.Blocks {
		if b.Kind == KindField {
			out = append(out, b)
		}
	}
	return out
}

// Facts returns the items of the trailing fact list, or nil.
func (d *Document) Facts() []string {
	if n := len(d.Blocks); n > 0 && d.Blocks[n-1].Kind == KindFacts {
		return append([]string(nil), d.Blocks[n-1].Items...)
	}
	return nil
}

// PlainText renders the document back to line-oriented text: titles,
// headings and paragraphs as lines, fields as "key: value", and the fact
// list as an "Interesting Facts" line followed by one line per fact.
// Segment(d.PlainText()) yields an equivalent document.
func (d *Document) PlainText() string {
	var sb strings.Builder
	for _, b := range d.Blocks {
		switch b.Kind {
		case KindTitle, KindHeading, KindParagraph:
			sb.WriteString(b.Text)
			sb.WriteByte('\n')
		case KindField:
			sb.WriteString(b.Key)
			sb.WriteString(": ")
			sb.WriteString(b.Value)
			sb.WriteByte('\n')
			if b.Value == "" {
				// blank line for the segmenter to borrow as the value
				sb.WriteByte('\n')
			}
		case KindFacts:
			sb.WriteString(factsHeading)
			sb.WriteByte('\n')
			for _, item := range b.Items {
				sb.WriteString(item)
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}
