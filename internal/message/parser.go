package message

import (
	"strings"
)

// DefaultDelimiter separates the fields of a message accessibility label.
const DefaultDelimiter = ", "

// Time-preposition tokens that precede the clock time in the last label part.
const (
	PrepositionFR = " à "
	PrepositionEN = "at "
)

// Parser converts accessibility labels of the form
// "Sender, part, part, ..., sent à 14:32" into records.
type Parser struct {
	Delimiter       string
	TimePreposition string
}

// NewParser returns a parser for the client's UI locale ("fr" or "en").
// Unknown locales fall back to French, the client locale the selectors target.
func NewParser(locale string) Parser {
	p := Parser{Delimiter: DefaultDelimiter, TimePreposition: PrepositionFR}
	if strings.EqualFold(strings.TrimSpace(locale), "en") {
		p.TimePreposition = PrepositionEN
	}
	return p
}

// Parse splits label into a record. The second return value is false when the
// label does not describe a message: fewer than three parts, or any of sender,
// content and timestamp empty after parsing.
func (p Parser) Parse(label string) (Record, bool) {
	if label == "" {
		return Record{}, false
	}
	delim := p.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}

	parts := strings.Split(label, delim)
	if len(parts) < 3 {
		return Record{}, false
	}

	rec := Record{
		Sender: parts[0],
		// Only the first and last parts are structural, commas inside the
		// message body are restored here.
		Content:   strings.Join(parts[1:len(parts)-1], delim),
		Timestamp: p.clockTime(parts[len(parts)-1]),
	}
	if !rec.Valid() {
		return Record{}, false
	}
	return rec, true
}

func (p Parser) clockTime(last string) string {
	if p.TimePreposition == "" {
		return strings.TrimSpace(last)
	}
	segments := strings.Split(last, p.TimePreposition)
	return strings.TrimSpace(segments[len(segments)-1])
}
