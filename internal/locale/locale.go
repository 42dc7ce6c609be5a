// Package locale renders the few server-generated chat lines in the room's language.
package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const correctKey = "Answered correctly (+%d)"

var supported = []language.Tag{language.English, language.Indonesian}

func init() {
	_ = message.SetString(language.English, correctKey, "Answered correctly (+%d)")
	_ = message.SetString(language.Indonesian, correctKey, "Menjawab dengan benar (+%d)")
}

// Notifier formats notices for one configured language.
type Notifier struct {
	printer *message.Printer
	tag     language.Tag
}

// New picks the closest supported language to raw (e.g. "id", "en-US"), defaulting to Indonesian.
func New(raw string) *Notifier {
	tag := language.Indonesian
	if parsed, err := language.Parse(raw); err == nil {
		matched, _, confidence := language.NewMatcher(supported).Match(parsed)
		if confidence != language.No {
			tag = matched
		}
	}
	base, _ := tag.Base()
	tag = language.Make(base.String())
	return &Notifier{printer: message.NewPrinter(tag), tag: tag}
}

// Tag is the language notices are rendered in.
func (n *Notifier) Tag() language.Tag {
	return n.tag
}

// Correct is the chat line that replaces a correct answer.
func (n *Notifier) Correct(points int) string {
	return n.printer.Sprintf(correctKey, points)
}
