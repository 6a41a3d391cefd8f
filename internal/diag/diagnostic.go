package diag

import (
	"cdsc/internal/source"
)

type Note struct {
	Loc source.Loc
	Msg string
}

// Message is a single compiler message.
// Home is the semantic position in the model
// (entity:"S.Books"/element:"title"); it stays stable even when the
// file position is empty or imprecise.
type Message struct {
	Severity Severity
	Code     Code
	Text     string
	Loc      source.Loc
	Home     string
	Notes    []Note
}
