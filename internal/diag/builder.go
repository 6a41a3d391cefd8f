package diag

import "cdsc/internal/source"

func New(sev Severity, code Code, loc source.Loc, home, msg string) Message {
	return Message{
		Severity: sev,
		Code:     code,
		Loc:      loc,
		Home:     home,
		Text:     msg,
		Notes:    nil,
	}
}

func NewError(code Code, loc source.Loc, home, msg string) Message {
	return New(SevError, code, loc, home, msg)
}

func (m Message) WithNote(loc source.Loc, msg string) Message {
	m.Notes = append(m.Notes, Note{Loc: loc, Msg: msg})
	return m
}
