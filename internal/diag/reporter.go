package diag

import "cdsc/internal/source"

// Reporter — минимальный контракт получения сообщений от фаз.
// Реализации: BagReporter (кладёт в Bag), ClassifyingReporter (реестр
// severity), DedupReporter (подавление дубликатов).
type Reporter interface {
	Report(code Code, sev Severity, loc source.Loc, home, msg string, notes []Note)
}

// ReportBuilder accumulates message details before emitting to Reporter.
type ReportBuilder struct {
	reporter Reporter
	msg      Message
	emitted  bool
}

// NewReportBuilder constructs a builder bound to Reporter.
func NewReportBuilder(r Reporter, sev Severity, code Code, loc source.Loc, home, msg string) *ReportBuilder {
	return &ReportBuilder{
		reporter: r,
		msg: Message{
			Severity: sev,
			Code:     code,
			Text:     msg,
			Loc:      loc,
			Home:     home,
		},
	}
}

// ReportError is a shortcut for SevError messages.
func ReportError(r Reporter, code Code, loc source.Loc, home, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevError, code, loc, home, msg)
}

// ReportWarning is a shortcut for SevWarning messages.
func ReportWarning(r Reporter, code Code, loc source.Loc, home, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevWarning, code, loc, home, msg)
}

// ReportInfo is a shortcut for SevInfo messages.
func ReportInfo(r Reporter, code Code, loc source.Loc, home, msg string) *ReportBuilder {
	return NewReportBuilder(r, SevInfo, code, loc, home, msg)
}

// WithNote appends a note to the message.
func (b *ReportBuilder) WithNote(loc source.Loc, msg string) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.msg.Notes = append(b.msg.Notes, Note{Loc: loc, Msg: msg})
	return b
}

// Emit sends the message to the underlying reporter exactly once.
func (b *ReportBuilder) Emit() {
	if b == nil || b.emitted {
		return
	}
	if b.reporter != nil {
		b.reporter.Report(b.msg.Code, b.msg.Severity, b.msg.Loc, b.msg.Home, b.msg.Text, b.msg.Notes)
	}
	b.emitted = true
}

// Message returns the accumulated message without emitting.
func (b *ReportBuilder) Message() Message {
	if b == nil {
		return Message{}
	}
	return b.msg
}

// BagReporter — адаптер, который пишет в *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(code Code, sev Severity, loc source.Loc, home, msg string, notes []Note) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(Message{
		Severity: sev, Code: code, Text: msg,
		Loc: loc, Home: home, Notes: notes,
	})
}

// NopReporter молча глотает сообщения.
type NopReporter struct{}

func (NopReporter) Report(Code, Severity, source.Loc, string, string, []Note) {}
