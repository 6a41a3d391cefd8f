package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"cdsc/internal/source"
)

type goldenMessage struct {
	Severity string
	Code     string
	Path     string
	Line     uint32
	Column   uint32
	Home     string
	Message  string
}

// FormatGoldenMessages renders messages into a stable, single-line-per-entry
// representation suitable for golden files. Messages are sorted
// deterministically and returned as a single string (empty when nothing
// remains).
func FormatGoldenMessages(msgs []Message, fs *source.FileSet, includeNotes bool) string {
	return formatMessages(msgs, fs, includeNotes)
}

// FormatShortMessages renders messages into a stable, single-line-per-entry
// representation intended for CLI short output.
func FormatShortMessages(msgs []Message, fs *source.FileSet, includeNotes bool) string {
	return formatMessages(msgs, fs, includeNotes)
}

func formatMessages(msgs []Message, fs *source.FileSet, includeNotes bool) string {
	if fs == nil || len(msgs) == 0 {
		return ""
	}

	rendered := make([]goldenMessage, 0, len(msgs))
	for i := range msgs {
		rendered = appendMessage(rendered, &msgs[i], fs, includeNotes)
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		mi, mj := rendered[i], rendered[j]
		if mi.Path != mj.Path {
			return mi.Path < mj.Path
		}
		if mi.Line != mj.Line {
			return mi.Line < mj.Line
		}
		if mi.Column != mj.Column {
			return mi.Column < mj.Column
		}
		if mi.Home != mj.Home {
			return mi.Home < mj.Home
		}
		if mi.Severity != mj.Severity {
			return mi.Severity < mj.Severity
		}
		if mi.Code != mj.Code {
			return mi.Code < mj.Code
		}
		return mi.Message < mj.Message
	})

	var b strings.Builder
	for i, m := range rendered {
		fmt.Fprintf(&b, "%s %s %s:%d:%d", m.Severity, m.Code, m.Path, m.Line, m.Column)
		if m.Home != "" {
			fmt.Fprintf(&b, " %s", m.Home)
		}
		fmt.Fprintf(&b, " %s", m.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func appendMessage(out []goldenMessage, m *Message, fs *source.FileSet, includeNotes bool) []goldenMessage {
	loc, ok := resolveLoc(fs, m.Loc)
	if ok {
		out = append(out, goldenMessage{
			Severity: severityLabel(m.Severity),
			Code:     m.Code.ID(),
			Path:     loc.Path,
			Line:     loc.Line,
			Column:   loc.Column,
			Home:     m.Home,
			Message:  sanitizeMessage(m.Text),
		})
	}

	if includeNotes {
		for _, note := range m.Notes {
			nloc, nok := resolveLoc(fs, note.Loc)
			if !nok {
				continue
			}
			out = append(out, goldenMessage{
				Severity: "note",
				Code:     m.Code.ID(),
				Path:     nloc.Path,
				Line:     nloc.Line,
				Column:   nloc.Column,
				Message:  sanitizeMessage(note.Msg),
			})
		}
	}

	return out
}

type resolvedLoc struct {
	Path   string
	Line   uint32
	Column uint32
}

func resolveLoc(fs *source.FileSet, loc source.Loc) (out resolvedLoc, ok bool) {
	defer func() {
		if recover() != nil {
			out = resolvedLoc{}
			ok = false
		}
	}()

	file := fs.Get(loc.File)
	return resolvedLoc{
		Path:   normalizeGoldenPath(file.FormatPath("relative", fs.BaseDir())),
		Line:   loc.Line,
		Column: loc.Col,
	}, true
}

func normalizeGoldenPath(path string) string {
	p := filepath.ToSlash(path)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	return p
}

func severityLabel(sev Severity) string {
	switch sev {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	default:
		return "info"
	}
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
