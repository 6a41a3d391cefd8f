package diagfmt

import (
	"encoding/json"
	"io"

	"cdsc/internal/diag"
	"cdsc/internal/source"
)

// LocationJSON представляет местоположение в файле для JSON
type LocationJSON struct {
	File    string `json:"file"`
	Line    uint32 `json:"line,omitempty"`
	Col     uint32 `json:"col,omitempty"`
	EndLine uint32 `json:"end_line,omitempty"`
	EndCol  uint32 `json:"end_col,omitempty"`
}

// NoteJSON представляет дополнительную заметку для JSON
type NoteJSON struct {
	Message  string        `json:"message"`
	Location *LocationJSON `json:"location,omitempty"`
}

// DiagnosticJSON представляет диагностику в JSON формате
type DiagnosticJSON struct {
	Severity string        `json:"severity"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Home     string        `json:"home,omitempty"`
	Location *LocationJSON `json:"location,omitempty"`
	Notes    []NoteJSON    `json:"notes,omitempty"`
}

// DiagnosticsOutput представляет корневую структуру JSON вывода
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
}

// makeLocation создаёт LocationJSON из Loc. Сообщения без файловой
// позиции (позиция есть только в Home) отдают nil, поле опускается.
func makeLocation(loc source.Loc, fs *source.FileSet, pathMode PathMode) *LocationJSON {
	if fs == nil || loc.Empty() || int(loc.File) >= fs.Len() {
		return nil
	}
	f := fs.Get(loc.File)

	// Форматируем путь согласно режиму
	var path string
	switch pathMode {
	case PathModeAbsolute:
		path = f.FormatPath("absolute", "")
	case PathModeRelative:
		path = f.FormatPath("relative", fs.BaseDir())
	case PathModeBasename:
		path = f.FormatPath("basename", "")
	case PathModeAuto:
		path = f.FormatPath("auto", "")
	default:
		path = f.Path
	}

	return &LocationJSON{
		File:    path,
		Line:    loc.Line,
		Col:     loc.Col,
		EndLine: loc.EndLine,
		EndCol:  loc.EndCol,
	}
}

// BuildDiagnosticsOutput формирует структуру JSON-вывода без сериализации.
func BuildDiagnosticsOutput(bag *diag.Bag, fs *source.FileSet, opts JSONOpts) DiagnosticsOutput {
	msgs := bag.Messages()
	maxItems := len(msgs)
	if opts.Max > 0 && opts.Max < maxItems {
		maxItems = opts.Max
	}

	diagnostics := make([]DiagnosticJSON, 0, maxItems)
	for i := range maxItems {
		m := &msgs[i]

		diagJSON := DiagnosticJSON{
			Severity: m.Severity.String(),
			Code:     m.Code.ID(),
			Message:  m.Text,
			Home:     m.Home,
			Location: makeLocation(m.Loc, fs, opts.PathMode),
		}

		// машинный payload obs-timings живёт в note, поэтому тайминги
		// выводятся даже без IncludeNotes
		includeNotes := opts.IncludeNotes || m.Code == diag.ObsTimings
		if includeNotes && len(m.Notes) > 0 {
			diagJSON.Notes = make([]NoteJSON, len(m.Notes))
			for j, note := range m.Notes {
				diagJSON.Notes[j] = NoteJSON{
					Message:  note.Msg,
					Location: makeLocation(note.Loc, fs, opts.PathMode),
				}
			}
		}

		diagnostics = append(diagnostics, diagJSON)
	}

	return DiagnosticsOutput{
		Diagnostics: diagnostics,
		Count:       len(diagnostics),
	}
}

// JSON форматирует диагностики в JSON формат.
// Выводит массив диагностик с полной информацией о местоположении и заметках.
func JSON(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	output := BuildDiagnosticsOutput(bag, fs, opts)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
