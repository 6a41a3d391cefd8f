package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"cdsc/internal/diag"
	"cdsc/internal/source"
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Messages() (ожидается bag.Sort() заранее).
// Для каждого сообщения печатает:
//
//	<path>:<line>:<col>: <SEV> <code>: <text>
//	   12 | title : LargeString;
//	      |         ^~~~~~~~~~~
//	  in: entity:"S.Books"/element:"title"
//
// затем Notes в том же формате. Сообщения без файловой позиции
// печатаются без префикса пути; строка "in:" держит семантический адрес.
// Цвет включается опцией.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	if bag == nil || bag.Len() == 0 {
		return
	}
	p := prettyPrinter{w: w, fs: fs, opts: opts}
	msgs := bag.Messages()
	for i := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		p.message(&msgs[i])
	}
}

type prettyPrinter struct {
	w    io.Writer
	fs   *source.FileSet
	opts PrettyOpts
}

func (p *prettyPrinter) message(m *diag.Message) {
	paint := p.severityColor(m.Severity)
	head := fmt.Sprintf("%s %s: %s", paint.Sprint(m.Severity.String()), m.Code.ID(), m.Text)
	if loc, ok := p.resolve(m.Loc); ok {
		fmt.Fprintf(p.w, "%s:%d:%d: %s\n", p.path(loc.file), loc.line, loc.col, head)
		p.snippet(loc, paint)
	} else {
		fmt.Fprintf(p.w, "%s\n", head)
	}
	if m.Home != "" {
		fmt.Fprintf(p.w, "  in: %s\n", m.Home)
	}
	if !p.opts.ShowNotes {
		return
	}
	for _, n := range m.Notes {
		if loc, ok := p.resolve(n.Loc); ok {
			fmt.Fprintf(p.w, "  note: %s:%d:%d: %s\n", p.path(loc.file), loc.line, loc.col, n.Msg)
		} else {
			fmt.Fprintf(p.w, "  note: %s\n", n.Msg)
		}
	}
}

type prettyLoc struct {
	file *source.File
	line uint32
	col  uint32
	// end — конечная колонка на той же строке; 0, если конец неизвестен
	// или лежит на другой строке.
	end uint32
}

func (p *prettyPrinter) resolve(loc source.Loc) (prettyLoc, bool) {
	if p.fs == nil || loc.Empty() || int(loc.File) >= p.fs.Len() {
		return prettyLoc{}, false
	}
	out := prettyLoc{file: p.fs.Get(loc.File), line: loc.Line, col: loc.Col}
	if loc.EndLine == loc.Line && loc.EndCol > loc.Col {
		out.end = loc.EndCol
	}
	return out, true
}

func (p *prettyPrinter) path(f *source.File) string {
	switch p.opts.PathMode {
	case PathModeAbsolute:
		return f.FormatPath("absolute", "")
	case PathModeRelative:
		return f.FormatPath("relative", p.fs.BaseDir())
	case PathModeBasename:
		return f.FormatPath("basename", "")
	default:
		return f.FormatPath("auto", "")
	}
}

// snippet печатает строку с ошибкой, контекст вокруг неё и подчёркивание.
// Файлы, зарегистрированные только по пути из $location, контента не
// имеют — для них сниппет пропускается.
func (p *prettyPrinter) snippet(loc prettyLoc, paint *color.Color) {
	if loc.file.Content == nil {
		return
	}
	ctx := int(p.opts.Context)
	if ctx < 0 {
		ctx = 0
	}
	first := max(int(loc.line)-ctx, 1)
	last := min(int(loc.line)+ctx, len(loc.file.LineIdx)+1)
	for n := first; n <= last; n++ {
		text := strings.ReplaceAll(loc.file.GetLine(uint32(n)), "\t", " ")
		if uint32(n) != loc.line {
			fmt.Fprintf(p.w, "%5d | %s\n", n, p.clip(text))
			continue
		}
		// строка с кареткой не обрезается, иначе каретка уедет за край
		fmt.Fprintf(p.w, "%5d | %s\n", n, text)
		p.caret(text, loc, paint)
	}
}

func (p *prettyPrinter) caret(text string, loc prettyLoc, paint *color.Color) {
	col := int(loc.col)
	if col < 1 {
		col = 1
	}
	width := 1
	if loc.end != 0 {
		width = int(loc.end) - int(loc.col)
	}
	marker := "^"
	if width > 1 {
		marker += strings.Repeat("~", width-1)
	}
	pad := strings.Repeat(" ", prefixWidth(text, col-1))
	fmt.Fprintf(p.w, "      | %s%s\n", pad, paint.Sprint(marker))
}

func (p *prettyPrinter) clip(text string) string {
	limit := int(p.opts.Width)
	if limit == 0 || runewidth.StringWidth(text) <= limit {
		return text
	}
	if limit <= 3 {
		return runewidth.Truncate(text, limit, "")
	}
	return runewidth.Truncate(text, limit-3, "...")
}

func (p *prettyPrinter) severityColor(sev diag.Severity) *color.Color {
	var c *color.Color
	switch sev {
	case diag.SevError:
		c = color.New(color.FgRed, color.Bold)
	case diag.SevWarning:
		c = color.New(color.FgYellow, color.Bold)
	default:
		c = color.New(color.FgCyan, color.Bold)
	}
	if p.opts.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// prefixWidth возвращает экранную ширину первых runes рун строки:
// колонки из $location считаются в символах, а подчёркивание — в
// клетках терминала.
func prefixWidth(text string, runes int) int {
	w := 0
	for _, r := range text {
		if runes == 0 {
			break
		}
		runes--
		w += runewidth.RuneWidth(r)
	}
	return w
}
