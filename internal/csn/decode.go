package csn

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"cdsc/internal/diag"
	"cdsc/internal/source"
)

// ErrInvalidCSN сигнализирует, что файл не является корректным
// CSN-документом и в модель не попал.
var ErrInvalidCSN = errors.New("invalid csn document")

// DecodeFile декодирует один CSN-документ в модель.
//
// Декодер идёт по токенам, а не через map: порядок определений и
// элементов — часть семантики модели и обязан пережить раунд-трип.
// Имена нормализуются в NFC и каноникализируются через интернер, чтобы
// одинаковые идентификаторы из разных файлов сравнивались по значению
// одной строки. Структурные дефекты (кривой ref, неизвестный kind)
// репортятся и не останавливают декодирование; ошибка возвращается
// только если JSON не разбирается вовсе.
func (m *Model) DecodeFile(content []byte, fileID source.FileID, fs *source.FileSet, names *source.Interner, rep diag.Reporter) error {
	d := &decoder{
		model:  m,
		fs:     fs,
		names:  names,
		rep:    rep,
		fileID: fileID,
	}
	d.dec = json.NewDecoder(bytes.NewReader(content))
	d.dec.UseNumber()
	return d.document()
}

type decoder struct {
	model  *Model
	fs     *source.FileSet
	names  *source.Interner
	rep    diag.Reporter
	fileID source.FileID
	dec    *json.Decoder

	// home — семантическая позиция текущего узла для сообщений.
	home string
}

// ident нормализует идентификатор в NFC и возвращает каноническую копию.
func (d *decoder) ident(s string) string {
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	if d.names == nil {
		return s
	}
	return d.names.Canonical(s)
}

// errLoc — приблизительная позиция текущего токена для ошибок разбора.
func (d *decoder) errLoc() source.Loc {
	file := d.fs.Get(d.fileID)
	if file == nil || file.Content == nil {
		return source.Loc{File: d.fileID}
	}
	off := d.dec.InputOffset()
	if off < 0 {
		off = 0
	}
	return file.LocAt(uint32(off)) // #nosec G115 -- содержимое файла ограничено uint32
}

func (d *decoder) syntax(err error) error {
	return d.syntaxf("%v", err)
}

func (d *decoder) syntaxf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if d.home != "" {
		msg = fmt.Sprintf("%s (at %s)", msg, d.home)
	}
	diag.ReportError(d.rep, diag.CSNInvalidJSON, d.errLoc(), d.home, msg).Emit()
	return fmt.Errorf("%w: %s", ErrInvalidCSN, msg)
}

// --- низкоуровневые помощники над потоком токенов ---

func (d *decoder) delim(want rune) error {
	tok, err := d.dec.Token()
	if err != nil {
		return d.syntax(err)
	}
	if delim, ok := tok.(json.Delim); !ok || rune(delim) != want {
		return d.syntaxf("expected %q, got %v", string(want), tok)
	}
	return nil
}

func (d *decoder) str() (string, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return "", d.syntax(err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", d.syntaxf("expected string, got %v", tok)
	}
	return s, nil
}

func (d *decoder) boolean() (bool, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return false, d.syntax(err)
	}
	switch v := tok.(type) {
	case bool:
		return v, nil
	case nil:
		// null трактуем как «флаг присутствует»
		return true, nil
	}
	return false, d.syntaxf("expected boolean, got %v", tok)
}

func (d *decoder) integer() (int, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return 0, d.syntax(err)
	}
	num, ok := tok.(json.Number)
	if !ok {
		return 0, d.syntaxf("expected number, got %v", tok)
	}
	n, err := num.Int64()
	if err != nil {
		return 0, d.syntaxf("expected integer, got %s", num)
	}
	return int(n), nil
}

// skip пропускает следующее значение целиком.
func (d *decoder) skip() error {
	depth := 0
	for {
		tok, err := d.dec.Token()
		if err != nil {
			return d.syntax(err)
		}
		if delim, ok := tok.(json.Delim); ok {
			switch rune(delim) {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
		if depth == 0 {
			return nil
		}
	}
}

func (d *decoder) stringArray(normalize bool) ([]string, error) {
	if err := d.delim('['); err != nil {
		return nil, err
	}
	var out []string
	for d.dec.More() {
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		if normalize {
			s = d.ident(s)
		}
		out = append(out, s)
	}
	return out, d.delim(']')
}

// --- документ ---

func (d *decoder) document() error {
	if err := d.delim('{'); err != nil {
		return err
	}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return err
		}
		switch key {
		case "definitions":
			if err := d.definitions(); err != nil {
				return err
			}
		case "$version":
			v, err := d.str()
			if err != nil {
				return err
			}
			if d.model.Version == "" {
				d.model.Version = v
			}
		case "meta":
			if err := d.meta(); err != nil {
				return err
			}
		case "$sources":
			sources, err := d.stringArray(false)
			if err != nil {
				return err
			}
			for _, s := range sources {
				d.fs.AddPath(s)
				d.model.Sources = append(d.model.Sources, s)
			}
		default:
			// Неизвестные верхнеуровневые ключи молча пропускаем
			if err := d.skip(); err != nil {
				return err
			}
		}
	}
	return d.delim('}')
}

func (d *decoder) meta() error {
	if err := d.delim('{'); err != nil {
		return err
	}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return err
		}
		switch key {
		case "creator":
			if d.model.Meta.Creator, err = d.str(); err != nil {
				return err
			}
		case "flavor":
			if d.model.Meta.Flavor, err = d.str(); err != nil {
				return err
			}
		default:
			if err := d.skip(); err != nil {
				return err
			}
		}
	}
	return d.delim('}')
}

// --- определения ---

func (d *decoder) definitions() error {
	if err := d.delim('{'); err != nil {
		return err
	}
	for d.dec.More() {
		rawName, err := d.str()
		if err != nil {
			return err
		}
		name := d.ident(rawName)

		def, err := d.definition(name)
		if err != nil {
			return err
		}
		if def == nil {
			continue
		}
		if existing, dup := d.model.Definitions.Get(name); dup {
			// Повторное определение: первое выигрывает
			diag.ReportError(d.rep, diag.DefDuplicate, def.Loc, def.Home(),
				fmt.Sprintf("duplicate definition of %q", name)).
				WithNote(existing.Loc, "first defined here").
				Emit()
			continue
		}
		d.model.Definitions.Set(name, def)
	}
	return d.delim('}')
}

// definition декодирует одно определение. Тело сперва снимается как
// json.RawMessage: если kind окажется неизвестным, сырые байты
// переносятся в модель непрозрачно, вместо того чтобы потеряться.
func (d *decoder) definition(name string) (*Definition, error) {
	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		return nil, d.syntax(err)
	}

	prevHome := d.home
	d.home = fmt.Sprintf("definition:%q", name)
	defer func() { d.home = prevHome }()

	sub := json.NewDecoder(bytes.NewReader(raw))
	sub.UseNumber()
	outer := d.dec
	d.dec = sub
	defer func() { d.dec = outer }()

	def := &Definition{Kind: KindType, Name: name, Loc: source.Loc{File: d.fileID}}
	kindSeen := ""

	if err := d.delim('{'); err != nil {
		return nil, err
	}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		switch key {
		case "kind":
			ks, err := d.str()
			if err != nil {
				return nil, err
			}
			kindSeen = ks
			if kind, ok := ParseKind(ks); ok {
				def.Kind = kind
			} else {
				def.Kind = KindUnknown
			}
		case "includes":
			if def.Includes, err = d.stringArray(true); err != nil {
				return nil, err
			}
		case "params":
			if def.Params, err = d.elementDict("param"); err != nil {
				return nil, err
			}
		case "returns":
			if def.Returns, err = d.element(""); err != nil {
				return nil, err
			}
		case "query":
			if def.Query, err = d.query(); err != nil {
				return nil, err
			}
		case "projection":
			// Сокращённая форма: тело SELECT без обёртки
			sel, err := d.selectBody()
			if err != nil {
				return nil, err
			}
			def.Query = &Query{Kind: QuerySelect, Select: sel}
		case "abstract":
			if def.Abstract, err = d.boolean(); err != nil {
				return nil, err
			}
		case "$tableConstraints":
			if def.TableConstraints, err = d.tableConstraints(); err != nil {
				return nil, err
			}
		default:
			if err := d.memberKey(key, defBody{def}); err != nil {
				return nil, err
			}
		}
	}
	if err := d.delim('}'); err != nil {
		return nil, err
	}

	if def.Kind == KindUnknown {
		def.RawKind = kindSeen
		def.Raw = raw
		diag.ReportWarning(d.rep, diag.CSNUnknownKind, def.Loc, def.Home(),
			fmt.Sprintf("unknown definition kind %q, carried verbatim", kindSeen)).Emit()
	}
	return def, nil
}

// memberTarget абстрагирует общие поля Definition и Element:
// обе структуры несут тип, фасеты, ассоциативные поля и аннотации.
type memberTarget interface {
	setLoc(source.Loc)
	setType(string, RefID)
	facets() *TypeFacets
	setTarget(string)
	setCardinality(*Cardinality)
	setOn(Xpr)
	setKeys([]KeyRef)
	setElements(*Dict[*Element])
	setItems(*Element)
	setEnum(*Dict[*EnumValue])
	setFlag(key string, v bool) bool
	setDefault(*Expr)
	annotate(name string, v Value)
}

type defBody struct{ d *Definition }

func (b defBody) setLoc(l source.Loc)            { b.d.Loc = l }
func (b defBody) setType(t string, r RefID)      { b.d.Type, b.d.TypeRef = t, r }
func (b defBody) facets() *TypeFacets            { return &b.d.Facets }
func (b defBody) setTarget(t string)             { b.d.Target = t }
func (b defBody) setCardinality(c *Cardinality)  { b.d.Cardinality = c }
func (b defBody) setOn(x Xpr)                    { b.d.On = x }
func (b defBody) setKeys(k []KeyRef)             { b.d.Keys = k }
func (b defBody) setElements(e *Dict[*Element])  { b.d.Elements = e }
func (b defBody) setItems(e *Element)            { b.d.Items = e }
func (b defBody) setEnum(e *Dict[*EnumValue])    { b.d.Enum = e }
func (b defBody) setDefault(e *Expr)             { /* определения default не несут */ }
func (b defBody) annotate(name string, v Value)  { b.d.SetAnnotation(name, v) }

func (b defBody) setFlag(key string, v bool) bool {
	// kind-независимые флаги определений
	switch key {
	case "key", "notNull", "virtual":
		// на определениях не встречаются, но не считаем это дефектом
		return true
	}
	return false
}

type elemBody struct{ e *Element }

func (b elemBody) setLoc(l source.Loc)           { b.e.Loc = l }
func (b elemBody) setType(t string, r RefID)     { b.e.Type, b.e.TypeRef = t, r }
func (b elemBody) facets() *TypeFacets           { return &b.e.Facets }
func (b elemBody) setTarget(t string)            { b.e.Target = t }
func (b elemBody) setCardinality(c *Cardinality) { b.e.Cardinality = c }
func (b elemBody) setOn(x Xpr)                   { b.e.On = x }
func (b elemBody) setKeys(k []KeyRef)            { b.e.Keys = k }
func (b elemBody) setElements(e *Dict[*Element]) { b.e.Elements = e }
func (b elemBody) setItems(e *Element)           { b.e.Items = e }
func (b elemBody) setEnum(e *Dict[*EnumValue])   { b.e.Enum = e }
func (b elemBody) setDefault(e *Expr)            { b.e.Default = e }
func (b elemBody) annotate(name string, v Value) { b.e.SetAnnotation(name, v) }

func (b elemBody) setFlag(key string, v bool) bool {
	switch key {
	case "key":
		b.e.Key = v
	case "notNull":
		b.e.NotNull = v
	case "virtual":
		b.e.Virtual = v
	default:
		return false
	}
	return true
}

// memberKey декодирует один общий ключ тела определения либо элемента.
func (d *decoder) memberKey(key string, body memberTarget) error {
	switch key {
	case "type":
		return d.typeValue(body)
	case "length":
		n, err := d.integer()
		if err != nil {
			return err
		}
		body.facets().Length = n
	case "precision":
		n, err := d.integer()
		if err != nil {
			return err
		}
		body.facets().Precision = n
	case "scale":
		n, err := d.integer()
		if err != nil {
			return err
		}
		body.facets().Scale = n
	case "srid":
		n, err := d.integer()
		if err != nil {
			return err
		}
		body.facets().SRID = n
	case "target":
		t, err := d.str()
		if err != nil {
			return err
		}
		body.setTarget(d.ident(t))
	case "cardinality":
		c, err := d.cardinality()
		if err != nil {
			return err
		}
		body.setCardinality(c)
	case "on":
		x, err := d.xpr()
		if err != nil {
			return err
		}
		body.setOn(x)
	case "keys":
		keys, err := d.keyRefs()
		if err != nil {
			return err
		}
		body.setKeys(keys)
	case "elements":
		els, err := d.elementDict("element")
		if err != nil {
			return err
		}
		body.setElements(els)
	case "items":
		item, err := d.element("")
		if err != nil {
			return err
		}
		body.setItems(item)
	case "enum":
		enum, err := d.enumDict()
		if err != nil {
			return err
		}
		body.setEnum(enum)
	case "default":
		e, err := d.exprToken(nil)
		if err != nil {
			return err
		}
		body.setDefault(&e)
	case "$location":
		loc, err := d.location()
		if err != nil {
			return err
		}
		body.setLoc(loc)
	case "key", "notNull", "virtual":
		v, err := d.boolean()
		if err != nil {
			return err
		}
		body.setFlag(key, v)
	default:
		if strings.HasPrefix(key, "@") {
			v, err := d.value()
			if err != nil {
				return err
			}
			body.annotate(key, v)
			return nil
		}
		// Неизвестный ключ: толерантный читатель пропускает
		return d.skip()
	}
	return nil
}

// typeValue: "type" бывает строкой либо ссылкой на тип элемента.
func (d *decoder) typeValue(body memberTarget) error {
	tok, err := d.dec.Token()
	if err != nil {
		return d.syntax(err)
	}
	switch t := tok.(type) {
	case string:
		body.setType(d.ident(t), NoRefID)
		return nil
	case json.Delim:
		if rune(t) != '{' {
			return d.syntaxf("expected type string or ref object, got %v", tok)
		}
		var ref RefID
		for d.dec.More() {
			key, err := d.str()
			if err != nil {
				return err
			}
			if key == "ref" {
				if ref, err = d.ref(); err != nil {
					return err
				}
			} else if err := d.skip(); err != nil {
				return err
			}
		}
		if err := d.delim('}'); err != nil {
			return err
		}
		body.setType("", ref)
		return nil
	}
	return d.syntaxf("expected type string or ref object, got %v", tok)
}

func (d *decoder) elementDict(role string) (*Dict[*Element], error) {
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	out := NewDict[*Element](8)
	for d.dec.More() {
		rawName, err := d.str()
		if err != nil {
			return nil, err
		}
		name := d.ident(rawName)
		el, err := d.element(name)
		if err != nil {
			return nil, err
		}
		if out.Has(name) {
			diag.ReportError(d.rep, diag.DefDuplicate, el.Loc, d.home,
				fmt.Sprintf("duplicate %s %q", role, name)).Emit()
			continue
		}
		out.Set(name, el)
	}
	return out, d.delim('}')
}

func (d *decoder) element(name string) (*Element, error) {
	prevHome := d.home
	if name != "" {
		d.home = prevHome + fmt.Sprintf("/element:%q", name)
	}
	defer func() { d.home = prevHome }()

	el := &Element{Name: name, Loc: source.Loc{File: d.fileID}}
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		if err := d.memberKey(key, elemBody{el}); err != nil {
			return nil, err
		}
	}
	return el, d.delim('}')
}

func (d *decoder) enumDict() (*Dict[*EnumValue], error) {
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	out := NewDict[*EnumValue](4)
	for d.dec.More() {
		rawName, err := d.str()
		if err != nil {
			return nil, err
		}
		name := d.ident(rawName)
		ev := &EnumValue{Name: name}
		if err := d.delim('{'); err != nil {
			return nil, err
		}
		for d.dec.More() {
			key, err := d.str()
			if err != nil {
				return nil, err
			}
			switch {
			case key == "val":
				v, err := d.value()
				if err != nil {
					return nil, err
				}
				ev.Val = &v
			case strings.HasPrefix(key, "@"):
				v, err := d.value()
				if err != nil {
					return nil, err
				}
				if ev.Annotations == nil {
					ev.Annotations = NewDict[Value](1)
				}
				ev.Annotations.Set(key, v)
			default:
				if err := d.skip(); err != nil {
					return nil, err
				}
			}
		}
		if err := d.delim('}'); err != nil {
			return nil, err
		}
		out.Set(name, ev)
	}
	return out, d.delim('}')
}

func (d *decoder) cardinality() (*Cardinality, error) {
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	card := &Cardinality{}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		switch key {
		case "src":
			card.SrcMax = &v
		case "srcmin":
			card.SrcMin = &v
		case "min":
			card.Min = &v
		case "max":
			card.Max = &v
		}
	}
	return card, d.delim('}')
}

func (d *decoder) location() (source.Loc, error) {
	if err := d.delim('{'); err != nil {
		return source.Loc{}, err
	}
	loc := source.Loc{File: d.fileID}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return source.Loc{}, err
		}
		switch key {
		case "file":
			path, err := d.str()
			if err != nil {
				return source.Loc{}, err
			}
			loc.File = d.fs.AddPath(path)
		case "line":
			n, err := d.integer()
			if err != nil {
				return source.Loc{}, err
			}
			loc.Line = uint32(n) // #nosec G115 -- номер строки из $location
		case "col":
			n, err := d.integer()
			if err != nil {
				return source.Loc{}, err
			}
			loc.Col = uint32(n) // #nosec G115 -- номер колонки из $location
		default:
			if err := d.skip(); err != nil {
				return source.Loc{}, err
			}
		}
	}
	return loc, d.delim('}')
}

// --- ссылки и выражения ---

// ref декодирует массив шагов и аллоцирует путь в арене.
// На кривой форме репортит csn-invalid-ref и возвращает NoRefID.
func (d *decoder) ref() (RefID, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return NoRefID, d.syntax(err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || rune(delim) != '[' {
		diag.ReportError(d.rep, diag.CSNInvalidRef, d.errLoc(), d.home,
			fmt.Sprintf("ref must be an array of steps, got %v", tok)).Emit()
		// Скаляр уже съеден; объект/прочее пропускать не нужно
		return NoRefID, nil
	}

	var steps []RefStep
	broken := false
	for d.dec.More() {
		tok, err := d.dec.Token()
		if err != nil {
			return NoRefID, d.syntax(err)
		}
		switch t := tok.(type) {
		case string:
			steps = append(steps, RefStep{ID: d.ident(t)})
		case json.Delim:
			if rune(t) != '{' {
				return NoRefID, d.syntaxf("unexpected token %v in ref", tok)
			}
			step, err := d.refStep()
			if err != nil {
				return NoRefID, err
			}
			steps = append(steps, step)
		default:
			diag.ReportError(d.rep, diag.CSNInvalidRef, d.errLoc(), d.home,
				fmt.Sprintf("ref step must be a string or object, got %v", tok)).Emit()
			broken = true
		}
	}
	if err := d.delim(']'); err != nil {
		return NoRefID, err
	}
	if broken || len(steps) == 0 {
		if len(steps) == 0 && !broken {
			diag.ReportError(d.rep, diag.CSNInvalidRef, d.errLoc(), d.home, "empty ref").Emit()
		}
		return NoRefID, nil
	}
	return d.model.Refs.Allocate(Ref{Steps: steps}), nil
}

// refStep декодирует объектный шаг {"id","args","where"}; '{' уже съеден.
func (d *decoder) refStep() (RefStep, error) {
	step := RefStep{}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return step, err
		}
		switch key {
		case "id":
			id, err := d.str()
			if err != nil {
				return step, err
			}
			step.ID = d.ident(id)
		case "args":
			if err := d.delim('{'); err != nil {
				return step, err
			}
			step.Args = NewDict[Expr](2)
			for d.dec.More() {
				argName, err := d.str()
				if err != nil {
					return step, err
				}
				argVal, err := d.exprToken(nil)
				if err != nil {
					return step, err
				}
				step.Args.Set(d.ident(argName), argVal)
			}
			if err := d.delim('}'); err != nil {
				return step, err
			}
		case "where":
			if step.Where, err = d.xpr(); err != nil {
				return step, err
			}
		default:
			if err := d.skip(); err != nil {
				return step, err
			}
		}
	}
	if err := d.delim('}'); err != nil {
		return step, err
	}
	if step.ID == "" {
		diag.ReportError(d.rep, diag.CSNInvalidRef, d.errLoc(), d.home, "ref step without id").Emit()
	}
	return step, nil
}

func (d *decoder) keyRefs() ([]KeyRef, error) {
	if err := d.delim('['); err != nil {
		return nil, err
	}
	var out []KeyRef
	for d.dec.More() {
		if err := d.delim('{'); err != nil {
			return nil, err
		}
		kr := KeyRef{}
		for d.dec.More() {
			key, err := d.str()
			if err != nil {
				return nil, err
			}
			switch key {
			case "ref":
				if kr.Ref, err = d.ref(); err != nil {
					return nil, err
				}
			case "as":
				alias, err := d.str()
				if err != nil {
					return nil, err
				}
				kr.Alias = d.ident(alias)
			case "$generatedFieldName":
				if kr.GeneratedName, err = d.str(); err != nil {
					return nil, err
				}
			default:
				if err := d.skip(); err != nil {
					return nil, err
				}
			}
		}
		if err := d.delim('}'); err != nil {
			return nil, err
		}
		out = append(out, kr)
	}
	return out, d.delim(']')
}

// tableConstraints декодирует служебный блок "$tableConstraints".
// В авторских моделях его нет: блок появляется только в кэшированных,
// уже переписанных моделях, и раунд-трипится как есть.
func (d *decoder) tableConstraints() (*TableConstraints, error) {
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	tc := &TableConstraints{}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		if key != "unique" {
			if err := d.skip(); err != nil {
				return nil, err
			}
			continue
		}
		if err := d.delim('{'); err != nil {
			return nil, err
		}
		tc.Unique = NewDict[*UniqueConstraint](4)
		for d.dec.More() {
			name, err := d.str()
			if err != nil {
				return nil, err
			}
			c, err := d.uniqueConstraint(d.ident(name))
			if err != nil {
				return nil, err
			}
			tc.Unique.Set(c.Name, c)
		}
		if err := d.delim('}'); err != nil {
			return nil, err
		}
	}
	return tc, d.delim('}')
}

func (d *decoder) uniqueConstraint(name string) (*UniqueConstraint, error) {
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	c := &UniqueConstraint{Name: name}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		switch key {
		case "paths":
			if err := d.delim('['); err != nil {
				return nil, err
			}
			for d.dec.More() {
				id, err := d.ref()
				if err != nil {
					return nil, err
				}
				if id.IsValid() {
					c.Paths = append(c.Paths, id)
				}
			}
			if err := d.delim(']'); err != nil {
				return nil, err
			}
		case "columns":
			if c.Columns, err = d.stringArray(false); err != nil {
				return nil, err
			}
		case "index":
			if c.Index, err = d.str(); err != nil {
				return nil, err
			}
		default:
			if err := d.skip(); err != nil {
				return nil, err
			}
		}
	}
	return c, d.delim('}')
}

// xpr декодирует плоский поток токенов условия.
func (d *decoder) xpr() (Xpr, error) {
	if err := d.delim('['); err != nil {
		return nil, err
	}
	var out Xpr
	for d.dec.More() {
		e, err := d.exprToken(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, d.delim(']')
}

// exprToken декодирует один узел выражения: голый токен-строку либо
// объект. ord, если задан, принимает ключи sort/nulls (ORDER BY).
func (d *decoder) exprToken(ord *OrderItem) (Expr, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return Expr{}, d.syntax(err)
	}
	switch t := tok.(type) {
	case string:
		if t == "*" {
			return Expr{Kind: ExprStar}, nil
		}
		return OpExpr(normalizeOp(t)), nil
	case json.Number:
		return ValExpr(Value{Kind: ValNumber, Num: t}), nil
	case bool:
		return ValExpr(Bool(t)), nil
	case nil:
		return ValExpr(Null()), nil
	case json.Delim:
		if rune(t) != '{' {
			return Expr{}, d.syntaxf("unexpected token %v in expression", tok)
		}
		return d.exprObject(ord)
	}
	return Expr{}, d.syntaxf("unexpected token %v in expression", tok)
}

// normalizeOp приводит буквенные операторы к нижнему регистру,
// чтобы "AND" и "and" из разных продюсеров совпадали.
func normalizeOp(op string) string {
	for i := 0; i < len(op); i++ {
		c := op[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return op
		}
	}
	return strings.ToLower(op)
}

// exprObject декодирует объектный узел выражения; '{' уже съеден.
func (d *decoder) exprObject(ord *OrderItem) (Expr, error) {
	e := Expr{}
	param := false
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return e, err
		}
		switch key {
		case "ref":
			if e.Ref, err = d.ref(); err != nil {
				return e, err
			}
			if e.Kind == ExprInvalid {
				e.Kind = ExprRef
			}
		case "val":
			v, err := d.value()
			if err != nil {
				return e, err
			}
			e.Kind = ExprVal
			e.Val = v
		case "#":
			sym, err := d.str()
			if err != nil {
				return e, err
			}
			e.Kind = ExprVal
			e.Val = Symbol(sym)
		case "xpr":
			if e.Sub, err = d.xpr(); err != nil {
				return e, err
			}
			e.Kind = ExprXpr
		case "func":
			if e.Func, err = d.str(); err != nil {
				return e, err
			}
			e.Kind = ExprFunc
		case "args":
			if err := d.delim('['); err != nil {
				return e, err
			}
			for d.dec.More() {
				arg, err := d.exprToken(nil)
				if err != nil {
					return e, err
				}
				e.Args = append(e.Args, arg)
			}
			if err := d.delim(']'); err != nil {
				return e, err
			}
		case "list":
			if err := d.delim('['); err != nil {
				return e, err
			}
			for d.dec.More() {
				item, err := d.exprToken(nil)
				if err != nil {
					return e, err
				}
				e.Args = append(e.Args, item)
			}
			if err := d.delim(']'); err != nil {
				return e, err
			}
			e.Kind = ExprList
		case "SELECT", "SET":
			q, err := d.queryBody(key)
			if err != nil {
				return e, err
			}
			e.Kind = ExprQuery
			e.Query = q
		case "as":
			alias, err := d.str()
			if err != nil {
				return e, err
			}
			e.Alias = d.ident(alias)
		case "key":
			if e.Key, err = d.boolean(); err != nil {
				return e, err
			}
		case "param":
			if param, err = d.boolean(); err != nil {
				return e, err
			}
		case "cast":
			if e.Cast, err = d.cast(); err != nil {
				return e, err
			}
		case "sort":
			s, err := d.str()
			if err != nil {
				return e, err
			}
			if ord != nil {
				ord.Sort = s
			}
		case "nulls":
			s, err := d.str()
			if err != nil {
				return e, err
			}
			if ord != nil {
				ord.Nulls = s
			}
		default:
			if err := d.skip(); err != nil {
				return e, err
			}
		}
	}
	if err := d.delim('}'); err != nil {
		return e, err
	}
	if param && e.Kind == ExprRef {
		e.Kind = ExprParam
	}
	if e.Kind == ExprInvalid {
		diag.ReportError(d.rep, diag.CSNInvalidRef, d.errLoc(), d.home,
			"expression object without a recognized payload").Emit()
	}
	return e, nil
}

func (d *decoder) cast() (*TypeFacetsWithType, error) {
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	out := &TypeFacetsWithType{}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		switch key {
		case "type":
			t, err := d.str()
			if err != nil {
				return nil, err
			}
			out.Type = d.ident(t)
		case "length":
			if out.Facets.Length, err = d.integer(); err != nil {
				return nil, err
			}
		case "precision":
			if out.Facets.Precision, err = d.integer(); err != nil {
				return nil, err
			}
		case "scale":
			if out.Facets.Scale, err = d.integer(); err != nil {
				return nil, err
			}
		case "srid":
			if out.Facets.SRID, err = d.integer(); err != nil {
				return nil, err
			}
		default:
			if err := d.skip(); err != nil {
				return nil, err
			}
		}
	}
	return out, d.delim('}')
}

// --- запросы ---

// query декодирует объект запроса: {"SELECT": ...} либо {"SET": ...}.
func (d *decoder) query() (*Query, error) {
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	var q *Query
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		switch key {
		case "SELECT", "SET":
			if q, err = d.queryBody(key); err != nil {
				return nil, err
			}
		default:
			if err := d.skip(); err != nil {
				return nil, err
			}
		}
	}
	if err := d.delim('}'); err != nil {
		return nil, err
	}
	if q == nil {
		diag.ReportError(d.rep, diag.CSNInvalidQuery, d.errLoc(), d.home,
			"query object without SELECT or SET").Emit()
		q = &Query{Kind: QuerySelect, Select: &Select{}}
	}
	return q, nil
}

// queryBody декодирует значение ключа SELECT/SET.
func (d *decoder) queryBody(key string) (*Query, error) {
	if key == "SELECT" {
		sel, err := d.selectBody()
		if err != nil {
			return nil, err
		}
		return &Query{Kind: QuerySelect, Select: sel}, nil
	}

	// SET: {"op": "union", "all": true, "args": [query, ...]}
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	q := &Query{Kind: QuerySet}
	for d.dec.More() {
		k, err := d.str()
		if err != nil {
			return nil, err
		}
		switch k {
		case "op":
			if q.SetOp, err = d.str(); err != nil {
				return nil, err
			}
		case "all":
			if q.All, err = d.boolean(); err != nil {
				return nil, err
			}
		case "args":
			if err := d.delim('['); err != nil {
				return nil, err
			}
			for d.dec.More() {
				arg, err := d.query()
				if err != nil {
					return nil, err
				}
				q.Args = append(q.Args, arg)
			}
			if err := d.delim(']'); err != nil {
				return nil, err
			}
		default:
			if err := d.skip(); err != nil {
				return nil, err
			}
		}
	}
	return q, d.delim('}')
}

func (d *decoder) selectBody() (*Select, error) {
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	sel := &Select{}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		switch key {
		case "from":
			if sel.From, err = d.from(); err != nil {
				return nil, err
			}
		case "columns":
			if err := d.delim('['); err != nil {
				return nil, err
			}
			for d.dec.More() {
				col, err := d.exprToken(nil)
				if err != nil {
					return nil, err
				}
				sel.Columns = append(sel.Columns, col)
			}
			if err := d.delim(']'); err != nil {
				return nil, err
			}
		case "where":
			if sel.Where, err = d.xpr(); err != nil {
				return nil, err
			}
		case "having":
			if sel.Having, err = d.xpr(); err != nil {
				return nil, err
			}
		case "groupBy":
			if err := d.delim('['); err != nil {
				return nil, err
			}
			for d.dec.More() {
				g, err := d.exprToken(nil)
				if err != nil {
					return nil, err
				}
				sel.GroupBy = append(sel.GroupBy, g)
			}
			if err := d.delim(']'); err != nil {
				return nil, err
			}
		case "orderBy":
			if err := d.delim('['); err != nil {
				return nil, err
			}
			for d.dec.More() {
				item := OrderItem{}
				if item.Expr, err = d.exprToken(&item); err != nil {
					return nil, err
				}
				sel.OrderBy = append(sel.OrderBy, item)
			}
			if err := d.delim(']'); err != nil {
				return nil, err
			}
		case "limit":
			if sel.Limit, err = d.limit(); err != nil {
				return nil, err
			}
		case "mixin":
			if sel.Mixins, err = d.elementDict("mixin"); err != nil {
				return nil, err
			}
		case "distinct":
			if sel.Distinct, err = d.boolean(); err != nil {
				return nil, err
			}
		case "excluding":
			if sel.Excluding, err = d.stringArray(true); err != nil {
				return nil, err
			}
		default:
			if err := d.skip(); err != nil {
				return nil, err
			}
		}
	}
	return sel, d.delim('}')
}

// from декодирует источник SELECT: ссылку, join-дерево или подзапрос.
func (d *decoder) from() (*From, error) {
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	out := &From{}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		switch key {
		case "ref":
			if out.Ref, err = d.ref(); err != nil {
				return nil, err
			}
			out.Kind = FromRef
		case "join":
			joinKind, err := d.str()
			if err != nil {
				return nil, err
			}
			if out.Join == nil {
				out.Join = &Join{}
			}
			out.Join.Kind = joinKind
			out.Kind = FromJoin
		case "args":
			if err := d.delim('['); err != nil {
				return nil, err
			}
			if out.Join == nil {
				out.Join = &Join{}
			}
			for d.dec.More() {
				arg, err := d.from()
				if err != nil {
					return nil, err
				}
				out.Join.Args = append(out.Join.Args, arg)
			}
			if err := d.delim(']'); err != nil {
				return nil, err
			}
			out.Kind = FromJoin
		case "on":
			if out.Join == nil {
				out.Join = &Join{}
			}
			if out.Join.On, err = d.xpr(); err != nil {
				return nil, err
			}
		case "SELECT", "SET":
			q, err := d.queryBody(key)
			if err != nil {
				return nil, err
			}
			out.Query = q
			out.Kind = FromQuery
		case "as":
			alias, err := d.str()
			if err != nil {
				return nil, err
			}
			out.Alias = d.ident(alias)
		default:
			if err := d.skip(); err != nil {
				return nil, err
			}
		}
	}
	return out, d.delim('}')
}

func (d *decoder) limit() (*Limit, error) {
	if err := d.delim('{'); err != nil {
		return nil, err
	}
	out := &Limit{}
	for d.dec.More() {
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		switch key {
		case "rows", "offset":
			// Значение лежит внутри {"val": n}
			e, err := d.exprToken(nil)
			if err != nil {
				return nil, err
			}
			if e.Kind == ExprVal {
				v := e.Val
				if key == "rows" {
					out.Rows = &v
				} else {
					out.Offset = &v
				}
			}
		default:
			if err := d.skip(); err != nil {
				return nil, err
			}
		}
	}
	return out, d.delim('}')
}

// --- произвольные значения (аннотации, литералы) ---

// value декодирует произвольное JSON-значение с сохранением порядка
// ключей объектов. Одноключевые объекты {"=": путь} и {"#": символ}
// сворачиваются в ValPath/ValSymbol.
func (d *decoder) value() (Value, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return Value{}, d.syntax(err)
	}
	return d.valueFrom(tok)
}

func (d *decoder) valueFrom(tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Value{Kind: ValNumber, Num: t}, nil
	case string:
		return Str(t), nil
	case json.Delim:
		switch rune(t) {
		case '[':
			items := []Value{}
			for d.dec.More() {
				item, err := d.value()
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if err := d.delim(']'); err != nil {
				return Value{}, err
			}
			return Value{Kind: ValArray, Items: items}, nil
		case '{':
			fields := NewDict[Value](4)
			for d.dec.More() {
				key, err := d.str()
				if err != nil {
					return Value{}, err
				}
				v, err := d.value()
				if err != nil {
					return Value{}, err
				}
				fields.Set(key, v)
			}
			if err := d.delim('}'); err != nil {
				return Value{}, err
			}
			if fields.Len() == 1 {
				name, v := fields.At(0)
				if v.Kind == ValString {
					switch name {
					case "=":
						return Path(v.Str), nil
					case "#":
						return Symbol(v.Str), nil
					}
				}
			}
			return Value{Kind: ValObject, Fields: fields}, nil
		}
	}
	return Value{}, d.syntaxf("unexpected token %v in value", tok)
}
