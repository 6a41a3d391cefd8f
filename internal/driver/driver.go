// Package driver связывает фазы компилятора в один конвейер: чтение и
// декодирование CSN, разрешение имён, уплощение, понижение запросов,
// уникальные ограничения и генерация драфтов. Все сообщения фаз
// стекаются в один Bag через цепочку реклассификация → дедупликация;
// решает, останавливаться ли на ошибках, вызывающая сторона.
package driver

import (
	"context"
	"fmt"
	"time"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/draft"
	"cdsc/internal/flatten"
	"cdsc/internal/lower"
	"cdsc/internal/observ"
	"cdsc/internal/project"
	"cdsc/internal/resolve"
	"cdsc/internal/source"
	"cdsc/internal/uniqueconstraint"
)

const defaultMaxDiagnostics = 256

// Options настраивает один запуск компиляции.
type Options struct {
	// Semantic — семантические настройки, передаются во все фазы.
	// nil означает дефолты (plain/sql).
	Semantic *csn.Options
	// MaxDiagnostics ограничивает ёмкость Bag; <=0 — дефолт.
	MaxDiagnostics int
	// Jobs — параллелизм чтения входных файлов; <=0 — GOMAXPROCS.
	Jobs int
	// Timings включает замер фаз и итоговое info-сообщение obs-timings.
	Timings bool
	// Cache — необязательный дисковый кэш скомпилированных моделей.
	Cache *ModelCache
	// Observer уведомляется о границах фаз; nil — без уведомлений.
	Observer PhaseObserver
}

// Result — результат компиляции. Модель присутствует всегда, даже при
// ошибках: фазы деградируют на сломанном входе, а не падают.
type Result struct {
	FileSet  *source.FileSet
	Names    *source.Interner
	Model    *csn.Model
	Resolver *resolve.Resolver
	Bag      *diag.Bag
	Timings  observ.Report
	// FromCache: модель восстановлена из кэша, фазы не выполнялись.
	FromCache bool
}

// NamedSource — входной файл, уже загруженный в память (тест, stdin).
type NamedSource struct {
	Name    string
	Content []byte
}

// Compile читает файлы paths и прогоняет их через конвейер.
// Ошибка возвращается только за проблемы окружения (отмена контекста);
// семантические проблемы и несуществующие файлы — диагностики в Bag.
func Compile(ctx context.Context, paths []string, opts Options) (*Result, error) {
	c := newCompilation(opts)

	done := c.track("read")
	files, err := readInputs(ctx, paths, opts.Jobs)
	if err != nil {
		return nil, err
	}
	loadFailed := false
	for i := range files {
		f := &files[i]
		if f.Err != nil {
			loadFailed = true
			diag.ReportError(c.rep, diag.IOLoadFileError, source.Loc{},
				fmt.Sprintf("file:%q", f.Path),
				fmt.Sprintf("failed to load file: %v", f.Err)).Emit()
			continue
		}
		f.ID = c.fs.AddNormalized(f.Path, f.Content)
	}
	done(fmt.Sprintf("files=%d", len(paths)))

	// Кэш пробуется только на полностью загруженном входе: ключ
	// складывается из хешей всех файлов.
	var cacheKey project.Digest
	useCache := opts.Cache != nil && !loadFailed
	if useCache {
		digests := make([]project.Digest, 0, len(files))
		for i := range files {
			digests = append(digests, c.fs.Get(files[i].ID).Hash)
		}
		cacheKey = project.Combine(OptionsDigest(c.sem), digests...)

		done = c.track("cache")
		if cached, ok := c.fromCache(opts.Cache, cacheKey); ok {
			done("hit")
			return cached, nil
		}
		done("miss")
	}

	c.decode(files)
	c.passes()
	if useCache {
		// Ошибка записи кэша не роняет компиляцию.
		_ = c.store(opts.Cache, cacheKey, paths)
	}
	return c.result(false), nil
}

// CompileBytes компилирует набор виртуальных файлов без диска и кэша.
func CompileBytes(inputs []NamedSource, opts Options) *Result {
	c := newCompilation(opts)

	files := make([]inputFile, len(inputs))
	for i, in := range inputs {
		files[i] = inputFile{
			Path:    in.Name,
			Content: in.Content,
			ID:      c.fs.AddVirtual(in.Name, in.Content),
		}
	}

	c.decode(files)
	c.passes()
	return c.result(false)
}

// compilation несёт состояние одного запуска между фазами.
type compilation struct {
	opts  Options
	sem   *csn.Options
	fs    *source.FileSet
	names *source.Interner
	model *csn.Model
	bag   *diag.Bag
	rep   diag.Reporter
	timer *observ.Timer
	res   *resolve.Resolver
}

func newCompilation(opts Options) *compilation {
	sem := opts.Semantic
	if sem == nil {
		sem = &csn.Options{}
	}
	maxDiag := opts.MaxDiagnostics
	if maxDiag <= 0 {
		maxDiag = defaultMaxDiagnostics
	}
	bag := diag.NewBag(maxDiag)
	var timer *observ.Timer
	if opts.Timings {
		timer = observ.NewTimer()
	}
	return &compilation{
		opts:  opts,
		sem:   sem,
		fs:    source.NewFileSet(),
		names: source.NewInterner(),
		model: csn.NewModel(),
		bag:   bag,
		rep: diag.NewClassifyingReporter(
			diag.NewDedupReporter(diag.BagReporter{Bag: bag}),
			sem.Module(), sem.SeverityOverrides, sem.DowngradableErrors),
		timer: timer,
	}
}

// track открывает фазу: таймер пишет длительность, наблюдатель
// получает события границ. Оба необязательны.
func (c *compilation) track(name string) func(note string) {
	done := c.timer.Track(name)
	obs := c.opts.Observer
	if obs == nil {
		return done
	}
	obs(PhaseEvent{Name: name, Status: PhaseStart})
	start := time.Now()
	return func(note string) {
		done(note)
		obs(PhaseEvent{Name: name, Status: PhaseEnd, Elapsed: time.Since(start)})
	}
}

// decode вливает файлы в одну модель в порядке входа. Порядок — часть
// семантики: повторное определение имени проигрывает первому.
func (c *compilation) decode(files []inputFile) {
	done := c.track("decode")
	for i := range files {
		f := &files[i]
		if f.Err != nil {
			continue
		}
		// Ошибка декодирования уже отрепорчена; остальные файлы
		// продолжают обрабатываться.
		_ = c.model.DecodeFile(c.fs.Get(f.ID).Content, f.ID, c.fs, c.names, c.rep)
	}
	done(fmt.Sprintf("defs=%d", c.model.Definitions.Len()))
}

// passes выполняет однопоточный конвейер фаз в фиксированном порядке.
func (c *compilation) passes() {
	c.res = resolve.New(c.model, c.rep)

	done := c.track("resolve")
	c.res.ResolveModel()
	done(fmt.Sprintf("links=%d", c.res.Cache().Len()))

	// FlattenModel повторно прогоняет разрешение после финализации
	// типов: повторные сообщения гасит DedupReporter, связи берутся
	// из кэша резолвера.
	done = c.track("flatten")
	flatten.New(c.model, c.res, c.rep, c.sem).FlattenModel()
	done("")

	done = c.track("lower")
	lower.New(c.model, c.res, c.rep).LowerModel()
	done("")

	done = c.track("constraints")
	uc := uniqueconstraint.New(c.model, c.rep, c.sem)
	uc.Prepare()
	uc.Rewrite()
	done("")

	done = c.track("drafts")
	draft.New(c.model, c.rep, c.sem).GenerateModel()
	done(fmt.Sprintf("defs=%d", c.model.Definitions.Len()))
}

func (c *compilation) result(fromCache bool) *Result {
	c.bag.Sort()
	report := c.timer.Report()
	if c.opts.Timings {
		appendTimingDiagnostic(c.bag, report)
	}
	return &Result{
		FileSet:   c.fs,
		Names:     c.names,
		Model:     c.model,
		Resolver:  c.res,
		Bag:       c.bag,
		Timings:   report,
		FromCache: fromCache,
	}
}
