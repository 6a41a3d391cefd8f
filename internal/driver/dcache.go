package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"cdsc/internal/csn"
	"cdsc/internal/diag"
	"cdsc/internal/project"
	"cdsc/internal/resolve"
)

// Версия схемы конверта: увеличивается при изменении формата payload
// или самого CSN-энкодинга модели.
const cacheSchemaVersion uint16 = 1

// Путь виртуального файла, под которым кэшированная модель попадает в FileSet.
const cacheVirtualPath = "$cache/model.csn.json"

// ModelPayload — конверт дискового кэша: скомпилированная модель в
// каноническом CSN плюс статус. Диагностики не кэшируются, поэтому
// переиспользовать можно только полностью чистые компиляции.
type ModelPayload struct {
	Schema uint16
	// Files — входные пути. Хеши содержимого уже учтены в ключе;
	// поле остаётся для отладки кэша.
	Files []string
	// Broken: компиляция закончилась ошибками, модель не сохранялась.
	Broken bool
	CSN    []byte
}

// Usable сообщает, можно ли восстановить модель из конверта.
func (p *ModelPayload) Usable() bool {
	return p != nil && p.Schema == cacheSchemaVersion && !p.Broken && len(p.CSN) > 0
}

// ModelCache хранит конверты по ключу компиляции на диске.
// Потокобезопасен.
type ModelCache struct {
	mu  sync.RWMutex
	dir string
}

// Dir возвращает корневой каталог кэша.
func (c *ModelCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// OpenModelCache открывает кэш в стандартном месте: $XDG_CACHE_HOME/<app>
// либо ~/.cache/<app>.
func OpenModelCache(app string) (*ModelCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenModelCacheAt(filepath.Join(base, app))
}

// OpenModelCacheAt открывает кэш в явном каталоге (тесты, --cache-dir).
func OpenModelCacheAt(dir string) (*ModelCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ModelCache{dir: dir}, nil
}

func (c *ModelCache) pathFor(key project.Digest) string {
	hexKey := hex.EncodeToString(key[:])
	// Подкаталог "models" — для удобства чтения и очистки руками.
	return filepath.Join(c.dir, "models", hexKey+".mp")
}

// Put сериализует и записывает конверт. Замена атомарная: temp-файл в
// том же каталоге плюс rename, полузаписанный конверт не виден читателям.
func (c *ModelCache) Put(key project.Digest, payload *ModelPayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get читает и десериализует конверт. Отсутствие записи — не ошибка.
func (c *ModelCache) Get(key project.Digest, out *ModelPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = f.Close() }()

	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	return true, nil
}

// DropAll инвалидирует кэш целиком — после смены формата.
func (c *ModelCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// OptionsDigest сводит семантические настройки к детерминированному
// хешу для ключа кэша. Всё, что влияет на выход конвейера, обязано
// попасть сюда.
func OptionsDigest(sem *csn.Options) project.Digest {
	var b strings.Builder
	fmt.Fprintf(&b, "v%d;naming=%s;target=%s;legacy=%t;virtual=%t;downgradable=%t",
		cacheSchemaVersion, sem.Naming, sem.Target,
		sem.LegacyDraftSuffix, sem.KeepVirtualInDrafts, sem.DowngradableErrors)

	codes := make([]string, 0, len(sem.SeverityOverrides))
	for code := range sem.SeverityOverrides {
		codes = append(codes, string(code))
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(&b, ";sev:%s=%s", code, sem.SeverityOverrides[diag.Code(code)])
	}
	for _, name := range sortedToggles(sem.Deprecated) {
		fmt.Fprintf(&b, ";dep:%s", name)
	}
	for _, name := range sortedToggles(sem.Beta) {
		fmt.Fprintf(&b, ";beta:%s", name)
	}
	return sha256.Sum256([]byte(b.String()))
}

func sortedToggles(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k, on := range m {
		if on {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// fromCache пытается восстановить модель из конверта. Пробное
// декодирование идёт в отдельный Bag: повреждённый кэш не должен
// загрязнять диагностики настоящей компиляции.
func (c *compilation) fromCache(cache *ModelCache, key project.Digest) (*Result, bool) {
	var payload ModelPayload
	ok, err := cache.Get(key, &payload)
	if err != nil || !ok || !payload.Usable() {
		return nil, false
	}

	model := csn.NewModel()
	scratch := diag.NewBag(defaultMaxDiagnostics)
	id := c.fs.AddVirtual(cacheVirtualPath, payload.CSN)
	if err := model.DecodeFile(payload.CSN, id, c.fs, c.names, diag.BagReporter{Bag: scratch}); err != nil || scratch.Len() > 0 {
		return nil, false
	}

	c.model = model
	c.res = resolve.New(model, c.rep)
	return c.result(true), true
}

// store записывает результат компиляции в кэш. Кэшируются только
// полностью чистые модели: диагностики в конверт не входят, и компиляция
// с warnings обязана показать их при повторном запуске заново. Ошибочная
// компиляция оставляет Broken-заглушку.
func (c *compilation) store(cache *ModelCache, key project.Digest, paths []string) error {
	switch {
	case c.bag.HasErrors():
		return cache.Put(key, &ModelPayload{Schema: cacheSchemaVersion, Files: paths, Broken: true})
	case c.bag.Len() > 0:
		return nil
	}
	data, err := csn.EncodeModel(c.model, c.fs, false)
	if err != nil {
		return err
	}
	return cache.Put(key, &ModelPayload{Schema: cacheSchemaVersion, Files: paths, CSN: data})
}
