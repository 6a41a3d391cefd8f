package driver

import (
	"context"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"cdsc/internal/source"
)

// inputFile — один входной файл после чтения с диска.
type inputFile struct {
	Path    string
	Content []byte
	ID      source.FileID
	Err     error
}

// readInputs читает входные файлы параллельно. Результат — в порядке
// paths: порядок входа входит в семантику модели (порядок определений,
// first-wins для дубликатов), поэтому горутины пишут каждая в свой
// индекс, а регистрация в FileSet остаётся за однопоточным вызывающим.
func readInputs(ctx context.Context, paths []string, jobs int) ([]inputFile, error) {
	out := make([]inputFile, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(paths)))
	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			// #nosec G304 -- пути приходят от пользователя по определению
			content, err := os.ReadFile(path)
			out[i] = inputFile{Path: path, Content: content, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
