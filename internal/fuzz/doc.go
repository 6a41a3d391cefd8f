// Package fuzztests houses Go fuzz harnesses that exercise the CSN
// compilation pipeline (bytes -> decode -> passes). Its goal is to smoke
// test robustness and guard against panics or allocator explosions on
// arbitrary inputs.
//
// Назначение: запускать fuzz-обработчики, которые загружают байты в FileSet
// и прогоняют их через декодер и весь конвейер фаз.
//
// Не делает: генерацию корпусов, запись файлов, выполнение CLI.
//
// Зависимости: internal/source, internal/csn, internal/diag,
// internal/driver.

package fuzztests
