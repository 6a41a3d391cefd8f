// Package diag defines the core message model shared by all compiler passes.
//
// # Purpose
//
//   - Provide deterministic, serialisable data structures that capture findings
//     produced by the resolver / flattener / rewriting passes.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     messages without coupling to concrete storage or formatting layers.
//   - Host the central message registry that decides the effective severity of
//     every message per consumer.
//
// # Scope
//
// Package diag does not perform any formatting, IO, CLI integration, or
// interactive behaviour. Rendering responsibilities live in internal/diagfmt,
// orchestration lives in the driver layer.
//
// # Data model
//
// Message is the central record. It contains:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – stable kebab-case identifier (see codes.go); part of the public
//     contract because severity overrides are keyed by it.
//   - Text – human oriented message; keep it short and actionable.
//   - Loc – the canonical source.Loc pointing to the issue (line/column based,
//     models carry no byte offsets).
//   - Home – the semantic location inside the model, e.g.
//     entity:"S.Books"/element:"title". Stable even when Loc is empty.
//   - Notes – optional secondary locations/messages for additional context.
//
// Notes should be used sparingly: each note must add new context (e.g. “target
// declared here”) rather than repeating the message text.
//
// # Severity classification
//
// Phases request a severity; the registry decides what it becomes for the
// current consumer. The precedence is fixed: a non-configurable Error stays an
// Error, consumer-specific ErrorFor lists win next, then explicit user
// overrides, then the registry default. Unregistered codes fall back to the
// requested severity. ClassifyingReporter applies this at emission time, so
// producers never need to know the consumer.
//
// # Emitting messages
//
// Phases should use a diag.Reporter to decouple emission from storage. A pass
// constructs a ReportBuilder via NewReportBuilder (or the helper functions
// ReportError/ReportWarning/ReportInfo) and chains WithNote before calling
// Emit.
//
// When no additional metadata is needed, phases may call Reporter.Report(...)
// directly. For convenience, diag.BagReporter aggregates messages into a Bag,
// which supports sorting, deduplication and merging. The display order is part
// of the contract: (file, position, semantic location, text).
//
// # Consumers
//
//   - internal/diagfmt: renders messages into pretty/json/short formats.
//   - internal/driver: coordinates bag collection per compilation and
//     transports message data to CLI commands.
//
// Keep the data model deterministic: any new fields should honour the package’s
// layering constraints and avoid side effects, so the CLI and future tooling can
// safely serialise messages for caching and testing.
package diag
