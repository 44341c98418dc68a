// Package internal contains the packages behind the bbcode command and
// preview server. They are not importable by other modules; the parser
// itself lives in pkg/bbcode.
//
// # Package Organization
//
//   - config: Viper backed configuration with BBCODE_ environment overrides
//   - errors: Typed errors, document diagnostics and their collector
//   - logging: Context first structured logging over log/slog
//   - monitoring: Prometheus metrics and health checks
//   - sanitize: Optional bluemonday filtering of rendered output
//   - server: Preview pages, render API and live reload websocket
//   - services: Rendering of strings, files and directory trees
//   - tagconfig: Tag definitions loaded from YAML, TOML or JSON files
//   - validation: Path, origin and output well-formedness checks
//   - version: Build information
//   - watcher: Debounced recursive file watching
//
// # Data Flow
//
// Commands load the configuration, build a tag registry from the default
// tags and any tag files, and hand documents to the render service. The
// service parses, optionally sanitizes, records diagnostics and metrics,
// and logs documents that fall back to their raw input. The watcher feeds
// changed files back into the same service for the preview server and the
// watch command.
package internal
