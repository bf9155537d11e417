// Package observability centralizes structured logging for the worker and
// querydemo binaries.
//
// Subpackages:
//   - logging: structured logging utilities with slog, including the
//     secret-redaction helper used on database and credential error paths.
package observability
