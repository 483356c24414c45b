// Package logging builds the structured slog loggers shared by the worker and
// the ingress service. Console output is meant for operators at a terminal;
// JSON output is for log shippers.
package logging
