// Package logging configures the process-wide log/slog logger.
//
// Components log through slog.Default().With("component", name); calling
// Setup once at startup decides where those records go, at which level, and
// in which format. When RedactPII is set, values under sensitive keys
// (password, token, api_key, ...) are replaced with "***" and string values
// are scrubbed of API keys, bearer tokens, emails, card numbers, and IBANs.
//
//	logger, err := logging.Setup(logging.Config{Level: "info", Format: "json", RedactPII: true})
//
//	ctx = logging.WithRequestID(ctx, id)
//	slog.InfoContext(ctx, "decision made")  // includes request_id
package logging
