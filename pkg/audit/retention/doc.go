// Package retention prunes old audit records by age and by count, optionally
// archiving them to JSON first, on a cron schedule (github.com/robfig/cron/v3).
package retention
