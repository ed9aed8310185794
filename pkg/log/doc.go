/*
Package log provides structured logging for gqlite using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("storage")
	logger.Info().Str("graph", "/social/friends").Msg("graph saved")

Child loggers carry contextual fields (component, session_id, graph, txn_id)
so that every statement executed through the coordinator can be traced back to
its session and transaction.
*/
package log
