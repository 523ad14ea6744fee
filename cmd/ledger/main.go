/*
main.go - Application entry point

PURPOSE:
  Runs the ledger command tree. All setup (configuration, logging, database,
  graceful shutdown) lives in the cli package.

EXAMPLES:
  # Serve the API on a file database
  ledger serve --db ./data/budget.db

  # Try it with demo data in memory
  ledger serve --db :memory: --demo credit-card-payoff

  # Check account/envelope consistency (exit 1 on drift)
  ledger validate

ENVIRONMENT:
  PORT, LEDGER_DB_PATH, LEDGER_DB_DRIVER, LOG_LEVEL, LOG_FORMAT,
  INTEGRITY_ENABLED, INTEGRITY_INTERVAL, AMQP_URL, AMQP_EXCHANGE,
  METRICS_ENABLED, CORS_ORIGINS, LEDGER_CONFIG. A .env file is loaded
  when present.

SEE ALSO:
  - cli/root.go: command tree
  - config/config.go: configuration precedence
*/
package main

import (
	"os"

	"github.com/warp/envelope-ledger/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
