// Gatekeeper is a multi-level decision engine for autonomous agent actions.
//
// Every action is validated against an immutable rule set (Level 1), routed
// to advisory context, truth, and risk collaborators when it warrants a closer
// look (Levels 2-4), and synthesized into an approve, deny, or escalate
// verdict (Level 5).
//
// Usage:
//
//	# Start the HTTP API
//	gatekeeper serve --config gatekeeper.yaml
//
//	# Decide one action locally; exits 3 unless approved
//	gatekeeper decide --action trade.json
//
//	# Inspect the active rule set
//	gatekeeper rules list
//
//	# Query the audit log
//	gatekeeper audit query --agent alpha --verdict denied
package main

import "os"

func main() {
	os.Exit(Execute())
}
