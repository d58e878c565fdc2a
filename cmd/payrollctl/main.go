/*
main.go - payrollctl entry point

PURPOSE:
  Operator CLI over the same SQLite database the server uses. Imports
  ledgers, resolves rates, computes pay and severance, and renders slips
  without going through HTTP.

COMMANDS:
  import     Reconcile a ledger text file (or stdin) into slips
  resolve    Show the rate set in force on a date
  migrate    Copy legacy year-range rates onto the timeline
  payroll    Compute one employee's pay for a period
  severance  Compute one employee's severance
  liability  Severance liability report for a workplace
  slips      List a workplace's slips for a month
  payslip    Render a stored slip as PDF

EXAMPLES:
  payrollctl import --workplace wp-office march.txt
  payrollctl payroll office-1 --start 2025-03-01 --end 2025-03-31
  payrollctl liability wp-office --as-of 2025-04-01

SEE ALSO:
  - commands.go: Command definitions
  - config/config.go: Shared settings
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newCommandline().root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
