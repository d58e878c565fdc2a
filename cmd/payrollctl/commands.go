package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/logging"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/rates"
	"github.com/warp/payroll-engine/reconcile"
	"github.com/warp/payroll-engine/store/sqlite"
)

const dateLayout = "2006-01-02"

// commandline holds the services every subcommand works against. They are
// built in connect from the loaded config unless a store was injected.
type commandline struct {
	configPath string
	dbPath     string
	verbose    bool

	cfg        *config.Config
	logger     *zap.Logger
	store      *sqlite.Store
	ownsStore  bool
	rates      *rates.Resolver
	payroll    *payroll.Service
	reconciler *reconcile.Reconciler
	payslips   payslip.Renderer
}

func newCommandline() *commandline {
	return &commandline{}
}

func (cl *commandline) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "payrollctl",
		Short:             "Payroll computation and ledger reconciliation",
		SilenceUsage:      true,
		PersistentPreRunE: cl.connect,
		PersistentPostRun: cl.disconnect,
	}
	cmd.PersistentFlags().StringVar(&cl.configPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&cl.dbPath, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().BoolVarP(&cl.verbose, "verbose", "v", false, "debug logging to stderr")

	cl.importLedger(cmd)
	cl.resolve(cmd)
	cl.migrate(cmd)
	cl.computePayroll(cmd)
	cl.severance(cmd)
	cl.liability(cmd)
	cl.slips(cmd)
	cl.payslip(cmd)
	return cmd
}

func (cl *commandline) connect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cl.configPath)
	if err != nil {
		return err
	}
	if cl.dbPath != "" {
		cfg.Database.Path = cl.dbPath
	}
	cl.cfg = cfg

	logCfg := logging.Config{Level: "warn", Format: "console", Output: "stderr"}
	if cl.verbose {
		logCfg.Level = "debug"
	}
	if cl.logger, err = logging.New(logCfg); err != nil {
		return err
	}

	if cl.store == nil {
		if cl.store, err = sqlite.New(cfg.Database.Path); err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		cl.ownsStore = true
	}

	opts := reconcile.DefaultOptions()
	opts.RejectChecksumMismatch = cfg.Payroll.StrictChecksum
	opts.MaxSuggestions = cfg.Payroll.MaxSuggestions

	cl.rates = rates.NewResolver(cl.store)
	cl.payroll = payroll.NewService(cl.store, cl.store, cl.store, cl.rates,
		payroll.Calculator{Proration: cfg.Payroll.Proration}, cl.logger.Named("payroll"))
	cl.payroll.Location = cfg.Payroll.Location
	cl.reconciler = reconcile.NewReconciler(cl.store, cl.store, opts, cl.logger.Named("reconcile"))
	cl.payslips = payslip.Renderer{FontPath: cfg.Payslip.FontPath}
	return nil
}

func (cl *commandline) disconnect(cmd *cobra.Command, args []string) {
	if cl.logger != nil {
		_ = cl.logger.Sync()
	}
	if cl.ownsStore && cl.store != nil {
		cl.store.Close()
		cl.store = nil
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func (cl *commandline) importLedger(cmd *cobra.Command) {
	var workplace string
	ccmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Reconcile a ledger text file (stdin when omitted or \"-\") into slips",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			result, err := cl.reconciler.ImportLedger(cmd.Context(), generic.WorkplaceID(workplace), raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "period %s, pay date %s: %d imported, %d unmatched, %d flagged, %d discarded\n",
				result.Period, formatDatePtr(result.PayDate), result.ImportedCount,
				len(result.UnmatchedNames), len(result.FlaggedNames), result.Discarded)

			if len(result.UnmatchedNames) > 0 {
				table := newTable(out, "Unmatched", "Suggestions")
				for _, name := range result.UnmatchedNames {
					table.Append([]string{name, strings.Join(result.Suggestions[name], ", ")})
				}
				table.Render()
			}
			if len(result.FlaggedNames) > 0 {
				fmt.Fprintf(out, "checksum or incomplete: %s\n", strings.Join(result.FlaggedNames, ", "))
			}
			return nil
		},
	}
	ccmd.Flags().StringVarP(&workplace, "workplace", "w", "", "workplace id")
	_ = ccmd.MarkFlagRequired("workplace")
	cmd.AddCommand(ccmd)
}

func (cl *commandline) slips(cmd *cobra.Command) {
	var period string
	ccmd := &cobra.Command{
		Use:   "slips <workplace>",
		Short: "List a workplace's slips for a month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ym, err := generic.ParseYearMonth(period)
			if err != nil {
				return err
			}
			slips, err := cl.store.ListSlips(cmd.Context(), generic.WorkplaceID(args[0]), ym)
			if err != nil {
				return err
			}

			p := amountPrinter()
			table := newTable(cmd.OutOrStdout(), "Employee", "Base", "Deductions", "Net", "Checksum")
			for _, s := range slips {
				check := "ok"
				if !s.ChecksumOK {
					check = "MISMATCH"
				}
				table.Append([]string{string(s.EmployeeID), p(s.BasePay), p(s.TotalDeductions), p(s.NetPay), check})
			}
			table.Render()
			return nil
		},
	}
	ccmd.Flags().StringVarP(&period, "period", "p", "", "year-month, e.g. 2025-03")
	_ = ccmd.MarkFlagRequired("period")
	cmd.AddCommand(ccmd)
}

func (cl *commandline) payslip(cmd *cobra.Command) {
	var output string
	ccmd := &cobra.Command{
		Use:   "payslip <workplace> <employee> <year-month>",
		Short: "Render a stored slip as PDF",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ym, err := generic.ParseYearMonth(args[2])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id := generic.EmployeeID(args[1])
			slip, err := cl.store.GetSlip(ctx, generic.WorkplaceID(args[0]), id, ym)
			if err != nil {
				return err
			}
			emp, err := cl.store.GetEmployee(ctx, id)
			if err != nil {
				return err
			}

			if output == "" {
				output = fmt.Sprintf("payslip-%s-%s.pdf", id, ym)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := cl.payslips.Render(f, *emp, *slip); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	ccmd.Flags().StringVarP(&output, "output", "o", "", "output file (default payslip-<employee>-<period>.pdf)")
	cmd.AddCommand(ccmd)
}

// =============================================================================
// RATES
// =============================================================================

func (cl *commandline) resolve(cmd *cobra.Command) {
	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <date>",
		Short: "Show the rate set in force on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := generic.ParseDate(args[0])
			if err != nil {
				return err
			}
			rs, err := cl.rates.Resolve(cmd.Context(), date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "effective from %s (%s)\n", rs.EffectiveFrom.Format(dateLayout), rs.Source)
			table := newTable(out, "Rate", "Employee %", "Employer %")
			table.Append([]string{"pension", rs.Employee.Pension.String(), rs.Employer.Pension.String()})
			table.Append([]string{"health", rs.Employee.Health.String(), rs.Employer.Health.String()})
			table.Append([]string{"long-term care", rs.Employee.LongTermCare.String(), rs.Employer.LongTermCare.String()})
			table.Append([]string{"employment", rs.Employee.Employment.String(), rs.Employer.Employment.String()})
			table.Render()

			p := amountPrinter()
			fmt.Fprintf(out, "pension base %s - %s, flat withholding %s%%\n",
				p(rs.PensionBaseFloor), p(rs.PensionBaseCeiling), rs.FlatWithholding)
			return nil
		},
	})
}

func (cl *commandline) migrate(cmd *cobra.Command) {
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Copy legacy year-range rates onto the timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := cl.rates.MigrateLegacy(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "migrated %d, skipped %d\n", report.Migrated, report.Skipped)
			for _, d := range report.Mismatches {
				fmt.Fprintf(out, "mismatch on %s\n", d.Format(dateLayout))
			}
			return nil
		},
	})
}

// =============================================================================
// COMPUTATION
// =============================================================================

func (cl *commandline) computePayroll(cmd *cobra.Command) {
	var start, end string
	ccmd := &cobra.Command{
		Use:   "payroll <employee>",
		Short: "Compute one employee's pay for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := parsePeriod(start, end)
			if err != nil {
				return err
			}
			r, err := cl.payroll.ComputePayroll(cmd.Context(), generic.EmployeeID(args[0]), period)
			if err != nil {
				return err
			}

			p := amountPrinter()
			table := newTable(cmd.OutOrStdout(), "Item", "Amount")
			rows := [][2]any{
				{"work days", r.TotalWorkDays},
				{"work hours", r.TotalWorkHours.String()},
				{"base", p(r.BaseAmount)},
				{"rest-day allowance", p(r.RestDayAllowance)},
				{"carryover", p(r.PastPayrollCarryover)},
				{"total pay", p(r.TotalPay)},
				{"pension", p(r.Deductions.Pension)},
				{"health insurance", p(r.Deductions.HealthInsurance)},
				{"employment insurance", p(r.Deductions.EmploymentInsurance)},
				{"long-term care", p(r.Deductions.LongTermCare)},
				{"income tax", p(r.Deductions.IncomeTax)},
				{"local income tax", p(r.Deductions.LocalIncomeTax)},
				{"total deductions", p(r.TotalDeductions)},
				{"net pay", p(r.NetPay)},
				{"employer contribution", p(r.EmployerContribution)},
			}
			for _, row := range rows {
				table.Append([]string{fmt.Sprint(row[0]), fmt.Sprint(row[1])})
			}
			table.Render()
			return nil
		},
	}
	ccmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	ccmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	_ = ccmd.MarkFlagRequired("start")
	_ = ccmd.MarkFlagRequired("end")
	cmd.AddCommand(ccmd)
}

func (cl *commandline) severance(cmd *cobra.Command) {
	var asOf string
	ccmd := &cobra.Command{
		Use:   "severance <employee>",
		Short: "Compute one employee's severance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			r, err := cl.payroll.ComputeSeverance(cmd.Context(), generic.EmployeeID(args[0]), date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d days worked, %s years\n", r.DaysWorked, r.TenureYears.StringFixed(2))
			if !r.Eligible {
				fmt.Fprintln(out, "not eligible: less than one year of service")
				return nil
			}
			p := amountPrinter()
			fmt.Fprintf(out, "average daily wage %s\nseverance pay %s\n", p(*r.AverageDailyWage), p(*r.SeverancePay))
			return nil
		},
	}
	ccmd.Flags().StringVar(&asOf, "as-of", "", "YYYY-MM-DD (default today)")
	cmd.AddCommand(ccmd)
}

func (cl *commandline) liability(cmd *cobra.Command) {
	var asOf string
	ccmd := &cobra.Command{
		Use:   "liability <workplace>",
		Short: "Severance liability report for a workplace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			report, err := cl.payroll.LiabilityReport(cmd.Context(), generic.WorkplaceID(args[0]), date)
			if err != nil {
				return err
			}

			lines := report.Lines
			sort.SliceStable(lines, func(i, j int) bool { return lines[i].HireDate.Before(lines[j].HireDate) })

			p := amountPrinter()
			table := newTable(cmd.OutOrStdout(), "Employee", "Name", "Hired", "Years", "Monthly", "Liability", "Carryover")
			for _, l := range lines {
				table.Append([]string{
					string(l.EmployeeID), l.Name, l.HireDate.Format(dateLayout), l.TenureYears.StringFixed(2),
					p(l.MonthlyWage), p(l.Liability), p(l.Carryover),
				})
			}
			table.SetFooter([]string{"", "", "", "", "Total", p(report.TotalLiability), p(report.TotalCarryover)})
			table.Render()
			return nil
		},
	}
	ccmd.Flags().StringVar(&asOf, "as-of", "", "YYYY-MM-DD (default today)")
	cmd.AddCommand(ccmd)
}

// =============================================================================
// HELPERS
// =============================================================================

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	return table
}

func amountPrinter() func(generic.Money) string {
	p := message.NewPrinter(language.Korean)
	return func(m generic.Money) string { return p.Sprintf("%d", m.Int64()) }
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}

func parsePeriod(start, end string) (generic.Period, error) {
	s, err := generic.ParseDate(start)
	if err != nil {
		return generic.Period{}, generic.NewValidationError("start", err.Error())
	}
	e, err := generic.ParseDate(end)
	if err != nil {
		return generic.Period{}, generic.NewValidationError("end", err.Error())
	}
	return generic.NewPeriod(s, e)
}

func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return generic.Today(), nil
	}
	return generic.ParseDate(s)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format(dateLayout)
}
