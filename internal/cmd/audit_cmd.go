package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ostrem/steward/internal/audit"
	"github.com/ostrem/steward/internal/config"
)

var (
	auditLimit int
	pruneDays  int
)

var auditCmd = &cobra.Command{
	Use:     "audit",
	Short:   "Inspect the local audit trail",
	GroupID: groupCore,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent directory mutations",
	Long: `Show the most recent mutations recorded in the local audit trail.

Every add, remove, create and delete issued from this machine is
recorded with its outcome and the X-Request-Id sent to the server, so
changes can be correlated with server logs after the fact.

Examples:
  steward audit tail          # Show last 20 entries
  steward audit tail -n 100   # Show last 100 entries`,
	RunE: runAuditTail,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit entries past the retention window",
	Long: `Delete audit entries older than the retention window.

The window defaults to audit.retention_days from the config; --days
overrides it for one run. A window of 0 keeps everything.

Examples:
  steward audit prune
  steward audit prune --days 7`,
	RunE: runAuditPrune,
}

func init() {
	auditTailCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Maximum number of entries to show")
	auditPruneCmd.Flags().IntVar(&pruneDays, "days", -1, "Retention window in days (default: audit.retention_days)")
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditPruneCmd)
}

// auditDBPath resolves the audit database location: explicit config path
// first, XDG data dir otherwise.
func auditDBPath(cfg *config.Config) string {
	if cfg.Audit.Path != "" {
		return cfg.Audit.Path
	}
	return config.DefaultPaths().AuditDBFile()
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Opening would create an empty database; stat first so a fresh
	// install gets a message instead of a file.
	path := auditDBPath(cfg)
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("No audit trail yet. Database not found at: %s\n", path)
		return nil
	}

	rec, err := audit.Open(path, newLogger(cfg, os.Stderr))
	if err != nil {
		return fmt.Errorf("failed to open audit database: %w", err)
	}
	defer rec.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := rec.Recent(ctx, auditLimit)
	if err != nil {
		return fmt.Errorf("failed to query audit trail: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries recorded yet.")
		return nil
	}

	// Recent returns newest first; print oldest at the top.
	for i := len(entries) - 1; i >= 0; i-- {
		printAuditEntry(entries[i])
	}

	fmt.Println()
	fmt.Printf("%sShowing %d audit entry(s)%s\n", colorDim, len(entries), colorReset)

	return nil
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	days := cfg.Audit.RetentionDays
	if pruneDays >= 0 {
		days = pruneDays
	}
	if days == 0 {
		fmt.Println("Retention is disabled (retention of 0 days keeps everything); nothing to prune.")
		return nil
	}

	path := auditDBPath(cfg)
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("No audit trail yet. Database not found at: %s\n", path)
		return nil
	}

	rec, err := audit.Open(path, newLogger(cfg, os.Stderr))
	if err != nil {
		return fmt.Errorf("failed to open audit database: %w", err)
	}
	defer rec.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	removed, err := rec.Prune(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to prune audit trail: %w", err)
	}

	fmt.Printf("Pruned %d entry(s) older than %d days.\n", removed, days)

	return nil
}

func printAuditEntry(e audit.Entry) {
	timestamp := e.RecordedAt.Format("2006-01-02 15:04:05")

	outcome := colorGreen + "ok " + colorReset
	if e.Outcome == audit.OutcomeFailed {
		outcome = colorRed + "err" + colorReset
	}

	subject := e.EntityID
	if e.TargetID != "" {
		subject += " > " + e.TargetID
	}

	fmt.Printf("%s%s%s  [%s]  %s  %s", colorDim, timestamp, colorReset, outcome, padCell(e.Op, 19), subject)

	if e.RequestID != "" {
		fmt.Printf("  %s(%s)%s", colorDim, shortRequestID(e.RequestID), colorReset)
	}
	fmt.Println()

	if e.Outcome == audit.OutcomeFailed && e.Detail != "" {
		fmt.Printf("      %s%s%s\n", colorRed, e.Detail, colorReset)
	}
}

// shortRequestID keeps the first UUID block; enough to grep server logs.
func shortRequestID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
