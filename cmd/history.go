package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kastheco/mountie/config/auditlog"
)

const defaultHistoryLimit = 20

// OpenAudit opens the audit log for reading.
type OpenAudit func() (auditlog.Logger, error)

// executeHistory prints audit events, newest first.
func executeHistory(w io.Writer, logger auditlog.Logger, filter auditlog.QueryFilter) error {
	events, err := logger.Query(filter)
	if err != nil {
		return fmt.Errorf("query audit log: %w", err)
	}
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tDEVICE\tMESSAGE")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Kind, dash(e.Device), e.Message)
	}
	return tw.Flush()
}

// NewHistoryCmd returns the `mountie history` command.
func NewHistoryCmd(open OpenAudit) *cobra.Command {
	var (
		limit      int
		deviceName string
	)
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "print recent mounts, unmounts and authentication requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			logger, err := open()
			if err != nil {
				return err
			}
			defer logger.Close()
			return executeHistory(cmd.OutOrStdout(), logger, auditlog.QueryFilter{
				Device: deviceName,
				Limit:  limit,
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "number of events to show")
	historyCmd.Flags().StringVar(&deviceName, "device", "", "only show events for this device (e.g. /dev/sdb1)")
	return historyCmd
}
