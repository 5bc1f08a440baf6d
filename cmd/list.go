package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kastheco/mountie/device"
)

// DeviceLister reads the device table without touching any device.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]device.Descriptor, error)
	ReadAttributes(ctx context.Context, d device.Descriptor) (device.Attributes, error)
}

// OpenDevices connects to the device service. The returned close function
// releases the connection.
type OpenDevices func() (DeviceLister, func(), error)

// executeList prints one row per device. Split from the command for testing
// without cobra plumbing.
func executeList(ctx context.Context, w io.Writer, devices DeviceLister) error {
	descs, err := devices.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	attrs := make([]device.Attributes, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, d := range descs {
		g.Go(func() error {
			a, err := devices.ReadAttributes(gctx, d)
			if err != nil {
				return fmt.Errorf("read %s: %w", d.Handle, err)
			}
			attrs[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(attrs) == 0 {
		fmt.Fprintln(w, "No removable devices.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tLABEL\tSIZE\tSTATE\tMOUNT POINT")
	for _, a := range attrs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Name, dash(a.Label), a.Size, a.State, dash(a.MountPoint))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// NewListCmd returns the `mountie list` command.
func NewListCmd(open OpenDevices) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "print removable devices and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, closeFn, err := open()
			if err != nil {
				return err
			}
			defer closeFn()
			return executeList(cmd.Context(), cmd.OutOrStdout(), devices)
		},
	}
}
