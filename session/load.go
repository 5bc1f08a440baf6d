package session

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kastheco/mountie/device"
)

// LoadEntries lists the devices and reads their attributes concurrently.
// Entries keep the order of the listing.
func LoadEntries(ctx context.Context, dm DeviceManager) ([]device.Entry, error) {
	descs, err := dm.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	entries := make([]device.Entry, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxAttributeReaders)
	for i, d := range descs {
		g.Go(func() error {
			attrs, err := dm.ReadAttributes(gctx, d)
			if err != nil {
				return fmt.Errorf("read attributes of %s: %w", d.Handle, err)
			}
			entries[i] = device.Entry{Descriptor: d, Info: attrs.Info, State: attrs.State}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
