package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// NewAvailabilityTool returns the Availability tool. Its input is ignored; it always
// reports every hospital's current wait time.
func NewAvailabilityTool(catalog *Catalog, waits WaitTimeSource) (*FuncTool, error) {
	if waits == nil {
		return nil, errors.New("availability tool requires a wait time source")
	}
	entry, err := catalog.Entry(NameAvailability)
	if err != nil {
		return nil, err
	}
	return NewFuncTool(entry, func(ctx context.Context, _ string) (string, error) {
		all, err := waits.All(ctx)
		if err != nil {
			return "", fmt.Errorf("availability lookup failed: %w", err)
		}
		// encoding/json sorts map keys, so the observation is stable across calls.
		out, err := json.Marshal(all)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}), nil
}
