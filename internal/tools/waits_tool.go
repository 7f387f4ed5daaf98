package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrHospitalNotFound is returned by a WaitTimeSource for an unknown hospital.
var ErrHospitalNotFound = errors.New("hospital not found")

// WaitTimeSource reports current emergency wait times in minutes.
type WaitTimeSource interface {
	Current(ctx context.Context, hospital string) (int, error)
	All(ctx context.Context) (map[string]int, error)
}

// WaitTime is the observation returned by the Waits tool.
type WaitTime struct {
	HospitalName    string `json:"hospital_name"`
	CurrentWaitTime int    `json:"current_wait_time"`
}

// NewWaitsTool returns the Waits tool. The model is told to pass the bare hospital
// name; the input is only trimmed, never rewritten.
func NewWaitsTool(catalog *Catalog, waits WaitTimeSource) (*FuncTool, error) {
	if waits == nil {
		return nil, errors.New("waits tool requires a wait time source")
	}
	entry, err := catalog.Entry(NameWaits)
	if err != nil {
		return nil, err
	}
	return NewFuncTool(entry, func(ctx context.Context, hospital string) (string, error) {
		hospital = strings.TrimSpace(hospital)
		if hospital == "" {
			return "", fmt.Errorf("%w: a hospital name is required", ErrEmptyInput)
		}
		minutes, err := waits.Current(ctx, hospital)
		if errors.Is(err, ErrHospitalNotFound) {
			return fmt.Sprintf("Hospital %s does not exist.", hospital), nil
		}
		if err != nil {
			return "", fmt.Errorf("wait time lookup failed: %w", err)
		}
		out, err := json.Marshal(WaitTime{HospitalName: hospital, CurrentWaitTime: minutes})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}), nil
}
