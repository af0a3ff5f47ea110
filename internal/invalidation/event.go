// Package invalidation defines the events that announce new or corrected
// emission data for a variable.
package invalidation

import (
	"fmt"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

// IngestEvent is published by the ingestion side after GFAS days for a
// variable have been written. Start and End use the DD-MM-YYYY layout.
type IngestEvent struct {
	Variable string    `json:"variable"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	Version  uint64    `json:"version"`
	TS       time.Time `json:"ts"`
	Source   string    `json:"source,omitempty"`
}

func (e IngestEvent) Validate() error {
	if _, err := model.ParseVariable(e.Variable); err != nil {
		return err
	}
	if _, err := e.Window(); err != nil {
		return err
	}
	if e.Version == 0 {
		return fmt.Errorf("version must be positive")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

func (e IngestEvent) Var() (model.Variable, error) {
	return model.ParseVariable(e.Variable)
}

func (e IngestEvent) Window() (model.Window, error) {
	return model.ParseWindow(e.Start, e.End)
}
