package model

import (
	"fmt"
	"strings"
)

// Variable identifies one GFAS wildfire emission product.
type Variable int

const (
	CO2Fire Variable = iota
	COFire
	CH4Fire
	NOxFire
	PM2p5Fire
	TPMFire
	TCFire
	OCFire
	BCFire
	CFire
	FRPFire
	NH3Fire

	variableCount
)

type VariableInfo struct {
	Display string
	Field   string
	Table   string
	Unit    string
}

var variables = [...]VariableInfo{
	CO2Fire:   {"Wildfire flux of Carbon Dioxide", "co2fire", "gfas_co2fire_data", "kg/day"},
	COFire:    {"Wildfire flux of Carbon Monoxide", "cofire", "gfas_cofire_data", "kg/day"},
	CH4Fire:   {"Wildfire flux of Methane", "ch4fire", "gfas_ch4fire_data", "kg/day"},
	NOxFire:   {"Wildfire flux of Nitrogen Oxides NOx", "noxfire", "gfas_noxfire_data", "kg/day"},
	PM2p5Fire: {"Wildfire flux of Particulate Matter PM2.5", "pm2p5fire", "gfas_pm2p5fire_data", "kg/day"},
	TPMFire:   {"Wildfire flux of Total Particulate Matter", "tpmfire", "gfas_tpmfire_data", "kg/day"},
	TCFire:    {"Wildfire flux of Total Carbon in Aerosols", "tcfire", "gfas_tcfire_data", "kg/day"},
	OCFire:    {"Wildfire flux of Organic Carbon", "ocfire", "gfas_ocfire_data", "kg/day"},
	BCFire:    {"Wildfire flux of Black Carbon", "bcfire", "gfas_bcfire_data", "kg/day"},
	CFire:     {"Wildfire overall flux of burnt Carbon", "cfire", "gfas_cfire_data", "kg/day"},
	FRPFire:   {"Wildfire radiative power", "frpfire", "gfas_frpfire_data", "W"},
	NH3Fire:   {"Wildfire Flux of Ammonia (NH3)", "nh3fire", "gfas_nh3fire_data", "kg/day"},
}

// Both directions fail to compile when a constant and its table row drift apart.
var (
	_ [int(variableCount) - len(variables)]struct{}
	_ [len(variables) - int(variableCount)]struct{}
)

func Variables() []Variable {
	out := make([]Variable, variableCount)
	for i := range out {
		out[i] = Variable(i)
	}
	return out
}

func (v Variable) Valid() bool { return v >= 0 && v < variableCount }

func (v Variable) Info() VariableInfo {
	if !v.Valid() {
		return VariableInfo{}
	}
	return variables[v]
}

func (v Variable) Field() string   { return v.Info().Field }
func (v Variable) Table() string   { return v.Info().Table }
func (v Variable) Unit() string    { return v.Info().Unit }
func (v Variable) Display() string { return v.Info().Display }

func (v Variable) String() string {
	if !v.Valid() {
		return fmt.Sprintf("Variable(%d)", int(v))
	}
	return variables[v].Field
}

// ParseVariable accepts the field key ("co2fire") or the display name, case
// insensitively.
func ParseVariable(s string) (Variable, error) {
	s = strings.TrimSpace(s)
	for i, info := range variables {
		if strings.EqualFold(s, info.Field) || strings.EqualFold(s, info.Display) {
			return Variable(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariable, s)
}

func (v Variable) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariable, int(v))
	}
	return []byte(v.String()), nil
}

func (v *Variable) UnmarshalText(b []byte) error {
	p, err := ParseVariable(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}
