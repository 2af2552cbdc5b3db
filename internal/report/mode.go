package report

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects the report variant.
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeCombined Mode = "combined"
)

// ErrUnknownMode is returned when an envelope names neither mode.
var ErrUnknownMode = errors.New("unknown report mode")

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSingle:
		return ModeSingle, nil
	case ModeCombined:
		return ModeCombined, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Envelope is the wire form of a Report. Mode is explicit: single reports
// travel in Report, combined ones in CloudData and BackupData.
type Envelope struct {
	Mode       Mode  `json:"mode" validate:"required,oneof=single combined"`
	Report     *Data `json:"report,omitempty"`
	CloudData  *Data `json:"cloudData,omitempty"`
	BackupData *Data `json:"backupData,omitempty"`
}

// Resolve converts the envelope into a Report. Absent tables become zero
// values so that Validate can describe what is missing.
func (e Envelope) Resolve() (Report, error) {
	mode, err := ParseMode(string(e.Mode))
	if err != nil {
		return nil, err
	}
	switch mode {
	case ModeCombined:
		return Combined{Cloud: deref(e.CloudData), Backup: deref(e.BackupData)}, nil
	default:
		return Single{Data: deref(e.Report)}, nil
	}
}

// Wrap builds the envelope for r.
func Wrap(r Report) Envelope {
	switch v := r.(type) {
	case Combined:
		cloud, backup := v.Cloud, v.Backup
		return Envelope{Mode: ModeCombined, CloudData: &cloud, BackupData: &backup}
	case Single:
		data := v.Data
		return Envelope{Mode: ModeSingle, Report: &data}
	}
	return Envelope{}
}

func deref(d *Data) Data {
	if d == nil {
		return Data{}
	}
	return *d
}
