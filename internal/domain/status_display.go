package domain

import "fmt"

type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
)

// StatusDisplay is what clients render for a reservation status.
type StatusDisplay struct {
	Status   ReservationStatus `json:"status"`
	Label    string            `json:"label"`
	Tone     Tone              `json:"tone"`
	Terminal bool              `json:"terminal"`
}

// DisplayFor maps every status explicitly. An unmapped status is an error.
func DisplayFor(s ReservationStatus) (StatusDisplay, error) {
	d := StatusDisplay{Status: s, Terminal: s.IsTerminal()}
	switch s {
	case ReservationStatusDraft:
		d.Label, d.Tone = "Borrador", ToneNeutral
	case ReservationStatusQuoting:
		d.Label, d.Tone = "Cotizando", ToneInfo
	case ReservationStatusPendingApproval:
		d.Label, d.Tone = "Esperando aprobación", ToneWarning
	case ReservationStatusConfirmed:
		d.Label, d.Tone = "Confirmada", ToneSuccess
	case ReservationStatusOnRoute:
		d.Label, d.Tone = "En camino", ToneInfo
	case ReservationStatusInProgress:
		d.Label, d.Tone = "En curso", ToneInfo
	case ReservationStatusCompleted:
		d.Label, d.Tone = "Completada", ToneSuccess
	case ReservationStatusCanceledClient:
		d.Label, d.Tone = "Cancelada por el cliente", ToneDanger
	case ReservationStatusCanceledPro:
		d.Label, d.Tone = "Cancelada por el profesional", ToneDanger
	case ReservationStatusDisputed:
		d.Label, d.Tone = "En disputa", ToneWarning
	default:
		return StatusDisplay{}, fmt.Errorf("no display mapping for reservation status %q", s)
	}
	return d, nil
}
