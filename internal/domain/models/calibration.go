package models

// CalibrationParams are the serialized parameters of the score-to-probability
// mapping. The isotonic fit is stored as ordered (x, y) knots; the Platt
// logistic is the fallback when the isotonic fit is absent or the input
// falls outside its fitted domain.
type CalibrationParams struct {
	IsotonicX []float64 `json:"isotonic_x"`
	IsotonicY []float64 `json:"isotonic_y"`
	PlattA    float64   `json:"platt_a"`
	PlattB    float64   `json:"platt_b"`
	TrainedAt int64     `json:"trained_at"`
	Version   string    `json:"version"`
}

// HasIsotonic reports whether a usable isotonic fit is present.
func (p *CalibrationParams) HasIsotonic() bool {
	return len(p.IsotonicX) >= 2 && len(p.IsotonicX) == len(p.IsotonicY)
}
