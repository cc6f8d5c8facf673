package review

import "fmt"

// Confidence bands used in summaries
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
	BandNone   = "none"
)

// Threshold defines the auto-approval boundary and the reporting bands
type Threshold struct {
	AutoApprove int // Default: 95
	High        int // Default: 95
	Medium      int // Default: 70
}

// DefaultThreshold returns the default threshold configuration
func DefaultThreshold() Threshold {
	return Threshold{
		AutoApprove: 95,
		High:        95,
		Medium:      70,
	}
}

// NewThreshold returns the default bands with the given auto-approve threshold
func NewThreshold(autoApprove int) Threshold {
	t := DefaultThreshold()
	t.AutoApprove = autoApprove
	return t
}

// Validate ensures threshold values are within [0,100] and the bands are ordered
func (t Threshold) Validate() error {
	if t.AutoApprove < 0 || t.AutoApprove > 100 {
		return fmt.Errorf("auto-approve threshold must be between 0 and 100, got %d", t.AutoApprove)
	}
	if t.High < 0 || t.High > 100 {
		return fmt.Errorf("high band must be between 0 and 100, got %d", t.High)
	}
	if t.Medium < 1 || t.Medium >= t.High {
		return fmt.Errorf("medium band must be between 1 and high (%d), got %d", t.High, t.Medium)
	}
	return nil
}

// ShouldAutoApprove returns true when confidence reaches the threshold and a target exists
func (t Threshold) ShouldAutoApprove(confidence int, hasTarget bool) bool {
	return hasTarget && confidence >= t.AutoApprove
}

// Band classifies a confidence for reporting
func (t Threshold) Band(confidence int) string {
	switch {
	case confidence >= t.High:
		return BandHigh
	case confidence >= t.Medium:
		return BandMedium
	case confidence > 0:
		return BandLow
	default:
		return BandNone
	}
}

// Breakdown counts candidates per confidence band
type Breakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	None   int `json:"none"`
}

// Add counts one confidence
func (b *Breakdown) Add(t Threshold, confidence int) {
	switch t.Band(confidence) {
	case BandHigh:
		b.High++
	case BandMedium:
		b.Medium++
	case BandLow:
		b.Low++
	default:
		b.None++
	}
}
