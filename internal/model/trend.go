package model

import "time"

// Regime is the qualitative label assigned to a price window.
type Regime string

const (
	RegimeUptrend   Regime = "UPTREND"
	RegimeSideways  Regime = "SIDEWAYS"
	RegimeDowntrend Regime = "DOWNTREND"
)

// Regimes lists every label in display order.
var Regimes = []Regime{RegimeUptrend, RegimeSideways, RegimeDowntrend}

// WindowScore is the scoring result for one rolling window.
type WindowScore struct {
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	DirectionScore  float64   `json:"direction_score"`
	StructureScore  float64   `json:"structure_score"`
	VolatilityScore float64   `json:"volatility_score"`
	TotalScore      float64   `json:"total_score"`
	Label           Regime    `json:"label"`
	Confidence      float64   `json:"confidence"`
}

// TrendSummary aggregates the windows emitted for one series.
type TrendSummary struct {
	Windows            []WindowScore      `json:"windows"`
	Dominant           Regime             `json:"dominant"`
	DominantConfidence float64            `json:"dominant_confidence"`
	Distribution       map[Regime]float64 `json:"distribution"`
	Recent             Regime             `json:"recent"`
}
