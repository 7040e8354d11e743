package domain

import (
	"math"
	"time"
	"unicode/utf8"
)

// LeadScoreInputs carries the field values the score derives from.
type LeadScoreInputs struct {
	Product         string
	CarMake         string
	CarModel        string
	ZipCode         string
	VehicleYear     int
	Status          Status
	HasFollowUpDate bool
	Comments        string
}

// ComputeLeadScore derives a 0-10 quality score from the record fields,
// rounded to one decimal. The score is recomputed on every relevant field
// change while a record is being edited; it is never set directly.
func ComputeLeadScore(in LeadScoreInputs) float64 {
	return ComputeLeadScoreAt(in, time.Now().Year())
}

// ComputeLeadScoreAt is ComputeLeadScore with the current year injected.
func ComputeLeadScoreAt(in LeadScoreInputs, currentYear int) float64 {
	score := 5.0

	for _, present := range []string{in.Product, in.CarMake, in.CarModel, in.ZipCode} {
		if present != "" {
			score += 0.5
		}
	}

	if in.VehicleYear > 0 {
		age := currentYear - in.VehicleYear
		switch {
		case age <= 5:
			score += 1.0
		case age <= 10:
			score += 0.5
		}
	}

	switch in.Status {
	case StatusSale:
		score += 2.0
	case StatusFollowUpLater:
		score += 1.0
	case StatusNotInterested:
		score -= 2.0
	case StatusWrongNumber:
		score -= 1.0
	}

	if in.HasFollowUpDate {
		score += 1.0
	}
	if utf8.RuneCountInString(in.Comments) > 20 {
		score += 0.5
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return math.Round(score*10) / 10
}
