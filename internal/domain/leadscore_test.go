package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const scoreYear = 2025

func TestComputeLeadScoreBaseline(t *testing.T) {
	score := ComputeLeadScoreAt(LeadScoreInputs{Status: StatusPending}, scoreYear)
	assert.Equal(t, 5.0, score)
}

func TestComputeLeadScoreClampsHigh(t *testing.T) {
	// 5 + 0.5*4 + 1.0 (age 2) + 2.0 (sale) + 1.0 (follow-up) + 0.5 (comments) = 11.5
	score := ComputeLeadScoreAt(LeadScoreInputs{
		Product:         "Transmission",
		CarMake:         "Honda",
		CarModel:        "Accord",
		ZipCode:         "94110",
		VehicleYear:     scoreYear - 2,
		Status:          StatusSale,
		HasFollowUpDate: true,
		Comments:        "customer ready to close today",
	}, scoreYear)
	assert.Equal(t, 10.0, score)
}

func TestComputeLeadScoreNotInterested(t *testing.T) {
	score := ComputeLeadScoreAt(LeadScoreInputs{Status: StatusNotInterested}, scoreYear)
	assert.Equal(t, 3.0, score)
}

func TestComputeLeadScoreVehicleAgeBands(t *testing.T) {
	base := LeadScoreInputs{Status: StatusPending}

	recent := base
	recent.VehicleYear = scoreYear - 5
	assert.Equal(t, 6.0, ComputeLeadScoreAt(recent, scoreYear))

	middling := base
	middling.VehicleYear = scoreYear - 10
	assert.Equal(t, 5.5, ComputeLeadScoreAt(middling, scoreYear))

	old := base
	old.VehicleYear = scoreYear - 11
	assert.Equal(t, 5.0, ComputeLeadScoreAt(old, scoreYear))
}

func TestComputeLeadScoreCommentsThreshold(t *testing.T) {
	short := ComputeLeadScoreAt(LeadScoreInputs{Status: StatusPending, Comments: "twenty characters ok"}, scoreYear)
	assert.Equal(t, 5.0, short, "exactly 20 characters earns nothing")

	long := ComputeLeadScoreAt(LeadScoreInputs{Status: StatusPending, Comments: "twenty-one characters"}, scoreYear)
	assert.Equal(t, 5.5, long)
}

func TestComputeLeadScoreAlwaysBoundedAndRounded(t *testing.T) {
	inputs := []LeadScoreInputs{
		{Status: StatusWrongNumber},
		{Status: StatusNotInterested, VehicleYear: scoreYear - 30},
		{Status: StatusSale, Product: "p", CarMake: "m", CarModel: "c", ZipCode: "z", VehicleYear: scoreYear, HasFollowUpDate: true},
		{Status: Status("bogus")},
	}
	for _, in := range inputs {
		score := ComputeLeadScoreAt(in, scoreYear)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 10.0)
		assert.Equal(t, math.Round(score*10)/10, score, "score must be rounded to one decimal")
	}
}
