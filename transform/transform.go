// Package transform maps Mythic Tools records onto the Moxfield schema.
package transform

import (
	"strings"

	"github.com/aluiziolira/mythic-to-moxfield/models"
)

const (
	// FoilMarker is the Moxfield value for a foil card.
	FoilMarker = "foil"

	nonFoilFinish = "nonfoil"
)

// Mythic Tools grades collapse onto the five Moxfield grades: EX and LP are
// both Lightly Played, PL and MP are both Moderately Played, G is Heavily
// Played.
var conditionTable = map[string]string{
	"NM":  "Near Mint",
	"EX":  "Lightly Played",
	"LP":  "Lightly Played",
	"G":   "Heavily Played",
	"PL":  "Moderately Played",
	"MP":  "Moderately Played",
	"HP":  "Heavily Played",
	"DMG": "Damaged",
}

// MapCondition converts a Mythic Tools condition code. Unknown codes are
// returned unchanged.
func MapCondition(code string) string {
	if mapped, ok := conditionTable[code]; ok {
		return mapped
	}
	return code
}

// Foil returns FoilMarker for every finish except the exact "nonfoil".
func Foil(finish string) string {
	if finish == nonFoilFinish {
		return ""
	}
	return FoilMarker
}

// NormalizeSet lower-cases a set code.
func NormalizeSet(setCode string) string {
	return strings.ToLower(setCode)
}

// Transform builds the output row for src using the resolved English name.
func Transform(src *models.SourceRecord, name string) *models.OutputRecord {
	return &models.OutputRecord{
		Count:           src.Quantity,
		Name:            name,
		Set:             NormalizeSet(src.SetCode),
		CollectorNumber: src.CollectorNumber,
		Language:        src.Language,
		Foil:            Foil(src.Finish),
		Condition:       MapCondition(src.Condition),
	}
}
