// Package models defines data structures for the converter.
package models

import "time"

// SourceRecord is one row of a Mythic Tools collection export.
type SourceRecord struct {
	Quantity        string `csv:"Quantity" json:"quantity"`
	CardName        string `csv:"Card Name" json:"card_name"`
	SetCode         string `csv:"Set Code" json:"set_code"`
	CollectorNumber string `csv:"Collector Number" json:"collector_number"`
	Language        string `csv:"Language" json:"language"`
	Finish          string `csv:"Finish" json:"finish"`
	Condition       string `csv:"Condition" json:"condition"`
}

// OutputRecord is one row of a Moxfield collection import.
type OutputRecord struct {
	Count           string `csv:"Count" json:"count"`
	Name            string `csv:"Name" json:"name"`
	Set             string `csv:"Set" json:"set"`
	CollectorNumber string `csv:"Collector Number" json:"collector_number"`
	Language        string `csv:"Language" json:"language"`
	Foil            string `csv:"Foil" json:"foil"`
	Condition       string `csv:"Condition" json:"condition"`
}

// ConversionResult holds the overall result of an enrichment run
type ConversionResult struct {
	Records        []*OutputRecord
	Unresolved     []string
	Processed      int
	MissesByReason map[string]int
	StartTime      time.Time
	EndTime        time.Time
}
