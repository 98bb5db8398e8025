package metrics

import (
	"math"
	"time"

	"domainwatch/internal/models"
)

// PollSummary summarises how reliably the source answered.
type PollSummary struct {
	SuccessPercent float64 `json:"success_percent"`
	TotalPolls     int     `json:"total_polls"`
	Succeeded      int     `json:"succeeded"`
	Failed         int     `json:"failed"`
	NewDomains     int     `json:"new_domains"`
	AvgDurationMS  float64 `json:"avg_duration_ms"`
	LastError      string  `json:"last_error,omitempty"`
	LastSuccess    string  `json:"last_success,omitempty"`
	LastFailure    string  `json:"last_failure,omitempty"`
}

// Summarize aggregates poll records in chronological order.
func Summarize(records []models.PollRecord) PollSummary {
	var (
		summary       PollSummary
		totalDuration int64
		lastOK        time.Time
		lastFail      time.Time
	)
	for _, rec := range records {
		summary.TotalPolls++
		totalDuration += rec.DurationMS
		summary.NewDomains += len(rec.New)
		if rec.OK {
			summary.Succeeded++
			lastOK = rec.CheckedAt
			continue
		}
		summary.Failed++
		summary.LastError = rec.Error
		lastFail = rec.CheckedAt
	}
	if summary.TotalPolls == 0 {
		return summary
	}

	summary.SuccessPercent = round2(float64(summary.Succeeded) / float64(summary.TotalPolls) * 100)
	summary.AvgDurationMS = round2(float64(totalDuration) / float64(summary.TotalPolls))
	if !lastOK.IsZero() {
		summary.LastSuccess = lastOK.UTC().Format(time.RFC3339)
	}
	if !lastFail.IsZero() {
		summary.LastFailure = lastFail.UTC().Format(time.RFC3339)
	}
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
