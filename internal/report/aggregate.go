// Package report turns per-document verification runs into a Report and
// renders it for humans and machines.
package report

import (
	"sort"

	"github.com/harrison/playcheck/internal/models"
)

// Aggregate builds the Report for runs. It is a pure function: the same runs
// always yield the same Report. Failures are ordered by document order, then
// block order.
func Aggregate(runs []models.DocumentRun) models.Report {
	rep := models.Report{
		Documents: make([]models.DocumentReport, 0, len(runs)),
		Failures:  []models.VerificationResult{},
	}

	for _, run := range runs {
		dr := models.DocumentReport{
			Path:      run.Path,
			Results:   run.Results,
			Anomalies: len(run.Anomalies),
			Canceled:  run.Canceled,
		}
		for _, res := range run.Results {
			dr.Counts.Add(res.Status)
		}
		dr.PassRate = passRate(dr.Counts)

		var failures []models.VerificationResult
		for _, res := range run.Results {
			if res.IsFailure() {
				failures = append(failures, res)
			}
		}
		sort.SliceStable(failures, func(i, j int) bool {
			return failures[i].Ordinal < failures[j].Ordinal
		})
		rep.Failures = append(rep.Failures, failures...)

		rep.Totals.Merge(dr.Counts)
		rep.Documents = append(rep.Documents, dr)
		if run.Canceled {
			rep.Canceled = true
		}
	}
	return rep
}

// passRate is passed / executed, or 1 when nothing was executed.
func passRate(c models.Counts) float64 {
	if c.Checked() == 0 {
		return 1
	}
	return float64(c.Passed) / float64(c.Checked())
}
