package tercile

import (
	"fmt"
	"time"

	"github.com/coastwatch/tercile/internal/field"
)

// PeriodLabels are the human-readable time labels for one forecast
// initialization: the initialization month and one covered period per
// lead window, for use in communication products.
type PeriodLabels struct {
	Init    string
	Windows []string
}

// WindowLabels formats the initialization ("Mar 2024") and the period
// each lead window covers ("Mar-May 2024"). Window i starts edges[i]
// months after initialization and runs through the month before
// edges[i+1].
func WindowLabels(year, month int, spec field.LeadBinSpec) (PeriodLabels, error) {
	if err := spec.Validate(); err != nil {
		return PeriodLabels{}, err
	}
	if month < 1 || month > 12 {
		return PeriodLabels{}, fmt.Errorf("labels: init month %d out of range", month)
	}

	init := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	labels := PeriodLabels{Init: init.Format("Jan 2006")}
	for i := 0; i < spec.Windows(); i++ {
		start := init.AddDate(0, spec[i], 0)
		end := init.AddDate(0, spec[i+1]-1, 0)
		labels.Windows = append(labels.Windows,
			fmt.Sprintf("%s-%s", start.Format("Jan"), end.Format("Jan 2006")))
	}
	return labels, nil
}
