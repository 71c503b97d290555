package runner

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// PrintSummary writes a run summary as an aligned two-column table
func PrintSummary(w io.Writer, s *models.RunSummary) error {
	t := &utils.Table{}
	t.AddRow("run", s.RunID)
	t.AddRow("status", s.Status)
	t.AddRow("records", fmt.Sprint(s.TotalRecords))
	t.AddRow("accepted", fmt.Sprint(s.Accepted))
	t.AddRow("rejected", fmt.Sprint(s.Rejected))

	reasons := make([]string, 0, len(s.RejectedByReason))
	for reason := range s.RejectedByReason {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		t.AddRow("  "+reason, fmt.Sprint(s.RejectedByReason[models.RejectReason(reason)]))
	}

	t.AddRow("superseded", fmt.Sprint(s.Superseded))
	t.AddRow("unchanged", fmt.Sprint(s.Unchanged))
	for _, dim := range []models.Dimension{models.DimTime, models.DimProvider, models.DimZone, models.DimWeather} {
		t.AddRow("new "+string(dim), fmt.Sprint(s.NewMembers[dim]))
	}
	t.AddRow("shift facts", fmt.Sprint(s.ShiftFacts))
	t.AddRow("order facts", fmt.Sprint(s.OrderFacts))
	t.AddRow("quarantined", fmt.Sprint(s.Quarantined))
	if !s.EndTime.IsZero() {
		t.AddRow("duration", s.EndTime.Sub(s.StartTime).Round(time.Millisecond).String())
	}
	if s.ErrorMessage != "" {
		t.AddRow("error", s.ErrorMessage)
	}
	return t.Render(w)
}
