package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/finsight-labs/finsight-go/internal/models"
	"github.com/finsight-labs/finsight-go/internal/settings"
)

// timestampLayouts are the shapes the backend uses for dates; the timezone
// is optional.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// relTime renders a backend timestamp as "3 minutes ago", or verbatim if it
// cannot be parsed.
func relTime(s string) string {
	if t, ok := parseTimestamp(s); ok {
		return humanize.Time(t)
	}
	return s
}

func money(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderDashboard(w io.Writer, d models.Dashboard) {
	kpi := newTable(w)
	kpi.SetTitle("Key metrics")
	kpi.AppendHeader(table.Row{"Total volume", "Transactions", "High risk", "SLA breach rate"})
	kpi.AppendRow(table.Row{
		money(d.KPIs.TotalVolume),
		humanize.Comma(int64(d.KPIs.TotalTransactions)),
		humanize.Comma(int64(d.KPIs.HighRiskCount)),
		percent(d.KPIs.SLABreachRate),
	})
	kpi.Render()

	if len(d.Trend) > 0 {
		trend := newTable(w)
		trend.SetTitle("Volume trend")
		trend.AppendHeader(table.Row{"Day", "Volume", "Count", "7d avg"})
		for _, p := range d.Trend {
			trend.AppendRow(table.Row{p.Day, money(p.Volume), humanize.Comma(int64(p.Count)), money(p.Rolling7dAvg)})
		}
		trend.Render()
	}

	if len(d.RiskDistribution) > 0 {
		risk := newTable(w)
		risk.SetTitle("Top exposure")
		risk.AppendHeader(table.Row{"Client", "Rating", "Region", "Exposure", "Region rank", "Quartile"})
		for _, c := range d.RiskDistribution {
			risk.AppendRow(table.Row{c.Name, c.RiskRating, c.Region, money(c.TotalExposure), c.RegionRank, c.ExposureQuartile})
		}
		risk.Render()
	}
}

func renderOperations(w io.Writer, ops []models.Operation) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Operation", "Region", "Status", "Updated", "Details"})
	for _, op := range ops {
		t.AppendRow(table.Row{op.OperationID, op.Region, op.Status, relTime(op.LastUpdated), op.Details})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d operations)\n", len(ops))
}

func renderClients(w io.Writer, clients []models.Client, page int) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Region", "Rating", "Joined"})
	for _, c := range clients {
		t.AppendRow(table.Row{c.ClientID, c.Name, c.Region, c.RiskRating, relTime(c.JoinedDate)})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(page %d, %d clients)\n", page, len(clients))
}

func renderTransactions(w io.Writer, txns []models.Transaction, page int) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Transaction", "Client", "Amount", "Currency", "Status", "Date", "Rating", "SLA breach"})
	for _, tx := range txns {
		breach := ""
		if tx.SLABreachFlag {
			breach = "yes"
		}
		t.AppendRow(table.Row{tx.TransactionID, tx.ClientID, money(tx.Amount), tx.Currency, tx.Status, relTime(tx.TransactionDate), tx.RiskRating, breach})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(page %d, %d transactions)\n", page, len(txns))
}

func renderRisk(w io.Writer, r models.RiskOverview) {
	regional := newTable(w)
	regional.SetTitle("Regional exposure")
	regional.AppendHeader(table.Row{"Region", "Exposure", "Clients"})
	for _, rr := range r.RegionalRisk {
		regional.AppendRow(table.Row{rr.Region, money(rr.Exposure), rr.Count})
	}
	regional.Render()

	dist := newTable(w)
	dist.SetTitle("Rating distribution")
	dist.AppendHeader(table.Row{"Rating", "Count"})
	for _, rc := range r.RiskDistribution {
		dist.AppendRow(table.Row{rc.Rating, humanize.Comma(int64(rc.Count))})
	}
	dist.Render()

	if len(r.FlaggedTransactions) > 0 {
		flagged := newTable(w)
		flagged.SetTitle("Flagged transactions")
		flagged.AppendHeader(table.Row{"ID", "Client", "Amount", "Region", "Date", "Status"})
		for _, f := range r.FlaggedTransactions {
			flagged.AppendRow(table.Row{f.ID, f.Client, money(f.Amount), f.Region, relTime(f.Date), f.Status})
		}
		flagged.Render()
	}
}

func renderPrediction(w io.Writer, model string, p models.Prediction) {
	t := newTable(w)
	t.SetTitle("Model " + model)
	t.AppendHeader(table.Row{"Field", "Value"})
	if p.Prediction != nil {
		t.AppendRow(table.Row{"prediction", *p.Prediction})
	}
	if p.Probability != nil {
		t.AppendRow(table.Row{"probability", percent(*p.Probability)})
	}
	if p.IsAnomaly != nil {
		t.AppendRow(table.Row{"is_anomaly", *p.IsAnomaly == 1})
	}
	if p.AnomalyScore != nil {
		t.AppendRow(table.Row{"anomaly_score", fmt.Sprintf("%.4f", *p.AnomalyScore)})
	}
	t.AppendRow(table.Row{"model_version", p.ModelVersion})
	t.Render()
}

func renderSettings(w io.Writer, s models.Settings) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Setting", "Value", "Allowed"})
	for _, l := range models.Leaves() {
		v, _ := s.Get(l.Section, l.Key)
		allowed := "true, false"
		if !l.Bool {
			allowed = strings.Join(l.Domain, ", ")
		}
		t.AppendRow(table.Row{l.Path(), v, allowed})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "flags: %s\n", strings.Join(settings.DeriveFlags(s).Names(), " "))
}
