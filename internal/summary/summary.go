// Package summary renders the daily Telegram report. Output is
// Telegram HTML: every scraped value passes through html escaping
// because listing titles regularly contain ampersands and angle
// brackets.
package summary

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"lelongwatch/internal/detect"
	"lelongwatch/internal/models"
)

const (
	maxNewListingsShown = 3
	maxChangesShown     = 2
)

var numericRe = regexp.MustCompile(`[\d.]+`)

// Formatter renders run outcomes into notification text.
type Formatter struct {
	// MarketPricePerSqft is the reference PSF for savings estimates.
	MarketPricePerSqft float64
}

// Daily renders the full daily summary.
func (f *Formatter) Daily(current map[string]models.PropertyRecord, newListings map[string]models.PropertyRecord, changed map[string]models.ChangedProperty, totalTracked int, stats *models.ScrapeStats, now time.Time) string {
	var b strings.Builder

	hasAlerts := len(newListings) > 0 || len(changed) > 0
	if hasAlerts {
		b.WriteString("🚨 <b>PROPERTY ALERTS &amp; DAILY SUMMARY</b> 🚨\n\n")
	} else {
		b.WriteString("📊 <b>DAILY PROPERTY SUMMARY</b> 📊\n\n")
	}

	b.WriteString("📅 <b>Daily Scan Report</b>\n")
	fmt.Fprintf(&b, "Date: %s\n\n", now.Format("02 Jan 2006, 03:04 PM"))

	b.WriteString("📈 <b>Key Statistics:</b>\n")
	fmt.Fprintf(&b, "• Total Listings Available: <b>%d</b>\n", len(current))
	fmt.Fprintf(&b, "• Total Properties Tracked: <b>%d</b>\n", totalTracked)
	fmt.Fprintf(&b, "• New Listings Today: <b>%d</b>\n", len(newListings))
	fmt.Fprintf(&b, "• Properties with Changes: <b>%d</b>\n\n", len(changed))

	f.writeTypeBreakdown(&b, current)
	f.writeNewListings(&b, newListings)
	f.writeChanges(&b, changed)
	f.writeMarketInsights(&b, current)
	f.writeSystemStatus(&b, stats, now)

	if !hasAlerts {
		b.WriteString("✨ No changes today - market is stable!")
	}

	return b.String()
}

// NoListings renders the notice for a run that found nothing.
func (f *Formatter) NoListings(totalTracked int) string {
	var b strings.Builder
	b.WriteString("⚠️ <b>Daily Property Scan</b> ⚠️\n\n")
	b.WriteString("No properties found in today's scan.\n")
	fmt.Fprintf(&b, "Total tracked: %d\n\n", totalTracked)
	b.WriteString("Will retry tomorrow at 9 AM.")
	return b.String()
}

// RunError renders the notice for a run that failed outright.
func (f *Formatter) RunError(err error, now time.Time) string {
	var b strings.Builder
	b.WriteString("🚨 <b>Property Monitor Error</b> 🚨\n\n")
	b.WriteString("Daily scan failed:\n")
	fmt.Fprintf(&b, "<pre>%s</pre>\n\n", html.EscapeString(err.Error()))
	fmt.Fprintf(&b, "Time: %s\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString("Will retry tomorrow at 9 AM.")
	return b.String()
}

func (f *Formatter) writeTypeBreakdown(b *strings.Builder, current map[string]models.PropertyRecord) {
	counts := make(map[string]int)
	for _, record := range current {
		t := record.PropertyType
		if t == "" {
			t = "Unknown"
		}
		counts[t]++
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	b.WriteString("📋 <b>Property Breakdown:</b>\n")
	for _, t := range types {
		fmt.Fprintf(b, "• %s: %d\n", html.EscapeString(t), counts[t])
	}
	b.WriteString("\n")
}

func (f *Formatter) writeNewListings(b *strings.Builder, newListings map[string]models.PropertyRecord) {
	if len(newListings) == 0 {
		return
	}

	fmt.Fprintf(b, "🆕 <b>NEW LISTINGS TODAY (%d):</b>\n", len(newListings))
	for i, record := range sortedRecords(newListings) {
		if i >= maxNewListingsShown {
			fmt.Fprintf(b, "   ...and %d more new listings!\n", len(newListings)-maxNewListingsShown)
			break
		}
		fmt.Fprintf(b, "%d. <b>%s</b>\n", i+1, html.EscapeString(record.Title))
		fmt.Fprintf(b, "   💰 %s | 📅 %s\n", html.EscapeString(record.Price), html.EscapeString(record.AuctionDate))
		fmt.Fprintf(b, "   📍 %s | 📏 %s\n", html.EscapeString(record.Location), html.EscapeString(record.Size))
		b.WriteString("   " + f.savingsLine(record) + "\n\n")
	}
	b.WriteString("\n")
}

// savingsLine estimates discount against the configured market PSF.
func (f *Formatter) savingsLine(record models.PropertyRecord) string {
	price := float64(record.PriceValue)
	size := parseNumeric(record.Size)
	if price <= 0 || size <= 0 || f.MarketPricePerSqft <= 0 {
		return "📊 Significant discount expected"
	}

	auctionPSF := price / size
	savings := (f.MarketPricePerSqft - auctionPSF) / f.MarketPricePerSqft * 100
	if savings > 0 {
		return fmt.Sprintf("📊 Potential Savings: %.0f%% below market", savings)
	}
	return "📊 Premium property"
}

func (f *Formatter) writeChanges(b *strings.Builder, changed map[string]models.ChangedProperty) {
	if len(changed) == 0 {
		return
	}

	fmt.Fprintf(b, "🔄 <b>PROPERTY CHANGES TODAY (%d):</b>\n", len(changed))

	ids := make([]string, 0, len(changed))
	for id := range changed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		if i >= maxChangesShown {
			fmt.Fprintf(b, "   ...and %d more changes!\n", len(changed)-maxChangesShown)
			break
		}
		entry := changed[id]
		fmt.Fprintf(b, "%d. <b>%s</b>\n", i+1, html.EscapeString(entry.Property.Title))
		for _, change := range entry.Changes {
			switch change.Type {
			case detect.TypePriceChange:
				fmt.Fprintf(b, "   💰 Price: %s → %s\n", html.EscapeString(change.OldValue), html.EscapeString(change.NewValue))
				if line := priceDeltaLine(change.OldValue, change.NewValue); line != "" {
					b.WriteString("   " + line + "\n")
				}
			case detect.TypeAuctionDateChange:
				fmt.Fprintf(b, "   📅 Date: %s → %s\n", html.EscapeString(change.OldValue), html.EscapeString(change.NewValue))
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func priceDeltaLine(oldValue, newValue string) string {
	oldPrice := parsePrice(oldValue)
	newPrice := parsePrice(newValue)
	if oldPrice <= 0 || newPrice <= 0 {
		return ""
	}

	pct := (newPrice - oldPrice) / oldPrice * 100
	if pct > 0 {
		return fmt.Sprintf("📈 Increased by %.1f%%", pct)
	}
	return fmt.Sprintf("📉 Decreased by %.1f%%", -pct)
}

func (f *Formatter) writeMarketInsights(b *strings.Builder, current map[string]models.PropertyRecord) {
	var prices []float64
	for _, record := range current {
		if record.PriceValue > 0 {
			prices = append(prices, float64(record.PriceValue))
		}
	}
	if len(prices) == 0 {
		return
	}

	sum, min, max := 0.0, prices[0], prices[0]
	for _, p := range prices {
		sum += p
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}

	b.WriteString("💡 <b>Market Insights:</b>\n")
	fmt.Fprintf(b, "• Average Price: RM%s\n", formatAmount(sum/float64(len(prices))))
	fmt.Fprintf(b, "• Price Range: RM%s - RM%s\n\n", formatAmount(min), formatAmount(max))
}

func (f *Formatter) writeSystemStatus(b *strings.Builder, stats *models.ScrapeStats, now time.Time) {
	tomorrow := now.AddDate(0, 0, 1)

	b.WriteString("⚙️ <b>System Status:</b>\n")
	b.WriteString("• Monitoring: ✅ Active (Daily)\n")
	if stats != nil {
		fmt.Fprintf(b, "• Pages Scanned: %d/%d\n", stats.PagesCompleted, stats.TotalPages)
		fmt.Fprintf(b, "• Coverage: %.1f%%\n", stats.CoveragePercentage)
		if stats.StoppedEarly {
			fmt.Fprintf(b, "• Stopped Early: %s\n", html.EscapeString(stats.StopReason))
		}
	}
	fmt.Fprintf(b, "• Next Scan: %s, 9:00 AM\n", tomorrow.Format("02 Jan 2006"))
	b.WriteString("• Coverage Area: KL + Selangor\n\n")

	b.WriteString("🔔 <b>Automated Daily Monitoring</b>\n")
	b.WriteString("📱 9 AM Malaysia Time\n")
}

// sortedRecords orders records by ascending price for stable output.
func sortedRecords(records map[string]models.PropertyRecord) []models.PropertyRecord {
	out := make([]models.PropertyRecord, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriceValue != out[j].PriceValue {
			return out[i].PriceValue < out[j].PriceValue
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func parseNumeric(s string) float64 {
	m := numericRe.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

func parsePrice(s string) float64 {
	v := parseNumeric(strings.ReplaceAll(s, "RM", ""))
	if v > 0 && v < 1000 {
		v *= 1000
	}
	return v
}

func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
