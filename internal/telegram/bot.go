package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lelongwatch/internal/models"
	"lelongwatch/internal/store"
)

const (
	maxSearchResults = 15
	maxListedChanges = 20
	pollTimeout      = 30 * time.Second
)

var priceDigitsRe = regexp.MustCompile(`[^\d.]`)

// typeAliases maps command shorthand to canonical property types.
var typeAliases = map[string]string{
	"factory":   "Factory",
	"warehouse": "Warehouse",
	"shop":      "Shop",
	"office":    "Office",
	"retail":    "Retail",
	"land":      "Land",
	"hotel":     "Hotel",
	"resort":    "Resort",
	"semid":     "Semi-D",
	"semi-d":    "Semi-D",
	"bungalow":  "Bungalow",
	"villa":     "Villa",
	"condo":     "Condominium",
	"apartment": "Apartment",
}

// Bot answers chat commands with read-only queries over the persisted
// store. It never writes data files; the monitor owns those.
type Bot struct {
	notifier   *Notifier
	store      *store.Store
	logger     *logrus.Logger
	client     *http.Client
	properties map[string]*models.StoredProperty
	lastUpdate int64
}

func NewBot(notifier *Notifier, st *store.Store, logger *logrus.Logger) *Bot {
	b := &Bot{
		notifier: notifier,
		store:    st,
		logger:   logger,
		client: &http.Client{
			Timeout: pollTimeout + 5*time.Second,
		},
	}
	b.reload()
	return b
}

func (b *Bot) reload() {
	b.properties = b.store.LoadProperties()
	b.logger.WithField("properties", len(b.properties)).Info("Bot data loaded")
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// Run long-polls Telegram for commands until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Bot started, listening for commands")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WithError(err).Warn("Polling failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			b.lastUpdate = u.UpdateID
			if u.Message != nil {
				b.handleMessage(strconv.FormatInt(u.Message.Chat.ID, 10), u.Message.Text)
			}
		}
	}
}

func (b *Bot) getUpdates(ctx context.Context) ([]update, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates", b.notifier.apiBase, b.notifier.config.BotToken)
	params := url.Values{
		"offset":  []string{strconv.FormatInt(b.lastUpdate+1, 10)},
		"timeout": []string{strconv.Itoa(int(pollTimeout.Seconds()))},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getUpdates returned status %d", resp.StatusCode)
	}

	var payload struct {
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return payload.Result, nil
}

func (b *Bot) handleMessage(chatID, text string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		b.send(chatID, "Send /help to see available commands.")
		return
	}

	command, args := text, ""
	if idx := strings.IndexAny(text, " \t"); idx > 0 {
		command, args = text[:idx], strings.TrimSpace(text[idx+1:])
	}
	// strip @botname suffix
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	command = strings.ToLower(command)

	switch command {
	case "/start", "/help":
		b.cmdHelp(chatID)
	case "/status":
		b.cmdStatus(chatID)
	case "/new":
		b.cmdNew(chatID)
	case "/changes":
		b.cmdChanges(chatID)
	case "/search":
		b.cmdSearch(chatID, args)
	case "/type":
		b.cmdType(chatID, args)
	case "/under":
		b.cmdPriceBound(chatID, args, false)
	case "/above":
		b.cmdPriceBound(chatID, args, true)
	case "/location":
		b.cmdLocation(chatID, args)
	case "/summary":
		b.cmdSummary(chatID)
	case "/reload":
		b.reload()
		b.send(chatID, fmt.Sprintf("🔄 Data reloaded: %d properties", len(b.properties)))
	default:
		b.send(chatID, "Unknown command. Send /help to see available commands.")
	}
}

func (b *Bot) send(chatID, text string) {
	if err := b.notifier.SendTo(chatID, text); err != nil {
		b.logger.WithError(err).Error("Failed to send bot reply")
	}
}

func (b *Bot) cmdHelp(chatID string) {
	var m strings.Builder
	m.WriteString("🤖 <b>Lelong Property Bot - Commands</b>\n\n")
	m.WriteString("<b>Search:</b>\n")
	m.WriteString("/search <i>keyword</i> - Search by keyword\n")
	m.WriteString("/type <i>type</i> - Filter by type (factory, shop, land, hotel, office, warehouse, semid)\n")
	m.WriteString("/under <i>price</i> - Properties under price (e.g. /under 500000)\n")
	m.WriteString("/above <i>price</i> - Properties above price\n")
	m.WriteString("/location <i>area</i> - Filter by location\n\n")
	m.WriteString("<b>Status:</b>\n")
	m.WriteString("/status - Latest scan statistics\n")
	m.WriteString("/new - New listings from last scan\n")
	m.WriteString("/changes - Recent property changes\n")
	m.WriteString("/summary - Market summary by type\n")
	m.WriteString("/reload - Reload data from files\n")
	b.send(chatID, m.String())
}

func (b *Bot) cmdStatus(chatID string) {
	stats := b.store.LoadDailyStats()
	progress := b.store.LoadProgress()

	var m strings.Builder
	m.WriteString("📊 <b>Latest Scan Status</b>\n\n")

	if stats != nil {
		m.WriteString(fmt.Sprintf("📅 Last Scan: %s\n", html.EscapeString(prettyDate(stats.Date))))
		m.WriteString(fmt.Sprintf("📈 Total Listings: %d\n", stats.TotalListings))
		m.WriteString(fmt.Sprintf("📁 Total Tracked: %d\n", stats.TotalTracked))
		m.WriteString(fmt.Sprintf("🆕 New Listings: %d\n", stats.NewListings))
		m.WriteString(fmt.Sprintf("🔄 Changes: %d\n\n", stats.ChangedProperties))
	}

	if progress != nil {
		m.WriteString("<b>Scraping Performance:</b>\n")
		m.WriteString(fmt.Sprintf("• Pages: %d/%d\n", progress.PagesCompleted, progress.TotalPages))
		m.WriteString(fmt.Sprintf("• Properties: %d\n", progress.PropertiesExtracted))
		m.WriteString(fmt.Sprintf("• Success: %.1f%%\n", progress.SuccessRate))
		m.WriteString(fmt.Sprintf("• Coverage: %.1f%%\n", progress.CoveragePercentage))
		m.WriteString(fmt.Sprintf("• Duplicates Filtered: %d\n", progress.DuplicatesSkipped))
	}

	if stats == nil && progress == nil {
		m.WriteString("No scan data available yet.")
	}

	m.WriteString(fmt.Sprintf("\n\n💾 Database: %d properties", len(b.properties)))
	b.send(chatID, m.String())
}

func (b *Bot) cmdNew(chatID string) {
	history := b.store.LoadScanHistory()
	if len(history) == 0 {
		b.send(chatID, "📭 No scan history available yet. Run the scraper first.")
		return
	}

	last := history[len(history)-1]
	scanDate := prettyDate(last.ScanDate)
	if len(last.NewListingIDs) == 0 {
		b.send(chatID, fmt.Sprintf("📭 No new listings found in last scan (%s).", html.EscapeString(scanDate)))
		return
	}

	var m strings.Builder
	m.WriteString(fmt.Sprintf("🆕 <b>New Listings from %s</b>\n", html.EscapeString(scanDate)))
	m.WriteString(fmt.Sprintf("Found %d new listing(s)\n\n", len(last.NewListingIDs)))

	count := 0
	for _, id := range last.NewListingIDs {
		if count >= maxListedChanges {
			break
		}
		if prop, ok := b.properties[id]; ok {
			count++
			m.WriteString(formatProperty(&prop.PropertyRecord, count) + "\n")
		}
	}
	if len(last.NewListingIDs) > maxListedChanges {
		m.WriteString(fmt.Sprintf("\n... and %d more", len(last.NewListingIDs)-maxListedChanges))
	}
	b.send(chatID, m.String())
}

func (b *Bot) cmdChanges(chatID string) {
	history := b.store.LoadScanHistory()
	if len(history) == 0 {
		b.send(chatID, "📭 No change history available yet.")
		return
	}

	last := history[len(history)-1]
	scanDate := prettyDate(last.ScanDate)
	if len(last.Changes) == 0 {
		b.send(chatID, fmt.Sprintf("✨ No property changes detected in last scan (%s).", html.EscapeString(scanDate)))
		return
	}

	var m strings.Builder
	m.WriteString(fmt.Sprintf("🔄 <b>Property Changes from %s</b>\n", html.EscapeString(scanDate)))
	m.WriteString(fmt.Sprintf("Found %d change(s)\n\n", len(last.Changes)))

	for i, change := range last.Changes {
		if i >= maxListedChanges {
			m.WriteString(fmt.Sprintf("... and %d more", len(last.Changes)-maxListedChanges))
			break
		}
		m.WriteString(fmt.Sprintf("<b>%d. %s</b>\n", i+1, html.EscapeString(change.Title)))
		m.WriteString(fmt.Sprintf("   %s: <s>%s</s> → <b>%s</b>\n\n",
			html.EscapeString(change.Field),
			html.EscapeString(change.OldValue),
			html.EscapeString(change.NewValue)))
	}
	b.send(chatID, m.String())
}

func (b *Bot) cmdSearch(chatID, query string) {
	if query == "" {
		b.send(chatID, "Usage: /search <i>keyword</i>\nExample: /search shah alam factory")
		return
	}

	terms := strings.Fields(strings.ToLower(query))
	var results []*models.StoredProperty
	for _, prop := range b.properties {
		searchable := strings.ToLower(strings.Join([]string{
			prop.Title, prop.Location, prop.PropertyType, prop.Size,
		}, " "))
		match := true
		for _, term := range terms {
			if !strings.Contains(searchable, term) {
				match = false
				break
			}
		}
		if match {
			results = append(results, prop)
		}
	}

	if len(results) == 0 {
		b.send(chatID, fmt.Sprintf("🔍 No results for '<b>%s</b>'", html.EscapeString(query)))
		return
	}

	b.sendResults(chatID, fmt.Sprintf("🔍 <b>Search: '%s'</b>", html.EscapeString(query)), results,
		"Refine your search.")
}

func (b *Bot) cmdType(chatID, ptype string) {
	if ptype == "" {
		b.send(chatID, "Usage: /type <i>type</i>\nTypes: factory, shop, land, hotel, office, warehouse, semid, bungalow, villa")
		return
	}

	searchType := ptype
	if canonical, ok := typeAliases[strings.ToLower(ptype)]; ok {
		searchType = canonical
	}

	var results []*models.StoredProperty
	for _, prop := range b.properties {
		if strings.Contains(strings.ToLower(prop.PropertyType), strings.ToLower(searchType)) {
			results = append(results, prop)
		}
	}

	if len(results) == 0 {
		b.send(chatID, fmt.Sprintf("🔍 No '%s' properties found.", html.EscapeString(searchType)))
		return
	}

	b.sendResults(chatID, fmt.Sprintf("🏢 <b>%s Properties</b>", html.EscapeString(searchType)), results,
		"Use /under or /location to narrow down.")
}

func (b *Bot) cmdPriceBound(chatID, amountStr string, above bool) {
	usage := "Usage: /under <i>price</i>\nExample: /under 500000"
	if above {
		usage = "Usage: /above <i>price</i>\nExample: /above 1000000"
	}
	if amountStr == "" {
		b.send(chatID, usage)
		return
	}

	normalized := strings.NewReplacer(",", "", "k", "000", "m", "000000").Replace(strings.ToLower(amountStr))
	bound, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		b.send(chatID, "Invalid price. Use numbers like: /under 500000 or /under 500k")
		return
	}

	var results []*models.StoredProperty
	for _, prop := range b.properties {
		price := parsePriceValue(prop.Price)
		if above && price >= bound {
			results = append(results, prop)
		}
		if !above && price > 0 && price <= bound {
			results = append(results, prop)
		}
	}

	direction := "Under"
	if above {
		direction = "Above"
	}
	if len(results) == 0 {
		b.send(chatID, fmt.Sprintf("🔍 No properties %s RM%s", strings.ToLower(direction), formatBound(bound)))
		return
	}

	b.sendResults(chatID, fmt.Sprintf("💰 <b>Properties %s RM%s</b>", direction, formatBound(bound)), results,
		"Use /search or /type to narrow down.")
}

func (b *Bot) cmdLocation(chatID, area string) {
	if area == "" {
		b.send(chatID, "Usage: /location <i>area</i>\nExample: /location shah alam")
		return
	}

	areaLower := strings.ToLower(area)
	var results []*models.StoredProperty
	for _, prop := range b.properties {
		if strings.Contains(strings.ToLower(prop.Location), areaLower) {
			results = append(results, prop)
		}
	}

	if len(results) == 0 {
		b.send(chatID, fmt.Sprintf("🔍 No properties found in '%s'", html.EscapeString(area)))
		return
	}

	b.sendResults(chatID, fmt.Sprintf("📍 <b>Properties in '%s'</b>", html.EscapeString(area)), results,
		"Use /under or /type to narrow down.")
}

func (b *Bot) cmdSummary(chatID string) {
	type typeStat struct {
		count int
		total float64
		min   float64
		max   float64
	}

	stats := make(map[string]*typeStat)
	for _, prop := range b.properties {
		ptype := prop.PropertyType
		if ptype == "" {
			ptype = "Other"
		}
		st, ok := stats[ptype]
		if !ok {
			st = &typeStat{min: -1}
			stats[ptype] = st
		}
		st.count++
		if price := parsePriceValue(prop.Price); price > 0 {
			st.total += price
			if st.min < 0 || price < st.min {
				st.min = price
			}
			if price > st.max {
				st.max = price
			}
		}
	}

	types := make([]string, 0, len(stats))
	for t := range stats {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if stats[types[i]].count != stats[types[j]].count {
			return stats[types[i]].count > stats[types[j]].count
		}
		return types[i] < types[j]
	})

	var m strings.Builder
	m.WriteString("📊 <b>Market Summary</b>\n")
	m.WriteString(fmt.Sprintf("Total: %d properties\n\n", len(b.properties)))

	for _, t := range types {
		st := stats[t]
		m.WriteString(fmt.Sprintf("<b>%s</b> (%d)\n", html.EscapeString(t), st.count))
		if st.total > 0 {
			avg := st.total / float64(st.count)
			m.WriteString(fmt.Sprintf("   Avg: RM%s | Range: RM%s - RM%s\n",
				formatBound(avg), formatBound(st.min), formatBound(st.max)))
		}
		m.WriteString("\n")
	}
	b.send(chatID, m.String())
}

func (b *Bot) sendResults(chatID, header string, results []*models.StoredProperty, narrowHint string) {
	sort.Slice(results, func(i, j int) bool {
		return parsePriceValue(results[i].Price) < parsePriceValue(results[j].Price)
	})

	var m strings.Builder
	m.WriteString(header + "\n")
	m.WriteString(fmt.Sprintf("Found %d result(s)\n\n", len(results)))

	for i, prop := range results {
		if i >= maxSearchResults {
			m.WriteString(fmt.Sprintf("\n... and %d more. %s", len(results)-maxSearchResults, narrowHint))
			break
		}
		m.WriteString(formatProperty(&prop.PropertyRecord, i+1) + "\n")
	}
	b.send(chatID, m.String())
}

func formatProperty(prop *models.PropertyRecord, idx int) string {
	var m strings.Builder
	m.WriteString(fmt.Sprintf("<b>%d.</b> <b>%s</b>\n", idx, html.EscapeString(prop.Title)))
	m.WriteString(fmt.Sprintf("   Type: %s\n", html.EscapeString(orNA(prop.PropertyType))))
	m.WriteString(fmt.Sprintf("   Price: %s\n", html.EscapeString(orNA(prop.Price))))
	m.WriteString(fmt.Sprintf("   Location: %s\n", html.EscapeString(orNA(prop.Location))))
	m.WriteString(fmt.Sprintf("   Size: %s\n", html.EscapeString(orNA(prop.Size))))
	m.WriteString(fmt.Sprintf("   Auction: %s\n", html.EscapeString(orNA(prop.AuctionDate))))
	if url := firstNonEmpty(prop.URL, prop.ListingURL); url != "" {
		m.WriteString(fmt.Sprintf("   <a href=\"%s\">View Listing</a>\n", url))
	}
	return m.String()
}

func parsePriceValue(price string) float64 {
	cleaned := priceDigitsRe.ReplaceAllString(price, "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

func prettyDate(iso string) string {
	if t, err := time.Parse("2006-01-02T15:04:05.999999", iso); err == nil {
		return t.Format("02 Jan 2006, 03:04 PM")
	}
	return iso
}

func formatBound(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
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

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
