package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	// Scraping configuration
	Scraping struct {
		// Base URL of the auction listing site
		BaseURL string `env:"LELONG_BASE_URL" envDefault:"https://www.lelongtips.com.my"`

		// Search path (query string carries the KL/Selangor commercial filter)
		SearchPath string `env:"LELONG_SEARCH_PATH" envDefault:"/search"`

		// User agent sent with every request
		UserAgent string `env:"SCRAPER_USER_AGENT" envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"`

		// Delay between page requests (politeness rate limit)
		RequestDelay time.Duration `env:"SCRAPER_REQUEST_DELAY" envDefault:"2s"`

		// Per-request timeout
		RequestTimeout time.Duration `env:"SCRAPER_REQUEST_TIMEOUT" envDefault:"30s"`

		// Maximum fetch attempts per page before giving up
		MaxRetries int `env:"SCRAPER_MAX_RETRIES" envDefault:"3"`

		// Initial backoff delay, doubled on each retry
		RetryBaseDelay time.Duration `env:"SCRAPER_RETRY_BASE_DELAY" envDefault:"2s"`

		// Wall-clock budget for a full run
		TimeBudget time.Duration `env:"SCRAPER_TIME_BUDGET" envDefault:"1200s"`

		// Stop the run once this many page-level errors accumulate
		MaxErrors int `env:"SCRAPER_MAX_ERRORS" envDefault:"10"`

		// Stop when coverage exceeds this percentage (runaway duplicate guard)
		CoverageCeiling float64 `env:"SCRAPER_COVERAGE_CEILING" envDefault:"150"`

		// Coverage ceiling is only checked after this many pages
		MinPagesForCoverageStop int `env:"SCRAPER_MIN_PAGES_COVERAGE" envDefault:"5"`

		// Listings per results page, used when estimating page count
		ResultsPerPage int `env:"SCRAPER_RESULTS_PER_PAGE" envDefault:"20"`

		// Hard ceiling on pages scraped in one run
		MaxPages int `env:"SCRAPER_MAX_PAGES" envDefault:"120"`

		// Fallbacks used when pagination discovery fails entirely
		FallbackTotalResults int `env:"SCRAPER_FALLBACK_TOTAL_RESULTS" envDefault:"1650"`
		FallbackTotalPages   int `env:"SCRAPER_FALLBACK_TOTAL_PAGES" envDefault:"83"`
	}

	// Validation configuration
	Validation struct {
		// Admissible price range; values outside are treated as noise
		MinPrice int `env:"MIN_PRICE" envDefault:"50000"`
		MaxPrice int `env:"MAX_PRICE" envDefault:"500000000"`

		// Multiply parsed prices below 1000 by 1000 (site sometimes renders
		// prices in thousands). Heuristic, so it stays switchable.
		PromoteSubThousand bool `env:"PROMOTE_SUB_THOUSAND_PRICES" envDefault:"true"`
	}

	// Storage configuration
	Storage struct {
		// Directory holding the JSON data files
		DataDir string `env:"DATA_DIR" envDefault:"data"`

		// Path of the sqlite run archive
		ArchivePath string `env:"ARCHIVE_PATH" envDefault:"data/archive.db"`

		// Drop stored entries not updated for this many days; 0 keeps forever
		RetentionDays int `env:"STORE_RETENTION_DAYS" envDefault:"0"`
	}

	// Telegram configuration
	Telegram struct {
		BotToken  string `env:"TELEGRAM_BOT_TOKEN"`
		ChatID    string `env:"TELEGRAM_CHAT_ID"`
		IsEnabled bool   `env:"TELEGRAM_ENABLED" envDefault:"true"`
	}

	// Notification content configuration
	Summary struct {
		// Reference market price per sq.ft used for savings estimates
		MarketPricePerSqft float64 `env:"MARKET_PRICE_PER_SQFT" envDefault:"1280"`
	}

	// API server configuration
	Server struct {
		Port int `env:"SERVER_PORT" envDefault:"5250"`

		// Hour of day (local time) for the scheduled daily scan
		ScanHour int `env:"SCAN_HOUR" envDefault:"9"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SearchURL returns the full first-page search URL.
func (c *Config) SearchURL() string {
	return c.Scraping.BaseURL + c.Scraping.SearchPath + "?" + DefaultSearchQuery
}

// DefaultSearchQuery filters commercial property types in KL and Selangor.
const DefaultSearchQuery = "keyword=&property_type%5B%5D=7&property_type%5B%5D=6&property_type%5B%5D=8&property_type%5B%5D=4&property_type%5B%5D=5&state=kl_sel&bank=&listing_status=&input-date=&auction-date=&case=&listing_type=&min_price=&max_price=&min_size=&max_size="
