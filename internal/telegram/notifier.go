package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// maxMessageLength is Telegram's practical payload ceiling; longer
// reports are split on line boundaries and tagged "Part i/N".
const maxMessageLength = 4000

// Config carries the bot credentials and delivery switch.
type Config struct {
	BotToken  string
	ChatID    string
	IsEnabled bool
}

// Notifier delivers formatted reports to the configured chat.
type Notifier struct {
	logger  *logrus.Logger
	client  *http.Client
	config  Config
	apiBase string
}

func NewNotifier(config Config, logger *logrus.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		config:  config,
		apiBase: "https://api.telegram.org",
	}
}

// Deliver sends a message to the configured chat, splitting oversized
// payloads. Returns nil without sending when notifications are
// disabled.
func (n *Notifier) Deliver(text string) error {
	if !n.config.IsEnabled {
		return nil
	}
	if n.config.BotToken == "" {
		return errors.New("Telegram bot token is not configured")
	}
	if n.config.ChatID == "" {
		return errors.New("Telegram chat ID is not configured")
	}
	return n.SendTo(n.config.ChatID, text)
}

// SendTo sends a message to an arbitrary chat, splitting as needed.
func (n *Notifier) SendTo(chatID, text string) error {
	parts := splitMessage(text, maxMessageLength)
	for i, part := range parts {
		if len(parts) > 1 {
			part = fmt.Sprintf("Part %d/%d:\n\n%s", i+1, len(parts), part)
			if i > 0 {
				time.Sleep(time.Second)
			}
		}
		if err := n.sendOne(chatID, part); err != nil {
			return fmt.Errorf("failed to send part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

func (n *Notifier) sendOne(chatID, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.config.BotToken)
	payload := map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %v", err)
	}

	resp, err := n.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusNotFound:
			return errors.New("bot not found - please check your token from @BotFather")
		default:
			return fmt.Errorf("Telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}

	return nil
}

// splitMessage breaks text into chunks of at most max bytes, cutting
// at the last newline before the limit where one exists.
func splitMessage(text string, max int) []string {
	var parts []string
	for len(text) > max {
		cut := strings.LastIndex(text[:max], "\n")
		if cut <= 0 {
			cut = max
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	return append(parts, text)
}
