package dispatch

import "github.com/ardanlabs/loans/business/sys/config"

// Type categorizes a notification for the subscriber's preferences.
type Type string

// Set of notification types the app is registered for.
const (
	TypePromotional   Type = "promotional"
	TypeTransactional Type = "transactional"
)

// Payload is the content of a single notification.
type Payload struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
	Icon  string `json:"icon" validate:"omitempty,url"`
	URL   string `json:"url" validate:"omitempty,url"`
	Type  Type   `json:"type" validate:"required,oneof=promotional transactional"`
}

// BlockPayload announces a new block on the chain.
func BlockPayload(cfg *config.App, number string) Payload {
	return Payload{
		Title: "New block",
		Body:  number,
		Icon:  cfg.AssetURL("eth-glyph.svg"),
		URL:   cfg.BlockURL(number),
		Type:  TypeTransactional,
	}
}

// TestPayload is the notification sent on demand to check delivery.
func TestPayload(cfg *config.App) Payload {
	return Payload{
		Title: "GM Hacker",
		Body:  "Hack it until you make it!",
		Icon:  cfg.AssetURL("walletconnect-blue.svg"),
		URL:   cfg.AppOrigin,
		Type:  TypePromotional,
	}
}
