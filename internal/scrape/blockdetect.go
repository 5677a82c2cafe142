package scrape

import (
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockAccess     BlockType = "access_denied"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock checks a rendered page snapshot for signs of anti-bot
// protection or an edge error page instead of the exchange UI.
func DetectBlock(html string) (bool, BlockType) {
	lower := strings.ToLower(html)

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "g-recaptcha") ||
		strings.Contains(lower, "h-captcha") ||
		strings.Contains(lower, "captcha-container") {
		return true, BlockCaptcha
	}

	if strings.Contains(lower, "<title>access denied</title>") ||
		strings.Contains(lower, "you don't have permission to access") ||
		strings.Contains(lower, "request blocked") {
		return true, BlockAccess
	}

	// A rendered page that is still a tiny shell never ran its scripts.
	if len(html) < 2000 && strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
		return true, BlockJSShell
	}

	return false, BlockNone
}
