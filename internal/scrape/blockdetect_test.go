package scrape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock_CloudflareChallenge(t *testing.T) {
	blocked, bt := DetectBlock("<html><body>Checking your browser before accessing my.bursamalaysia.com</body></html>")
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)
}

func TestDetectBlock_Captcha(t *testing.T) {
	blocked, bt := DetectBlock(`<html><div class="g-recaptcha" data-sitekey="x"></div></html>`)
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, bt)
}

func TestDetectBlock_AccessDenied(t *testing.T) {
	blocked, bt := DetectBlock("<html><head><title>Access Denied</title></head></html>")
	assert.True(t, blocked)
	assert.Equal(t, BlockAccess, bt)
}

func TestDetectBlock_JSShell(t *testing.T) {
	blocked, bt := DetectBlock("<html><noscript>Enable JavaScript to continue</noscript></html>")
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, bt)
}

func TestDetectBlock_CleanPage(t *testing.T) {
	html := `<html><body><div class="stock-table-body">` + strings.Repeat("<div>row</div>", 400) + `</div></body></html>`
	blocked, bt := DetectBlock(html)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}

func TestDetectBlock_Empty(t *testing.T) {
	blocked, bt := DetectBlock("")
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}
