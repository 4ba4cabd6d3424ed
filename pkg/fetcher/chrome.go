package fetcher

import (
	"os/exec"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
)

// chromeBinaries are tried in order: PATH names first, then well-known
// install locations.
var chromeBinaries = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// FindChrome returns the first Chrome or Chromium binary found, or "" when
// none is installed. chromedp then falls back to its own search.
func FindChrome() string {
	for _, name := range chromeBinaries {
		if path, err := lookPath(name); err == nil {
			logger.Debug("found Chrome binary", "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found, dynamic fetch mode may not work")
	return ""
}
