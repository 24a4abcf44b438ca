package meeting

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Platform identifies the conferencing product hosting a meeting page.
type Platform string

const (
	PlatformGoogleMeet     Platform = "GOOGLE_MEET"
	PlatformZoom           Platform = "ZOOM"
	PlatformMicrosoftTeams Platform = "MICROSOFT_TEAMS"
	PlatformUnknown        Platform = "UNKNOWN"
)

var displayNames = map[Platform]string{
	PlatformGoogleMeet:     "Google Meet",
	PlatformZoom:           "Zoom",
	PlatformMicrosoftTeams: "Microsoft Teams",
	PlatformUnknown:        "Meeting",
}

var titleCaser = cases.Title(language.English)

// DisplayName returns the human-readable product name for a platform.
func (p Platform) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	cleaned := strings.ReplaceAll(strings.ToLower(string(p)), "_", " ")
	return titleCaser.String(cleaned)
}

// Metadata describes the meeting a tab is showing. Produced by the content
// bridge and attached to a recording session at start. Always well-formed:
// extraction failures fall back to a timestamped platform name rather than
// an empty or missing value.
type Metadata struct {
	Title     string    `json:"title"`
	Platform  Platform  `json:"platform"`
	MeetingID string    `json:"meetingId"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// Fallback builds the guaranteed-valid metadata used when page extraction
// finds nothing useful.
func Fallback(platform Platform, pageURL string, now time.Time) Metadata {
	return Metadata{
		Title:     fmt.Sprintf("%s %s", platform.DisplayName(), now.Format("2006-01-02 15:04")),
		Platform:  platform,
		MeetingID: "",
		URL:       pageURL,
		Timestamp: now,
	}
}

// TitleFromURL derives a last-resort meeting title from the page URL. Used
// by the popup when the content bridge is unreachable.
func TitleFromURL(pageURL string, now time.Time) string {
	platform := DetectPlatform(pageURL)
	if platform != PlatformUnknown {
		return Fallback(platform, pageURL, now).Title
	}
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return Fallback(PlatformUnknown, pageURL, now).Title
	}
	return fmt.Sprintf("%s %s", parsed.Host, now.Format("2006-01-02 15:04"))
}
