package meeting

import (
	"strings"
	"time"
)

// Page is a snapshot of the meeting page the content bridge observed: the
// document URL and title plus the text content of the selectors each
// platform extractor cares about. It stands in for live DOM access, which
// is best-effort by nature; missing selectors simply read as empty.
type Page struct {
	URL       string
	Title     string
	Selectors map[string]string
}

// Text returns the trimmed text for a selector, or "" when absent.
func (p Page) Text(selector string) string {
	if p.Selectors == nil {
		return ""
	}
	return strings.TrimSpace(p.Selectors[selector])
}

// Extractor extracts meeting metadata for one platform. Extract never
// fails: when the page yields nothing it returns Fallback metadata, since
// callers treat the result as non-optional input to session start.
type Extractor interface {
	Platform() Platform
	Detect(pageURL string) bool
	Extract(page Page, now time.Time) Metadata
}

var extractors = []Extractor{
	googleMeetExtractor{},
	zoomExtractor{},
	teamsExtractor{},
}

// DetectPlatform matches a page URL against the known platforms.
func DetectPlatform(pageURL string) Platform {
	for _, ex := range extractors {
		if ex.Detect(pageURL) {
			return ex.Platform()
		}
	}
	return PlatformUnknown
}

// Extract runs the matching platform extractor against the page snapshot.
// Unrecognized pages produce UNKNOWN fallback metadata.
func Extract(page Page, now time.Time) Metadata {
	for _, ex := range extractors {
		if ex.Detect(page.URL) {
			return ex.Extract(page, now)
		}
	}
	return Fallback(PlatformUnknown, page.URL, now)
}

func finish(platform Platform, page Page, title, meetingID string, now time.Time) Metadata {
	title = strings.TrimSpace(title)
	if title == "" {
		return Metadata{
			Title:     Fallback(platform, page.URL, now).Title,
			Platform:  platform,
			MeetingID: meetingID,
			URL:       page.URL,
			Timestamp: now,
		}
	}
	return Metadata{
		Title:     title,
		Platform:  platform,
		MeetingID: meetingID,
		URL:       page.URL,
		Timestamp: now,
	}
}
