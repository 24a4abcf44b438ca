package meeting

import (
	"net/url"
	"strings"
	"time"
)

// Selector keys the content bridge populates when snapshotting a page.
// These mirror the best-effort DOM queries each platform supports.
const (
	selectorMeetTitle  = "[data-meeting-title]"
	selectorZoomTopic  = ".meeting-topic"
	selectorZoomTitle  = ".meeting-info-container .topic"
	selectorTeamsTitle = "[data-tid='call-title']"
)

type googleMeetExtractor struct{}

func (googleMeetExtractor) Platform() Platform { return PlatformGoogleMeet }

func (googleMeetExtractor) Detect(pageURL string) bool {
	return hostMatches(pageURL, "meet.google.com")
}

func (googleMeetExtractor) Extract(page Page, now time.Time) Metadata {
	title := page.Text(selectorMeetTitle)
	if title == "" {
		title = cleanDocumentTitle(page.Title, "Meet")
	}
	// Meeting code is the URL path: meet.google.com/abc-defg-hij
	meetingID := ""
	if parsed, err := url.Parse(page.URL); err == nil {
		meetingID = strings.Trim(parsed.Path, "/")
	}
	return finish(PlatformGoogleMeet, page, title, meetingID, now)
}

type zoomExtractor struct{}

func (zoomExtractor) Platform() Platform { return PlatformZoom }

func (zoomExtractor) Detect(pageURL string) bool {
	return hostMatches(pageURL, "zoom.us") || hostMatches(pageURL, "zoom.com")
}

func (zoomExtractor) Extract(page Page, now time.Time) Metadata {
	title := page.Text(selectorZoomTopic)
	if title == "" {
		title = page.Text(selectorZoomTitle)
	}
	if title == "" {
		title = cleanDocumentTitle(page.Title, "Zoom")
	}
	// Numeric meeting id lives in the /j/<id> or /wc/<id>/... path segments.
	meetingID := ""
	if parsed, err := url.Parse(page.URL); err == nil {
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		for i, segment := range segments {
			if (segment == "j" || segment == "wc") && i+1 < len(segments) {
				meetingID = segments[i+1]
				break
			}
		}
	}
	return finish(PlatformZoom, page, title, meetingID, now)
}

type teamsExtractor struct{}

func (teamsExtractor) Platform() Platform { return PlatformMicrosoftTeams }

func (teamsExtractor) Detect(pageURL string) bool {
	return hostMatches(pageURL, "teams.microsoft.com") || hostMatches(pageURL, "teams.live.com")
}

func (teamsExtractor) Extract(page Page, now time.Time) Metadata {
	title := page.Text(selectorTeamsTitle)
	if title == "" {
		title = cleanDocumentTitle(page.Title, "Microsoft Teams")
	}
	meetingID := ""
	if parsed, err := url.Parse(page.URL); err == nil {
		if id := parsed.Query().Get("meetingId"); id != "" {
			meetingID = id
		}
	}
	return finish(PlatformMicrosoftTeams, page, title, meetingID, now)
}

func hostMatches(pageURL, host string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	got := strings.ToLower(parsed.Hostname())
	return got == host || strings.HasSuffix(got, "."+host)
}

// cleanDocumentTitle strips the product suffix browsers append to document
// titles ("Weekly Sync | Zoom" -> "Weekly Sync").
func cleanDocumentTitle(title, product string) string {
	title = strings.TrimSpace(title)
	for _, sep := range []string{" | ", " - ", " – "} {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			suffix := strings.TrimSpace(title[idx+len(sep):])
			if strings.EqualFold(suffix, product) || strings.Contains(strings.ToLower(suffix), strings.ToLower(product)) {
				title = strings.TrimSpace(title[:idx])
			}
		}
	}
	if strings.EqualFold(title, product) {
		return ""
	}
	return title
}
