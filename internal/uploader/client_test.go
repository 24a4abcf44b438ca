package uploader_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tabcap/internal/meeting"
	"tabcap/internal/testsupport"
	"tabcap/internal/uploader"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token() (string, error) { return s.token, s.err }

func sampleArtifact() uploader.Artifact {
	return uploader.Artifact{
		Audio:           []byte("opus-bytes"),
		MIMEType:        "audio/webm;codecs=opus",
		Title:           "Weekly Sync",
		Platform:        meeting.PlatformGoogleMeet,
		MeetingURL:      "https://meet.google.com/abc",
		DurationSeconds: 61.5,
	}
}

func TestUploadSendsMultipartForm(t *testing.T) {
	var gotAuth string
	var fields map[string]string
	var audio []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		fields = map[string]string{}
		for key := range r.MultipartForm.Value {
			fields[key] = r.FormValue(key)
		}
		file, _, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "missing audio", http.StatusBadRequest)
			return
		}
		defer file.Close()
		audio, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"rec-42"}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithUploadEndpoint(srv.URL))
	service := uploader.NewService(cfg, staticTokens{token: "secret-token"})

	id, err := service.Upload(context.Background(), sampleArtifact())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if id != "rec-42" {
		t.Fatalf("id = %q", id)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if string(audio) != "opus-bytes" {
		t.Fatalf("audio = %q", audio)
	}
	if fields["title"] != "Weekly Sync" ||
		fields["platform"] != "GOOGLE_MEET" ||
		fields["duration"] != "61.5" ||
		fields["meetingUrl"] != "https://meet.google.com/abc" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestUploadSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithUploadEndpoint(srv.URL))
	service := uploader.NewService(cfg, staticTokens{token: "t"})

	_, err := service.Upload(context.Background(), sampleArtifact())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v", err)
	}
}

func TestUploadRejectsMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithUploadEndpoint(srv.URL))
	service := uploader.NewService(cfg, staticTokens{token: "t"})

	if _, err := service.Upload(context.Background(), sampleArtifact()); err == nil {
		t.Fatal("expected error for response without recording id")
	}
}

func TestUploadFailsWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should never be sent")
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithUploadEndpoint(srv.URL))
	service := uploader.NewService(cfg, staticTokens{err: io.ErrUnexpectedEOF})

	if _, err := service.Upload(context.Background(), sampleArtifact()); err == nil {
		t.Fatal("expected token error to surface")
	}
}

func TestNoEndpointFinishesCleanly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	service := uploader.NewService(cfg, staticTokens{token: "t"})

	id, err := service.Upload(context.Background(), sampleArtifact())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if id != "" {
		t.Fatalf("id = %q, want empty for local-only finish", id)
	}
}
