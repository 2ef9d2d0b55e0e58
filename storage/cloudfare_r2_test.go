package storage

import (
	"context"
	"net/url"
	"testing"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base string
		key  string
		want string
	}{
		{"https://cdn.example.com/", "rankings/season-1.csv", "https://cdn.example.com/rankings/season-1.csv"},
		{"https://cdn.example.com/", "/rankings/season-1.csv", "https://cdn.example.com/rankings/season-1.csv"},
		{"https://cdn.example.com/exports/", "season-2.csv", "https://cdn.example.com/exports/season-2.csv"},
		{"https://cdn.example.com/", "", ""},
	}
	for _, tt := range tests {
		base, err := url.Parse(tt.base)
		if err != nil {
			t.Fatal(err)
		}
		if got := PublicURL(base, tt.key); got != tt.want {
			t.Errorf("PublicURL(%q, %q) = %q, want %q", tt.base, tt.key, got, tt.want)
		}
	}
}

func TestNewCloudflareR2Uploader_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewCloudflareR2Uploader(ctx, CloudflareR2UploaderConfig{AccountID: "acc"}); err == nil {
		t.Error("expected error for incomplete config")
	}

	cfg := CloudflareR2UploaderConfig{
		AccountID:       "acc",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "exports",
		PublicBaseURL:   "not a url",
	}
	if _, err := NewCloudflareR2Uploader(ctx, cfg); err == nil {
		t.Error("expected error for invalid public base URL")
	}

	cfg.PublicBaseURL = "https://cdn.example.com/exports"
	u, err := NewCloudflareR2Uploader(ctx, cfg)
	if err != nil {
		t.Fatalf("NewCloudflareR2Uploader: %v", err)
	}
	if got := u.GetPublicURL("season-3.csv"); got != "https://cdn.example.com/exports/season-3.csv" {
		t.Errorf("GetPublicURL = %q", got)
	}
}
