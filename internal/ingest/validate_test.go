package ingest

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/models"
)

var testLimits = config.IngestConfig{MaxPhotoSizeMB: 15, MaxMediaSizeMB: 50}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestValidateUpload_SniffsRealFormats(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		class models.MediaClass
		want  string
	}{
		{"jpeg searchable", encodeJPEG(t), models.MediaClassSearchable, "image/jpeg"},
		{"png searchable", encodePNG(t), models.MediaClassSearchable, "image/png"},
		{"jpeg general", encodeJPEG(t), models.MediaClassGeneral, "image/jpeg"},
		{"gif general", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00"), models.MediaClassGeneral, "image/gif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateUpload(tt.data, tt.class, testLimits)
			if err != nil {
				t.Fatalf("ValidateUpload: %v", err)
			}
			if got != tt.want {
				t.Errorf("content type = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestValidateUpload_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		class models.MediaClass
	}{
		{"empty file", nil, models.MediaClassSearchable},
		{"text masquerading as photo", []byte("not an image at all"), models.MediaClassSearchable},
		{"gif not searchable", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00"), models.MediaClassSearchable},
		{"pdf not general media", []byte("%PDF-1.4 ..."), models.MediaClassGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateUpload(tt.data, tt.class, testLimits)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestValidateUpload_SizeLimitPerClass(t *testing.T) {
	limits := config.IngestConfig{MaxPhotoSizeMB: 1, MaxMediaSizeMB: 2}

	// A valid jpeg header padded past the photo limit but under the media one.
	big := append(encodeJPEG(t), make([]byte, 1536*1024)...)

	if _, err := ValidateUpload(big, models.MediaClassSearchable, limits); err == nil {
		t.Error("searchable upload over the photo limit should be rejected")
	}
	if _, err := ValidateUpload(big, models.MediaClassGeneral, limits); err != nil {
		t.Errorf("general upload under the media limit should pass: %v", err)
	}
}

func TestValidateUpload_IgnoresDeclaredType(t *testing.T) {
	// The sniffer decides. Content is plain text regardless of any claimed
	// filename or header the client sends.
	_, err := ValidateUpload([]byte("hello.jpg contents that are text"), models.MediaClassSearchable, testLimits)
	if err == nil {
		t.Fatal("text content must be rejected no matter what the client declares")
	}
}
