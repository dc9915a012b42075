package mic

import "testing"

func TestNewImageFromBytesDetectsJPEG(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	img, err := NewImageFromBytes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src, ok := img.Source.(Base64Source)
	if !ok {
		t.Fatalf("expected Base64Source, got %T", img.Source)
	}
	if src.Mime != "image/jpeg" {
		t.Errorf("Mime = %q, want image/jpeg", src.Mime)
	}
}

func TestNewImageFromBytesDetectsPNG(t *testing.T) {
	data := append([]byte{0x89}, []byte("PNG\r\n\x1a\n")...)
	img, err := NewImageFromBytes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Source.(Base64Source).Mime != "image/png" {
		t.Errorf("Mime = %q, want image/png", img.Source.(Base64Source).Mime)
	}
}

func TestNewImageFromBytesUnrecognizedReturnsError(t *testing.T) {
	_, err := NewImageFromBytes([]byte{0x00, 0x01, 0x02, 0x03})
	if err == nil {
		t.Fatal("expected UnsupportedMediaTypeError")
	}
	var umt *UnsupportedMediaTypeError
	if !asUnsupportedMediaType(err, &umt) {
		t.Fatalf("expected *UnsupportedMediaTypeError, got %T", err)
	}
	if umt.Kind != "image" {
		t.Errorf("Kind = %q, want image", umt.Kind)
	}
}

func TestNewImageFromBytesExceedsMaxSize(t *testing.T) {
	data := make([]byte, MaxImageBytes+1)
	_, err := NewImageFromBytes(data)
	if err == nil {
		t.Fatal("expected size-limit error")
	}
}

func TestNewImageFromURLNeverInspectsContent(t *testing.T) {
	img := NewImageFromURL("https://example.com/cat.png")
	src, ok := img.Source.(URLSource)
	if !ok {
		t.Fatalf("expected URLSource, got %T", img.Source)
	}
	if src.URL != "https://example.com/cat.png" {
		t.Errorf("URL = %q", src.URL)
	}
}

func TestNewAudioFromBytesDetectsWAV(t *testing.T) {
	data := append([]byte("RIFF"), append(make([]byte, 4), []byte("WAVE")...)...)
	audio, err := NewAudioFromBytes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio.Source.(Base64Source).Mime != string(AudioWAV) {
		t.Errorf("Mime = %q, want %q", audio.Source.(Base64Source).Mime, AudioWAV)
	}
}

func TestNewAudioFromBytesExceedsMaxSize(t *testing.T) {
	data := make([]byte, MaxAudioBytes+1)
	_, err := NewAudioFromBytes(data)
	if err == nil {
		t.Fatal("expected size-limit error")
	}
}

func TestNewAudioFromBytesUnrecognizedReturnsError(t *testing.T) {
	_, err := NewAudioFromBytes([]byte{0x01, 0x02, 0x03, 0x04})
	if err == nil {
		t.Fatal("expected UnsupportedMediaTypeError")
	}
}

func TestNewDocumentFromBytesUsesGivenMime(t *testing.T) {
	doc := NewDocumentFromBytes([]byte("%PDF-1.4"), "application/pdf")
	src, ok := doc.Source.(Base64Source)
	if !ok || src.Mime != "application/pdf" {
		t.Fatalf("expected Base64Source with application/pdf, got %#v", doc.Source)
	}
}

func TestNewDocumentFromTextUsesTextSource(t *testing.T) {
	doc := NewDocumentFromText("a,b,c\n1,2,3", "text/csv")
	src, ok := doc.Source.(TextSource)
	if !ok {
		t.Fatalf("expected TextSource, got %T", doc.Source)
	}
	if src.Data != "a,b,c\n1,2,3" || src.Mime != "text/csv" {
		t.Errorf("unexpected TextSource: %#v", src)
	}
}

func TestNewDocumentFromURL(t *testing.T) {
	doc := NewDocumentFromURL("https://example.com/report.pdf")
	if _, ok := doc.Source.(URLSource); !ok {
		t.Fatalf("expected URLSource, got %T", doc.Source)
	}
}

func TestBase64SourceDataURI(t *testing.T) {
	src := Base64Source{Data: []byte("hi"), Mime: "text/plain"}
	want := "data:text/plain;base64,aGk="
	if got := src.DataURI(); got != want {
		t.Errorf("DataURI() = %q, want %q", got, want)
	}
}

func TestContentPartKindsAreDistinct(t *testing.T) {
	parts := []ContentPart{
		TextPart{Text: "t"},
		ThoughtPart{Thought: "th"},
		ImagePart{},
		AudioPart{},
		DocumentPart{},
		ToolCallPart{},
		ToolOutputPart{},
	}
	seen := map[string]bool{}
	for _, p := range parts {
		k := p.contentPartKind()
		if seen[k] {
			t.Errorf("duplicate content part kind %q", k)
		}
		seen[k] = true
	}
}

func asUnsupportedMediaType(err error, target **UnsupportedMediaTypeError) bool {
	if u, ok := err.(*UnsupportedMediaTypeError); ok {
		*target = u
		return true
	}
	return false
}
