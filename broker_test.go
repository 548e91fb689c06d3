package imagebroker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mhpenta/imagebroker/ratelimiter"
)

func newTestBroker(client ProviderClient) *Broker {
	flash := NewFlashService(client, FlashModelConfig())
	pro := NewProService(client, ProModelConfig())
	selector := NewModelSelector(flash, pro, DefaultSelectionConfig())
	return NewBroker(selector)
}

func writeTempImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("fake-image-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandleValidation(t *testing.T) {
	b := newTestBroker(&MockProviderClient{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  Request
		code ErrorCode
	}{
		{"empty prompt", Request{Prompt: "   "}, CodeValidationEmptyInput},
		{"count too high", Request{Prompt: "p", Count: 5}, CodeValidationSizeExceeded},
		{"negative count", Request{Prompt: "p", Count: -1}, CodeValidationSizeExceeded},
		{"bad mode", Request{Prompt: "p", Mode: "remix"}, CodeValidationInvalidMode},
		{"too many input images", Request{Prompt: "p", InputImagePaths: []string{"a", "b", "c", "d"}}, CodeValidationFileCount},
		{"missing input image", Request{Prompt: "p", InputImagePaths: []string{"/nonexistent/img.png"}}, CodeFileNotFound},
		{"bad aspect ratio", Request{Prompt: "p", AspectRatio: "7:3"}, CodeValidationInvalidFormat},
		{"edit without source", Request{Prompt: "p", Mode: ModeEdit}, CodeValidationInvalidMode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Handle(ctx, tc.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if ErrorCodeOf(err) != tc.code {
				t.Errorf("got code %s, want %s", ErrorCodeOf(err), tc.code)
			}
		})
	}
}

func TestHandleMissingInputImageIsValidationKind(t *testing.T) {
	b := newTestBroker(&MockProviderClient{})
	_, err := b.Handle(context.Background(), Request{
		Prompt:          "p",
		InputImagePaths: []string{"/nonexistent/img.png"},
	})
	if !IsValidationError(err) {
		t.Errorf("a missing path at the request boundary is a validation error, got %v", err)
	}
}

func TestHandleDirectoryInputImage(t *testing.T) {
	b := newTestBroker(&MockProviderClient{})
	_, err := b.Handle(context.Background(), Request{
		Prompt:          "p",
		InputImagePaths: []string{t.TempDir()},
	})
	if ErrorCodeOf(err) != CodeValidationInvalidPath {
		t.Errorf("got code %s, want %s", ErrorCodeOf(err), CodeValidationInvalidPath)
	}
}

func TestDetectMode(t *testing.T) {
	cases := []struct {
		mode  string
		paths []string
		want  string
	}{
		{ModeAuto, nil, ModeGenerate},
		{ModeAuto, []string{"a.png"}, ModeEdit},
		{ModeAuto, []string{"a.png", "b.png"}, ModeGenerate},
		{ModeGenerate, []string{"a.png"}, ModeGenerate},
		{ModeEdit, []string{"a.png"}, ModeEdit},
	}
	for _, tc := range cases {
		if got := detectMode(tc.mode, tc.paths); got != tc.want {
			t.Errorf("detectMode(%q, %d paths) = %q, want %q", tc.mode, len(tc.paths), got, tc.want)
		}
	}
}

func TestHandleGenerate(t *testing.T) {
	var calls int
	client := &MockProviderClient{
		GenerateContentFunc: func(_ context.Context, _ []ContentPart, _ *GenerationConfig, _ CallOptions) (ProviderResponse, error) {
			calls++
			return &MockResponse{ImageData: [][]byte{[]byte("img")}}, nil
		},
	}
	b := newTestBroker(client)

	resp, err := b.Handle(context.Background(), Request{
		Prompt:    "a detailed landscape",
		Count:     2,
		ModelTier: "auto",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", calls)
	}

	if resp.Mode != ModeGenerate || resp.Tier != TierPro {
		t.Errorf("unexpected routing: mode=%s tier=%s", resp.Mode, resp.Tier)
	}
	if resp.Empty() {
		t.Error("expected a non-empty response")
	}
	if !strings.Contains(resp.Summary, "Generated 2 image(s)") {
		t.Errorf("unexpected summary: %q", resp.Summary)
	}

	st := resp.Structured
	if st["model_tier"] != "pro" || st["model_id"] != ModelProImage {
		t.Errorf("unexpected structured model fields: %v", st)
	}
	if st["auto_selected"] != true {
		t.Error("expected auto_selected true")
	}
	if st["requested"] != 2 || st["returned"] != 2 {
		t.Errorf("unexpected counts: %v/%v", st["requested"], st["returned"])
	}
	if st["thinking_level"] != "high" {
		t.Errorf("unexpected thinking_level %v", st["thinking_level"])
	}
}

func TestHandleExplicitFlashTier(t *testing.T) {
	b := newTestBroker(&MockProviderClient{})

	resp, err := b.Handle(context.Background(), Request{
		Prompt:    "a detailed landscape", // quality keyword would pick pro
		ModelTier: "flash",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Tier != TierFlash {
		t.Errorf("explicit flash request routed to %s", resp.Tier)
	}
	if resp.Structured["auto_selected"] != false {
		t.Error("expected auto_selected false for an explicit tier")
	}
	if resp.Structured["grounding_enabled"] != false {
		t.Error("flash responses must report grounding disabled")
	}
}

func TestHandleUnknownTierFallsBackToAuto(t *testing.T) {
	b := newTestBroker(&MockProviderClient{})

	resp, err := b.Handle(context.Background(), Request{
		Prompt:    "a quick doodle",
		ModelTier: "turbo",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Unknown tier degrades to auto; the speed keyword then picks flash.
	if resp.Tier != TierFlash {
		t.Errorf("expected auto heuristic routing, got %s", resp.Tier)
	}
}

func TestHandleEdit(t *testing.T) {
	path := writeTempImage(t, "source.png")
	client := &MockProviderClient{
		GenerateContentFunc: func(_ context.Context, contents []ContentPart, _ *GenerationConfig, _ CallOptions) (ProviderResponse, error) {
			if len(contents) != 2 || contents[0].IsText() {
				t.Errorf("expected [image, instruction] layout, got %+v", contents)
			}
			return &MockResponse{ImageData: [][]byte{[]byte("edited")}}, nil
		},
	}
	b := newTestBroker(client)

	resp, err := b.Handle(context.Background(), Request{
		Prompt:          "make it blue",
		InputImagePaths: []string{path},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Mode != ModeEdit {
		t.Errorf("expected auto-detected edit mode, got %s", resp.Mode)
	}
	if !strings.Contains(resp.Summary, "Edited 1 image(s)") {
		t.Errorf("unexpected summary: %q", resp.Summary)
	}
	if !strings.Contains(resp.Summary, path) {
		t.Errorf("summary missing edit source: %q", resp.Summary)
	}
}

func TestHandleEmptyResultIsSoftFailure(t *testing.T) {
	client := &MockProviderClient{
		GenerateContentFunc: func(_ context.Context, _ []ContentPart, _ *GenerationConfig, _ CallOptions) (ProviderResponse, error) {
			return &MockResponse{}, nil
		},
	}
	b := newTestBroker(client)

	resp, err := b.Handle(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("an empty batch result is not an error, got %v", err)
	}
	if !resp.Empty() {
		t.Fatal("expected an empty response")
	}
	if !strings.Contains(resp.Summary, "No images were produced") {
		t.Errorf("unexpected summary: %q", resp.Summary)
	}
	if resp.Structured["error"] != "no_images_produced" {
		t.Errorf("unexpected structured error: %v", resp.Structured["error"])
	}
}

func TestHandleRateLimited(t *testing.T) {
	var calls int
	client := &MockProviderClient{
		GenerateContentFunc: func(_ context.Context, _ []ContentPart, _ *GenerationConfig, _ CallOptions) (ProviderResponse, error) {
			calls++
			return &MockResponse{ImageData: [][]byte{[]byte("img")}}, nil
		},
	}
	b := newTestBroker(client)

	// A limiter with no token budget rejects every request.
	b.SetRateLimiter(ModelProImage, ratelimiter.New(0, 0))

	_, err := b.Handle(context.Background(), Request{Prompt: "p"})
	if ErrorCodeOf(err) != CodeAPIRateLimited {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if calls != 0 {
		t.Error("provider must not be called when rate limited")
	}

	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected API-kind error")
	}
	if e.Context["retry_after"] == nil {
		t.Error("expected retry_after context")
	}
}

func TestHandleRateLimiterOnlyThrottlesItsModel(t *testing.T) {
	b := newTestBroker(&MockProviderClient{})
	b.SetRateLimiter(ModelFlashImage, ratelimiter.New(0, 0))

	// Routed to pro by default, so the flash limiter must not apply.
	if _, err := b.Handle(context.Background(), Request{Prompt: "p"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTokenEstimator(t *testing.T) {
	e := NewSimpleTokenEstimator()
	if got := e.EstimateTokens(""); got != 0 {
		t.Errorf("empty text should estimate 0 tokens, got %d", got)
	}
	short := e.EstimateTokens("hi")
	long := e.EstimateTokens(strings.Repeat("word ", 100))
	if short <= 0 || long <= short {
		t.Errorf("estimates must grow with input: short=%d long=%d", short, long)
	}
}
