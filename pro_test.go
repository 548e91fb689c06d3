package imagebroker

import (
	"context"
	"strings"
	"testing"
)

func TestEnhanceProPromptShortPrompt(t *testing.T) {
	got := enhanceProPrompt("a cat", "")
	if !strings.HasPrefix(got, "Create a high-quality, detailed image: a cat") {
		t.Errorf("short prompt not wrapped in narrative template: %q", got)
	}
	if !strings.Contains(got, "composition, lighting, and fine details") {
		t.Errorf("template suffix missing: %q", got)
	}
}

func TestEnhanceProPromptLongPromptUnchanged(t *testing.T) {
	long := "a sweeping mountain vista at golden hour with dramatic storm clouds overhead"
	got := enhanceProPrompt(long, Resolution1K)
	if got != long {
		t.Errorf("long prompt must pass through unchanged, got %q", got)
	}
}

func TestEnhanceProPromptLegibilityHint(t *testing.T) {
	long := "an infographic with plenty of text explaining the water cycle in detail today"
	got := enhanceProPrompt(long, Resolution2K)
	if !strings.Contains(got, "sharp and clearly readable") {
		t.Errorf("expected legibility hint for text content: %q", got)
	}

	// Low resolution gets no hint even with text content.
	got = enhanceProPrompt(long, Resolution1K)
	if strings.Contains(got, "sharp and clearly readable") {
		t.Errorf("unexpected legibility hint at 1k: %q", got)
	}
}

func TestEnhanceProPrompt4KHint(t *testing.T) {
	got := enhanceProPrompt("a diagram of a jet engine", Resolution4K)
	if !strings.Contains(got, "maximum 4K quality") {
		t.Errorf("expected 4K hint: %q", got)
	}
	// Short prompt with a diagram keyword at 4K stacks all three augmentations.
	if !strings.HasPrefix(got, "Create a high-quality, detailed image:") {
		t.Errorf("expected narrative template: %q", got)
	}
	if !strings.Contains(got, "sharp and clearly readable") {
		t.Errorf("expected legibility hint: %q", got)
	}
}

func TestProGenerationConfigDefaults(t *testing.T) {
	var gotCfg *GenerationConfig
	client := &MockProviderClient{
		GenerateContentFunc: func(_ context.Context, _ []ContentPart, cfg *GenerationConfig, _ CallOptions) (ProviderResponse, error) {
			gotCfg = cfg
			return &MockResponse{ImageData: [][]byte{[]byte("img")}}, nil
		},
	}
	svc := NewProService(client, ProModelConfig())

	_, _, err := svc.GenerateImages(context.Background(), GenerateRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCfg == nil {
		t.Fatal("pro tier must pass a generation config")
	}
	if gotCfg.ThinkingLevel != ThinkingLevelHigh {
		t.Errorf("expected default high thinking, got %q", gotCfg.ThinkingLevel)
	}
	if gotCfg.MediaResolution != MediaResolutionHigh {
		t.Errorf("expected default high media resolution, got %q", gotCfg.MediaResolution)
	}
	if !gotCfg.EnableGrounding {
		t.Error("expected grounding enabled by default")
	}
}

func TestProGenerationConfigOverrides(t *testing.T) {
	var gotCfg *GenerationConfig
	client := &MockProviderClient{
		GenerateContentFunc: func(_ context.Context, _ []ContentPart, cfg *GenerationConfig, _ CallOptions) (ProviderResponse, error) {
			gotCfg = cfg
			return &MockResponse{ImageData: [][]byte{[]byte("img")}}, nil
		},
	}
	svc := NewProService(client, ProModelConfig())

	off := false
	_, _, err := svc.GenerateImages(context.Background(), GenerateRequest{
		Prompt:          "p",
		ThinkingLevel:   ThinkingLevelLow,
		MediaResolution: MediaResolutionLow,
		EnableGrounding: &off,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCfg.ThinkingLevel != ThinkingLevelLow {
		t.Errorf("thinking override lost: %q", gotCfg.ThinkingLevel)
	}
	if gotCfg.MediaResolution != MediaResolutionLow {
		t.Errorf("media resolution override lost: %q", gotCfg.MediaResolution)
	}
	if gotCfg.EnableGrounding {
		t.Error("explicit grounding opt-out lost")
	}
}

func TestProMetadataFields(t *testing.T) {
	svc := NewProService(&MockProviderClient{}, ProModelConfig())

	_, metadata, err := svc.GenerateImages(context.Background(), GenerateRequest{
		Prompt:     "p",
		Resolution: Resolution4K,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(metadata) != 1 {
		t.Fatalf("expected 1 metadata record, got %d", len(metadata))
	}

	meta := metadata[0]
	if meta["model_tier"] != "pro" || meta["model"] != ModelProImage {
		t.Errorf("unexpected model fields: %v", meta)
	}
	if meta["resolution"] != "4k" {
		t.Errorf("unexpected resolution %v", meta["resolution"])
	}
	if meta["thinking_level"] != "high" {
		t.Errorf("unexpected thinking_level %v", meta["thinking_level"])
	}
	if meta["media_resolution"] != "high" {
		t.Errorf("unexpected media_resolution %v", meta["media_resolution"])
	}
	if meta["grounding_enabled"] != true {
		t.Errorf("unexpected grounding_enabled %v", meta["grounding_enabled"])
	}
}
