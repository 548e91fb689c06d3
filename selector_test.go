package imagebroker

import "testing"

func newTestSelector() *ModelSelector {
	client := &MockProviderClient{}
	flash := NewFlashService(client, FlashModelConfig())
	pro := NewProService(client, ProModelConfig())
	return NewModelSelector(flash, pro, DefaultSelectionConfig())
}

func TestSelectModelExplicitTier(t *testing.T) {
	s := newTestSelector()

	// Explicit requests pass through even when the heuristic disagrees.
	_, tier := s.SelectModel(SelectionRequest{
		Prompt:        "professional photorealistic portrait",
		RequestedTier: TierFlash,
	})
	if tier != TierFlash {
		t.Errorf("explicit flash request routed to %s", tier)
	}

	_, tier = s.SelectModel(SelectionRequest{
		Prompt:        "quick sketch",
		RequestedTier: TierPro,
	})
	if tier != TierPro {
		t.Errorf("explicit pro request routed to %s", tier)
	}
}

func TestSelectModelAutoHeuristics(t *testing.T) {
	s := newTestSelector()

	cases := []struct {
		name string
		req  SelectionRequest
		want ModelTier
	}{
		{"4k forces pro", SelectionRequest{Prompt: "quick doodle", RequestedTier: TierAuto, Resolution: Resolution4K}, TierPro},
		{"grounding forces pro", SelectionRequest{Prompt: "quick doodle", RequestedTier: TierAuto, EnableGrounding: true}, TierPro},
		{"quality keyword", SelectionRequest{Prompt: "a detailed landscape", RequestedTier: TierAuto}, TierPro},
		{"quality beats speed", SelectionRequest{Prompt: "a quick but detailed landscape", RequestedTier: TierAuto}, TierPro},
		{"speed keyword", SelectionRequest{Prompt: "a quick doodle of a cat", RequestedTier: TierAuto}, TierFlash},
		{"case-insensitive keyword", SelectionRequest{Prompt: "PHOTOREALISTIC sunset", RequestedTier: TierAuto}, TierPro},
		{"default tier", SelectionRequest{Prompt: "a cat on a mat", RequestedTier: TierAuto}, TierPro},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, tier := s.SelectModel(tc.req)
			if tier != tc.want {
				t.Errorf("routed to %s, want %s", tier, tc.want)
			}
		})
	}
}

func TestSelectModelConfiguredDefaultTier(t *testing.T) {
	client := &MockProviderClient{}
	flash := NewFlashService(client, FlashModelConfig())
	pro := NewProService(client, ProModelConfig())

	cfg := DefaultSelectionConfig()
	cfg.DefaultTier = TierFlash
	s := NewModelSelector(flash, pro, cfg)

	_, tier := s.SelectModel(SelectionRequest{Prompt: "a cat on a mat", RequestedTier: TierAuto})
	if tier != TierFlash {
		t.Errorf("routed to %s, want configured default flash", tier)
	}
}

func TestNewModelSelectorNormalizesDefault(t *testing.T) {
	client := &MockProviderClient{}
	flash := NewFlashService(client, FlashModelConfig())
	pro := NewProService(client, ProModelConfig())

	// An unusable default collapses to pro so selection always terminates.
	s := NewModelSelector(flash, pro, SelectionConfig{DefaultTier: TierAuto})
	_, tier := s.SelectModel(SelectionRequest{Prompt: "anything", RequestedTier: TierAuto})
	if tier != TierPro {
		t.Errorf("routed to %s, want pro", tier)
	}
}

func TestModelInfo(t *testing.T) {
	s := newTestSelector()

	flash := s.ModelInfo(TierFlash)
	if flash.Emoji != "⚡" || flash.ModelID != ModelFlashImage || flash.Name != "Gemini Flash Image" {
		t.Errorf("unexpected flash info: %+v", flash)
	}

	pro := s.ModelInfo(TierPro)
	if pro.Emoji != "🏆" || pro.ModelID != ModelProImage || pro.Name != "Gemini Pro Image" {
		t.Errorf("unexpected pro info: %+v", pro)
	}
}
