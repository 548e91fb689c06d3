package imagebroker

import "strings"

// TierInfo is the display record for a model tier.
type TierInfo struct {
	Name    string
	Emoji   string
	ModelID string
	Tier    ModelTier
}

// SelectionRequest carries the request facts the selector may consult.
type SelectionRequest struct {
	Prompt          string
	RequestedTier   ModelTier
	Count           int
	Resolution      Resolution
	InputImageCount int
	ThinkingLevel   ThinkingLevel
	EnableGrounding bool
}

// ModelSelector decides which tier's service handles a request. Selection
// always terminates with a concrete tier.
type ModelSelector struct {
	flash  *Service
	pro    *Service
	config SelectionConfig
}

// NewModelSelector builds a selector over the two tier services.
func NewModelSelector(flash, pro *Service, config SelectionConfig) *ModelSelector {
	if config.DefaultTier == "" || config.DefaultTier == TierAuto {
		config.DefaultTier = TierPro
	}
	return &ModelSelector{
		flash:  flash,
		pro:    pro,
		config: config,
	}
}

// SelectModel resolves the service and tier for a request.
//
// Explicit flash/pro requests are honored verbatim. For AUTO, the ordered
// heuristic is: maximum resolution forces pro, then an explicit grounding
// request forces pro, then the quality keyword scan, then the speed keyword
// scan, then the configured default.
func (s *ModelSelector) SelectModel(req SelectionRequest) (*Service, ModelTier) {
	switch req.RequestedTier {
	case TierFlash:
		return s.flash, TierFlash
	case TierPro:
		return s.pro, TierPro
	}

	tier := s.resolveAuto(req)
	if tier == TierFlash {
		return s.flash, TierFlash
	}
	return s.pro, TierPro
}

func (s *ModelSelector) resolveAuto(req SelectionRequest) ModelTier {
	if req.Resolution == Resolution4K {
		return TierPro
	}
	if req.EnableGrounding {
		return TierPro
	}

	prompt := strings.ToLower(req.Prompt)
	for _, kw := range s.config.QualityKeywords {
		if strings.Contains(prompt, strings.ToLower(kw)) {
			return TierPro
		}
	}
	for _, kw := range s.config.SpeedKeywords {
		if strings.Contains(prompt, strings.ToLower(kw)) {
			return TierFlash
		}
	}

	return s.config.DefaultTier
}

// ModelInfo returns the display record for tier. Pure lookup, no side effects.
func (s *ModelSelector) ModelInfo(tier ModelTier) TierInfo {
	switch tier {
	case TierFlash:
		return TierInfo{
			Name:    "Gemini Flash Image",
			Emoji:   "⚡",
			ModelID: s.flash.Config().ModelID,
			Tier:    TierFlash,
		}
	default:
		return TierInfo{
			Name:    "Gemini Pro Image",
			Emoji:   "🏆",
			ModelID: s.pro.Config().ModelID,
			Tier:    TierPro,
		}
	}
}
