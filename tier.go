package imagebroker

// ModelTier identifies which backend model class handles a request.
type ModelTier string

const (
	// TierFlash is the speed-optimized, lower-latency tier.
	TierFlash ModelTier = "flash"

	// TierPro is the high-quality, high-reasoning tier.
	TierPro ModelTier = "pro"

	// TierAuto lets the selector decide.
	TierAuto ModelTier = "auto"
)

// ParseModelTier parses a tier string. Empty and unknown strings normalize to
// TierAuto; ok is false only for unknown strings so callers can warn.
func ParseModelTier(s string) (tier ModelTier, ok bool) {
	switch ModelTier(s) {
	case TierFlash:
		return TierFlash, true
	case TierPro:
		return TierPro, true
	case TierAuto:
		return TierAuto, true
	case "":
		return TierAuto, true
	default:
		return TierAuto, false
	}
}

func (t ModelTier) String() string {
	return string(t)
}

// ThinkingLevel controls how much internal reasoning precedes image synthesis
// on models that support it.
type ThinkingLevel string

const (
	ThinkingLevelLow  ThinkingLevel = "low"
	ThinkingLevelHigh ThinkingLevel = "high"
)

// ParseThinkingLevel parses a thinking level string. Empty input is valid and
// means "use the tier default"; unknown strings report ok=false.
func ParseThinkingLevel(s string) (level ThinkingLevel, ok bool) {
	switch ThinkingLevel(s) {
	case ThinkingLevelLow:
		return ThinkingLevelLow, true
	case ThinkingLevelHigh:
		return ThinkingLevelHigh, true
	case "":
		return "", true
	default:
		return "", false
	}
}

// MediaResolution controls vision-input processing fidelity, distinct from
// output image resolution.
type MediaResolution string

const (
	MediaResolutionLow    MediaResolution = "low"
	MediaResolutionMedium MediaResolution = "medium"
	MediaResolutionHigh   MediaResolution = "high"
)

// Resolution is the requested output resolution class.
type Resolution string

const (
	Resolution1K   Resolution = "1k"
	Resolution2K   Resolution = "2k"
	Resolution4K   Resolution = "4k"
	ResolutionHigh Resolution = "high"
)

// highResolutions are the classes that trigger legibility prompt hints.
var highResolutions = map[Resolution]bool{
	Resolution4K:   true,
	Resolution2K:   true,
	ResolutionHigh: true,
}

// AspectRatio is the output aspect ratio for generated images.
type AspectRatio string

const (
	AspectRatio1x1  AspectRatio = "1:1"
	AspectRatio2x3  AspectRatio = "2:3"
	AspectRatio3x2  AspectRatio = "3:2"
	AspectRatio3x4  AspectRatio = "3:4"
	AspectRatio4x3  AspectRatio = "4:3"
	AspectRatio4x5  AspectRatio = "4:5"
	AspectRatio5x4  AspectRatio = "5:4"
	AspectRatio9x16 AspectRatio = "9:16"
	AspectRatio16x9 AspectRatio = "16:9"
	AspectRatio21x9 AspectRatio = "21:9"
	AspectRatioAuto AspectRatio = ""
)

// SupportedAspectRatios lists the aspect ratios accepted at the request
// boundary.
var SupportedAspectRatios = []AspectRatio{
	AspectRatio1x1,
	AspectRatio2x3,
	AspectRatio3x2,
	AspectRatio3x4,
	AspectRatio4x3,
	AspectRatio4x5,
	AspectRatio5x4,
	AspectRatio9x16,
	AspectRatio16x9,
	AspectRatio21x9,
}

// ValidAspectRatio reports whether ratio is supported. The empty ratio is
// valid and means "let the model choose".
func ValidAspectRatio(ratio AspectRatio) bool {
	if ratio == AspectRatioAuto {
		return true
	}
	for _, r := range SupportedAspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}
