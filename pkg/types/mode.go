package types

import "fmt"

// Mode selects the embedding model tier.
type Mode string

const (
	// ModeFast trades quality for speed with a small general model.
	ModeFast Mode = "fast"
	// ModeBalanced is the default general-purpose tier.
	ModeBalanced Mode = "balanced"
	// ModeQuality uses the code-specialized model.
	ModeQuality Mode = "quality"
	// ModeHybrid runs the balanced and quality models and concatenates
	// their vectors. Hybrid vectors are only comparable to other hybrid
	// vectors.
	ModeHybrid Mode = "hybrid"
)

// ParseMode validates a mode string, applying the given default when empty.
func ParseMode(s string, def Mode) (Mode, error) {
	if s == "" {
		return def, nil
	}
	switch Mode(s) {
	case ModeFast, ModeBalanced, ModeQuality, ModeHybrid:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidMode, s)
	}
}

func (m Mode) String() string { return string(m) }
