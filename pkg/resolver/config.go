package resolver

// ScoringConfig holds the candidate scoring weights. The defaults were tuned
// empirically against real window sets; deployments can override any of them
// per resolver instance.
type ScoringConfig struct {
	// BaseScore is granted to every window that survives all required
	// layers.
	BaseScore int
	// KeywordBonus is added once per include-keyword found in the title.
	KeywordBonus int
	// WidthBonus applies when the window is wider than LargeWidth.
	WidthBonus int
	// HeightBonus applies when the window is taller than LargeHeight.
	HeightBonus int
	// OffOriginBonus applies when the top-left corner is away from the
	// screen origin. Anchored overlays tend to sit at (0,0); real
	// application windows rarely do.
	OffOriginBonus int

	LargeWidth  int
	LargeHeight int
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BaseScore:      50,
		KeywordBonus:   10,
		WidthBonus:     5,
		HeightBonus:    5,
		OffOriginBonus: 3,
		LargeWidth:     1000,
		LargeHeight:    700,
	}
}
