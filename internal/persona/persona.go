// Package persona holds the plain value records that describe an agent's
// character. They travel through the system and into prompt text; they are
// never live objects with behavior beyond rendering (SPEC_FULL.md §9).
package persona

import "fmt"

// BigFive scores each trait in [0,1]. The zero value is a valid (if
// uninformative) persona — vectors are always present, never nil, per
// spec.md's Persona invariant.
type BigFive struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

// SocialStyle pairs two scalar axes with a derived human-readable label.
type SocialStyle struct {
	Assertiveness  float64 `json:"assertiveness"`
	Responsiveness float64 `json:"responsiveness"`
	Label          string  `json:"label"`
}

// DeriveLabel classifies (assertiveness, responsiveness) into one of the
// four classic social-style quadrants, matching the reference
// implementation's style_name convention.
func DeriveLabel(assertiveness, responsiveness float64) string {
	switch {
	case assertiveness >= 0.5 && responsiveness < 0.5:
		return "Driver"
	case assertiveness >= 0.5 && responsiveness >= 0.5:
		return "Expressive"
	case assertiveness < 0.5 && responsiveness >= 0.5:
		return "Amiable"
	default:
		return "Analytical"
	}
}

// ThinkingStyle describes a primary/secondary cognitive mode plus free text.
type ThinkingStyle struct {
	Primary     string `json:"primary"`
	Secondary   string `json:"secondary"`
	Description string `json:"description"`
}

// Persona is the immutable-by-default snapshot an agent carries; edit
// operations replace fields wholesale rather than mutating in place.
type Persona struct {
	BigFive       BigFive       `json:"big_five"`
	SocialStyle   SocialStyle   `json:"social_style"`
	ThinkingStyle ThinkingStyle `json:"thinking_style"`
}

// Default returns a balanced, all-midpoint persona, used when an agent is
// created without an explicit persona.
func Default() Persona {
	return Persona{
		BigFive: BigFive{0.5, 0.5, 0.5, 0.5, 0.5},
		SocialStyle: SocialStyle{
			Assertiveness:  0.5,
			Responsiveness: 0.5,
			Label:          DeriveLabel(0.5, 0.5),
		},
		ThinkingStyle: ThinkingStyle{
			Primary:     "Analytical",
			Secondary:   "Practical",
			Description: "Balanced analytical and practical thinking",
		},
	}
}

// BuildContext renders the persona block used by the context builder
// (spec.md §4.7 step 2). Rendering is stable across repeated calls with the
// same inputs, per spec.md §8's round-trip property.
func (p Persona) BuildContext() string {
	return fmt.Sprintf(
		"## Persona\n\n"+
			"### Social Style\n"+
			"- %s (assertiveness: %.1f, responsiveness: %.1f)\n\n"+
			"### Big Five\n"+
			"- Openness: %.1f\n- Conscientiousness: %.1f\n- Extraversion: %.1f\n- Agreeableness: %.1f\n- Neuroticism: %.1f\n\n"+
			"### Thinking Style\n"+
			"- Primary: %s\n- Secondary: %s\n- %s\n",
		p.SocialStyle.Label, p.SocialStyle.Assertiveness, p.SocialStyle.Responsiveness,
		p.BigFive.Openness, p.BigFive.Conscientiousness, p.BigFive.Extraversion,
		p.BigFive.Agreeableness, p.BigFive.Neuroticism,
		p.ThinkingStyle.Primary, p.ThinkingStyle.Secondary, p.ThinkingStyle.Description,
	)
}
