package hme

import "regexp"

// denyPattern matches text/aria-label/title/href indicating a
// destructive or account-mutating action; such anchors are never
// clicked or approached.
var denyPattern = regexp.MustCompile(`(?i)buy|checkout|pay|subscribe|cart|sign ?in|log ?in|password|add to cart|register|create account`)

// ctaAllowPattern restricts actual CTA approach targets to a narrow,
// conversion-curious-but-harmless vocabulary.
var ctaAllowPattern = regexp.MustCompile(`(?i)learn more|pricing|features|contact|book demo`)

// IsSafeToApproach reports whether an anchor may be used as a hover
// target by moveToCTAandHover: same-origin, not matching the deny list,
// and matching the CTA allow list.
func IsSafeToApproach(a Anchor) bool {
	if !a.SameOrigin {
		return false
	}
	if matchesDeny(a) {
		return false
	}
	return ctaAllowPattern.MatchString(a.Text) ||
		ctaAllowPattern.MatchString(a.AriaLabel) ||
		ctaAllowPattern.MatchString(a.Title)
}

func matchesDeny(a Anchor) bool {
	return denyPattern.MatchString(a.Text) ||
		denyPattern.MatchString(a.AriaLabel) ||
		denyPattern.MatchString(a.Title) ||
		denyPattern.MatchString(a.Href)
}

// navHoverPattern scores navigation anchors for hoverNav: prefer links
// whose text/href hints at a commercial page worth lingering on.
var navHoverPattern = regexp.MustCompile(`(?i)pricing|features|customers|demo|about|contact`)

// ScoreNavAnchor returns a higher score for anchors more likely to be
// worth a hover during hoverNav; 0 means "ignore".
func ScoreNavAnchor(a Anchor) int {
	if matchesDeny(a) {
		return 0
	}
	score := 1
	if navHoverPattern.MatchString(a.Text) || navHoverPattern.MatchString(a.Href) {
		score += 3
	}
	return score
}
