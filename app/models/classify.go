package models

// Verdict labels form a closed enumeration; the classifier boundary must
// never return anything outside it.
const (
	LabelLikelyAuthentic = "Likely Authentic"
	LabelSuspicious      = "Suspicious"
	LabelFake            = "Fake"
)

// Classification is an authenticity verdict for one uploaded image.
type Classification struct {
	Label      string  `json:"label"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"` // 0..1
}

// ValidLabel reports whether s is one of the three verdict labels.
func ValidLabel(s string) bool {
	return s == LabelLikelyAuthentic || s == LabelSuspicious || s == LabelFake
}
