package chunker

import "strings"

// TagRule maps a vocabulary term to a keyword tag and a broader concept tag.
// Rules are evaluated in order; new domains add rows, not code.
type TagRule struct {
	Term    string
	Keyword string
	Concept string
}

var tagRules = []TagRule{
	// Data protection / legal
	{Term: "personal data", Keyword: "personal-data", Concept: "privacy"},
	{Term: "data subject", Keyword: "data-subject", Concept: "privacy"},
	{Term: "consent", Keyword: "consent", Concept: "privacy"},
	{Term: "data controller", Keyword: "data-controller", Concept: "accountability"},
	{Term: "data processor", Keyword: "data-processor", Concept: "accountability"},
	{Term: "cross-border transfer", Keyword: "cross-border-transfer", Concept: "data-transfer"},
	{Term: "retention period", Keyword: "retention", Concept: "data-lifecycle"},
	{Term: "penalty", Keyword: "penalty", Concept: "enforcement"},
	{Term: "fine", Keyword: "fine", Concept: "enforcement"},
	{Term: "sanction", Keyword: "sanction", Concept: "enforcement"},
	{Term: "supervisory authority", Keyword: "supervisory-authority", Concept: "enforcement"},
	{Term: "breach notification", Keyword: "breach-notification", Concept: "incident-response"},

	// Identity verification / biometrics
	{Term: "liveness detection", Keyword: "liveness-detection", Concept: "biometrics"},
	{Term: "face recognition", Keyword: "face-recognition", Concept: "biometrics"},
	{Term: "facial recognition", Keyword: "face-recognition", Concept: "biometrics"},
	{Term: "fingerprint", Keyword: "fingerprint", Concept: "biometrics"},
	{Term: "identity verification", Keyword: "identity-verification", Concept: "ekyc"},
	{Term: "know your customer", Keyword: "kyc", Concept: "ekyc"},
	{Term: "ekyc", Keyword: "kyc", Concept: "ekyc"},
	{Term: "document forgery", Keyword: "document-forgery", Concept: "fraud"},
	{Term: "deepfake", Keyword: "deepfake", Concept: "fraud"},

	// Security findings
	{Term: "sql injection", Keyword: "sql-injection", Concept: "injection"},
	{Term: "cross-site scripting", Keyword: "xss", Concept: "injection"},
	{Term: "xss", Keyword: "xss", Concept: "injection"},
	{Term: "replay attack", Keyword: "replay-attack", Concept: "attack-vector"},
	{Term: "man-in-the-middle", Keyword: "mitm", Concept: "attack-vector"},
	{Term: "brute force", Keyword: "brute-force", Concept: "attack-vector"},
	{Term: "privilege escalation", Keyword: "privilege-escalation", Concept: "attack-vector"},
	{Term: "vulnerability", Keyword: "vulnerability", Concept: "appsec"},
	{Term: "encryption", Keyword: "encryption", Concept: "cryptography"},
	{Term: "authentication", Keyword: "authentication", Concept: "access-control"},
	{Term: "authorization", Keyword: "authorization", Concept: "access-control"},
	{Term: "audit log", Keyword: "audit-log", Concept: "observability"},
}

// Extract derives keyword and concept tags from chunk text by ordered rule
// matching. Unmatched text yields empty sets, never an error.
func Extract(text string) (keywords []string, concepts []string) {
	lower := strings.ToLower(text)
	seenKw := map[string]bool{}
	seenCp := map[string]bool{}
	for _, rule := range tagRules {
		if !strings.Contains(lower, rule.Term) {
			continue
		}
		if !seenKw[rule.Keyword] {
			seenKw[rule.Keyword] = true
			keywords = append(keywords, rule.Keyword)
		}
		if !seenCp[rule.Concept] {
			seenCp[rule.Concept] = true
			concepts = append(concepts, rule.Concept)
		}
	}
	return keywords, concepts
}
