package sanitizer

import "regexp"

// piiPattern pairs a fixed regex with the canonical placeholder token it is
// replaced by. Kept as a versioned table instead of being inlined, so
// future changes to the pattern set are diffable.
type piiPattern struct {
	name        string
	re          *regexp.Regexp
	placeholder string
}

// piiPatternsV1 is the fixed pattern set: email addresses, phone numbers
// (including international), US SSNs, and 16-digit card-like sequences.
// Detection beyond this set is out of scope.
var piiPatternsV1 = []piiPattern{
	{
		name:        "email",
		re:          regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
		placeholder: "[EMAIL_REDACTED]",
	},
	{
		name:        "ssn",
		re:          regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		placeholder: "[SSN_REDACTED]",
	},
	{
		name:        "card",
		re:          regexp.MustCompile(`\b(?:\d[ -]?){15}\d\b`),
		placeholder: "[CARD_REDACTED]",
	},
	{
		name:        "phone",
		re:          regexp.MustCompile(`(?:\+\d{1,3}[ \-.]?)?(?:\(\d{2,4}\)[ \-.]?)?\d{3}[ \-.]?\d{3,4}[ \-.]?\d{4}\b`),
		placeholder: "[PHONE_REDACTED]",
	},
}

// scrubPII applies every pattern in order, email/ssn/card first so a phone
// pattern never partially consumes digits that belong to a card number.
func scrubPII(text string) string {
	for _, p := range piiPatternsV1 {
		text = p.re.ReplaceAllString(text, p.placeholder)
	}
	return text
}
