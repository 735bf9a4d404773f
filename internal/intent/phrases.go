package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	resetPattern = regexp.MustCompile(`\b(?:start over|restart|reset|new application|begin again|from scratch)\b`)

	statusPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bstatus\b`),
		regexp.MustCompile(`\bcheck\b.*\b(?:application|request)\b`),
		regexp.MustCompile(`\b(?:application|request)\b.*\b(?:id|number)\b`),
		regexp.MustCompile(`\btrack\b`),
		regexp.MustCompile(`\bwhere\b.*\b(?:application|request)\b`),
		regexp.MustCompile(`\bupdate\b.*\b(?:application|request)\b`),
	}

	confirmPattern   = regexp.MustCompile(`^(?:yes|yeah|yep|yup|sure|ok|okay|confirm|proceed|go ahead|continue|correct|right)\b`)
	confirmPatternAR = regexp.MustCompile(`^(?:نعم|أيوه|تمام|موافق)(?:\s|$|[.!,])`)
	rejectPattern    = regexp.MustCompile(`^(?:no|nope|cancel|stop|never mind|nevermind|wrong)\b`)
	rejectPatternAR  = regexp.MustCompile(`^(?:لا|الغي|توقف)(?:\s|$|[.!,])`)
	continueAnyway   = regexp.MustCompile(`\bcontinue anyway\b|\bproceed anyway\b`)
	differentVehicle = regexp.MustCompile(`\b(?:different|another|other)\s+(?:vehicle|car|one)\b`)

	closingPattern   = regexp.MustCompile(`^(?:thanks|thank you|bye|goodbye|done|finished)\b`)
	closingPatternAR = regexp.MustCompile(`^(?:شكرا|مع السلامة)(?:\s|$|[.!,])`)

	greetingPattern = regexp.MustCompile(`^(?:hi|hello|hey|good (?:morning|afternoon|evening)|salam|marhaba)\b`)

	backPattern    = regexp.MustCompile(`^(?:0|back|go back|cancel|search again|none)\b`)
	ordinalPattern = regexp.MustCompile(`\b(first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th)\b`)
	digitPattern   = regexp.MustCompile(`\b([1-9])\b`)

	applicationIDPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// IsReset reports whether raw asks to restart the conversation.
func IsReset(raw string) bool {
	return resetPattern.MatchString(normalize(raw))
}

// IsStatusCheck reports whether raw asks about an application's status.
func IsStatusCheck(raw string) bool {
	msg := normalize(raw)
	for _, p := range statusPatterns {
		if p.MatchString(msg) {
			return true
		}
	}
	return false
}

// IsClosing reports whether raw ends the conversation politely.
func IsClosing(raw string) bool {
	msg := normalize(raw)
	return closingPattern.MatchString(msg) || closingPatternAR.MatchString(msg)
}

// IsGreeting reports whether raw is a bare greeting.
func IsGreeting(raw string) bool {
	return greetingPattern.MatchString(normalize(raw))
}

// Confirmation is the reading of a yes/no reply.
type Confirmation int

// Confirmation outcomes.
const (
	ConfirmationUnknown Confirmation = iota
	ConfirmationYes
	ConfirmationNo
)

// ParseConfirmation reads a yes/no answer. Replies must lead with the answer.
func ParseConfirmation(raw string) Confirmation {
	msg := normalize(raw)
	switch {
	case continueAnyway.MatchString(msg):
		return ConfirmationYes
	case differentVehicle.MatchString(msg):
		return ConfirmationNo
	case rejectPattern.MatchString(msg) || rejectPatternAR.MatchString(msg):
		return ConfirmationNo
	case confirmPattern.MatchString(msg) || confirmPatternAR.MatchString(msg):
		return ConfirmationYes
	default:
		return ConfirmationUnknown
	}
}

// IsBack reports whether raw asks to leave vehicle selection.
func IsBack(raw string) bool {
	return backPattern.MatchString(normalize(raw))
}

// ParseSelection reads a 1-based listing number from a bare number, an
// ordinal word, or a single digit inside the text. The number is returned even
// when it is out of range for the current listings; ok is false when no number
// was found at all.
func ParseSelection(raw string) (int, bool) {
	msg := normalize(raw)
	if n, err := strconv.Atoi(msg); err == nil {
		return n, true
	}
	if m := ordinalPattern.FindStringSubmatch(msg); m != nil {
		return ordinals[m[1]], true
	}
	if m := digitPattern.FindStringSubmatch(msg); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	return 0, false
}

// ExtractApplicationID returns the first UUID in raw, lowercased.
func ExtractApplicationID(raw string) string {
	return strings.ToLower(applicationIDPattern.FindString(raw))
}
