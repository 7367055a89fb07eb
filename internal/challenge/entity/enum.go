package entity

type Method int16

const (
	MethodUnknown Method = 0

	// MethodSMS delivers the code as a text message.
	MethodSMS Method = 1

	// MethodWhatsApp delivers the code as a WhatsApp message.
	MethodWhatsApp Method = 2

	// MethodEmail delivers the code as an email.
	MethodEmail Method = 3

	// MethodTOTP validates against an authenticator app, nothing is delivered.
	MethodTOTP Method = 4
)

func MethodFromString(str string) Method {
	switch str {
	case "sms":
		return MethodSMS
	case "whatsapp":
		return MethodWhatsApp
	case "email":
		return MethodEmail
	case "totp":
		return MethodTOTP
	default:
		return MethodUnknown
	}
}

func (m Method) String() string {
	switch m {
	case MethodSMS:
		return "sms"
	case MethodWhatsApp:
		return "whatsapp"
	case MethodEmail:
		return "email"
	case MethodTOTP:
		return "totp"
	default:
		return "unknown"
	}
}

// Delivered reports whether the method sends a code to the subject.
func (m Method) Delivered() bool {
	switch m {
	case MethodSMS, MethodWhatsApp, MethodEmail:
		return true
	default:
		return false
	}
}

// Outcome is the terminal classification of a verification or issuance call.
//
// Callers never learn more about a failure than its outcome.
type Outcome int16

const (
	OutcomeUnknown Outcome = 0

	// OutcomeVerified mean the code matched and the challenge was consumed.
	OutcomeVerified Outcome = 1

	// OutcomeInvalid mean the code did not match; attempts remain.
	OutcomeInvalid Outcome = 2

	// OutcomeNotFound mean no live challenge exists for the subject.
	OutcomeNotFound Outcome = 3

	// OutcomeExpired mean the challenge outlived its TTL and was discarded.
	OutcomeExpired Outcome = 4

	// OutcomeExhausted mean the attempt budget was spent and the challenge destroyed.
	OutcomeExhausted Outcome = 5

	// OutcomeBlocked mean the fraud guard is holding this caller triple.
	OutcomeBlocked Outcome = 6

	// OutcomeRateLimited mean the fixed window for this key is full.
	OutcomeRateLimited Outcome = 7
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "VERIFIED"
	case OutcomeInvalid:
		return "INVALID"
	case OutcomeNotFound:
		return "NOT_FOUND"
	case OutcomeExpired:
		return "EXPIRED"
	case OutcomeExhausted:
		return "EXHAUSTED"
	case OutcomeBlocked:
		return "BLOCKED"
	case OutcomeRateLimited:
		return "RATE_LIMITED"
	default:
		return "UNKNOWN"
	}
}
