package notifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BillPathPrefix is inserted between the domain and the record ID to build
// the bill link.
const BillPathPrefix = "/v1/bills/"

// ErrInvalidPayload is returned by [ParseMessage] for messages that cannot
// be decoded or fail validation.
var ErrInvalidPayload = errors.New("invalid notification payload")

var (
	validate      = validator.New(validator.WithRequiredStructEnabled())
	lineBreakTrim = strings.NewReplacer("\n\r", "", "\r\n", "", "\n", "", "\r", "")
)

// Notification is a validated due-bill notice.
type Notification struct {
	OwnerEmail string `json:"ownerEmail" validate:"required,email"`
	RecordID   string `json:"recordId"   validate:"required"`
	Domain     string `json:"domain"     validate:"required"`

	// Link is derived from Domain and RecordID and never read from the payload.
	Link string `json:"-"`
}

// ParseMessage decodes a raw notification message. Stray line breaks are
// removed and other raw control characters inside strings, such as tabs, are
// accepted. Any decode or validation failure wraps [ErrInvalidPayload].
func ParseMessage(raw string) (*Notification, error) {
	cleaned := strings.TrimSpace(lineBreakTrim.Replace(raw))
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidPayload)
	}

	var n Notification

	if err := json.Unmarshal(escapeControlChars(cleaned), &n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	n.OwnerEmail = strings.TrimSpace(n.OwnerEmail)
	n.RecordID = strings.TrimSpace(n.RecordID)
	n.Domain = strings.TrimSpace(n.Domain)

	if err := validate.Struct(&n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	n.Link = n.Domain + BillPathPrefix + n.RecordID

	return &n, nil
}

// escapeControlChars rewrites raw control characters inside JSON strings as
// \u escapes, which encoding/json otherwise rejects. Bytes outside strings
// are copied unchanged.
func escapeControlChars(s string) []byte {
	const hex = "0123456789abcdef"

	out := make([]byte, 0, len(s))
	inString, escaped := false, false

	for i := range len(s) {
		c := s[i]

		switch {
		case !inString:
			inString = c == '"'
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = false
		case c < 0x20:
			out = append(out, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xf])
			continue
		}

		out = append(out, c)
	}

	return out
}

type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// UnwrapEnvelope returns the embedded message when body is an SNS
// notification document, as delivered to SQS queues and HTTP endpoints
// subscribed to a topic. Any other body is returned unchanged.
func UnwrapEnvelope(body string) string {
	var env snsEnvelope

	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return body
	}

	if env.Type != "Notification" || env.Message == "" {
		return body
	}

	return env.Message
}
