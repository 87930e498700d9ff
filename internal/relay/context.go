// ABOUTME: Builds the assistant-facing context payloads for message and fulfillment turns
// ABOUTME: Also holds greeting detection and the user-visible notice texts

package relay

import (
	"strings"

	"github.com/2389/assistant-relay/internal/profile"
)

// Deployment tags every context sent to the assistant.
const Deployment = "slackbot"

// skillName is the assistant skill that receives user_defined values.
const skillName = "main skill"

// greetingText primes a freshly created session.
const greetingText = "hi"

// User-visible notices.
const (
	NoticeLostContext   = "Sorry, I have lost the context. Please, let's restart our conversation."
	NoticeFailure       = "Something went wrong. Please try your request again."
	NoticeActionFailure = "> _Sorry, something went wrong handling action._"
)

func youReplied(text string) string {
	return "> _You replied: " + text + "_"
}

// IsGreeting reports whether text asks for a fresh conversation.
func IsGreeting(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "hi", "hello":
		return true
	}
	return false
}

// BuildContext wraps a userContext in the structure the assistant expects.
func BuildContext(userContext map[string]any) map[string]any {
	return wrapUserDefined(profile.Timezone(userContext), map[string]any{
		"userContext": userContext,
	})
}

// FulfillmentContext carries a webhook result back to the assistant. The
// userContext is included only when the webhook returned a new one.
func FulfillmentContext(timezone string, result any, userContext map[string]any) map[string]any {
	userDefined := map[string]any{"tririgaResult": result}
	if userContext != nil {
		userDefined["userContext"] = userContext
	}
	return wrapUserDefined(timezone, userDefined)
}

func wrapUserDefined(timezone string, userDefined map[string]any) map[string]any {
	return map[string]any{
		"global": map[string]any{
			"system": map[string]any{"timezone": timezone},
		},
		"skills": map[string]any{
			skillName: map[string]any{"user_defined": userDefined},
		},
		"metadata": map[string]any{"deployment": Deployment},
	}
}
