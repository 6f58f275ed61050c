package domain

// DefaultAgentScript is the system prompt used when the caller supplies no
// script of their own.
const DefaultAgentScript = "You are Sarah, a professional debt collection agent from First National Bank. " +
	"You are calling about an overdue credit card payment of $1,250.00. " +
	"Be polite, professional, and helpful. Keep responses concise and natural for phone conversation. " +
	"Don't be too pushy, but be firm about the payment."

// ScriptCeiling is the maximum length of an agent script in characters. The
// script travels inside a TwiML payload whose size the telephony protocol
// caps, so rewritten scripts are clamped to this ceiling at generation time.
const ScriptCeiling = 800

// ScriptEllipsis marks a script that was cut at the ceiling.
const ScriptEllipsis = "..."

// ClampScript enforces the ceiling: text over the limit is cut to exactly
// ScriptCeiling characters with the ellipsis marker appended. The cut is
// rune-aware so a multibyte character at the boundary is never split.
func ClampScript(s string) string {
	runes := []rune(s)
	if len(runes) <= ScriptCeiling {
		return s
	}
	return string(runes[:ScriptCeiling]) + ScriptEllipsis
}
