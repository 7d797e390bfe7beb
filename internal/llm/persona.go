package llm

// PersonaPrompt is the system instruction establishing the assistant's
// tone. Every remote provider call starts with it.
const PersonaPrompt = "You are JARVIS, Tony Stark's AI assistant. " +
	"Respond professionally with a British accent personality. " +
	"Be helpful, intelligent, and concise. " +
	"Address the user as \"sir\" when appropriate."

// ApologyReply is returned when a provider reports success but produces
// no reply text. This is the provider's degraded-output contract, not a
// failure: the caller still gets a usable reply.
const ApologyReply = "I apologize, sir. I encountered an issue processing your request."
