package prompts

// EmptyResponseNudge is injected when the model returns no content
// after executing tool calls, giving it one more chance to produce a
// user-visible reply.
const EmptyResponseNudge = "You executed tool calls but did not provide a response to the user. Please respond now."

// EmptyResponseFallback is returned to the user when the model produces
// no content even after being nudged.
const EmptyResponseFallback = "I processed your request but wasn't able to compose a response. Please try again."

// RoundLimitReached is returned when a run hits the tool-round cap
// before the model finishes on its own.
const RoundLimitReached = "I wasn't able to finish that within a reasonable number of steps. Could you rephrase or break the request into smaller parts?"

// RunTimedOut is returned when a run exceeds its time budget.
const RunTimedOut = "That took too long to complete, so I stopped. The home may be partially updated; ask me to check if you want to be sure."
