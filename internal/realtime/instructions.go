package realtime

import "strings"

// EndCallMarker is the in-band token the agent speaks (in text only) to
// signal the conversation should end. The bridge strips it from transcripts
// before logging.
const EndCallMarker = "[END_CALL]"

const instructionsTemplate = `You are a polite, efficient voice agent making a phone call on behalf of an operator.

Your objective for this call:
%OBJECTIVE%

Rules:
- Speak naturally and briefly; this is a real phone conversation.
- Stay on the objective. Do not invent commitments the operator did not ask for.
- If the other party asks, say you are an automated assistant calling on the operator's behalf.
- When the objective is complete, or the other party wants to end the call, say a short goodbye and then emit the exact token ` + EndCallMarker + ` at the end of your final sentence.`

// ComposeInstructions builds the session instructions from the fixed template
// and the operator's objective.
func ComposeInstructions(objective string) string {
	objective = strings.TrimSpace(objective)
	if objective == "" {
		objective = "Have a brief, friendly conversation, explain that this was a test call, and end the call."
	}
	return strings.Replace(instructionsTemplate, "%OBJECTIVE%", objective, 1)
}
