package agentloop

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/martinemde/chatagent/unifiedllm"
)

// maxLoopPeriod is the longest repeating cycle DetectLoop looks for.
const maxLoopPeriod = 3

// callSignature identifies a tool call by name and argument digest.
func callSignature(call unifiedllm.ToolCall) string {
	sum := sha256.Sum256(call.Arguments)
	return call.Name + ":" + hex.EncodeToString(sum[:8])
}

// lastSignatures returns the signatures of the final n tool calls in
// history, oldest first, or nil when history holds fewer.
func lastSignatures(history []Turn, n int) []string {
	var all []string
	for _, t := range history {
		if t.Kind != TurnAssistant || t.Assistant == nil {
			continue
		}
		for _, call := range t.Assistant.ToolCalls {
			all = append(all, callSignature(call))
		}
	}
	if len(all) < n {
		return nil
	}
	return all[len(all)-n:]
}

// DetectLoop reports whether the last window tool calls are a cycle of
// period 1 to 3 repeated at least twice.
func DetectLoop(history []Turn, window int) bool {
	if window < 2 {
		return false
	}
	sigs := lastSignatures(history, window)
	if sigs == nil {
		return false
	}
	for period := 1; period <= maxLoopPeriod && period < window; period++ {
		if window%period == 0 && cycles(sigs, period) {
			return true
		}
	}
	return false
}

func cycles(sigs []string, period int) bool {
	for i := period; i < len(sigs); i++ {
		if sigs[i] != sigs[i-period] {
			return false
		}
	}
	return true
}
