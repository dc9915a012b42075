package anthropic

import "github.com/taipm/mic/mic"

// legacyModelPrefixes names Claude generations that predate strict tool/
// output support; shouldUseBeta never selects the beta surface for them
// even if the request asks for strict mode.
var legacyModelPrefixes = []string{"claude-2", "claude-instant"}

func modelSupportsStrict(modelName string) bool {
	for _, prefix := range legacyModelPrefixes {
		if len(modelName) >= len(prefix) && modelName[:len(prefix)] == prefix {
			return false
		}
	}
	return true
}

func requestWantsStrict(req mic.Request) bool {
	if req.Format != nil && req.Format.Mode == mic.FormatModeStrict {
		return true
	}
	for _, t := range req.Tools {
		if t.Strict {
			return true
		}
	}
	return false
}

// shouldUseBeta decides whether a request routes through Anthropic's beta
// Messages surface: strict format-mode or any strict tool, and the model
// capability supports strict (spec Open Question, decided in DESIGN.md).
func shouldUseBeta(req mic.Request, modelName string) bool {
	return requestWantsStrict(req) && modelSupportsStrict(modelName)
}
