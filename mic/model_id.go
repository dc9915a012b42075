package mic

import (
	"fmt"
	"regexp"
	"strings"
)

// ModelID is the opaque "<provider>/<model>[:selector]" identifier
// described in spec §3: the substring before the first "/" selects a
// provider; the remainder (minus any ":selector" suffix) is the
// provider-native model name.
type ModelID string

var (
	providerIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	modelNamePattern  = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// Parse splits the identifier into its provider id, provider-native model
// name, and optional API selector (the part after ":", provider-specific;
// e.g. OpenAI's "responses").
func (id ModelID) Parse() (providerID, modelName, selector string, err error) {
	s := string(id)
	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return "", "", "", fmt.Errorf("mic: model id %q missing provider prefix", s)
	}
	providerID, rest := s[:slash], s[slash+1:]
	if !providerIDPattern.MatchString(providerID) {
		return "", "", "", fmt.Errorf("mic: invalid provider id %q", providerID)
	}
	modelName = rest
	if colon := strings.IndexByte(rest, ':'); colon >= 0 {
		modelName, selector = rest[:colon], rest[colon+1:]
	}
	if !modelNamePattern.MatchString(modelName) {
		return "", "", "", fmt.Errorf("mic: invalid model name %q", modelName)
	}
	return providerID, modelName, selector, nil
}

// ProviderID returns the identifier's provider segment, or "" if the
// identifier is malformed.
func (id ModelID) ProviderID() string {
	p, _, _, err := id.Parse()
	if err != nil {
		return ""
	}
	return p
}
