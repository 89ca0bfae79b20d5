package perception

import (
	"encoding/json"
	"strings"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
)

type locateReply struct {
	Found      bool    `json:"found"`
	Selector   string  `json:"selector"`
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
}

type actionReply struct {
	Action     string  `json:"action"`
	Selector   string  `json:"selector"`
	Kind       string  `json:"kind"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type verifyReply struct {
	Complete bool   `json:"complete"`
	Reason   string `json:"reason"`
}

func parseLocate(text string) (*core.Locator, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var reply locateReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "malformed locate reply")
	}
	if !reply.Found || reply.Selector == "" {
		// An honest miss, not an error
		return nil, nil
	}

	kind, err := locatorKind(reply.Kind)
	if err != nil {
		return nil, err
	}
	return &core.Locator{Value: reply.Selector, Kind: kind}, nil
}

func parseNextAction(text string) (*core.ProposedAction, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var reply actionReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "malformed action reply")
	}

	kind := core.ActionKind(reply.Action)
	if !kind.Valid() {
		return nil, errors.Newf(errors.InvalidResponse, "unknown action kind %q", reply.Action)
	}

	proposed := &core.ProposedAction{
		Kind:       kind,
		Value:      reply.Value,
		Confidence: reply.Confidence,
		Reasoning:  reply.Reasoning,
	}
	if reply.Selector != "" {
		lk, err := locatorKind(reply.Kind)
		if err != nil {
			return nil, err
		}
		proposed.Locator = core.Locator{Value: reply.Selector, Kind: lk}
	}
	return proposed, nil
}

func parseVerify(text string) (bool, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return false, err
	}

	var reply verifyReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return false, errors.Wrap(err, errors.InvalidResponse, "malformed verification reply")
	}
	return reply.Complete, nil
}

func locatorKind(s string) (core.LocatorKind, error) {
	switch s {
	case "", string(core.LocatorStructural):
		return core.LocatorStructural, nil
	case string(core.LocatorText):
		return core.LocatorText, nil
	case string(core.LocatorCoordinate):
		return core.LocatorCoordinate, nil
	default:
		return "", errors.Newf(errors.InvalidResponse, "unknown locator kind %q", s)
	}
}

// extractJSON pulls the JSON object out of a model reply, tolerating
// markdown fences and surrounding prose.
func extractJSON(text string) (string, error) {
	content := text
	if start := strings.Index(content, "```json"); start != -1 {
		content = content[start+len("```json"):]
		if end := strings.Index(content, "```"); end != -1 {
			content = content[:end]
		}
	} else if start := strings.Index(content, "```"); start != -1 {
		content = content[start+3:]
		if end := strings.Index(content, "```"); end != -1 {
			content = content[:end]
		}
	}

	first := strings.Index(content, "{")
	last := strings.LastIndex(content, "}")
	if first == -1 || last < first {
		return "", errors.New(errors.InvalidResponse, "no JSON object in reply")
	}
	return content[first : last+1], nil
}
