// Package classify turns narration lines of a discussion run into ledger
// events. Rules form an ordered table; the first rule whose predicate matches
// a line decides the outcome and later rules are not consulted.
package classify

import (
	"errors"
	"fmt"
	"strings"

	"msgtrack/pkg/ledger"
)

// Rule names, also used as log attributes.
const (
	RuleLoadingInsight      = "loading_insight"
	RulePublishingInsight   = "publishing_insight"
	RuleGeneratingResponse  = "generating_response"
	RuleCharacterObject     = "character_object"
	RulePublishingResponse  = "publishing_response"
	RuleDiscussionCompleted = "discussion_completed"
)

// Input is the timing and run context a line is classified under.
type Input struct {
	ElapsedSeconds float64
	CorrelationID  string
}

// Extractor builds the event for a matched line. A nil event with a nil
// error means the rule is informational only.
type Extractor func(line string, in Input) (*ledger.Event, error)

// Rule is one row of the decision table.
type Rule struct {
	Name    string
	Match   func(line string) bool
	Extract Extractor
}

// ClassificationError reports a line that matched a rule but whose fields
// could not be extracted.
type ClassificationError struct {
	Rule   string
	Line   string
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %s: %q", e.Rule, e.Reason, e.Line)
}

// Classifier evaluates its rules in order. It holds no mutable state, so one
// Classifier may serve concurrent callers.
type Classifier struct {
	rules []Rule
}

// New builds the standard rule table for the given markers.
func New(m Markers) *Classifier {
	return NewWithRules(Rules(m))
}

// NewWithRules builds a Classifier over a caller-supplied table.
func NewWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Rules returns the standard decision table, in precedence order.
func Rules(m Markers) []Rule {
	return []Rule{
		{Name: RuleLoadingInsight, Match: contains(m.LoadingInsight)},
		{Name: RulePublishingInsight, Match: contains(m.PublishingInsight), Extract: publishedInsight},
		{Name: RuleGeneratingResponse, Match: contains(m.GeneratingResponse), Extract: generatingResponse(m.GeneratingResponse)},
		{Name: RuleCharacterObject, Match: contains(m.CharacterObject)},
		{Name: RulePublishingResponse, Match: contains(m.PublishingResponse)},
		{Name: RuleDiscussionCompleted, Match: contains(m.DiscussionCompleted)},
	}
}

// Classify returns the event for line, or nil when the line carries none.
func (c *Classifier) Classify(line string, elapsedSeconds float64, correlationID string) *ledger.Event {
	_, e := c.Match(line, Input{ElapsedSeconds: elapsedSeconds, CorrelationID: correlationID})
	return e
}

// Match is Classify that also reports which rule fired ("" when none did).
// Extraction failures come back as system error events, never as errors.
func (c *Classifier) Match(line string, in Input) (string, *ledger.Event) {
	for _, r := range c.rules {
		if !r.Match(line) {
			continue
		}
		if r.Extract == nil {
			return r.Name, nil
		}

		e, err := r.Extract(line, in)
		if err != nil {
			var ce *ClassificationError
			if !errors.As(err, &ce) {
				ce = &ClassificationError{Rule: r.Name, Line: line, Reason: err.Error()}
			}
			ev := ledger.SystemError(in.CorrelationID, line, ce.Error(), ledger.Seconds(in.ElapsedSeconds))
			return r.Name, &ev
		}
		return r.Name, e
	}
	return "", nil
}

// contains matches lines holding marker. An empty marker never matches.
func contains(marker string) func(string) bool {
	return func(line string) bool {
		return marker != "" && strings.Contains(line, marker)
	}
}

func publishedInsight(line string, in Input) (*ledger.Event, error) {
	return &ledger.Event{
		SubjectID:      ledger.ProfileSubject,
		Kind:           ledger.KindInsight,
		Content:        line,
		CorrelationID:  in.CorrelationID,
		Status:         ledger.StatusSent,
		ElapsedSeconds: ledger.Seconds(in.ElapsedSeconds),
	}, nil
}

func generatingResponse(marker string) Extractor {
	return func(line string, in Input) (*ledger.Event, error) {
		name, kind, err := parseParticipant(line, marker)
		if err != nil {
			return nil, &ClassificationError{Rule: RuleGeneratingResponse, Line: line, Reason: err.Error()}
		}
		return &ledger.Event{
			SubjectID:       name,
			Kind:            ledger.KindResponse,
			Content:         line,
			CorrelationID:   in.CorrelationID,
			Status:          ledger.StatusGenerating,
			ElapsedSeconds:  ledger.Seconds(in.ElapsedSeconds),
			ParticipantKind: kind,
		}, nil
	}
}

// parseParticipant extracts "<name> (<kind>)" following marker. Parentheses
// inside the name or kind are not part of the grammar and are rejected.
func parseParticipant(line, marker string) (name, kind string, err error) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", "", errors.New("marker not found")
	}
	rest := line[idx+len(marker):]

	open := strings.Index(rest, " (")
	if open < 0 {
		return "", "", errors.New(`missing " (" after participant name`)
	}
	name = strings.TrimSpace(rest[:open])
	if name == "" {
		return "", "", errors.New("empty participant name")
	}
	if strings.ContainsAny(name, "()") {
		return "", "", errors.New("parenthesis in participant name")
	}

	after := rest[open+len(" ("):]
	end := strings.Index(after, ")")
	if end < 0 {
		return "", "", errors.New(`missing ")" after participant kind`)
	}
	kind = strings.TrimSpace(after[:end])
	if kind == "" {
		return "", "", errors.New("empty participant kind")
	}
	if strings.Contains(kind, "(") {
		return "", "", errors.New("parenthesis in participant kind")
	}
	return name, kind, nil
}
