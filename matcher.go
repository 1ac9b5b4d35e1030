package tablekit

import (
	"strings"
)

// TopicMatcher handles event-topic matching with wildcard support.
//
// Topics are dot-separated, e.g. "task.recordCreate.after". Supported
// patterns:
//   - "*" matches exactly one segment
//   - "task.*.after" matches one segment in the middle
//   - "task.**" matches any number of trailing segments
//   - "task.recordCreate.after" matches exactly
type TopicMatcher struct{}

// NewTopicMatcher creates a new TopicMatcher.
func NewTopicMatcher() *TopicMatcher {
	return &TopicMatcher{}
}

// Match checks if a topic pattern matches an emitted topic.
//
// Examples:
//
//	Match("*", "task.recordCreate.after")                    // false - one segment vs three
//	Match("task.**", "task.recordCreate.after")              // true - multi-segment wildcard
//	Match("task.*.before", "task.recordUpdate.before")       // true - segment wildcard
//	Match("task.recordCreate.after", "task.recordCreate.after") // true - exact
//	Match("task.*.after", "note.recordCreate.after")         // false - different resource
func (tm *TopicMatcher) Match(pattern, topic string) bool {
	// Exact match
	if pattern == topic {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	topicParts := strings.Split(topic, ".")

	return matchParts(patternParts, topicParts)
}

func matchParts(pattern, topic []string) bool {
	for i, pp := range pattern {
		if pp == "**" {
			// Trailing multi-wildcard absorbs the rest; a non-trailing
			// one tries every possible split.
			if i == len(pattern)-1 {
				return true
			}
			for j := i; j <= len(topic); j++ {
				if matchParts(pattern[i+1:], topic[j:]) {
					return true
				}
			}
			return false
		}
		if i >= len(topic) {
			return false
		}
		if pp == "*" {
			continue
		}
		if pp != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}

// MatchAny checks if any of the patterns match the topic.
func (tm *TopicMatcher) MatchAny(patterns []string, topic string) bool {
	for _, pattern := range patterns {
		if tm.Match(pattern, topic) {
			return true
		}
	}
	return false
}

// Validate checks if a topic pattern is valid: non-empty, dot-separated
// identifier segments, with "*" and "**" allowed as whole segments.
func (tm *TopicMatcher) Validate(pattern string) error {
	if pattern == "" {
		return NewError(ErrInvalidDeclaration, "event topic cannot be empty")
	}

	parts := strings.Split(pattern, ".")
	for _, part := range parts {
		if part == "" {
			return NewError(ErrInvalidDeclaration, "event topic segments cannot be empty")
		}
		if part == "*" || part == "**" {
			continue
		}
		for _, c := range part {
			if !isValidTopicChar(c) {
				return NewError(ErrInvalidDeclaration, "event topic contains invalid character")
			}
		}
	}

	return nil
}

func isValidTopicChar(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// DefaultTopicMatcher is the default topic matcher instance.
var DefaultTopicMatcher = NewTopicMatcher()

// MatchTopic is a convenience function using the default matcher.
func MatchTopic(pattern, topic string) bool {
	return DefaultTopicMatcher.Match(pattern, topic)
}
