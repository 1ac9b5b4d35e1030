package tablekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicMatch(t *testing.T) {
	tm := NewTopicMatcher()

	tests := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"task.recordCreate.after", "task.recordCreate.after", true},
		{"task.recordCreate.after", "task.recordCreate.before", false},
		{"task.*.after", "task.recordCreate.after", true},
		{"task.*.after", "task.recordDelete.after", true},
		{"task.*.after", "note.recordCreate.after", false},
		{"*.recordCreate.after", "task.recordCreate.after", true},
		{"task.**", "task.recordCreate.after", true},
		{"task.**", "task.recordCreate", true},
		{"task.**", "note.recordCreate.after", false},
		{"**", "task.recordCreate.after", true},
		{"*", "task.recordCreate.after", false},
		{"*", "task", true},
		{"task.*", "task.recordCreate.after", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" vs "+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, tm.Match(tt.pattern, tt.topic))
		})
	}
}

func TestTopicMatchAny(t *testing.T) {
	tm := NewTopicMatcher()
	patterns := []string{"role.**", "task.*.before"}

	assert.True(t, tm.MatchAny(patterns, "role.recordUpdate.after"))
	assert.True(t, tm.MatchAny(patterns, "task.recordCreate.before"))
	assert.False(t, tm.MatchAny(patterns, "task.recordCreate.after"))
}

func TestTopicValidate(t *testing.T) {
	tm := NewTopicMatcher()

	assert.NoError(t, tm.Validate("task.recordCreate.after"))
	assert.NoError(t, tm.Validate("task.**"))
	assert.NoError(t, tm.Validate("*.recordCreate.*"))

	assert.Error(t, tm.Validate(""))
	assert.Error(t, tm.Validate("task..after"))
	assert.Error(t, tm.Validate("task.record;create"))
}
