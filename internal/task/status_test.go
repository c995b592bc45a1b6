package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", StatusTodo},
		{"todo", StatusTodo},
		{"Open", StatusTodo},
		{"PENDING", StatusTodo},
		{"in_progress", StatusInProgress},
		{"in-progress", StatusInProgress},
		{"Active", StatusInProgress},
		{"doing", StatusInProgress},
		{"waiting", StatusInProgress},
		{"done", StatusDone},
		{"Completed", StatusDone},
		{"complete", StatusDone},
		{"closed", StatusDone},
		{"cancelled", StatusCancelled},
		{"canceled", StatusCancelled},
		{"  Done  ", StatusDone},
		{"blocked", "blocked"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeStatus(tc.in), "input %q", tc.in)
	}
}

func TestIsCompleted(t *testing.T) {
	t.Parallel()

	assert.True(t, IsCompleted("done"))
	assert.True(t, IsCompleted("Completed"))
	assert.True(t, IsCompleted("closed"))
	assert.False(t, IsCompleted("cancelled"))
	assert.False(t, IsCompleted("todo"))
	assert.False(t, IsCompleted("in_progress"))
	assert.False(t, IsCompleted(""))
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTerminal("done"))
	assert.True(t, IsTerminal("cancelled"))
	assert.True(t, IsTerminal("canceled"))
	assert.False(t, IsTerminal("todo"))
	assert.False(t, IsTerminal("in_progress"))
	assert.False(t, IsTerminal("blocked"))
}
