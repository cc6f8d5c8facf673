package review

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

func TestParseAction(t *testing.T) {
	tests := map[string]Action{
		"a": ActionApprove, "Approve": ActionApprove,
		"r": ActionReject, "m": ActionOverride,
		"s": ActionDefer, "defer": ActionDefer,
		"Q": ActionQuit,
	}
	for in, want := range tests {
		got, err := ParseAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAction("x")
	assert.Error(t, err)
}

func consoleItem() Item {
	rent := account("b1", "300", "Rent", entity.AccountTypeExpense)
	cand := mappingCand("a1", 60, &rent)
	return Item{
		Kind:         KindMapping,
		Position:     1,
		Total:        1,
		Mapping:      &cand,
		Alternatives: []entity.Account{rent, account("b2", "310", "Power", entity.AccountTypeExpense)},
	}
}

func TestConsoleProvider_Decide(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantAction Action
		wantTarget string
	}{
		{"approve", "a\n", ActionApprove, ""},
		{"reprompt on garbage", "zzz\nr\n", ActionReject, ""},
		{"manual selection", "m\n2\n", ActionOverride, "b2"},
		{"manual cancel then skip", "m\nc\ns\n", ActionDefer, ""},
		{"manual bad number then quit", "m\n9\nq\n", ActionQuit, ""},
		{"eof quits", "", ActionQuit, ""},
		{"last line without newline", "a", ActionApprove, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewConsoleProvider(strings.NewReader(tt.input), &out)

			d, err := p.Decide(context.Background(), consoleItem())
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, d.Action)
			if tt.wantTarget != "" {
				require.NotNil(t, d.Target)
				assert.Equal(t, tt.wantTarget, d.Target.ID)
			}
			assert.Contains(t, out.String(), "Source:     [a1] Source a1")
		})
	}
}

// interruptingReader cancels the run while the operator is typing
type interruptingReader struct {
	cancel context.CancelFunc
	r      *strings.Reader
}

func (r *interruptingReader) Read(b []byte) (int, error) {
	r.cancel()
	return r.r.Read(b)
}

func TestConsoleProvider_AnswerAfterCancelQuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	p := NewConsoleProvider(&interruptingReader{cancel: cancel, r: strings.NewReader("a\n")}, &out)

	d, err := p.Decide(ctx, consoleItem())
	require.NoError(t, err)
	assert.Equal(t, ActionQuit, d.Action)
}

func TestConsoleProvider_CancelledBeforePrompt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	p := NewConsoleProvider(strings.NewReader("a\n"), &out)

	d, err := p.Decide(ctx, consoleItem())
	require.NoError(t, err)
	assert.Equal(t, ActionQuit, d.Action)
	assert.NotContains(t, out.String(), "[A]pprove")
}
