package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

// ConsoleProvider asks an operator on a terminal. Unrecognised input is re-prompted;
// end of input is treated as Quit, as is an answer typed after ctx was cancelled.
type ConsoleProvider struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsoleProvider creates a provider reading answers from in and writing prompts to out
func NewConsoleProvider(in io.Reader, out io.Writer) *ConsoleProvider {
	return &ConsoleProvider{in: bufio.NewReader(in), out: out}
}

// Decide renders the item and reads one answer
func (p *ConsoleProvider) Decide(ctx context.Context, item Item) (Decision, error) {
	p.render(item)

	for {
		if ctx.Err() != nil {
			return Quit(), nil
		}

		answer, err := p.prompt(menu(item))
		if ctx.Err() != nil {
			return Quit(), nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Quit(), nil
			}
			return Decision{}, fmt.Errorf("failed to read answer: %w", err)
		}

		action, err := ParseAction(answer)
		if err != nil {
			fmt.Fprintf(p.out, "Invalid choice %q.\n", answer)
			continue
		}
		if action != ActionOverride {
			return Decision{Action: action}, nil
		}

		target, ok, err := p.selectTarget(item)
		if ctx.Err() != nil {
			return Quit(), nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Quit(), nil
			}
			return Decision{}, err
		}
		if ok {
			return Override(target), nil
		}
	}
}

func menu(item Item) string {
	if item.Kind == KindMapping {
		return "[A]pprove  [R]eject  [M]anual  [S]kip  [Q]uit: "
	}
	return "[A]pprove  [R]eject  [S]kip  [Q]uit: "
}

func (p *ConsoleProvider) prompt(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// selectTarget lists the alternatives; false means the operator cancelled
func (p *ConsoleProvider) selectTarget(item Item) (entity.Account, bool, error) {
	if len(item.Alternatives) == 0 {
		fmt.Fprintln(p.out, "No alternatives available.")
		return entity.Account{}, false, nil
	}

	fmt.Fprintln(p.out, "\nAvailable accounts:")
	for i, alt := range item.Alternatives {
		fmt.Fprintf(p.out, "%3d. [%s] %s\n", i+1, alt.Code, alt.Name)
	}

	answer, err := p.prompt("Account number (c to cancel): ")
	if err != nil {
		return entity.Account{}, false, err
	}
	if strings.EqualFold(answer, "c") {
		return entity.Account{}, false, nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(item.Alternatives) {
		fmt.Fprintf(p.out, "Invalid account number %q.\n", answer)
		return entity.Account{}, false, nil
	}
	return item.Alternatives[n-1], true, nil
}

func (p *ConsoleProvider) render(item Item) {
	fmt.Fprintf(p.out, "\n--- %s %d/%d ---\n", item.Kind, item.Position, item.Total)
	if item.Problem != "" {
		fmt.Fprintf(p.out, "! %s\n", item.Problem)
	}

	switch {
	case item.Mapping != nil:
		m := item.Mapping
		fmt.Fprintf(p.out, "Source:     [%s] %s (%s)\n", m.Source.Code, m.Source.Name, m.Source.Type)
		if m.HasTarget() {
			fmt.Fprintf(p.out, "Target:     [%s] %s\n", m.Target.Code, m.Target.Name)
			fmt.Fprintf(p.out, "Confidence: %s %d%% (%s)\n", bar(m.Confidence), m.Confidence, m.Strategy)
		} else {
			fmt.Fprintln(p.out, "Target:     none - requires manual mapping")
		}
		fmt.Fprintf(p.out, "Reason:     %s\n", m.Notes)

	case item.Elimination != nil:
		e := item.Elimination
		fmt.Fprintf(p.out, "Type:       %s\n", e.MatchType)
		fmt.Fprintf(p.out, "Source:     %s %s %s\n", e.Source.Date.Format("2006-01-02"), e.Source.NetAmount.StringFixed(2), e.Source.Description)
		fmt.Fprintf(p.out, "Target:     %s %s %s\n", e.Target.Date.Format("2006-01-02"), e.Target.NetAmount.StringFixed(2), e.Target.Description)
		fmt.Fprintf(p.out, "Eliminate:  %s\n", e.EliminationAmount.StringFixed(2))
		fmt.Fprintf(p.out, "Confidence: %s %d%%\n", bar(e.Confidence), e.Confidence)
	}
}

func bar(confidence int) string {
	n := entity.ClampConfidence(confidence) / 5
	return strings.Repeat("#", n) + strings.Repeat(".", 20-n)
}
