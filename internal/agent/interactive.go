package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kyleking/schema-rag/internal/errors"
)

// Interactive commands
const (
	cmdHistory = "history"
	cmdClear   = "clear"
)

var exitCommands = map[string]bool{"exit": true, "quit": true, "q": true}

// RunInteractive reads one request per line from in and writes SQL to out
// until EOF, an exit command, or ctx is done. Failed requests are reported
// and the loop continues.
func (a *Agent) RunInteractive(ctx context.Context, in io.Reader, out io.Writer, explain bool, tables []string) error {
	fmt.Fprintln(out, "SQL agent interactive mode")

	if len(tables) > 0 {
		fmt.Fprintf(out, "Available tables: %s\n", strings.Join(tables, ", "))
	}

	fmt.Fprintln(out, "Type 'history' to show the conversation, 'clear' to reset it, 'exit' to quit.")

	scanner := bufio.NewScanner(in)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(out, "\n> ")

		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case exitCommands[strings.ToLower(line)]:
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case strings.EqualFold(line, cmdHistory):
			a.printHistory(out)
			continue
		case strings.EqualFold(line, cmdClear):
			a.history.Clear()
			fmt.Fprintln(out, "Conversation history cleared.")

			continue
		}

		answer, err := a.Generate(ctx, line, explain)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			fmt.Fprintf(out, "Error: %v\n", err)

			for _, s := range errors.GetSuggestions(err) {
				fmt.Fprintf(out, "  - %s\n", s)
			}

			continue
		}

		fmt.Fprintf(out, "\n%s\n", answer.SQL)
	}
}

func (a *Agent) printHistory(out io.Writer) {
	turns := a.history.Turns()
	if len(turns) == 0 {
		fmt.Fprintln(out, "No conversation history.")
		return
	}

	for i, turn := range turns {
		fmt.Fprintf(out, "\nTurn %d:\nUser: %s\nAssistant: %s\n", i+1, turn.User, turn.Assistant)
	}
}
