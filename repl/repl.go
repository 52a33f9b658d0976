// Package repl drives a counter from the terminal. Every command redraws
// the label straight away.
package repl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/jfyne/counter"
)

// Commands understood by the repl.
const (
	cmdInc  = "inc"
	cmdShow = "show"
	cmdExit = "exit"
)

// Repl a terminal front end for one counter.
type Repl struct {
	counter *counter.Counter
	out     io.Writer
	exit    func(code int)
}

// New creates a repl writing its redraws to out.
func New(c *counter.Counter, out io.Writer) *Repl {
	r := &Repl{
		counter: c,
		out:     out,
		exit:    os.Exit,
	}
	c.Subscribe(func(int) { r.draw() })
	return r
}

// Execute runs a single command line.
func (r *Repl) Execute(line string) {
	switch strings.TrimSpace(line) {
	case "":
		return
	case cmdInc, "+":
		// The subscription redraws.
		r.counter.Increment()
	case cmdShow:
		r.draw()
	case cmdExit, "quit":
		fmt.Fprintln(r.out, "bye")
		r.exit(0)
	default:
		fmt.Fprintf(r.out, "unknown command %q, try inc, show or exit\n", line)
	}
}

func (r *Repl) draw() {
	fmt.Fprintln(r.out, r.counter.Label())
}

// Complete suggests commands.
func (r *Repl) Complete(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: cmdInc, Description: "increment the counter"},
		{Text: cmdShow, Description: "show the current count"},
		{Text: cmdExit, Description: "leave"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

// Run starts the interactive prompt and blocks.
func (r *Repl) Run() {
	r.draw()
	p := prompt.New(
		r.Execute,
		r.Complete,
		prompt.OptionTitle("counter"),
		prompt.OptionPrefix("> "),
		prompt.OptionAddKeyBind(prompt.KeyBind{
			Key: prompt.ControlC,
			Fn: func(buf *prompt.Buffer) {
				fmt.Fprintln(r.out, "\nExit on Ctrl+C")
				r.exit(0)
			},
		}),
	)
	p.Run()
}
