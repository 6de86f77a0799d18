package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

const prompt = ">>> "

var (
	okColor     = color.New(color.FgGreen)
	abortColor  = color.New(color.FgRed, color.Bold)
	failColor   = color.New(color.FgRed)
	noticeColor = color.New(color.FgYellow)
)

type command func(ctx context.Context, args []string) bool

// Shell renders operator commands against a Client.
type Shell struct {
	client   *Client
	out      io.Writer
	commands map[string]command
}

func NewShell(client *Client, out io.Writer) *Shell {
	s := &Shell{client: client, out: out}
	s.commands = map[string]command{
		"begin":  s.begin,
		"set":    s.set,
		"get":    s.get,
		"commit": s.commit,
		"abort":  s.abort,
		"exit":   s.exit,
		"quit":   s.exit,
	}
	return s
}

// Execute runs one input line. It returns false once the operator asked
// to leave.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return true
	}
	cmd, ok := s.commands[strings.ToLower(args[0])]
	if !ok {
		noticeColor.Fprintf(s.out, "Unknown command %q. Try BEGIN, SET, GET, COMMIT, ABORT or EXIT\n", args[0])
		return true
	}
	return cmd(ctx, args[1:])
}

// Run reads commands until EOF, interrupt, EXIT or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          s.out,
	})
	if err != nil {
		return errors.Wrap(err, "open terminal")
	}
	defer l.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-done:
		}
	}()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "read command")
		}
		if ctx.Err() != nil || !s.Execute(ctx, line) {
			return nil
		}
	}
}

func (s *Shell) begin(ctx context.Context, args []string) bool {
	if len(args) != 0 {
		s.failed(errors.Wrap(ErrUsage, "BEGIN takes no arguments"))
		return true
	}
	if _, err := s.client.Begin(ctx); err != nil {
		s.failed(err)
		return true
	}
	okColor.Fprintln(s.out, "OK")
	return true
}

func (s *Shell) set(ctx context.Context, args []string) bool {
	if len(args) < 2 {
		s.failed(errors.Wrap(ErrUsage, "SET <server>.<key> <value>"))
		return true
	}
	if err := s.client.Set(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
		s.report(err)
		return true
	}
	okColor.Fprintln(s.out, "OK")
	return true
}

func (s *Shell) get(ctx context.Context, args []string) bool {
	if len(args) != 1 {
		s.failed(errors.Wrap(ErrUsage, "GET <server>.<key>"))
		return true
	}
	res, err := s.client.Get(ctx, args[0])
	if err != nil {
		s.report(err)
		return true
	}
	if !res.Found {
		noticeColor.Fprintln(s.out, "NOT FOUND")
		return true
	}
	fmt.Fprintln(s.out, res)
	return true
}

func (s *Shell) commit(ctx context.Context, args []string) bool {
	if len(args) != 0 {
		s.failed(errors.Wrap(ErrUsage, "COMMIT takes no arguments"))
		return true
	}
	if err := s.client.Commit(ctx); err != nil {
		s.report(err)
		return true
	}
	okColor.Fprintln(s.out, "COMMIT OK")
	return true
}

func (s *Shell) abort(ctx context.Context, args []string) bool {
	if len(args) != 0 {
		s.failed(errors.Wrap(ErrUsage, "ABORT takes no arguments"))
		return true
	}
	if err := s.client.Abort(); err != nil {
		s.failed(err)
		return true
	}
	abortColor.Fprintln(s.out, "ABORT")
	return true
}

func (s *Shell) exit(ctx context.Context, args []string) bool {
	if s.client.InTxn() {
		if err := s.client.Abort(); err != nil {
			s.failed(err)
		} else {
			noticeColor.Fprintln(s.out, "Open transaction aborted")
		}
	}
	return false
}

// report prints ABORT for protocol outcomes and FAILED for everything else.
func (s *Shell) report(err error) {
	switch errors.Cause(err) {
	case ErrRejected, ErrCommitAborted:
		abortColor.Fprintln(s.out, "ABORT")
	default:
		s.failed(err)
	}
}

func (s *Shell) failed(err error) {
	failColor.Fprintf(s.out, "FAILED: %s\n", err)
}
