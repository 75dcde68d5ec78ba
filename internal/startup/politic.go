package startup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/openmined/trsync/internal/event"
)

// ErrRejected is returned when the startup changes were refused.
var ErrRejected = errors.New("startup: changes rejected")

// Politic decides whether the changes found at startup may be applied.
type Politic interface {
	Accept(ctx context.Context, local, remote []event.Change) (bool, error)
}

// AcceptAll applies whatever was found.
type AcceptAll struct{}

func (AcceptAll) Accept(context.Context, []event.Change, []event.Change) (bool, error) {
	return true, nil
}

// Confirmation prints both change lists and waits for a y/n answer.
type Confirmation struct {
	In  io.Reader
	Out io.Writer
}

func (p *Confirmation) Accept(ctx context.Context, local, remote []event.Change) (bool, error) {
	if len(local) == 0 && len(remote) == 0 {
		return true, nil
	}

	header := color.New(color.Bold)
	header.Fprintf(p.Out, "Local changes (%d)\n", len(local))
	for _, c := range local {
		fmt.Fprintf(p.Out, "  %s\n", paint(c))
	}
	header.Fprintf(p.Out, "Remote changes (%d)\n", len(remote))
	for _, c := range remote {
		fmt.Fprintf(p.Out, "  %s\n", paint(c))
	}
	fmt.Fprint(p.Out, "Apply these changes? [y/N] ")

	answers := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(p.In).ReadString('\n')
		answers <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case answer := <-answers:
		return answer == "y" || answer == "yes", nil
	}
}

func paint(c event.Change) string {
	switch c.Type {
	case event.ChangeNew:
		return color.GreenString("+ %s", c)
	case event.ChangeDisappear:
		return color.RedString("- %s", c)
	default:
		return color.YellowString("~ %s", c)
	}
}
