package main

import (
	"context"
	"io"
	"strconv"
	"sync"

	"github.com/fatih/color"

	"github.com/zhouzirui/dietbot/internal/model/intake"
)

// console prints bot output to a terminal.
type console struct {
	out    io.Writer
	bot    *color.Color
	button *color.Color
	note   *color.Color

	mu   sync.Mutex
	next int
	last intake.MessageRef
}

func newConsole(out io.Writer) *console {
	return &console{
		out:    out,
		bot:    color.New(color.FgGreen),
		button: color.New(color.FgCyan, color.Bold),
		note:   color.New(color.Faint),
	}
}

func (c *console) SendMessage(_ context.Context, userID intake.UserID, text string, buttons ...intake.Button) (intake.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	ref := intake.MessageRef{UserID: userID, ID: strconv.Itoa(c.next)}
	c.bot.Fprintln(c.out, text)
	for _, b := range buttons {
		c.button.Fprintf(c.out, "  [#%s] %s\n", b.Data, b.Label)
	}
	if len(buttons) > 0 {
		c.last = ref
	}
	return ref, nil
}

func (c *console) EditMessage(_ context.Context, ref intake.MessageRef, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.note.Fprintf(c.out, "(message %s edited)\n", ref.ID)
	c.bot.Fprintln(c.out, text)
	if ref == c.last {
		c.last = intake.MessageRef{}
	}
	return nil
}

func (c *console) SendTyping(context.Context, intake.UserID) error {
	c.note.Fprintln(c.out, "...")
	return nil
}

func (c *console) lastRef() intake.MessageRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
