package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// PromptConfirmer pregunta en out y lee una respuesta y/N de in. Cualquier
// otra cosa que y/yes, incluido EOF, cuenta como rechazo.
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptConfirmer crea un PromptConfirmer sobre in y out
func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewReader(in), out: out}
}

// Confirm muestra prompt y espera y/N
func (p *PromptConfirmer) Confirm(ctx context.Context, prompt string) bool {
	if ctx.Err() != nil {
		return false
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// AutoConfirmer responde siempre lo mismo (--yes)
type AutoConfirmer bool

func (a AutoConfirmer) Confirm(context.Context, string) bool { return bool(a) }
