package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/pkg/domain"
)

// RestartCommand typed at the prompt starts the conversation over.
const RestartCommand = "/restart"

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader *bufio.Reader
	Writer io.Writer

	// options are the branches offered by the last rendered node.
	options []concierge.BranchView
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
}

func (h *TextHandler) Output(ctx context.Context, res *concierge.Result) error {
	for _, node := range res.Rendered {
		for _, r := range node.Responses {
			switch r.Type {
			case domain.ResponseImage:
				fmt.Fprintf(h.Writer, "[image] %s\n", r.URL)
			default:
				fmt.Fprintln(h.Writer, strings.TrimSpace(r.Text))
			}
		}
	}

	if cur := res.Current(); cur != nil {
		h.options = h.options[:0]
		for _, b := range cur.Branches {
			if b.Kind == domain.BranchFreeText {
				continue
			}
			h.options = append(h.options, b)
			fmt.Fprintf(h.Writer, "  %d) %s\n", len(h.options), b.Label)
		}
	}

	for _, fx := range res.SideEffects {
		switch fx.Kind {
		case domain.EffectOpenLink:
			fmt.Fprintf(h.Writer, "[link] %s\n", fx.URL)
		case domain.EffectAction:
			fmt.Fprintf(h.Writer, "[%s]\n", fx.Action)
		case domain.EffectReRender:
			fmt.Fprintln(h.Writer, "Sorry, I did not understand. Please pick an option.")
		}
	}
	return nil
}

func (h *TextHandler) Input(ctx context.Context) (domain.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return domain.Event{}, ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		text, err := h.Reader.ReadString('\n')
		if err != nil && (err != io.EOF || text == "") {
			return domain.Event{}, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		clean, err := SanitizeInput(text)
		if err != nil {
			fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
			continue
		}
		return h.event(clean), nil
	}
}

// event maps a typed line to an engine event.
func (h *TextHandler) event(text string) domain.Event {
	if text == RestartCommand {
		return domain.Start()
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(h.options) {
		b := h.options[n-1]
		return domain.SelectBranch(b.ID)
	}
	return domain.FreeText(text)
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "* %s\n", msg)
	return err
}
