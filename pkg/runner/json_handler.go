package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/pkg/domain"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, res *concierge.Result) error {
	return h.Encoder.Encode(res)
}

// Input reads one event per line. A line that is not an event object is
// taken as free text: a JSON string is unquoted, anything else used raw.
func (h *JSONHandler) Input(ctx context.Context) (domain.Event, error) {
	for {
		text, err := h.Reader.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(text) == "") {
			return domain.Event{}, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		var ev domain.Event
		if err := json.Unmarshal([]byte(text), &ev); err == nil && ev.Kind != "" {
			if ev.Text, err = SanitizeInput(ev.Text); err != nil {
				return domain.Event{}, err
			}
			return ev, nil
		}

		var val string
		if err := json.Unmarshal([]byte(text), &val); err == nil {
			text = val
		}
		clean, err := SanitizeInput(text)
		if err != nil {
			return domain.Event{}, err
		}
		return domain.FreeText(clean), nil
	}
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(map[string]string{"system": msg})
}
