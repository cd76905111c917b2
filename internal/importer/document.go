package importer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"
)

// Cell types of a legacy export.
const (
	CellStart    = "start"
	CellResponse = "response"
	CellJoint    = "joint"
	CellMail     = "mail"
	CellHandover = "handover"
)

// Joint condition types.
const (
	JointLink = "link" // condition.link names a response cell
	JointURL  = "url"  // condition.value is an external URL
)

// Document is a decoded legacy flow-chart export.
type Document struct {
	Cells   []Cell
	Skipped []SkippedCell
}

// SkippedCell records a cell that could not be decoded.
type SkippedCell struct {
	Index  int
	ID     string
	Reason string
}

// Cell is the union of every legacy cell shape. Only the fields relevant to Type are set.
type Cell struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// start, joint, mail, handover, message-like responses
	NextNode string `json:"nextNode"`

	// response
	Name     string   `json:"name"`
	Text     string   `json:"text"`
	Texts    []string `json:"texts"`
	Replies  []Reply  `json:"replies"`
	Position Point    `json:"position"`

	// joint
	Condition JointCondition `json:"condition"`

	// mail
	To      string `json:"to"`
	Subject string `json:"subject"`
}

// Reply is a selectable answer on a response cell.
type Reply struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	NextNode string `json:"nextNode"`
}

// JointCondition is the routing rule carried by a joint cell.
type JointCondition struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Link  string `json:"link"`
}

// Point is an editor coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Decode reads a legacy export. Cells are decoded leniently: numbers written as
// strings (and the reverse) are accepted, and cells that cannot be decoded are
// recorded in Skipped instead of failing the whole document.
func Decode(r io.Reader) (*Document, error) {
	var raw struct {
		Cells []map[string]any `json:"cells"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse legacy export: %w", err)
	}

	doc := &Document{}
	for i, m := range raw.Cells {
		var c Cell
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           &c,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build cell decoder: %w", err)
		}
		if err := dec.Decode(m); err != nil {
			id, _ := m["id"].(string)
			doc.Skipped = append(doc.Skipped, SkippedCell{Index: i, ID: id, Reason: err.Error()})
			continue
		}
		if c.ID == "" {
			doc.Skipped = append(doc.Skipped, SkippedCell{Index: i, Reason: "cell has no id"})
			continue
		}
		doc.Cells = append(doc.Cells, c)
	}
	return doc, nil
}

// Fragments returns the raw text fragments of a response cell.
func (c *Cell) Fragments() []string {
	if len(c.Texts) > 0 {
		return c.Texts
	}
	if c.Text != "" {
		return []string{c.Text}
	}
	return nil
}
