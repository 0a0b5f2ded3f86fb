package board

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind names an item variant. A section holds items of a single kind.
type Kind string

const (
	KindTodo       Kind = "todo"
	KindAnalysis   Kind = "analysis"
	KindPatent     Kind = "patent"
	KindPaper      Kind = "paper"
	KindExperiment Kind = "experiment"
)

// Validate checks that k is a known item kind.
func (k Kind) Validate() error {
	switch k {
	case KindTodo, KindAnalysis, KindPatent, KindPaper, KindExperiment:
		return nil
	default:
		return fmt.Errorf("invalid item kind: %q", k)
	}
}

// Item is the ordering and status contract shared by every variant.
type Item interface {
	ItemID() int64
	ItemStatus() string
	Kind() Kind

	// WithStatus and WithID return modified copies; the receiver is unchanged.
	WithStatus(status string) Item
	WithID(id int64) Item
}

// Base holds the fields every item variant shares.
type Base struct {
	ID        int64      `json:"id"`
	Status    string     `json:"status"`
	Title     string     `json:"title"`
	Assignees []string   `json:"assignees,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Progress  int        `json:"progress,omitempty"` // percent, 0-100
	Team      string     `json:"team,omitempty"`
}

func (b Base) ItemID() int64      { return b.ID }
func (b Base) ItemStatus() string { return b.Status }

// Todo is a plain to-do entry.
type Todo struct {
	Base
	Notes string `json:"notes,omitempty"`
}

// Analysis tracks a data analysis.
type Analysis struct {
	Base
	Dataset string `json:"dataset,omitempty"`
	Method  string `json:"method,omitempty"`
}

// Patent tracks an invention disclosure through filing.
type Patent struct {
	Base
	Inventors    []string `json:"inventors,omitempty"`
	FilingNumber string   `json:"filing_number,omitempty"`
}

// Paper tracks a manuscript.
type Paper struct {
	Base
	Venue string `json:"venue,omitempty"`
	DOI   string `json:"doi,omitempty"`
}

// Experiment tracks a bench experiment.
type Experiment struct {
	Base
	Protocol string `json:"protocol,omitempty"`
	Samples  int    `json:"samples,omitempty"`
}

func (t Todo) Kind() Kind       { return KindTodo }
func (a Analysis) Kind() Kind   { return KindAnalysis }
func (p Patent) Kind() Kind     { return KindPatent }
func (p Paper) Kind() Kind      { return KindPaper }
func (e Experiment) Kind() Kind { return KindExperiment }

func (t Todo) WithStatus(s string) Item       { t.Status = s; return t }
func (a Analysis) WithStatus(s string) Item   { a.Status = s; return a }
func (p Patent) WithStatus(s string) Item     { p.Status = s; return p }
func (p Paper) WithStatus(s string) Item      { p.Status = s; return p }
func (e Experiment) WithStatus(s string) Item { e.Status = s; return e }

func (t Todo) WithID(id int64) Item       { t.ID = id; return t }
func (a Analysis) WithID(id int64) Item   { a.ID = id; return a }
func (p Patent) WithID(id int64) Item     { p.ID = id; return p }
func (p Paper) WithID(id int64) Item      { p.ID = id; return p }
func (e Experiment) WithID(id int64) Item { e.ID = id; return e }

// Serialization
//
// Items are stored as a tagged union: each element carries a "kind" field
// next to the variant's own fields. The alias types drop the MarshalJSON
// method so the embedded struct flattens without recursing.

type (
	todoAlias       Todo
	analysisAlias   Analysis
	patentAlias     Patent
	paperAlias      Paper
	experimentAlias Experiment
)

func (t Todo) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		todoAlias
	}{KindTodo, todoAlias(t)})
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		analysisAlias
	}{KindAnalysis, analysisAlias(a)})
}

func (p Patent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		patentAlias
	}{KindPatent, patentAlias(p)})
}

func (p Paper) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		paperAlias
	}{KindPaper, paperAlias(p)})
}

func (e Experiment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		experimentAlias
	}{KindExperiment, experimentAlias(e)})
}

// EncodeItems converts items to the JSON array stored in a section.
func EncodeItems(items []Item) (json.RawMessage, error) {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal items: %w", err)
	}
	return data, nil
}

// DecodeItems parses a section's JSON array. Elements without a "kind" field
// are decoded as defaultKind.
func DecodeItems(data json.RawMessage, defaultKind Kind) ([]Item, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to unmarshal section items: %w", err)
	}

	items := make([]Item, 0, len(raws))
	for i, raw := range raws {
		var tag struct {
			Kind Kind `json:"kind"`
		}
		if err := json.Unmarshal(raw, &tag); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if tag.Kind == "" {
			tag.Kind = defaultKind
		}

		item, err := decodeItem(tag.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}

	return items, nil
}

func decodeItem(kind Kind, raw json.RawMessage) (Item, error) {
	switch kind {
	case KindTodo:
		var v Todo
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindAnalysis:
		var v Analysis
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindPatent:
		var v Patent
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindPaper:
		var v Paper
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindExperiment:
		var v Experiment
		err := json.Unmarshal(raw, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown item kind %q", kind)
	}
}

// NewItem returns an empty item of the given kind with title and status set.
func NewItem(kind Kind, title, status string) (Item, error) {
	base := Base{Title: title, Status: status}
	switch kind {
	case KindTodo:
		return Todo{Base: base}, nil
	case KindAnalysis:
		return Analysis{Base: base}, nil
	case KindPatent:
		return Patent{Base: base}, nil
	case KindPaper:
		return Paper{Base: base}, nil
	case KindExperiment:
		return Experiment{Base: base}, nil
	default:
		return nil, fmt.Errorf("invalid item kind: %q", kind)
	}
}

// BaseOf returns the shared fields of any built-in variant.
func BaseOf(it Item) (Base, bool) {
	switch v := it.(type) {
	case Todo:
		return v.Base, true
	case Analysis:
		return v.Base, true
	case Patent:
		return v.Base, true
	case Paper:
		return v.Base, true
	case Experiment:
		return v.Base, true
	default:
		return Base{}, false
	}
}

// TitleOf returns the shared title field of any built-in variant.
func TitleOf(it Item) string {
	b, _ := BaseOf(it)
	return b.Title
}

// WithBase returns a copy of it with the shared fields replaced by b.
// The ID is kept from it. Unknown variants are returned unchanged.
func WithBase(it Item, b Base) Item {
	b.ID = it.ItemID()
	switch v := it.(type) {
	case Todo:
		v.Base = b
		return v
	case Analysis:
		v.Base = b
		return v
	case Patent:
		v.Base = b
		return v
	case Paper:
		v.Base = b
		return v
	case Experiment:
		v.Base = b
		return v
	default:
		return it
	}
}
