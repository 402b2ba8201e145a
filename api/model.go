package api

import (
	"github.com/maquino1985/abseq/internal/antibody"
	"github.com/maquino1985/abseq/internal/selection"
)

// ChainSummary describes one chain of an ingested sequence.
type ChainSummary struct {
	ID      string            `json:"id"`
	Type    string            `json:"type,omitempty"`
	Length  int               `json:"length"`
	Regions []antibody.Region `json:"regions"`
}

// SequenceSummary describes one ingested sequence.
type SequenceSummary struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Species string         `json:"species,omitempty"`
	Chains  []ChainSummary `json:"chains"`
}

// AnnotateResponse is returned when a dataset is ingested.
type AnnotateResponse struct {
	Session   string            `json:"session"`
	Sequences []SequenceSummary `json:"sequences"`
	Failed    []string          `json:"failed,omitempty"`
}

// SelectionState is the current selection content of a session.
type SelectionState struct {
	Regions   []string `json:"regions"`
	Positions []int    `json:"positions"`
}

// SessionResponse describes a session and its selection.
type SessionResponse struct {
	Session   string            `json:"session"`
	Sequences []SequenceSummary `json:"sequences"`
	Selection SelectionState    `json:"selection"`
}

// ToggleResponse is returned by region and position toggles.
type ToggleResponse struct {
	Selection SelectionState `json:"selection"`
	// Suggestion names the closest known region when an unknown region
	// ID was toggled.
	Suggestion string `json:"suggestion,omitempty"`
}

// ChainSelection carries the compacted selection labels for one chain.
type ChainSelection struct {
	Chain  string   `json:"chain"`
	Labels []string `json:"labels"`
}

// SelectionResponse lists compacted selection labels per chain.
type SelectionResponse struct {
	Chains []ChainSelection `json:"chains"`
}

// ColorsResponse carries the resolved per-position styles for one chain.
type ColorsResponse struct {
	Chain    string            `json:"chain"`
	Scheme   string            `json:"scheme"`
	Residues string            `json:"residues"`
	Styles   []selection.Style `json:"styles"`
}

// SchemesResponse lists the available color schemes.
type SchemesResponse struct {
	Schemes []string `json:"schemes"`
}

func summarize(dataset *antibody.Dataset) []SequenceSummary {
	summaries := make([]SequenceSummary, 0, len(dataset.Sequences))
	for _, seq := range dataset.Sequences {
		summary := SequenceSummary{
			ID:      seq.ID,
			Name:    seq.Name,
			Species: seq.Species,
		}
		for _, chain := range seq.Chains {
			summary.Chains = append(summary.Chains, ChainSummary{
				ID:      chain.ID,
				Type:    chain.Type,
				Length:  len(chain.Residues),
				Regions: chain.Regions,
			})
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func selectionState(m *selection.Model) SelectionState {
	return SelectionState{
		Regions:   m.SelectedRegions(),
		Positions: m.SelectedPositions(),
	}
}
