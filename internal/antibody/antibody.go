// Package antibody contains definitions for annotated antibody sequence data.
//
// A Sequence is one submitted record (for example one FASTA entry) broken
// into Chains.  Each Chain carries its residues as a plain string, addressed
// 1-based, and an ordered list of Region annotations over those residues.
package antibody

import (
	"fmt"
	"sort"
)

// RegionKind classifies a Region annotation.
type RegionKind string

// Region kinds produced by annotation ingestion.
const (
	KindCDR       RegionKind = "cdr"
	KindFramework RegionKind = "framework"
	KindLiability RegionKind = "liability"
	KindMutation  RegionKind = "mutation"
	KindLinker    RegionKind = "linker"
	KindConstant  RegionKind = "constant"
)

// RegionDetails carries optional annotation metadata that is displayed but
// never interpreted by the selection model.
type RegionDetails struct {
	Isotype         string `json:"isotype,omitempty"`
	DomainType      string `json:"domain_type,omitempty"`
	Germline        string `json:"germline,omitempty"`
	PrecedingLinker string `json:"preceding_linker,omitempty"`
	LinkerStart     int    `json:"linker_start,omitempty"`
	LinkerStop      int    `json:"linker_stop,omitempty"`
}

// Region is a named, colored interval over a chain's residues.  Start and
// Stop are 1-based and inclusive on both ends.
type Region struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Start   int            `json:"start"`
	Stop    int            `json:"stop"`
	Kind    RegionKind     `json:"kind"`
	Color   string         `json:"color"`
	Details *RegionDetails `json:"details,omitempty"`
}

// Contains reports whether the 1-based position falls inside the region.
func (r Region) Contains(pos int) bool {
	return pos >= r.Start && pos <= r.Stop
}

// Length returns the number of residues the region covers.
func (r Region) Length() int {
	return r.Stop - r.Start + 1
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Name, r.Start, r.Stop)
}

// Validate checks the region interval against the owning chain's length.
func (r Region) Validate(chainLength int) error {
	if r.Start < 1 || r.Start > r.Stop || r.Stop > chainLength {
		return fmt.Errorf("region %s: invalid interval [%d,%d] over %d residues", r.Name, r.Start, r.Stop, chainLength)
	}
	return nil
}

// Chain is one contiguous amino acid sequence belonging to a Sequence.
type Chain struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Residues string   `json:"residues"`
	Regions  []Region `json:"regions"`
}

// Residue returns the 1-based residue at pos and whether pos is in range.
func (c *Chain) Residue(pos int) (byte, bool) {
	if pos < 1 || pos > len(c.Residues) {
		return 0, false
	}
	return c.Residues[pos-1], true
}

// RegionAt returns the first region covering pos, or nil.  Ingestion
// produces a non-overlapping partition per chain, so "first" is unambiguous
// for well-formed data.
func (c *Chain) RegionAt(pos int) *Region {
	for i := range c.Regions {
		if c.Regions[i].Contains(pos) {
			return &c.Regions[i]
		}
	}
	return nil
}

// Sequence is one annotated input record.  It is immutable once ingested
// and replaced wholesale by the next submission.
type Sequence struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Species string  `json:"species,omitempty"`
	Chains  []Chain `json:"chains"`
}

// Dataset is the set of annotated sequences loaded for one session, with
// lookup indexes for the selection model and API layer.
type Dataset struct {
	Sequences []Sequence

	regions map[string]*Region
	chains  map[string]*Chain
}

// NewDataset builds a Dataset and its lookup indexes, validating every
// region interval against its owning chain.
func NewDataset(sequences []Sequence) (*Dataset, error) {
	ds := &Dataset{
		Sequences: sequences,
		regions:   make(map[string]*Region),
		chains:    make(map[string]*Chain),
	}
	for i := range sequences {
		for j := range sequences[i].Chains {
			chain := &sequences[i].Chains[j]
			if _, ok := ds.chains[chain.ID]; ok {
				return nil, fmt.Errorf("duplicate chain ID %q", chain.ID)
			}
			ds.chains[chain.ID] = chain
			for k := range chain.Regions {
				region := &chain.Regions[k]
				if err := region.Validate(len(chain.Residues)); err != nil {
					return nil, fmt.Errorf("chain %s: %v", chain.ID, err)
				}
				if _, ok := ds.regions[region.ID]; ok {
					return nil, fmt.Errorf("duplicate region ID %q", region.ID)
				}
				ds.regions[region.ID] = region
			}
		}
	}
	return ds, nil
}

// Region returns the region with the given dataset-unique ID, or nil.
func (ds *Dataset) Region(id string) *Region {
	return ds.regions[id]
}

// Chain returns the chain with the given ID, or nil.
func (ds *Dataset) Chain(id string) *Chain {
	return ds.chains[id]
}

// Regions returns every region in the dataset, sorted by ID.
func (ds *Dataset) Regions() []*Region {
	regions := make([]*Region, 0, len(ds.regions))
	for _, region := range ds.regions {
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].ID < regions[j].ID })
	return regions
}
