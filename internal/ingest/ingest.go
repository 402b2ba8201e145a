// Package ingest reshapes annotation service responses into the internal
// antibody dataset model.  The service's region coordinates arrive in
// several dynamic encodings (numbers, numeric strings, or two element
// arrays whose first element is the position); everything is normalized to
// plain 1-based integers here so the rest of the system never sees a
// malformed interval.
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/maquino1985/abseq/internal/antibody"
)

// AnnotationResult is the wire shape produced by the external annotation
// service for one submission.
type AnnotationResult struct {
	Sequences []AnnotatedSequence `json:"sequences"`
}

// AnnotatedSequence is one named input record with its annotated chains.
type AnnotatedSequence struct {
	Name    string           `json:"name"`
	Species string           `json:"species,omitempty"`
	Chains  []AnnotatedChain `json:"chains"`
}

// AnnotatedChain carries the chain residues and one or more annotated
// domains (a single chain holds several domains for formats like scFv).
type AnnotatedChain struct {
	Name      string            `json:"name"`
	ChainType string            `json:"chain_type,omitempty"`
	Sequence  string            `json:"sequence"`
	Domains   []AnnotatedDomain `json:"domains"`
}

// AnnotatedDomain is one domain level annotation unit.
type AnnotatedDomain struct {
	DomainType string    `json:"domain_type,omitempty"`
	Isotype    string    `json:"isotype,omitempty"`
	Germline   string    `json:"germline,omitempty"`
	Regions    []Feature `json:"regions"`
}

// Feature is one named feature record inside a domain.
type Feature struct {
	Name     string   `json:"name"`
	Start    Position `json:"start"`
	Stop     Position `json:"stop"`
	Sequence string   `json:"sequence,omitempty"`
}

// Position is a 1-based coordinate that tolerates the service's three
// encodings: a JSON number, a numeric string, or an array whose first
// element is the numeric position (the remainder is insertion metadata).
type Position int

// UnmarshalJSON normalizes any supported coordinate encoding to an
// integer, or fails with an error naming the offending payload.
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding position: %v", err)
	}
	n, err := coerce(raw)
	if err != nil {
		return err
	}
	*p = Position(n)
	return nil
}

func coerce(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("position %v is not an integer", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("position %q is not numeric", v)
		}
		return n, nil
	case []interface{}:
		if len(v) != 2 {
			return 0, fmt.Errorf("position array has %d elements, want 2", len(v))
		}
		return coerce(v[0])
	default:
		return 0, fmt.Errorf("unsupported position encoding %T", raw)
	}
}

// SequenceError records one input sequence that could not be ingested.
// The remaining sequences are unaffected.
type SequenceError struct {
	Name string
	Err  error
}

func (e SequenceError) Error() string {
	return fmt.Sprintf("sequence %q: %v", e.Name, e.Err)
}

// Decode parses raw annotation service JSON.
func Decode(data []byte) (*AnnotationResult, error) {
	var result AnnotationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding annotation result: %v", err)
	}
	return &result, nil
}

// Ingest transforms an annotation result into a Dataset.  Sequences whose
// annotations are internally inconsistent are dropped and reported in the
// second return value; an error is returned only if nothing usable remains.
func Ingest(result *AnnotationResult) (*antibody.Dataset, []SequenceError, error) {
	var sequences []antibody.Sequence
	var failed []SequenceError

	for i, in := range result.Sequences {
		seq, err := ingestSequence(in)
		if err != nil {
			failed = append(failed, SequenceError{Name: in.Name, Err: err})
			continue
		}
		seq.ID = fmt.Sprintf("seq-%d", i)
		sequences = append(sequences, seq)
	}

	if len(sequences) == 0 {
		if len(failed) > 0 {
			return nil, failed, fmt.Errorf("no sequences ingested: %v", failed[0])
		}
		return nil, nil, fmt.Errorf("annotation result contains no sequences")
	}

	dataset, err := antibody.NewDataset(sequences)
	if err != nil {
		return nil, failed, fmt.Errorf("building dataset: %v", err)
	}
	return dataset, failed, nil
}

func ingestSequence(in AnnotatedSequence) (antibody.Sequence, error) {
	if in.Name == "" {
		return antibody.Sequence{}, fmt.Errorf("missing sequence name")
	}
	seq := antibody.Sequence{
		Name:    in.Name,
		Species: in.Species,
	}
	for _, chain := range in.Chains {
		out, err := ingestChain(in.Name, chain)
		if err != nil {
			return antibody.Sequence{}, fmt.Errorf("chain %q: %v", chain.Name, err)
		}
		seq.Chains = append(seq.Chains, out)
	}
	if len(seq.Chains) == 0 {
		return antibody.Sequence{}, fmt.Errorf("no chains")
	}
	return seq, nil
}

func ingestChain(sequenceName string, in AnnotatedChain) (antibody.Chain, error) {
	if in.Sequence == "" {
		return antibody.Chain{}, fmt.Errorf("empty residue sequence")
	}
	chain := antibody.Chain{
		ID:       sequenceName + ":" + in.Name,
		Type:     in.ChainType,
		Residues: in.Sequence,
	}
	var precedingLinker *antibody.Region
	for domainIndex, domain := range in.Domains {
		for regionIndex, feature := range domain.Regions {
			region := antibody.Region{
				// Concatenating the full path keeps region IDs unique
				// across the whole dataset.
				ID:    fmt.Sprintf("%s:%s:%d:%d:%s", sequenceName, in.Name, domainIndex, regionIndex, feature.Name),
				Name:  feature.Name,
				Start: int(feature.Start),
				Stop:  int(feature.Stop),
				Kind:  deriveKind(feature.Name, domain.DomainType),
			}
			region.Color = colorFor(region.Kind, feature.Name)
			if domain.Isotype != "" || domain.DomainType != "" || domain.Germline != "" {
				region.Details = &antibody.RegionDetails{
					Isotype:    domain.Isotype,
					DomainType: domain.DomainType,
					Germline:   domain.Germline,
				}
			}
			if region.Kind == antibody.KindLinker {
				precedingLinker = &region
			} else if precedingLinker != nil && region.Details != nil {
				region.Details.PrecedingLinker = precedingLinker.Name
				region.Details.LinkerStart = precedingLinker.Start
				region.Details.LinkerStop = precedingLinker.Stop
			}
			if err := region.Validate(len(in.Sequence)); err != nil {
				return antibody.Chain{}, err
			}
			chain.Regions = append(chain.Regions, region)
		}
	}
	return chain, nil
}

// deriveKind maps a feature name and its domain type to a region kind.
// The name prefix wins for CDRs; constant and linker classification comes
// from the domain, with a name based fallback for linkers.
func deriveKind(name, domainType string) antibody.RegionKind {
	upper := strings.ToUpper(name)
	switch {
	case strings.HasPrefix(upper, "CDR"):
		return antibody.KindCDR
	case strings.EqualFold(domainType, "C"):
		return antibody.KindConstant
	case strings.EqualFold(domainType, "LINKER") || upper == "LINKER":
		return antibody.KindLinker
	case strings.HasPrefix(upper, "LIABILITY"):
		return antibody.KindLiability
	case strings.HasPrefix(upper, "MUT"):
		return antibody.KindMutation
	default:
		return antibody.KindFramework
	}
}

var cdrColors = map[string]string{
	"CDR1": "#e41a1c",
	"CDR2": "#377eb8",
	"CDR3": "#4daf4a",
}

var kindColors = map[antibody.RegionKind]string{
	antibody.KindFramework: "#b0c4de",
	antibody.KindConstant:  "#999999",
	antibody.KindLinker:    "#ffd92f",
	antibody.KindLiability: "#ff7f00",
	antibody.KindMutation:  "#984ea3",
}

// colorFor assigns the display color used by region highlighting.  The
// three CDR loops keep distinct colors so they stay tellable apart in the
// by-region scheme.
func colorFor(kind antibody.RegionKind, name string) string {
	if kind == antibody.KindCDR {
		if color, ok := cdrColors[strings.ToUpper(name)]; ok {
			return color
		}
		return cdrColors["CDR1"]
	}
	if color, ok := kindColors[kind]; ok {
		return color
	}
	return "#b0c4de"
}
