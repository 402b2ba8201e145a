// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This binary provides a terminal client for annotated antibody
// sequences.  It reads annotation result JSON (or bare FASTA, rendered
// without region annotations), applies region and position selections,
// and prints the colored sequence view.  With -server it submits the
// input to an abseq server and reports the session instead.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/maquino1985/abseq/internal/antibody"
	"github.com/maquino1985/abseq/internal/fasta"
	"github.com/maquino1985/abseq/internal/ingest"
	"github.com/maquino1985/abseq/internal/render"
	"github.com/maquino1985/abseq/internal/selection"
)

var (
	server     = flag.String("server", "", "abseq server URL; if empty, work locally")
	fastaInput = flag.Bool("fasta", false, "treat inputs as FASTA instead of annotation JSON")
	schemeName = flag.String("scheme", "clustal", "color scheme")
	selects    = flag.String("select", "", "comma-separated region names or positions to toggle")
	showLegend = flag.Bool("legend", false, "print a region legend under each chain")
)

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatalf("Usage: %s [flags] <annotations.json | sequences.fasta> ...", os.Args[0])
	}

	for _, path := range flag.Args() {
		result, err := loadResult(path)
		if err != nil {
			log.Fatalf("Failed to load %q: %v", path, err)
		}
		if *server != "" {
			if err := submit(*server, result); err != nil {
				log.Fatalf("Failed to submit %q: %v", path, err)
			}
			continue
		}
		if err := view(result); err != nil {
			log.Fatalf("Failed to render %q: %v", path, err)
		}
	}
}

// loadResult reads one input file as annotation JSON, or wraps FASTA
// records into an annotation result with unannotated chains.
func loadResult(path string) (*ingest.AnnotationResult, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !*fastaInput {
		return ingest.Decode(data)
	}

	records, err := fasta.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing FASTA: %v", err)
	}
	result := &ingest.AnnotationResult{}
	for _, record := range records {
		result.Sequences = append(result.Sequences, ingest.AnnotatedSequence{
			Name: record.ID,
			Chains: []ingest.AnnotatedChain{{
				Name:     "1",
				Sequence: record.Residues,
			}},
		})
	}
	return result, nil
}

func view(result *ingest.AnnotationResult) error {
	dataset, failed, err := ingest.Ingest(result)
	if err != nil {
		return err
	}
	for _, f := range failed {
		log.Printf("Skipping %v", f)
	}

	scheme, err := selection.SchemeByName(*schemeName)
	if err != nil {
		return err
	}

	model := selection.NewModel(dataset)
	applySelections(model, dataset)

	for _, seq := range dataset.Sequences {
		for i := range seq.Chains {
			chain := &seq.Chains[i]
			fmt.Print(render.Chain(chain, model, scheme))
			if *showLegend {
				fmt.Print(render.Legend(chain))
			}
			fmt.Println()
		}
	}
	return nil
}

// applySelections toggles each -select token: integers toggle positions,
// anything else toggles the region with that name or ID.
func applySelections(model *selection.Model, dataset *antibody.Dataset) {
	for _, token := range splitSelections() {
		if pos, err := strconv.Atoi(token); err == nil {
			model.TogglePosition(pos)
			continue
		}
		region := resolveRegion(dataset, token)
		if region == nil {
			if suggestion := closestRegionName(dataset, token); suggestion != "" {
				log.Printf("Unknown region %q (did you mean %q?)", token, suggestion)
			} else {
				log.Printf("Unknown region %q", token)
			}
			continue
		}
		model.ToggleRegion(region.ID)
	}
}

func splitSelections() []string {
	var tokens []string
	for _, token := range strings.Split(*selects, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func resolveRegion(dataset *antibody.Dataset, token string) *antibody.Region {
	if region := dataset.Region(token); region != nil {
		return region
	}
	for _, region := range dataset.Regions() {
		if strings.EqualFold(region.Name, token) {
			return region
		}
	}
	return nil
}

func closestRegionName(dataset *antibody.Dataset, token string) string {
	best := ""
	bestDistance := len(token)/2 + 1
	for _, region := range dataset.Regions() {
		if d := levenshtein.ComputeDistance(strings.ToUpper(token), strings.ToUpper(region.Name)); d < bestDistance {
			best, bestDistance = region.Name, d
		}
	}
	return best
}

func submit(server string, result *ingest.AnnotationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding annotations: %v", err)
	}

	resp, err := http.Post(strings.TrimSuffix(server, "/")+"/annotations", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(resp)
	}

	var body struct {
		Session   string `json:"session"`
		Sequences []struct {
			Name   string `json:"name"`
			Chains []struct {
				ID     string `json:"id"`
				Length int    `json:"length"`
			} `json:"chains"`
		} `json:"sequences"`
		Failed []string `json:"failed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding response: %v", err)
	}

	fmt.Printf("session %s\n", body.Session)
	for _, seq := range body.Sequences {
		for _, chain := range seq.Chains {
			fmt.Printf("  %s: %d aa\n", chain.ID, chain.Length)
		}
	}
	for _, failure := range body.Failed {
		log.Printf("Server skipped: %s", failure)
	}
	return nil
}

func errorFromResponse(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("unexpected response: %s", resp.Status)
	}
	return fmt.Errorf("%s: %s", body.Error, body.Message)
}
