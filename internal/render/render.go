// Package render draws an annotated chain with its current selection as
// styled terminal output.  It is display plumbing for the CLI client; all
// color decisions come from the selection package.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/maquino1985/abseq/internal/antibody"
	"github.com/maquino1985/abseq/internal/selection"
)

const residuesPerLine = 60

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	rulerStyle  = lipgloss.NewStyle().Faint(true)
	labelStyle  = lipgloss.NewStyle().Italic(true)
)

// Chain renders one chain as numbered rows of styled residues followed by
// the compacted selection labels.
func Chain(chain *antibody.Chain, m *selection.Model, scheme *selection.Scheme) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%s, %d aa)", chain.ID, chain.Type, len(chain.Residues))))
	b.WriteByte('\n')

	for start := 1; start <= len(chain.Residues); start += residuesPerLine {
		end := start + residuesPerLine - 1
		if end > len(chain.Residues) {
			end = len(chain.Residues)
		}
		b.WriteString(rulerStyle.Render(fmt.Sprintf("%5d ", start)))
		for pos := start; pos <= end; pos++ {
			b.WriteString(renderResidue(chain, pos, m, scheme))
		}
		b.WriteString(rulerStyle.Render(fmt.Sprintf(" %d", end)))
		b.WriteByte('\n')
	}

	if labels := m.FormatSelections(chain); len(labels) > 0 {
		b.WriteString(labelStyle.Render("selected: " + strings.Join(labels, ", ")))
		b.WriteByte('\n')
	}
	return b.String()
}

func renderResidue(chain *antibody.Chain, pos int, m *selection.Model, scheme *selection.Scheme) string {
	residue, ok := chain.Residue(pos)
	if !ok {
		return " "
	}
	resolved := selection.ColorForPosition(chain, pos, m, scheme)

	style := lipgloss.NewStyle().
		Background(lipgloss.Color(resolved.Background)).
		Foreground(lipgloss.Color(resolved.Foreground)).
		Bold(resolved.Bold)
	if resolved.Outline != "" {
		style = style.Underline(true)
	}
	return style.Render(string(residue))
}

// Legend lists the chain's regions with a swatch of their display color.
func Legend(chain *antibody.Chain) string {
	var b strings.Builder
	for _, region := range chain.Regions {
		swatch := lipgloss.NewStyle().Background(lipgloss.Color(region.Color)).Render("  ")
		fmt.Fprintf(&b, "%s %-10s %s [%d-%d]\n", swatch, region.Kind, region.String(), region.Start, region.Stop)
	}
	return b.String()
}
