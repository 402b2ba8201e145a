package selection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/maquino1985/abseq/internal/antibody"
)

const (
	// fallbackColor is used for residues absent from the active scheme.
	fallbackColor = "#c8c8c8"

	// outlineColor is the high contrast border applied to individually
	// selected positions, layered independently of the fill color.
	outlineColor = "#1a1a1a"

	// regionBlend is the fixed alpha applied to region colors when the
	// by-region scheme paints unselected positions.
	regionBlend = 0.35
)

// Scheme maps single letter residue codes to colors, or colors by region
// membership instead when ByRegion is set.
type Scheme struct {
	Name     string
	ByRegion bool
	Colors   map[byte]string
}

// Style is the resolved rendering for one residue position.
type Style struct {
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Bold       bool   `json:"bold"`
	Outline    string `json:"outline,omitempty"`
}

var builtinSchemes = map[string]*Scheme{
	"clustal": {
		Name: "clustal",
		Colors: map[byte]string{
			'A': "#80a0f0", 'I': "#80a0f0", 'L': "#80a0f0", 'M': "#80a0f0",
			'F': "#80a0f0", 'W': "#80a0f0", 'V': "#80a0f0", 'C': "#f08080",
			'K': "#f01505", 'R': "#f01505",
			'E': "#c048c0", 'D': "#c048c0",
			'N': "#15c015", 'Q': "#15c015", 'S': "#15c015", 'T': "#15c015",
			'G': "#f09048",
			'P': "#c0c000",
			'H': "#15a4a4", 'Y': "#15a4a4",
		},
	},
	"hydrophobicity": {
		Name: "hydrophobicity",
		Colors: map[byte]string{
			'I': "#ff0000", 'V': "#f60009", 'L': "#ea0015",
			'F': "#cb0034", 'C': "#c2003d", 'M': "#b0004f",
			'A': "#ad0052", 'G': "#6a0095", 'X': "#680097",
			'T': "#61009e", 'S': "#5e00a1", 'W': "#5b00a4",
			'Y': "#4f00b0", 'P': "#4600b9", 'H': "#1500ea",
			'E': "#0c00f3", 'Z': "#0c00f3", 'Q': "#0c00f3",
			'D': "#0c00f3", 'B': "#0c00f3", 'N': "#0c00f3",
			'K': "#0000ff", 'R': "#0000ff",
		},
	},
	"region": {
		Name:     "region",
		ByRegion: true,
	},
}

// SchemeByName returns the named color scheme, or an error naming the
// available schemes.
func SchemeByName(name string) (*Scheme, error) {
	if scheme, ok := builtinSchemes[strings.ToLower(name)]; ok {
		return scheme, nil
	}
	return nil, fmt.Errorf("unknown color scheme %q (available: %s)", name, strings.Join(SchemeNames(), ", "))
}

// SchemeNames returns the names of all registered schemes in sorted order.
func SchemeNames() []string {
	names := make([]string, 0, len(builtinSchemes))
	for name := range builtinSchemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterScheme adds or replaces a scheme in the registry.  Used by the
// config layer to install user defined schemes at startup.
func RegisterScheme(scheme *Scheme) {
	builtinSchemes[strings.ToLower(scheme.Name)] = scheme
}

// ColorForPosition resolves the rendered style for one 1-based position of
// a chain.  It is a pure function of the chain, the selection, and the
// scheme.  Precedence: a selected covering region paints its own color with
// emphasis; otherwise a by-region scheme paints the covering region's color
// at a fixed blend; otherwise the residue letter is looked up in the scheme
// with a neutral gray fallback.  An individually selected position gets a
// high contrast outline regardless of the fill.
func ColorForPosition(chain *antibody.Chain, pos int, model *Model, scheme *Scheme) Style {
	region := chain.RegionAt(pos)

	var style Style
	switch {
	case region != nil && model.RegionSelected(region.ID):
		style = Style{
			Background: region.Color,
			Foreground: contrastColor(region.Color),
			Bold:       true,
			Outline:    region.Color,
		}
	case scheme.ByRegion && region != nil:
		style = Style{
			Background: blendToWhite(region.Color, regionBlend),
			Foreground: contrastColor(blendToWhite(region.Color, regionBlend)),
		}
	default:
		style = Style{
			Background: residueColor(chain, pos, scheme),
		}
		style.Foreground = contrastColor(style.Background)
	}

	if model.ManuallyToggled(pos) {
		style.Outline = outlineColor
	}
	return style
}

func residueColor(chain *antibody.Chain, pos int, scheme *Scheme) string {
	residue, ok := chain.Residue(pos)
	if !ok {
		return fallbackColor
	}
	if residue >= 'a' && residue <= 'z' {
		residue -= 'a' - 'A'
	}
	if color, ok := scheme.Colors[residue]; ok {
		return color
	}
	return fallbackColor
}

// blendToWhite mixes a "#rrggbb" color with white, keeping alpha of the
// original.  Malformed colors are returned unchanged.
func blendToWhite(hex string, alpha float64) string {
	r, g, b, err := parseHexColor(hex)
	if err != nil {
		return hex
	}
	mix := func(c uint8) uint8 {
		return uint8(float64(c)*alpha + 255*(1-alpha))
	}
	return fmt.Sprintf("#%02x%02x%02x", mix(r), mix(g), mix(b))
}

// contrastColor returns black or white, whichever reads better over the
// given background color.
func contrastColor(hex string) string {
	r, g, b, err := parseHexColor(hex)
	if err != nil {
		return "#000000"
	}
	// Relative luminance, ITU-R BT.709 coefficients.
	luminance := 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
	if luminance > 140 {
		return "#000000"
	}
	return "#ffffff"
}

func parseHexColor(hex string) (r, g, b uint8, err error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q", hex)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid color %q: %v", hex, err)
	}
	return uint8(n >> 16), uint8(n >> 8), uint8(n), nil
}
