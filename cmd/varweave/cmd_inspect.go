package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"varweave/internal/metadata"
	"varweave/internal/modfile"
	"varweave/internal/signing"
	"varweave/internal/weave"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	markedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	varStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// inspectCmd prints the type catalog of one or more modules
var inspectCmd = &cobra.Command{
	Use:   "inspect <module>...",
	Short: "Show types, generic parameters and pending markers",
	Long: `Loads the given modules concurrently and prints every type in catalog
order: nesting, whether variance applies to it, each generic parameter's
current variance and any marker attribute still applied to it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	loaded, err := modfile.LoadAll(ctx, args)
	if err != nil {
		return err
	}

	c := currentConfig()
	names := weave.MarkerNames{Covariant: c.Markers.Covariant, Contravariant: c.Markers.Contravariant}
	for i, l := range loaded {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		if err := renderModule(cmd.OutOrStdout(), l, names); err != nil {
			return err
		}
	}
	return nil
}

func renderModule(w io.Writer, l modfile.Loaded, names weave.MarkerNames) error {
	m := l.Module
	catalog, err := weave.BuildCatalog(m)
	if err != nil {
		return fmt.Errorf("%s: %w", l.Path, err)
	}

	// Diagnostics are not wanted here; the resolved markers are.
	markers, err := weave.ResolveMarkers(catalog, names, nil)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, titleStyle.Render(m.Name)+" "+dimStyle.Render(l.Path))
	fmt.Fprintf(w, "  covariant marker:     %s\n", markerLabel(markers.Covariant, names.Effective().Covariant))
	fmt.Fprintf(w, "  contravariant marker: %s\n", markerLabel(markers.Contravariant, names.Effective().Contravariant))
	if len(m.PublicKey) > 0 {
		state := "delay signed"
		if len(m.Signature) > 0 {
			state = "signed"
		}
		fmt.Fprintf(w, "  public key token:     %s (%s)\n", signing.Token(m.PublicKey), state)
	}

	pending := 0
	for _, t := range catalog {
		if t.Name == metadata.ModuleTypeName && t.Namespace == "" {
			continue
		}
		eligible := weave.IsVarianceEligible(t)
		line := fmt.Sprintf("%s%s %s", strings.Repeat("  ", depth(t)+1), t.FullName(), dimStyle.Render("("+kindOf(t)+")"))
		fmt.Fprintln(w, line)

		for _, g := range t.GenericParameters {
			fmt.Fprintf(w, "%s  %s\n", strings.Repeat("  ", depth(t)+1), paramLabel(g, markers, eligible, &pending))
		}
	}
	fmt.Fprintf(w, "  %d type(s), %d pending marker usage(s)\n", len(catalog), pending)
	return nil
}

func markerLabel(t *metadata.Type, name string) string {
	if t == nil {
		return dimStyle.Render(name + " (not defined)")
	}
	return t.FullName()
}

func paramLabel(g *metadata.GenericParameter, markers weave.Markers, eligible bool, pending *int) string {
	label := g.Name
	if !g.IsNonVariant() {
		label += " " + varStyle.Render(metadata.VarianceName(g.Attributes))
	}

	var applied []string
	for _, mk := range []*metadata.Type{markers.Covariant, markers.Contravariant} {
		if mk != nil && g.HasAttribute(mk.Ref()) {
			applied = append(applied, mk.Name)
		}
	}
	if len(applied) > 0 {
		note := "[" + strings.Join(applied, ", ") + "]"
		if !eligible {
			note += " ignored: type cannot be variant"
		} else {
			*pending += len(applied)
		}
		label += " " + markedStyle.Render(note)
	}
	return label
}

func kindOf(t *metadata.Type) string {
	switch {
	case t.IsInterface():
		return "interface"
	case t.BaseTypeName() == metadata.MulticastDelegateTypeName:
		return "delegate"
	case t.BaseTypeName() == metadata.AttributeTypeName:
		return "attribute"
	}
	return "class"
}

func depth(t *metadata.Type) int {
	d := 0
	for p := t.DeclaringType; p != nil; p = p.DeclaringType {
		d++
	}
	return d
}
