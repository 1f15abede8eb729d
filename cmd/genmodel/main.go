// genmodel -name X
// Produces:
//
//	docs/models/X.md
//
// with the scenario, a Mermaid diagram, the properties and the reachability
// function of each property.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rfielding/kripke-regions/elimination"
	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/models"
	"github.com/rfielding/kripke-regions/prop"
)

func main() {
	name := flag.String("name", "", "model name (required)")
	out := flag.String("out", filepath.Join("docs", "models"), "output directory")
	flag.Parse()

	if *name == "" {
		fmt.Printf("Usage: genmodel -name %s\n", strings.Join(models.Names(), "|"))
		os.Exit(1)
	}
	spec, err := models.Lookup(*name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		panic(err)
	}
	mdFile := filepath.Join(*out, spec.Name()+".md")
	f, err := os.Create(mdFile)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := writeDoc(f, spec); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("Created:", mdFile)
}

func writeDoc(w io.Writer, spec model.ModelSpec) error {
	sys, err := spec.Build()
	if err != nil {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s Model\n\n%s\n\n", spec.Name(), spec.OriginalText())
	fmt.Fprintf(&sb, "Parameters: %v\n\n## Diagram\n\n~~~mermaid\n", sys.Params)
	if err := sys.WriteMermaid(&sb); err != nil {
		return err
	}
	sb.WriteString("~~~\n\n## Properties\n\n")
	for _, p := range spec.Properties() {
		property, err := prop.Parse(p.Formula)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		r, err := model.Prepare(sys, property.Target, zerolog.Nop())
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		res := elimination.NewBuilder().Build(r)
		fmt.Fprintf(&sb, "### %s\n\n%s\n\n    %s\n\n", p.Name, p.Description, property)
		fmt.Fprintf(&sb, "Reachability function (%d terms, linear weights: %v):\n\n    %s\n\n",
			res.Function.Size(), res.AllLinear, res.Function)
	}
	sb.WriteString("## Regions\n\n")
	for _, r := range spec.Regions() {
		fmt.Fprintf(&sb, "- `%s`\n", r)
	}
	_, err = io.WriteString(w, sb.String())
	return err
}
