package main

import (
	"encoding/json"
	"os"

	// Packages
	citysense "github.com/lizzyg/citysense"
)

type ToolsCmd struct{}

// Run prints the definitions without building a model client, so it works
// before any credentials are configured.
func (cmd *ToolsCmd) Run(g *Globals) error {
	tools, err := citysense.NewDefaultTools(g.cfg)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(citysense.NewRegistry(tools...).Definitions())
}
