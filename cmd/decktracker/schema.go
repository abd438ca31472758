package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/firestone-hs/decktracker/internal/battlegrounds"
	"github.com/firestone-hs/decktracker/internal/decktracker"
	"github.com/firestone-hs/decktracker/internal/forwarder"
	"github.com/firestone-hs/decktracker/internal/gameevent"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// schemaTargets are the documents overlays consume.
var schemaTargets = map[string]func() any{
	"message":       func() any { return &forwarder.WSMessage{} },
	"notification":  func() any { return &decktracker.Notification{} },
	"battlegrounds": func() any { return &battlegrounds.State{} },
	"event":         func() any { return &gameevent.GameEvent{} },
}

var schemaCmd = &cobra.Command{
	Use:       "schema [" + strings.Join(schemaNames(), "|") + "]",
	Short:     "Print the JSON schema of a forwarded document",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: schemaNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "notification"
		if len(args) == 1 {
			name = args[0]
		}
		target, ok := schemaTargets[name]
		if !ok {
			return fmt.Errorf("unknown schema %q, expected one of %s", name, strings.Join(schemaNames(), ", "))
		}
		reflector := &jsonschema.Reflector{ExpandedStruct: true}
		schema := reflector.Reflect(target())
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func schemaNames() []string {
	names := make([]string, 0, len(schemaTargets))
	for name := range schemaTargets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
