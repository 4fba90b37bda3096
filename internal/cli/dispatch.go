package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"organvm/internal/dispatch"
	"organvm/internal/flags"
	"organvm/internal/output"
	"organvm/internal/seed"
)

var dispatchRoute bool

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Check cross-organ event payloads",
}

var dispatchValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a dispatch payload",
	Long: `Validate a dispatch payload JSON file: event, source, target and payload
are required, the event name must contain a dot, both endpoints need an organ
and metadata.priority must be low, normal, high or critical.

With --route a valid payload is matched against seed.yaml subscriptions and
one outgoing payload is derived per subscriber.

Exit codes:
	0 = payload is valid
	1 = payload is invalid
	3 = fatal error`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exit(runDispatchValidate(cmd, args[0]))
	},
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
	dispatchCmd.AddCommand(dispatchValidateCmd)
	dispatchValidateCmd.Flags().BoolVar(&dispatchRoute, flags.FlagRoute, false, "Also list the seed.yaml subscribers of the payload's event")
	addRemoteFlags(dispatchValidateCmd.Flags())
}

func runDispatchValidate(cmd *cobra.Command, path string) int {
	r, code := startRun(cmd)
	if r == nil {
		return code
	}
	f, err := os.Open(path)
	if err != nil {
		return r.abort("open payload: %v", err)
	}
	doc, err := dispatch.Parse(f)
	f.Close()
	if err != nil {
		return r.abort("%s: %v", path, err)
	}

	const check = "dispatch.validate"
	if errs := dispatch.Validate(doc); len(errs) > 0 {
		r.summary("FAIL: " + path)
		for _, e := range errs {
			r.emit(output.Finding{Check: check, Subject: path, Status: output.StatusFail, Message: e})
		}
		return r.finish()
	}
	r.emit(output.Finding{
		Check:   check,
		Subject: path,
		Status:  output.StatusPass,
		Message: fmt.Sprintf("%s from %s to %s", doc.Event(), doc.Organ("source"), doc.Organ("target")),
	})
	if !dispatchRoute {
		return r.finish()
	}

	ctx, cancel := r.timeoutContext()
	defer cancel()
	docs, err := r.loadSeeds(ctx)
	if err != nil {
		return r.abort("loading seeds: %v", err)
	}
	g := seed.BuildGraph(docs)
	for _, pe := range g.Errors {
		r.emit(output.Finding{Check: "seed.parse", Subject: seedLocation(pe.Path), Status: output.StatusWarn, Message: pe.Error()})
	}

	source := doc.Organ("source")
	if def, ok := r.table.Lookup(source); ok && def.RegistryKey != "" {
		source = def.RegistryKey
	}
	routes := seed.RouteEvent(g, doc.Event(), source)
	if len(routes) == 0 {
		r.summary(fmt.Sprintf("Event %s from %s", doc.Event(), source), "  No subscribers.")
		return r.finish()
	}
	r.summary(fmt.Sprintf("Event %s from %s", doc.Event(), source), fmt.Sprintf("  %d subscriber(s):", len(routes)))
	for _, rt := range routes {
		target := g.Seeds[rt.Repo].Organ
		if def, ok := r.table.Lookup(target); ok && def.RegistryKey != "" {
			target = def.RegistryKey
		}
		out := dispatch.New(doc.Event(), source, target, doc.Data(), dispatch.WithTarget(rt.Repo.Org, rt.Repo.Name))
		r.emit(output.Finding{
			Check:    "dispatch.route",
			Subject:  rt.Repo.String(),
			Status:   output.StatusInfo,
			Message:  fmt.Sprintf("%s -> %s", rt.Action, target),
			Metadata: map[string]any{"payload": out},
		})
	}
	return r.finish()
}
