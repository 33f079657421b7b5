package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zwasm/zwasm"
	"github.com/zwasm/zwasm/api"
	"github.com/zwasm/zwasm/internal/wasm"
	"github.com/zwasm/zwasm/internal/wasmdebug"
)

type inspectFunc struct {
	Index    uint32   `json:"index"`
	Name     string   `json:"name,omitempty"`
	Imported bool     `json:"imported,omitempty"`
	Exported []string `json:"exported,omitempty"`
	Params   []string `json:"params"`
	Results  []string `json:"results"`
}

type inspectMemory struct {
	Index    uint32   `json:"index"`
	Imported bool     `json:"imported,omitempty"`
	Exported []string `json:"exported,omitempty"`
	Min      uint32   `json:"min"`
	Max      *uint32  `json:"max,omitempty"`
}

type inspectReport struct {
	Functions []inspectFunc   `json:"functions"`
	Memories  []inspectMemory `json:"memories"`
}

func newInspectCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect FILE.wasm",
		Short: "Print a module's imports, exports, and signatures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bin, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rt := zwasm.NewRuntime(nil)
			compiled, cerr := rt.CompileModule(bin)
			if cerr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), wasmdebug.FormatError(args[0], asWasmError(cerr)))
				os.Exit(1)
			}
			def := compiled.Definitions()
			report := toReport(def)
			if asJSON {
				enc, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(enc))
				return nil
			}
			printHuman(cmd, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func toReport(def wasm.ModuleDefinition) inspectReport {
	var r inspectReport
	for _, f := range def.Functions {
		r.Functions = append(r.Functions, inspectFunc{
			Index: f.Index, Name: f.Name, Imported: f.Imported, Exported: f.Exported,
			Params: valueTypeNames(f.Type.Params), Results: valueTypeNames(f.Type.Results),
		})
	}
	for _, m := range def.Memories {
		im := inspectMemory{Index: m.Index, Imported: m.Imported, Exported: m.Exported, Min: m.Min}
		if m.HasMax {
			max := m.Max
			im.Max = &max
		}
		r.Memories = append(r.Memories, im)
	}
	return r
}

func valueTypeNames(ts []api.ValueType) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = api.ValueTypeName(t)
	}
	return names
}

func printHuman(cmd *cobra.Command, r inspectReport) {
	out := cmd.OutOrStdout()
	colorBold.Fprintln(out, "functions:")
	for _, f := range r.Functions {
		label := f.Name
		if label == "" {
			label = fmt.Sprintf("$%d", f.Index)
		}
		fmt.Fprintf(out, "  [%d] %s (%v) -> (%v)", f.Index, label, f.Params, f.Results)
		if len(f.Exported) > 0 {
			colorFaint.Fprintf(out, "  export=%v", f.Exported)
		}
		fmt.Fprintln(out)
	}
	colorBold.Fprintln(out, "memories:")
	for _, m := range r.Memories {
		fmt.Fprintf(out, "  [%d] min=%d", m.Index, m.Min)
		if m.Max != nil {
			fmt.Fprintf(out, " max=%d", *m.Max)
		}
		fmt.Fprintln(out)
	}
}
