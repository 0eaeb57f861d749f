package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"go.klb.dev/xfer/internal/registry"
)

// typeRow is one offered format in `xfer types` output.
type typeRow struct {
	ID     uint32   `json:"id" yaml:"id"`
	Format string   `json:"format" yaml:"format"`
	Codecs []string `json:"codecs,omitempty" yaml:"codecs,omitempty"`
}

type typesReport struct {
	Backend   string    `json:"backend" yaml:"backend"`
	Selection string    `json:"selection" yaml:"selection"`
	Owned     bool      `json:"owned" yaml:"owned"`
	Types     []typeRow `json:"types" yaml:"types"`
}

func newTypesCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the formats currently offered on the clipboard",
		Long: `Lists every format the current clipboard owner offers, with the xfer
types able to read it. Formats no built-in type reads show no codec.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runTypes(cmd.OutOrStdout(), v) },
	}

	cmd.Flags().StringP("output", "o", "table", "output format: table|json|yaml")
	addBackendFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runTypes(out io.Writer, v *viper.Viper) error {
	rt, err := openRuntime(v)
	if err != nil {
		return err
	}
	defer rt.close()

	rep, err := call(rt, func() (typesReport, error) {
		types, err := rt.clip.AvailableTypes(rt.sel)
		if err != nil {
			return typesReport{}, err
		}
		rep := typesReport{
			Backend:   rt.backend.Name(),
			Selection: rt.sel.String(),
			Owned:     rt.clip.Owns(rt.sel),
			Types:     make([]typeRow, 0, len(types)),
		}
		for _, t := range types {
			rep.Types = append(rep.Types, rt.row(t))
		}
		return rep, nil
	})
	if err != nil {
		return err
	}
	return printTypes(out, rep, v.GetString("output"))
}

func (rt *runtime) row(t registry.TypeID) typeRow {
	name, _ := rt.reg.Name(t)
	return typeRow{ID: uint32(t), Format: name, Codecs: rt.codecsFor(t)}
}

func printTypes(out io.Writer, rep typesReport, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q (want table|json|yaml)", format)
	}

	if len(rep.Types) == 0 {
		_, err := fmt.Fprintf(out, "%s is empty (%s).\n", rep.Selection, rep.Backend)
		return err
	}
	tw := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID\tFORMAT\tTYPES\n")
	_, _ = fmt.Fprintf(tw, "--\t------\t-----\n")
	for _, r := range rep.Types {
		codecs := "-"
		if len(r.Codecs) > 0 {
			codecs = strings.Join(r.Codecs, ",")
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", r.ID, r.Format, codecs)
	}
	return tw.Flush()
}
