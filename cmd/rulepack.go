package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/kholcomb/Kyros/internal/rulepack"
)

func NewRulepackCmd(logger hclog.Logger) *cobra.Command {
	rulepackCmd := &cobra.Command{
		Use:   "rulepack",
		Short: "Inspect and validate rulepack documents",
	}
	rulepackCmd.AddCommand(newRulepackValidateCmd())
	rulepackCmd.AddCommand(newRulepackShowCmd(logger))
	return rulepackCmd
}

func newRulepackValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate rulepack files against the schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed bool
			for _, path := range args {
				pack, err := rulepack.LoadFile(path)
				if err != nil {
					failed = true
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: INVALID: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s v%s, %d rules)\n",
					path, pack.Name, pack.Version, len(pack.Rules))
			}
			if failed {
				return fmt.Errorf("one or more rulepacks failed validation")
			}
			return nil
		},
	}
}

func newRulepackShowCmd(logger hclog.Logger) *cobra.Command {
	var builtin bool

	showCmd := &cobra.Command{
		Use:   "show [file]",
		Short: "Print a rulepack (or the built-in packs) as canonical JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var packs []*rulepack.Rulepack

			if builtin || len(args) == 0 {
				packs = rulepack.NewDefaultEngine(logger).Rulepacks()
			} else {
				pack, err := rulepack.LoadFile(args[0])
				if err != nil {
					return err
				}
				packs = []*rulepack.Rulepack{pack}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for _, pack := range packs {
				if err := enc.Encode(pack); err != nil {
					return err
				}
			}
			return nil
		},
	}
	showCmd.Flags().BoolVar(&builtin, "builtin", false, "show the embedded default rulepacks")
	return showCmd
}
