package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/adblock-engine/internal/models"
)

var matchCmd = &cobra.Command{
	Use:   "match URL",
	Short: "Check whether a request would be blocked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeNames, _ := cmd.Flags().GetString("type")
		document, _ := cmd.Flags().GetString("document")
		siteKey, _ := cmd.Flags().GetString("sitekey")

		contentType, ok := models.ParseContentTypeMask(typeNames)
		if !ok || contentType == 0 {
			return fmt.Errorf("unknown content type %q", typeNames)
		}

		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		f := e.CheckFilterMatch(args[0], contentType, document, siteKey)
		switch {
		case f == nil:
			fmt.Println("no match")
		case f.Type == models.FilterTypeBlocking:
			fmt.Printf("blocked by %s\n", f.Text)
		default:
			fmt.Printf("allowed by %s\n", f.Text)
		}
		return nil
	},
}

var selectorsCmd = &cobra.Command{
	Use:   "selectors [DOMAIN]",
	Short: "Print element hiding selectors for a domain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain := ""
		if len(args) == 1 {
			domain = args[0]
		}
		emulation, _ := cmd.Flags().GetBool("emulation")

		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if emulation {
			for _, r := range e.ElementHidingEmulationSelectors(domain) {
				fmt.Printf("%s\t%s\n", r.Selector, r.Text)
			}
			return nil
		}
		for _, s := range e.ElementHidingSelectors(domain) {
			fmt.Println(s)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		return printJSON(e.Stats())
	},
}

func init() {
	matchCmd.Flags().StringP("type", "t", "other", "comma separated content types (script, image, stylesheet, ...)")
	matchCmd.Flags().StringP("document", "d", "", "URL of the document issuing the request")
	matchCmd.Flags().String("sitekey", "", "verified site key of the document")

	selectorsCmd.Flags().Bool("emulation", false, "print element hiding emulation rules instead")

	rootCmd.AddCommand(matchCmd, selectorsCmd, statsCmd)
}
