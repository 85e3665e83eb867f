package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/adblock-engine/internal/signature"
	"github.com/bnema/adblock-engine/internal/version"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show the next notification",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		markShown, _ := cmd.Flags().GetBool("mark-shown")

		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		n := e.ShowNextNotification(url)
		if n == nil {
			fmt.Println("No notification")
			return nil
		}

		texts := e.NotificationTexts(*n)
		fmt.Printf("[%s] %s\n%s\n", n.Type, texts.Title, texts.Message)
		for _, link := range n.Links {
			fmt.Printf("  %s\n", link)
		}

		if markShown {
			return e.MarkNotificationAsShown(cmd.Context(), n.ID)
		}
		return nil
	},
}

var prefsCmd = &cobra.Command{
	Use:   "prefs [KEY [VALUE]]",
	Short: "Show or change preferences",
	Long: `Without arguments prints every preference. VALUE is parsed as JSON and
falls back to a plain string; "null" restores the default.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		switch len(args) {
		case 0:
			return printJSON(e.Prefs())
		case 1:
			value, ok := e.Pref(args[0])
			if !ok {
				return fmt.Errorf("unknown preference %q", args[0])
			}
			return printJSON(value)
		}

		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}
		if err := e.SetPref(cmd.Context(), args[0], value); err != nil {
			return err
		}
		current, _ := e.Pref(args[0])
		return printJSON(current)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a site key signature",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		sig, _ := cmd.Flags().GetString("signature")
		uri, _ := cmd.Flags().GetString("uri")
		host, _ := cmd.Flags().GetString("host")
		ua, _ := cmd.Flags().GetString("user-agent")

		data := signature.CanonicalString(uri, host, ua)
		if !signature.New().VerifySignature(key, sig, data) {
			return fmt.Errorf("signature is not valid")
		}
		fmt.Println("signature is valid")
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare A B",
	Short: "Compare two application version strings",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		switch c := version.Compare(args[0], args[1]); {
		case c < 0:
			fmt.Printf("%s < %s\n", args[0], args[1])
		case c > 0:
			fmt.Printf("%s > %s\n", args[0], args[1])
		default:
			fmt.Printf("%s == %s\n", args[0], args[1])
		}
	},
}

func init() {
	notificationsCmd.Flags().String("url", "", "page the notification would be shown on")
	notificationsCmd.Flags().Bool("mark-shown", false, "mark the notification as shown")

	verifyCmd.Flags().String("key", "", "base64 DER public key")
	verifyCmd.Flags().String("signature", "", "base64 signature")
	verifyCmd.Flags().String("uri", "/", "request path and query")
	verifyCmd.Flags().String("host", "", "request host")
	verifyCmd.Flags().String("user-agent", "", "request user agent")
	_ = verifyCmd.MarkFlagRequired("key")
	_ = verifyCmd.MarkFlagRequired("signature")

	rootCmd.AddCommand(notificationsCmd, prefsCmd, verifyCmd, compareCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
