package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/adblock-engine/internal/engine"
	"github.com/bnema/adblock-engine/internal/models"
)

var subscriptionsCmd = &cobra.Command{
	Use:     "subscriptions",
	Aliases: []string{"subs"},
	Short:   "Manage filter list subscriptions",
}

var subscriptionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		subs := e.ListedSubscriptions()
		if len(subs) == 0 {
			fmt.Println("No subscriptions")
			return nil
		}
		for _, sub := range subs {
			printSubscription(sub)
		}
		return nil
	},
}

var subscriptionsAddCmd = &cobra.Command{
	Use:   "add URL",
	Short: "Subscribe to a filter list and download it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		sub := e.GetSubscriptionFromURL(args[0])
		if title, _ := cmd.Flags().GetString("title"); title != "" {
			sub.Title = title
		}
		if err := e.AddSubscriptionToList(cmd.Context(), sub); err != nil {
			return err
		}
		e.Wait()

		printSubscription(e.GetSubscriptionFromURL(sub.URL))
		return nil
	},
}

var subscriptionsRemoveCmd = &cobra.Command{
	Use:   "remove URL",
	Short: "Unsubscribe from a filter list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		removed, err := e.RemoveSubscriptionFromList(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%w: %s", models.ErrSubscriptionNotFound, args[0])
		}
		fmt.Printf("Removed: %s\n", args[0])
		return nil
	},
}

var subscriptionsUpdateCmd = &cobra.Command{
	Use:   "update [URL...]",
	Short: "Download subscriptions now",
	Long: `Downloads the given subscriptions. Without arguments every expired
subscription is downloaded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if len(args) == 0 {
			started, err := e.CheckUpdates(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Checked %d subscriptions\n", started)
			return nil
		}

		for _, url := range args {
			task, err := e.UpdateSubscription(url)
			if err != nil {
				return err
			}
			res := task.Result()
			if res.Err != nil {
				fmt.Printf("  %s: %s (%v)\n", url, res.Status, res.Err)
				continue
			}
			fmt.Printf("  %s: %d filters\n", url, res.Filters)
		}
		return nil
	},
}

var subscriptionsRecommendedCmd = &cobra.Command{
	Use:   "recommended",
	Short: "List recommended subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		for _, sub := range e.RecommendedSubscriptions() {
			listed := " "
			if e.IsListedSubscription(sub.URL) {
				listed = "*"
			}
			fmt.Printf("%s %-30s %s\n", listed, sub.Title, sub.URL)
		}
		return nil
	},
}

var aaCmd = &cobra.Command{
	Use:       "aa [enable|disable|status]",
	Short:     "Manage the acceptable ads subscription",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"enable", "disable", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		action := "status"
		if len(args) == 1 {
			action = args[0]
		}
		switch action {
		case "enable", "disable":
			if err := e.SetAASubscriptionEnabled(cmd.Context(), action == "enable"); err != nil {
				return err
			}
			e.Wait()
		case "status":
		default:
			return fmt.Errorf("unknown action %q", action)
		}

		printAAStatus(e)
		return nil
	},
}

func init() {
	subscriptionsAddCmd.Flags().String("title", "", "subscription title")

	subscriptionsCmd.AddCommand(subscriptionsListCmd, subscriptionsAddCmd, subscriptionsRemoveCmd,
		subscriptionsUpdateCmd, subscriptionsRecommendedCmd)
	rootCmd.AddCommand(subscriptionsCmd, aaCmd)
}

func printSubscription(sub models.Subscription) {
	title := sub.Title
	if title == "" {
		title = sub.URL
	}
	state := ""
	if sub.Disabled {
		state = " [disabled]"
	}
	fmt.Printf("%s%s\n", title, state)
	fmt.Printf("    URL:           %s\n", sub.URL)
	fmt.Printf("    Filters:       %d\n", len(sub.Filters))
	fmt.Printf("    Status:        %s\n", orDash(sub.DownloadStatus))
	fmt.Printf("    Last download: %s\n", formatTime(sub.LastDownload))
	fmt.Printf("    Expires:       %s\n", formatTime(sub.Expires))
	if sub.ErrorCount > 0 {
		fmt.Printf("    Errors:        %d\n", sub.ErrorCount)
	}
}

func printAAStatus(e *engine.Engine) {
	if e.IsAASubscriptionEnabled() {
		fmt.Println("Acceptable ads: enabled")
		return
	}
	fmt.Println("Acceptable ads: disabled")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
