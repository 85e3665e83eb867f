package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "Manage user filters",
}

var filtersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		filters := e.ListedFilters()
		if len(filters) == 0 {
			fmt.Println("No user filters")
			return nil
		}
		for _, f := range filters {
			fmt.Printf("%-12s %s\n", f.Type, f.Text)
		}
		return nil
	},
}

var filtersAddCmd = &cobra.Command{
	Use:   "add FILTER...",
	Short: "Add user filters",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeFilters(cmd.Context(), args, true)
	},
}

var filtersRemoveCmd = &cobra.Command{
	Use:   "remove FILTER...",
	Short: "Remove user filters",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeFilters(cmd.Context(), args, false)
	},
}

func init() {
	filtersCmd.AddCommand(filtersListCmd, filtersAddCmd, filtersRemoveCmd)
	rootCmd.AddCommand(filtersCmd)
}

func changeFilters(ctx context.Context, texts []string, add bool) error {
	e, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	for _, text := range texts {
		f, err := e.GetFilterFromText(text)
		if err != nil {
			return err
		}

		var changed bool
		if add {
			changed, err = e.AddFilterToList(ctx, f)
		} else {
			changed, err = e.RemoveFilterFromList(ctx, f)
		}
		if err != nil {
			return err
		}

		switch {
		case add && changed:
			fmt.Printf("Added: %s\n", f.Text)
		case add:
			fmt.Printf("Already listed: %s\n", f.Text)
		case changed:
			fmt.Printf("Removed: %s\n", f.Text)
		default:
			fmt.Printf("Not listed: %s\n", f.Text)
		}
	}
	return nil
}
