package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mgmu/greenlog/internal/app"
	"github.com/mgmu/greenlog/internal/plants"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print id, name and species of every plant, one per line",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			for _, p := range a.Garden.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s,%s,%s\n", p.Id, p.Name, p.Species)
			}
			return nil
		})
	},
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new plant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		species, _ := cmd.Flags().GetString("species")
		src, _ := cmd.Flags().GetString("image")
		return withApp(func(ctx context.Context, a *app.App) error {
			image, err := a.Fetcher.Load(ctx, src)
			if err != nil {
				return err
			}
			return a.Garden.Create(ctx, args[0], species, image)
		})
	},
}

var logCmd = &cobra.Command{
	Use:   "log <plant-id>",
	Short: "Add a care log entry dated today to a plant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		note, _ := cmd.Flags().GetString("note")
		watered, _ := cmd.Flags().GetBool("watered")
		fertilized, _ := cmd.Flags().GetBool("fertilized")
		src, _ := cmd.Flags().GetString("image")
		return withApp(func(ctx context.Context, a *app.App) error {
			image, err := a.Fetcher.Load(ctx, src)
			if err != nil {
				return err
			}
			err = a.Garden.AppendLog(ctx, args[0], note, watered, fertilized, image)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <plant-id>",
	Short: "Delete a plant and its logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			a.Garden.Delete(ctx, args[0])
			return nil
		})
	},
}

var photosCmd = &cobra.Command{
	Use:   "photos <plant-id>",
	Short: "Print the photo timeline of a plant, oldest first",
	Long: `Print id and date of every photo of a plant, oldest first.

With --compare, photos are picked in the given order, at most two being kept,
and the retained pair is printed oldest first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		picks, _ := cmd.Flags().GetStringSlice("compare")
		return withApp(func(ctx context.Context, a *app.App) error {
			p, ok := a.Garden.Plant(args[0])
			if !ok {
				return fmt.Errorf("%s: no such plant", args[0])
			}
			photos := plants.Photos(p)
			if len(picks) > 0 {
				var sel plants.Selection
				for _, id := range picks {
					sel.Toggle(strings.TrimSpace(id))
				}
				photos = plants.Compare(plants.Timeline(p), &sel)
			}
			for _, photo := range photos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s,%s\n", photo.Id, photo.Date)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd, addCmd, logCmd, rmCmd, photosCmd)

	addCmd.Flags().StringP("species", "s", "", "Species of the plant")
	addCmd.Flags().StringP("image", "i", "", "Photo file path or http(s) URL")

	logCmd.Flags().StringP("note", "n", "", "Free text note")
	logCmd.Flags().BoolP("watered", "w", false, "The plant was watered")
	logCmd.Flags().BoolP("fertilized", "f", false, "The plant was fertilized")
	logCmd.Flags().StringP("image", "i", "", "Photo file path or http(s) URL")

	photosCmd.Flags().StringSlice("compare", nil, "Photo ids to pick for a comparison")
}
