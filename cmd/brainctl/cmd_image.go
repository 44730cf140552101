package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"brainsim/internal/domain"
)

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.Flags().String("prompt", "", "image prompt (required)")
	imageCmd.Flags().String("timepoint", "", "append the suffix for this timepoint (now, 3m, 6m, 12m)")
	_ = imageCmd.MarkFlagRequired("prompt")
}

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Submit one Flux job, wait for it and print the image URL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		timepoint, _ := cmd.Flags().GetString("timepoint")

		providers, _, closeDB, err := loadProviders(cmd)
		if err != nil {
			return err
		}
		defer closeDB()
		if err := providers.Flux.CheckCredentials(); err != nil {
			return err
		}

		if timepoint = strings.TrimSpace(timepoint); timepoint != "" {
			prompt = domain.DecoratePrompt(prompt, timepoint)
		}
		url, err := providers.Flux.Generate(cmd.Context(), prompt)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}
