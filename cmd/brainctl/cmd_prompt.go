package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"brainsim/internal/clinical"
	"brainsim/internal/domain"
)

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().String("base", "", "base prompt")
	promptCmd.Flags().String("patient", "", "path to a patient JSON file")
	promptCmd.Flags().StringArray("ehr", nil, "EHR file (repeatable)")
	promptCmd.Flags().StringArray("ct", nil, "CT scan image (repeatable)")
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Generate an image prompt from clinical inputs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, _ := cmd.Flags().GetString("base")
		patientPath, _ := cmd.Flags().GetString("patient")
		ehrPaths, _ := cmd.Flags().GetStringArray("ehr")
		ctPaths, _ := cmd.Flags().GetStringArray("ct")

		in := clinical.Input{BasePrompt: base, Patient: domain.PatientContext{}}
		if patientPath != "" {
			raw, err := os.ReadFile(patientPath)
			if err != nil {
				return fmt.Errorf("read patient: %w", err)
			}
			in.Patient = domain.ParsePatientContext(string(raw))
		}
		var err error
		if in.EHRFiles, err = readAttachments(ehrPaths); err != nil {
			return err
		}
		if in.CTScans, err = readAttachments(ctPaths); err != nil {
			return err
		}

		providers, logger, closeDB, err := loadProviders(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		result := providers.Prompts.Generate(cmd.Context(), in)
		if result.Fallback() {
			logger.Warn().Str("reason", result.FallbackReason).Msg("prompt fell back")
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Prompt)
		return nil
	},
}

func readAttachments(paths []string) ([]domain.Attachment, error) {
	out := make([]domain.Attachment, 0, len(paths))
	for _, p := range paths {
		a, err := readAttachment(p)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// readAttachment loads a local file. The type comes from the extension and
// falls back to content sniffing.
func readAttachment(path string) (domain.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("read %s: %w", path, err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return domain.NewAttachment(filepath.Base(path), mimeType, data), nil
}
