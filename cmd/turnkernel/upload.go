package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OCAP2/turnkernel/internal/api"
	"github.com/OCAP2/turnkernel/internal/config"
)

// NewUploadCmd creates the upload subcommand.
func NewUploadCmd() *cobra.Command {
	var (
		serverURL string
		apiKey    string
		tag       string
	)

	cmd := &cobra.Command{
		Use:   "upload <dir>",
		Short: "Publish a saved session to the session archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac := config.GetAPIConfig()
			if serverURL != "" {
				ac.ServerURL = serverURL
			}
			if apiKey != "" {
				ac.APIKey = apiKey
			}
			if err := uploadSession(ac, args[0], tag); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "", "archive server URL (default api.serverUrl)")
	cmd.Flags().StringVar(&apiKey, "key", "", "archive API key (default api.apiKey)")
	cmd.Flags().StringVar(&tag, "tag", "", "tag stored with the session")
	return cmd
}

func uploadSession(ac config.APIConfig, dir, tag string) error {
	if ac.ServerURL == "" {
		return errors.New("no archive server configured (api.serverUrl or --url)")
	}
	client := api.New(ac.ServerURL, ac.APIKey)
	if err := client.Healthcheck(); err != nil {
		return err
	}
	m, err := client.UploadSession(dir, tag)
	if err != nil {
		return err
	}
	Logger.Info("Session uploaded", "session", m.SessionID, "server", ac.ServerURL, "events", m.Events)
	return nil
}
