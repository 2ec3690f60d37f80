package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-minutes/internal/envelope"
)

func newKeyringCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyring",
		Short: "Manage the storage passphrase in the OS keyring",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-passphrase",
		Short: "Read a passphrase from stdin and store it in the OS keyring",
		Long: `Reads one line from stdin and stores it under storage.keyring_service /
storage.keyring_user. minutesd uses it when storage.passphrase is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, user := a.cfg.Storage.KeyringService, a.cfg.Storage.KeyringUser
			if service == "" {
				return errors.New("storage.keyring_service and storage.keyring_user must be configured")
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read passphrase: %w", err)
			}
			if err := envelope.StoreKeyringPassphrase(service, user, strings.TrimRight(line, "\r\n")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "passphrase stored for %s/%s\n", service, user)
			return nil
		},
	})
	return cmd
}
