package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rrens/tnt-ai/internal/security"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a storage.encryption_key value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := security.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
}

func newHashCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-code <pairing-code>",
		Short: "Hash a pairing code for auth.pairing_code_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := security.HashPairingCode(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}
