package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"signeddoc/pkg/keyid"
)

var (
	keygenNetwork string
	keygenRole    uint8
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 signing key and print its key ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		pk, sk, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return err
		}
		kid := keyid.New(keygenNetwork, pk).WithRole(keyid.Role(keygenRole))

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s %s\n", bold("key id: "), kid)
		fmt.Printf("%s %s\n", bold("short:  "), kid.ShortID())
		fmt.Printf("%s %s\n", bold("seed:   "), hex.EncodeToString(sk.Seed()))
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenNetwork, "network", "preprod", "deployment network of the key id")
	keygenCmd.Flags().Uint8Var(&keygenRole, "role", uint8(keyid.RoleRegistered), "registered role number")
}
