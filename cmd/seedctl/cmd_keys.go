package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	authmodels "seeddid/internal/auth/models"
	didmodels "seeddid/internal/did/models"
)

var signKey string

// keygenCmd prints a fresh Ed25519 DID key pair
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 DID key pair",
	Long: `Generate an Ed25519 key pair in the hex encoding POST /did expects.
The private key is printed as its 32-byte seed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "publicKey:  %s\n", didmodels.EncodeKey(pub))
		fmt.Fprintf(out, "privateKey: %s\n", didmodels.EncodeKey(priv.Seed()))
		return nil
	},
}

// signCmd signs the login challenge
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign the login challenge with a DID private key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sig, err := signChallenge(signKey)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sig)
		return nil
	},
}

func init() {
	signCmd.Flags().StringVar(&signKey, "key", "", "hex private key (seed or expanded)")
	_ = signCmd.MarkFlagRequired("key")
}

func signChallenge(hexKey string) (string, error) {
	priv, err := didmodels.ParsePrivateKey(hexKey)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	return hex.EncodeToString(ed25519.Sign(priv, []byte(authmodels.ChallengeMessage))), nil
}
