package main

import (
	"encoding/base64"
	"errors"

	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"
)

var keygenLength int

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a random value for SESSION_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		if keygenLength < 32 {
			return errors.New("key length must be at least 32 bytes")
		}
		key := securecookie.GenerateRandomKey(keygenLength)
		if key == nil {
			return errors.New("failed to read random bytes")
		}
		cmd.Println(base64.RawURLEncoding.EncodeToString(key))
		return nil
	},
}

func init() {
	keygenCmd.Flags().IntVar(&keygenLength, "length", 32, "number of random bytes")
}
