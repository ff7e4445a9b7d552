package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/claimvault/internal/auth"
	"github.com/ppiankov/claimvault/internal/model"
)

// keyPair is the output of keygen
type keyPair struct {
	Identity   model.Identity `json:"identity" yaml:"identity"`
	PrivateKey string         `json:"private_key" yaml:"private_key"`
}

func newKeygenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an originator key pair",
		Long: `Generate a secp256k1 key pair for schnorr authorization.

The identity is the x-only public key used as --originator. Keep the
private key secret; pass it as --key to register or as private_key in an
import file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := auth.GenerateSigner()
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), keyPair{
				Identity:   signer.Identity(),
				PrivateKey: signer.PrivateKeyHex(),
			})
		},
	}
}
