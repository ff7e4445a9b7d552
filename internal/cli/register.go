package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimvault/internal/model"
	"github.com/ppiankov/claimvault/internal/worker"
)

type registerFlags struct {
	originator string
	recipient  string
	amount     string
	fee        string
	period     uint32
	id         string
	key        string
	signature  string
}

func newRegisterCmd(a *app) *cobra.Command {
	f := &registerFlags{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a pending claim",
		Long: `Register a pending claim under its payment id.

The claim expires at the current ledger sequence plus --period. Registering
an existing payment id replaces the stored claim and appends the id to the
index again.

Authorization (schnorr mode) takes either:
- --key: the originator's hex private key; the request is signed locally
- --originator and --signature: a hex public key and a signature made elsewhere

Example:
  claimvault register --key <hex> --recipient <id> --amount 1000 --fee 50 \
    --period 100 --id 0101010101010101010101010101010101010101010101010101010101010101`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			entry, err := f.entry()
			if err != nil {
				return err
			}
			req, err := entry.Request()
			if err != nil {
				return err
			}

			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(sess, &err)

			if err := sess.registry.RegisterClaim(cmd.Context(), req); err != nil {
				return fmt.Errorf("register claim: %w", err)
			}

			claim, found, err := sess.registry.GetClaim(cmd.Context(), req.PaymentID)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("claim %s missing after registration", req.PaymentID)
			}

			sess.logger.Info().
				Str("payment_id", claim.PaymentID.String()).
				Uint32("expiry_sequence", claim.ExpirySequence).
				Msg("claim registered")

			return a.print(cmd.OutOrStdout(), claim)
		},
	}

	cmd.Flags().StringVar(&f.originator, "originator", "", "originator identity (derived from --key when omitted)")
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "recipient identity")
	cmd.Flags().StringVar(&f.amount, "amount", "", "payment amount (signed 128-bit integer)")
	cmd.Flags().StringVar(&f.fee, "fee", "0", "fee amount (signed 128-bit integer)")
	cmd.Flags().Uint32Var(&f.period, "period", 0, "claim period in ledger sequences")
	cmd.Flags().StringVar(&f.id, "id", "", "payment id (64 hex characters)")
	cmd.Flags().StringVar(&f.key, "key", "", "originator private key (hex) used to sign the request")
	cmd.Flags().StringVar(&f.signature, "signature", "", "precomputed request signature (hex)")

	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("id")
	cmd.MarkFlagsMutuallyExclusive("key", "signature")

	return cmd
}

// entry converts the flags into the same entry an import file would hold
func (f *registerFlags) entry() (worker.ClaimEntry, error) {
	id, err := model.ParsePaymentID(f.id)
	if err != nil {
		return worker.ClaimEntry{}, fmt.Errorf("--id: %w", err)
	}
	amount, err := model.ParseAmount(f.amount)
	if err != nil {
		return worker.ClaimEntry{}, fmt.Errorf("--amount: %w", err)
	}
	fee, err := model.ParseAmount(f.fee)
	if err != nil {
		return worker.ClaimEntry{}, fmt.Errorf("--fee: %w", err)
	}
	if f.key == "" && f.originator == "" {
		return worker.ClaimEntry{}, fmt.Errorf("one of --key or --originator is required")
	}

	return worker.ClaimEntry{
		Originator:    model.Identity(f.originator),
		PrivateKey:    f.key,
		Signature:     f.signature,
		Recipient:     model.Identity(f.recipient),
		PaymentAmount: amount,
		FeeAmount:     fee,
		ClaimPeriod:   f.period,
		PaymentID:     id,
	}, nil
}
