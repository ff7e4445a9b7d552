package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimvault/internal/model"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <payment-id>",
		Short: "Show the claim stored under a payment id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			id, err := model.ParsePaymentID(args[0])
			if err != nil {
				return err
			}

			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(sess, &err)

			claim, found, err := sess.registry.GetClaim(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("claim %s not found", id)
			}
			return a.print(cmd.OutOrStdout(), claim)
		},
	}
}

// idList is the output of list --all
type idList struct {
	IDs   []model.PaymentID `json:"ids" yaml:"ids"`
	Total int               `json:"total" yaml:"total"`
}

func newListCmd(a *app) *cobra.Command {
	var (
		offset int
		limit  int
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered payment ids in registration order",
		Long: `List registered payment ids in registration order.

An id registered more than once appears once per registration. Without
--all the index is read one page at a time; pass --offset with the
printed next_offset to continue.

Example:
  claimvault list
  claimvault list --offset 100 --limit 50
  claimvault list --all -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(sess, &err)

			if all {
				ids, err := sess.registry.ListClaimIDs(cmd.Context())
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), idList{IDs: ids, Total: len(ids)})
			}

			page, err := sess.registry.ListClaimIDsPage(cmd.Context(), offset, limit)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), page)
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "index position to start from")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (0 uses the configured default)")
	cmd.Flags().BoolVar(&all, "all", false, "print the whole index")
	cmd.MarkFlagsMutuallyExclusive("all", "offset")
	cmd.MarkFlagsMutuallyExclusive("all", "limit")

	return cmd
}
