package cmd

import (
	"fmt"

	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/spf13/cobra"
)

func MembersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Group membership commands",
	}

	cmd.AddCommand(membersAddCmd())
	return cmd
}

func membersAddCmd() *cobra.Command {
	var (
		email string
		role  string
	)

	cmd := &cobra.Command{
		Use:   "add <group-id> <user-id>",
		Short: "Grant a user a role in a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			groupID, userID := args[0], args[1]
			if email != "" {
				if err := a.UserService.Resolve(cmd.Context(), model.Identity{UserID: userID, Email: email}); err != nil {
					return err
				}
			}

			if err := a.UserService.AddGroupMember(cmd.Context(), groupID, userID, role); err != nil {
				return err
			}
			fmt.Printf("%s is now %s of %s\n", userID, role, groupID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "record the user with this email first")
	cmd.Flags().StringVar(&role, "role", model.GroupRoleMember, "admin or member")
	return cmd
}
