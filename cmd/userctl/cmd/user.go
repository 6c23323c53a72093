package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shion-ptpe/oauth/internal/logger"
	"github.com/shion-ptpe/oauth/internal/user"
)

const startupWait = 10 * time.Second

var createCmd = &cobra.Command{
	Use:   "create SUBJECT_ID",
	Short: "Register a user for an authorization server subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := store.Create(cmd.Context(), args[0])
		if errors.Is(err, user.ErrAlreadyExists) {
			return fmt.Errorf("subject %q is already registered", args[0])
		}
		if err != nil {
			return err
		}

		logger.Info("user created", map[string]any{"subject_id": u.SubjectID})
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s for subject %s\n", u.ID, u.SubjectID)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show SUBJECT_ID",
	Short: "Print a user and whether a token is bound to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := find(cmd, args[0])
		if err != nil {
			return err
		}

		linked := "no"
		if u.OAuthToken != nil {
			linked = "yes (" + logger.Fingerprint(*u.OAuthToken) + ")"
		}

		fmt.Fprintf(cmd.OutOrStdout(), "id:         %s\n", u.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "subject:    %s\n", u.SubjectID)
		fmt.Fprintf(cmd.OutOrStdout(), "linked:     %s\n", linked)
		fmt.Fprintf(cmd.OutOrStdout(), "created at: %s\n", u.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(cmd.OutOrStdout(), "updated at: %s\n", u.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink SUBJECT_ID",
	Short: "Drop the user's token, ending every session that holds it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := find(cmd, args[0])
		if err != nil {
			return err
		}
		if u.OAuthToken == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "subject %s has no token\n", u.SubjectID)
			return nil
		}

		u.ClearToken()
		if err := store.Save(cmd.Context(), u); err != nil {
			return err
		}

		logger.Info("user unlinked", map[string]any{"subject_id": u.SubjectID})
		fmt.Fprintf(cmd.OutOrStdout(), "unlinked subject %s\n", u.SubjectID)
		return nil
	},
}

func find(cmd *cobra.Command, subjectID string) (*user.User, error) {
	u, err := store.FindBySubjectID(cmd.Context(), subjectID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("no user for subject %q", subjectID)
	}
	return u, err
}
