package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/droidpilot/droidpilot/internal/conversation"
)

func newConvosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convos",
		Short: "Manage stored conversations",
	}
	cmd.AddCommand(newConvosListCmd())
	cmd.AddCommand(newConvosShowCmd())
	cmd.AddCommand(newConvosRenameCmd())
	cmd.AddCommand(newConvosDeleteCmd())
	return cmd
}

func newConvosListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := conversation.NewStore()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			active := store.Active()
			for _, c := range store.List() {
				marker := "  "
				if active != nil && c.ID == active.ID {
					marker = okStyle.Render("* ")
				}
				updated := time.UnixMilli(c.UpdatedAt).Format("2006-01-02 15:04")
				fmt.Fprintf(out, "%s%s  %s  %s  %s\n",
					marker, c.ID, titleStyle.Render(c.Title),
					dimStyle.Render(updated),
					dimStyle.Render(fmt.Sprintf("%d messages", len(c.Messages))))
			}
			return nil
		},
	}
}

func newConvosShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := conversation.NewStore()
			if err != nil {
				return err
			}
			c := store.Get(args[0])
			if c == nil {
				return fmt.Errorf("conversation %s not found", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(c.Title))
			for _, m := range c.Messages {
				role := stepStyle.Render(string(m.Role))
				fmt.Fprintf(out, "%s  %s\n", role, m.Content)
				if m.Action != "" {
					fmt.Fprintf(out, "      %s\n", dimStyle.Render(m.Action))
				}
				if m.ImagePath != "" {
					fmt.Fprintf(out, "      %s\n", dimStyle.Render(m.ImagePath))
				}
			}
			return nil
		},
	}
}

func newConvosRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := conversation.NewStore()
			if err != nil {
				return err
			}
			return store.Rename(args[0], args[1])
		},
	}
}

func newConvosDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation and its screenshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := conversation.NewStore()
			if err != nil {
				return err
			}
			return store.Delete(args[0])
		},
	}
}
