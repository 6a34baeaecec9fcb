package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/quest/internal/cli"
	"github.com/Veraticus/quest/internal/config"
	"github.com/Veraticus/quest/internal/storage"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage database checkpoints",
		Long: `Create, list, restore, and delete database checkpoints.

"quest import" takes an automatic checkpoint first, so a bad import can be
undone by restoring the checkpoint taken before it.`,
		Example: `  quest checkpoint create --tag "before-spring-sheet"
  quest checkpoint list
  quest checkpoint restore before-spring-sheet
  quest checkpoint delete before-spring-sheet`,
	}

	cmd.AddCommand(createCheckpointCmd())
	cmd.AddCommand(listCheckpointsCmd())
	cmd.AddCommand(restoreCheckpointCmd())
	cmd.AddCommand(deleteCheckpointCmd())

	return cmd
}

// withCheckpoints opens the database, builds its checkpoint manager and runs fn.
// fn owns closing the store when it returns true.
func withCheckpoints(cmd *cobra.Command, fn func(*storage.SQLiteStorage, *storage.CheckpointManager) (closed bool, err error)) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	store, err := openStorage(cmd.Context(), cfg.Database.Path)
	if err != nil {
		return err
	}

	manager, err := store.NewCheckpointManager()
	if err != nil {
		_ = store.Close()
		if errors.Is(err, storage.ErrInMemoryDatabase) {
			return err
		}
		return fmt.Errorf("failed to create checkpoint manager: %w", err)
	}

	closed, err := fn(store, manager)
	if !closed {
		_ = store.Close()
	}
	return err
}

func createCheckpointCmd() *cobra.Command {
	var tag string
	var description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new checkpoint",
		Long:  `Create a snapshot of the current database state.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCheckpoints(cmd, func(_ *storage.SQLiteStorage, manager *storage.CheckpointManager) (bool, error) {
				info, err := manager.Create(cmd.Context(), tag, description)
				if err != nil {
					return false, fmt.Errorf("failed to create checkpoint: %w", err)
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%s Created checkpoint %s (%s)\n",
					cli.SuccessStyle.Render(cli.SuccessIcon),
					cli.InfoStyle.Render(info.ID),
					formatFileSize(info.FileSize))
				if info.Description != "" {
					_, _ = fmt.Fprintf(out, "  Description: %s\n", info.Description)
				}
				return false, nil
			})
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Checkpoint tag/name (auto-generated if not provided)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description of the checkpoint")

	return cmd
}

func listCheckpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all checkpoints",
		Long:  `Display all available checkpoints with their metadata.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCheckpoints(cmd, func(_ *storage.SQLiteStorage, manager *storage.CheckpointManager) (bool, error) {
				checkpoints, err := manager.List(cmd.Context())
				if err != nil {
					return false, fmt.Errorf("failed to list checkpoints: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(checkpoints) == 0 {
					_, err = fmt.Fprintln(out, cli.SubtitleStyle.Render("No checkpoints found."))
					return false, err
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
				headers := []string{"NAME", "CREATED", "SIZE", "USERS", "APPLICATIONS", "ACHIEVEMENTS", "TYPE"}
				for i, h := range headers {
					headers[i] = headerStyle.Render(h)
				}
				_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))

				for _, cp := range checkpoints {
					typeLabel := "manual"
					if cp.IsAuto {
						typeLabel = "auto"
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
						cli.InfoStyle.Render(cp.ID),
						formatRelativeTime(cp.CreatedAt),
						formatFileSize(cp.FileSize),
						cp.Users,
						cp.Applications,
						cp.Achievements,
						cli.SubtitleStyle.Render(typeLabel),
					)
				}
				return false, w.Flush()
			})
		},
	}
}

func restoreCheckpointCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <checkpoint-id>",
		Short: "Restore database from a checkpoint",
		Long:  `Replace the current database with a checkpoint.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpointID := args[0]
			return withCheckpoints(cmd, func(_ *storage.SQLiteStorage, manager *storage.CheckpointManager) (bool, error) {
				info, err := findCheckpoint(cmd, manager, checkpointID)
				if err != nil {
					return false, err
				}

				if !force {
					out := cmd.OutOrStdout()
					_, _ = fmt.Fprintf(out, "%s This will replace your current database with checkpoint %s.\n",
						cli.WarningStyle.Render(cli.WarningIcon),
						cli.InfoStyle.Render(checkpointID))
					_, _ = fmt.Fprintf(out, "  Created: %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
					if info.Description != "" {
						_, _ = fmt.Fprintf(out, "  Description: %s\n", info.Description)
					}
					if !confirm(cmd) {
						_, _ = fmt.Fprintln(out, cli.SubtitleStyle.Render("Restore cancelled."))
						return false, nil
					}
				}

				// Restore closes the database before swapping the file in.
				if err := manager.Restore(cmd.Context(), checkpointID); err != nil {
					return true, fmt.Errorf("failed to restore checkpoint: %w", err)
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s Restored from checkpoint %s\n",
					cli.SuccessStyle.Render(cli.SuccessIcon),
					cli.InfoStyle.Render(checkpointID))
				return true, err
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func deleteCheckpointCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <checkpoint-id>",
		Short: "Delete a checkpoint",
		Long:  `Permanently remove a checkpoint.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpointID := args[0]
			return withCheckpoints(cmd, func(_ *storage.SQLiteStorage, manager *storage.CheckpointManager) (bool, error) {
				info, err := findCheckpoint(cmd, manager, checkpointID)
				if err != nil {
					return false, err
				}

				if !force {
					out := cmd.OutOrStdout()
					_, _ = fmt.Fprintf(out, "%s This will permanently delete checkpoint %s.\n",
						cli.WarningStyle.Render(cli.WarningIcon),
						cli.InfoStyle.Render(checkpointID))
					_, _ = fmt.Fprintf(out, "  Created: %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
					_, _ = fmt.Fprintf(out, "  Size: %s\n", formatFileSize(info.FileSize))
					if !confirm(cmd) {
						_, _ = fmt.Fprintln(out, cli.SubtitleStyle.Render("Deletion cancelled."))
						return false, nil
					}
				}

				if err := manager.Delete(cmd.Context(), checkpointID); err != nil {
					return false, fmt.Errorf("failed to delete checkpoint: %w", err)
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted checkpoint %s\n",
					cli.SuccessStyle.Render(cli.SuccessIcon),
					cli.InfoStyle.Render(checkpointID))
				return false, err
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func findCheckpoint(cmd *cobra.Command, manager *storage.CheckpointManager, id string) (storage.CheckpointInfo, error) {
	checkpoints, err := manager.List(cmd.Context())
	if err != nil {
		return storage.CheckpointInfo{}, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	for _, cp := range checkpoints {
		if cp.ID == id {
			return cp, nil
		}
	}
	return storage.CheckpointInfo{}, fmt.Errorf("%w: %s", storage.ErrCheckpointNotFound, id)
}

func confirm(cmd *cobra.Command) bool {
	_, _ = fmt.Fprint(cmd.OutOrStdout(), "\nContinue? (y/N) ")
	response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(response)), "y")
}
