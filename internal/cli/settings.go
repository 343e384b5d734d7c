package cli

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finsight-labs/finsight-go/internal/models"
)

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change persisted dashboard settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSettings(cmd, func(st *settingsStack) error {
				return printSettings(cmd, st, st.store.Settings())
			})
		},
	}
	cmd.AddCommand(newSettingsGetCommand())
	cmd.AddCommand(newSettingsSetCommand())
	cmd.AddCommand(newSettingsResetCommand())
	return cmd
}

func newSettingsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get section.key",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, key, err := splitPath(args[0])
			if err != nil {
				return err
			}
			return withSettings(cmd, func(st *settingsStack) error {
				v, appErr := st.store.Get(section, key)
				if appErr != nil {
					return appErr
				}
				if GetOptions(cmd.Context()).Output == OutputJSON {
					return renderJSON(cmd.OutOrStdout(), v)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), v)
				return err
			})
		},
	}
}

func newSettingsSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set section.key value",
		Short: "Change one setting and persist it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, key, err := splitPath(args[0])
			if err != nil {
				return err
			}
			value, err := parseLeafValue(section, key, args[1])
			if err != nil {
				return err
			}
			return withSettings(cmd, func(st *settingsStack) error {
				s, appErr := st.store.Update(cmd.Context(), section, key, value)
				if appErr != nil {
					return appErr
				}
				return printSettings(cmd, st, s)
			})
		},
	}
}

func newSettingsResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSettings(cmd, func(st *settingsStack) error {
				s, appErr := st.store.Reset(cmd.Context())
				if appErr != nil {
					return appErr
				}
				return printSettings(cmd, st, s)
			})
		},
	}
}

func withSettings(cmd *cobra.Command, fn func(*settingsStack) error) error {
	st, err := openSettings(cmd.Context(), GetOptions(cmd.Context()))
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("cli: failed to close settings storage", "err", err)
		}
	}()
	return fn(st)
}

func printSettings(cmd *cobra.Command, st *settingsStack, s models.Settings) error {
	if err := st.store.PersistError(); err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: settings could not be saved: %v\n", err)
	}
	if GetOptions(cmd.Context()).Output == OutputJSON {
		return renderJSON(cmd.OutOrStdout(), s)
	}
	renderSettings(cmd.OutOrStdout(), s)
	return nil
}

func splitPath(path string) (section, key string, err error) {
	section, key, ok := strings.Cut(path, ".")
	if !ok || section == "" || key == "" {
		return "", "", fmt.Errorf("setting must be section.key, got %q", path)
	}
	return section, key, nil
}

// parseLeafValue converts a command-line string to the leaf's kind.
func parseLeafValue(section, key, raw string) (any, error) {
	leaf, ok := models.LookupLeaf(section, key)
	if !ok {
		return nil, models.ErrNotFound("unknown setting " + section + "." + key)
	}
	if !leaf.Bool {
		return raw, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, models.ErrBadRequest(fmt.Sprintf("%s takes true or false, got %q", leaf.Path(), raw))
	}
	return b, nil
}
