package cmd

import (
	"fmt"
	"os"

	"github.com/foomo/formpersist/pkg/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func NewShowCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print the stored state of a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := createStorage(cmd.Context(), v, zap.L())
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, s.Close())
			}()

			data, err := s.Read(cmd.Context(), args[0])
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no stored state for form %q", args[0])
			} else if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	addStorageFlags(cmd.Flags(), v)

	return cmd
}

func NewListCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List the forms with a stored state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := createStorage(cmd.Context(), v, zap.L())
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, s.Close())
			}()

			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := s.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, key := range keys {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), key); err != nil {
					return err
				}
			}
			return nil
		},
	}

	addStorageFlags(cmd.Flags(), v)

	return cmd
}

func NewDeleteCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "delete <name>...",
		Short: "Delete the stored state of forms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := createStorage(cmd.Context(), v, zap.L())
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, s.Close())
			}()

			for _, name := range args {
				if err := storage.ValidateKey(name); err != nil {
					return err
				}
				if err := s.Delete(cmd.Context(), name); err != nil {
					return err
				}
				zap.L().Info("deleted form state", zap.String("name", name))
			}
			return nil
		},
	}

	addStorageFlags(cmd.Flags(), v)

	return cmd
}
