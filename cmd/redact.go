package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/foomo/formpersist/pkg/persist"
	"github.com/foomo/formpersist/pkg/storage"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func NewRedactCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "redact <name> [file]",
		Short: "Print a form state the way it would be stored",
		Long:  "Reads a form state as json from file or stdin and prints it with the ignored fields of the named form removed.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, profiles, err := formOptions(v)
			if err != nil {
				return err
			}
			opts = append(opts, profiles.Options(args[0])...)

			backends := persist.Backends{Session: storage.NewMemoryStorage(), Persistent: storage.NewMemoryStorage()}
			c, err := persist.New(zap.L(), args[0], backends, nil, opts...)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return errors.Wrap(err, "failed to open form state")
				}
				defer f.Close()
				in = f
			}

			data, err := io.ReadAll(in)
			if err != nil {
				return errors.Wrap(err, "failed to read form state")
			}
			state := persist.State{}
			if err := json.Unmarshal(data, &state); err != nil {
				return fmt.Errorf("%w: %w", persist.ErrDeserialization, err)
			}

			out, err := c.Encode(c.Sanitize(state))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	addFormFlags(cmd.Flags(), v)

	return cmd
}
