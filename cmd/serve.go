package cmd

import (
	"context"
	"fmt"

	"github.com/foomo/formpersist/pkg/handler"
	"github.com/foomo/formpersist/pkg/persist"
	"github.com/foomo/formpersist/pkg/storage"
	"github.com/foomo/keel"
	"github.com/foomo/keel/healthz"
	"github.com/foomo/keel/net/http/middleware"
	"github.com/foomo/keel/service"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func NewServeCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start http server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svr := keel.NewServer(
				keel.WithHTTPPrometheusService(servicePrometheusEnabledFlag(v)),
				keel.WithHTTPHealthzService(serviceHealthzEnabledFlag(v)),
				keel.WithPrometheusMeter(servicePrometheusEnabledFlag(v)),
				keel.WithGracefulPeriod(gracefulPeriodFlag(v)),
				keel.WithOTLPGRPCTracer(otelEnabledFlag(v)),
			)

			l := svr.Logger()

			persistent, err := createStorage(cmd.Context(), v, l)
			if err != nil {
				return fmt.Errorf("failed to create storage: %w", err)
			}
			session := storage.NewMemoryStorage()

			opts, profiles, err := formOptions(v)
			if err != nil {
				return fmt.Errorf("failed to load form options: %w", err)
			}

			registry := persist.NewRegistry(l.Named("inst.registry"),
				persist.Backends{Session: session, Persistent: persistent},
				persist.RegistryWithDefaults(opts...),
				persist.RegistryWithProfiles(profiles),
				persist.RegistryWithMaxForms(maxFormsFlag(v)),
			)

			isStorageReadyFn := healthz.NewHealthzerFn(func(ctx context.Context) error {
				if _, err := persistent.List(ctx, ""); err != nil {
					return errors.Wrap(err, "storage not ready")
				}
				return nil
			})
			svr.AddReadinessHealthzers(isStorageReadyFn)

			// pending writes have to reach the storage before it is closed
			svr.AddClosers(func(ctx context.Context) error {
				return multierr.Append(registry.Close(ctx), persistent.Close())
			})

			svr.AddServices(
				service.NewHTTP(l.Named("svc.http"), "http", addressFlag(v),
					handler.NewHTTP(l.Named("inst.handler"), registry, handler.WithBasePath(basePathFlag(v))),
					middleware.Telemetry(),
					middleware.Logger(),
					middleware.Recover(),
				),
			)

			svr.Run()
			return nil
		},
	}

	flags := cmd.Flags()
	addAddressFlag(flags, v)
	addBasePathFlag(flags, v)
	addGracefulPeriodFlag(flags, v)
	addOtelEnabledFlag(flags, v)
	addServiceHealthzEnabledFlag(flags, v)
	addServicePrometheusEnabledFlag(flags, v)
	addStorageFlags(flags, v)
	addFormFlags(flags, v)

	return cmd
}
