package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/foomo/formpersist/pkg/persist"
	"github.com/foomo/formpersist/pkg/storage"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// createStorage creates the persistent storage backend based on the configuration
func createStorage(ctx context.Context, v *viper.Viper, l *zap.Logger) (storage.Storage, error) {
	storageType := storageTypeFlag(v)
	blobBucket := storageBlobBucketFlag(v)
	blobPrefix := storageBlobPrefixFlag(v)

	if storageType != "blob" && (blobBucket != "" || blobPrefix != "") {
		l.Warn("blob storage flags are set but storage-type is not 'blob'; blob config will be ignored",
			zap.String("storage-type", storageType),
			zap.String("blob-bucket", blobBucket),
			zap.String("blob-prefix", blobPrefix),
		)
	}

	l.Info("creating storage", zap.String("type", storageType))

	switch storageType {
	case "blob":
		if blobBucket == "" {
			return nil, fmt.Errorf("blob bucket URL is required when storage-type is 'blob' (supported schemes: %s)", strings.Join(storage.SupportedBlobSchemes, ", "))
		}
		if !storage.IsValidBlobScheme(blobBucket) {
			return nil, fmt.Errorf("unsupported blob storage URL scheme in %q; supported schemes: %s", blobBucket, strings.Join(storage.SupportedBlobSchemes, ", "))
		}
		l.Info("using blob storage",
			zap.String("bucket", blobBucket),
			zap.String("prefix", blobPrefix),
			zap.String("provider", storage.BlobProvider(blobBucket)),
		)
		return storage.NewBlobStorage(ctx, blobBucket, blobPrefix)
	case "sqlite":
		path := storageSQLitePathFlag(v)
		l.Info("using sqlite storage", zap.String("path", path))
		return storage.NewSQLiteStorage(path)
	case "memory":
		l.Warn("using memory storage, form states are lost on shutdown")
		return storage.NewMemoryStorage(), nil
	case "filesystem", "":
		dir := storageDirFlag(v)
		l.Info("using filesystem storage", zap.String("dir", dir))
		return storage.NewFilesystemStorage(dir)
	default:
		return nil, fmt.Errorf("unknown storage type: %s (supported: filesystem, blob, sqlite, memory)", storageType)
	}
}

// formOptions collects the flag defaults and the optional profiles document
func formOptions(v *viper.Viper) ([]persist.Option, *persist.Profiles, error) {
	opts := []persist.Option{
		persist.WithDebounce(debounceFlag(v)),
		persist.WithSessionStorage(sessionStorageFlag(v)),
		persist.WithFullPathMatching(fullPathMatchingFlag(v)),
	}
	if fields := ignoreFieldsFlag(v); len(fields) > 0 {
		opts = append(opts, persist.WithIgnoreFields(fields))
	}

	var profiles *persist.Profiles
	if path := profilesFlag(v); path != "" {
		var err error
		if profiles, err = persist.LoadProfiles(path); err != nil {
			return nil, nil, err
		}
	}
	return opts, profiles, nil
}
