package cmd

import (
	"strings"
	"time"

	"github.com/foomo/formpersist/pkg/persist"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func logLevelFlag(v *viper.Viper) string {
	return v.GetString("log.level")
}

func addLogLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-level", "info", "log level")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func logFormatFlag(v *viper.Viper) string {
	return v.GetString("log.format")
}

func addLogFormatFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-format", "json", "log format")
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindEnv("log.format", "LOG_FORMAT")
}

func addressFlag(v *viper.Viper) string {
	return v.GetString("address")
}

func addAddressFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("address", ":8080", "Address to bind to (host:port)")
	_ = v.BindPFlag("address", flags.Lookup("address"))
	_ = v.BindEnv("address", "FORMPERSIST_ADDRESS")
}

func basePathFlag(v *viper.Viper) string {
	return v.GetString("base_path")
}

func addBasePathFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("base-path", "/formpersist", "Base path to export the webserver on")
	_ = v.BindPFlag("base_path", flags.Lookup("base-path"))
	_ = v.BindEnv("base_path", "FORMPERSIST_BASE_PATH")
}

func gracefulPeriodFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("graceful_period")
}

func addGracefulPeriodFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("graceful-period", 0, "Graceful period before shutting down")
	_ = v.BindPFlag("graceful_period", flags.Lookup("graceful-period"))
	_ = v.BindEnv("graceful_period", "FORMPERSIST_GRACEFUL_PERIOD")
}

func storageTypeFlag(v *viper.Viper) string {
	return v.GetString("storage.type")
}

func addStorageTypeFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-type", "filesystem", "Persistent storage backend (filesystem, blob, sqlite, memory)")
	_ = v.BindPFlag("storage.type", flags.Lookup("storage-type"))
	_ = v.BindEnv("storage.type", "FORMPERSIST_STORAGE_TYPE")
}

func storageDirFlag(v *viper.Viper) string {
	return v.GetString("storage.dir")
}

func addStorageDirFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-dir", "/var/lib/formpersist", "Directory of the filesystem storage")
	_ = v.BindPFlag("storage.dir", flags.Lookup("storage-dir"))
	_ = v.BindEnv("storage.dir", "FORMPERSIST_STORAGE_DIR")
}

func storageBlobBucketFlag(v *viper.Viper) string {
	return v.GetString("storage.blob.bucket")
}

func addStorageBlobBucketFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-blob-bucket", "", "Bucket URL of the blob storage (gs://, s3://, azblob://, file://, mem://)")
	_ = v.BindPFlag("storage.blob.bucket", flags.Lookup("storage-blob-bucket"))
	_ = v.BindEnv("storage.blob.bucket", "FORMPERSIST_STORAGE_BLOB_BUCKET")
}

func storageBlobPrefixFlag(v *viper.Viper) string {
	return v.GetString("storage.blob.prefix")
}

func addStorageBlobPrefixFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-blob-prefix", "", "Key prefix inside the blob bucket")
	_ = v.BindPFlag("storage.blob.prefix", flags.Lookup("storage-blob-prefix"))
	_ = v.BindEnv("storage.blob.prefix", "FORMPERSIST_STORAGE_BLOB_PREFIX")
}

func storageSQLitePathFlag(v *viper.Viper) string {
	return v.GetString("storage.sqlite.path")
}

func addStorageSQLitePathFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("storage-sqlite-path", "/var/lib/formpersist/formpersist.db", "Database file of the sqlite storage")
	_ = v.BindPFlag("storage.sqlite.path", flags.Lookup("storage-sqlite-path"))
	_ = v.BindEnv("storage.sqlite.path", "FORMPERSIST_STORAGE_SQLITE_PATH")
}

func addStorageFlags(flags *pflag.FlagSet, v *viper.Viper) {
	addStorageTypeFlag(flags, v)
	addStorageDirFlag(flags, v)
	addStorageBlobBucketFlag(flags, v)
	addStorageBlobPrefixFlag(flags, v)
	addStorageSQLitePathFlag(flags, v)
}

func profilesFlag(v *viper.Viper) string {
	return v.GetString("profiles")
}

func addProfilesFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("profiles", "", "YAML file with per form persistence settings")
	_ = v.BindPFlag("profiles", flags.Lookup("profiles"))
	_ = v.BindEnv("profiles", "FORMPERSIST_PROFILES")
}

func debounceFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("debounce")
}

func addDebounceFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("debounce", persist.DefaultDebounce, "Quiescent window before a form state is written")
	_ = v.BindPFlag("debounce", flags.Lookup("debounce"))
	_ = v.BindEnv("debounce", "FORMPERSIST_DEBOUNCE")
}

// ignoreFieldsFlag accepts comma or space separated lists, env values are
// only split on whitespace by viper
func ignoreFieldsFlag(v *viper.Viper) []string {
	var fields []string
	for _, value := range v.GetStringSlice("ignore_fields") {
		for _, field := range strings.Split(value, ",") {
			if field = strings.TrimSpace(field); field != "" {
				fields = append(fields, field)
			}
		}
	}
	return fields
}

func addIgnoreFieldsFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.StringSlice("ignore-fields", nil, "Field paths never written to storage, e.g. password,person.gender")
	_ = v.BindPFlag("ignore_fields", flags.Lookup("ignore-fields"))
	_ = v.BindEnv("ignore_fields", "FORMPERSIST_IGNORE_FIELDS")
}

func sessionStorageFlag(v *viper.Viper) bool {
	return v.GetBool("session_storage")
}

func addSessionStorageFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("session-storage", false, "Keep form states in process memory instead of the persistent storage")
	_ = v.BindPFlag("session_storage", flags.Lookup("session-storage"))
	_ = v.BindEnv("session_storage", "FORMPERSIST_SESSION_STORAGE")
}

func fullPathMatchingFlag(v *viper.Viper) bool {
	return v.GetBool("full_path_matching")
}

func addFullPathMatchingFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("full-path-matching", false, "Match ignored fields by their full dotted path instead of the last segment")
	_ = v.BindPFlag("full_path_matching", flags.Lookup("full-path-matching"))
	_ = v.BindEnv("full_path_matching", "FORMPERSIST_FULL_PATH_MATCHING")
}

func maxFormsFlag(v *viper.Viper) int {
	return v.GetInt("max_forms")
}

func addMaxFormsFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Int("max-forms", 0, "Maximum number of forms held in memory, 0 for unlimited")
	_ = v.BindPFlag("max_forms", flags.Lookup("max-forms"))
	_ = v.BindEnv("max_forms", "FORMPERSIST_MAX_FORMS")
}

func addFormFlags(flags *pflag.FlagSet, v *viper.Viper) {
	addProfilesFlag(flags, v)
	addMaxFormsFlag(flags, v)
	addDebounceFlag(flags, v)
	addIgnoreFieldsFlag(flags, v)
	addSessionStorageFlag(flags, v)
	addFullPathMatchingFlag(flags, v)
}

func serviceHealthzEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.healthz.enabled")
}

func addServiceHealthzEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-healthz-enabled", false, "Enable healthz service")
	_ = v.BindPFlag("service.healthz.enabled", flags.Lookup("service-healthz-enabled"))
}

func servicePrometheusEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("service.prometheus.enabled")
}

func addServicePrometheusEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("service-prometheus-enabled", false, "Enable prometheus service")
	_ = v.BindPFlag("service.prometheus.enabled", flags.Lookup("service-prometheus-enabled"))
}

func otelEnabledFlag(v *viper.Viper) bool {
	return v.GetBool("otel.enabled")
}

func addOtelEnabledFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("otel-enabled", false, "Enable otel service")
	_ = v.BindPFlag("otel.enabled", flags.Lookup("otel-enabled"))
	_ = v.BindEnv("otel.enabled", "OTEL_ENABLED")
}
