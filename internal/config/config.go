package config

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"filetap/internal/utils"
)

// File type values accepted by the connector.
const (
	FileTypeDelimited = "delimited"
	FileTypeJSONL     = "jsonl"
	FileTypeAvro      = "avro"
	FileTypeParquet   = "parquet"
)

// Error handling policies for decoders.
const (
	ErrorHandlingFail   = "fail"
	ErrorHandlingIgnore = "ignore"
)

// Coercion strategies.
const (
	CoercionAny      = "any"
	CoercionString   = "string"
	CoercionEnvelope = "envelope"
	CoercionConvert  = "convert"
)

// JSONL type inference modes: field types follow the coercion strategy, or
// are voted from a sample of decoded values.
const (
	InferenceCoercion = "coercion"
	InferenceSampled  = "sampled"
)

type Config struct {
	StreamName string `mapstructure:"stream_name"`

	// DeclaredSchema maps field names to JSON Schema types. When set, schema
	// inference is skipped and the declared fields are used as-is.
	DeclaredSchema map[string]string `mapstructure:"declared_schema"`

	Source    SourceConfig    `mapstructure:"source"`
	Format    FormatConfig    `mapstructure:"format"`
	Delimited DelimitedConfig `mapstructure:"delimited"`
	JSONL     JSONLConfig     `mapstructure:"jsonl"`
	Avro      AvroConfig      `mapstructure:"avro"`
	Parquet   ParquetConfig   `mapstructure:"parquet"`
	S3        S3Config        `mapstructure:"s3"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
}

// SourceConfig describes where files come from and which ones to read.
type SourceConfig struct {
	Protocol       string `mapstructure:"protocol" validate:"required,oneof=file s3 minio"`
	Path           string `mapstructure:"path" validate:"required"`
	FileRegex      string `mapstructure:"file_regex"`
	Compression    string `mapstructure:"compression" validate:"oneof=none zip bz2 gzip lzma xz detect"`
	AdditionalInfo bool   `mapstructure:"additional_info"`
	StartDate      string `mapstructure:"start_date"`
}

// FormatConfig selects how file contents are decoded.
type FormatConfig struct {
	Type string `mapstructure:"type"`
}

// DelimitedConfig holds options for CSV/TSV and similar files.
type DelimitedConfig struct {
	Delimiter       string   `mapstructure:"delimiter"`
	QuoteCharacter  string   `mapstructure:"quote_character"`
	HeaderSkip      int      `mapstructure:"header_skip" validate:"min=0"`
	FooterSkip      int      `mapstructure:"footer_skip" validate:"min=0"`
	OverrideHeaders []string `mapstructure:"override_headers"`
	ErrorHandling   string   `mapstructure:"error_handling" validate:"oneof=fail ignore"`
}

// JSONLConfig holds options for newline-delimited JSON files.
type JSONLConfig struct {
	ErrorHandling        string `mapstructure:"error_handling" validate:"oneof=fail ignore"`
	SamplingStrategy     string `mapstructure:"sampling_strategy" validate:"oneof=first all"`
	TypeCoercionStrategy string `mapstructure:"type_coercion_strategy" validate:"oneof=any string envelope"`
	TypeInference        string `mapstructure:"type_inference" validate:"oneof=coercion sampled"`
}

// AvroConfig holds options for Avro container files.
type AvroConfig struct {
	TypeCoercionStrategy string `mapstructure:"type_coercion_strategy" validate:"oneof=convert envelope"`
}

// ParquetConfig holds options for Parquet files.
type ParquetConfig struct {
	TypeCoercionStrategy string `mapstructure:"type_coercion_strategy" validate:"oneof=convert envelope"`
}

// S3Config holds S3 connection configuration. Path-style addressing and a
// custom endpoint allow S3-compatible services.
type S3Config struct {
	Region         string `mapstructure:"region"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	SessionToken   string `mapstructure:"session_token"`
	RoleARN        string `mapstructure:"role_arn"`
	ExternalID     string `mapstructure:"external_id"`
	EndpointURL    string `mapstructure:"endpoint_url"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	Anonymous      bool   `mapstructure:"anonymous"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// MinIOConfig holds MinIO connection configuration.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Token     string `mapstructure:"token"`
	Region    string `mapstructure:"region"`
	Secure    bool   `mapstructure:"secure"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("stream_name", "file")

	// Source defaults
	viper.SetDefault("source.protocol", "file")
	viper.SetDefault("source.compression", "detect")
	viper.SetDefault("source.additional_info", true)

	// Format defaults
	viper.SetDefault("format.type", "delimited")

	// Delimited defaults
	viper.SetDefault("delimited.delimiter", "detect")
	viper.SetDefault("delimited.quote_character", `"`)
	viper.SetDefault("delimited.header_skip", 0)
	viper.SetDefault("delimited.footer_skip", 0)
	viper.SetDefault("delimited.error_handling", "fail")

	// JSONL defaults
	viper.SetDefault("jsonl.error_handling", "fail")
	viper.SetDefault("jsonl.sampling_strategy", "first")
	viper.SetDefault("jsonl.type_coercion_strategy", "any")
	viper.SetDefault("jsonl.type_inference", "coercion")

	// Avro and Parquet defaults
	viper.SetDefault("avro.type_coercion_strategy", "convert")
	viper.SetDefault("parquet.type_coercion_strategy", "convert")

	// S3 defaults
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.max_retries", 0)

	// MinIO defaults
	viper.SetDefault("minio.region", "us-east-1")
	viper.SetDefault("minio.secure", false)
}

// Validate checks the whole configuration before any I/O happens. All enum and
// cross-field rules are enforced here so later components can assume a valid
// configuration.
func (c *Config) Validate() error {
	if err := c.validateFileType(); err != nil {
		return err
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return utils.NewErrorBuilder(utils.ErrCodeInvalidConfiguration).
			WithMessage("configuration validation failed").
			WithDetails(err.Error()).
			WithCause(err).
			Build()
	}

	if c.Source.FileRegex != "" {
		if _, err := regexp.Compile(c.Source.FileRegex); err != nil {
			return utils.NewConfigurationError(fmt.Sprintf("file_regex is not a valid regular expression: %v", err))
		}
	}

	if c.Source.StartDate != "" {
		if _, err := time.Parse(time.RFC3339, c.Source.StartDate); err != nil {
			return utils.NewConfigurationError(fmt.Sprintf("start_date must be ISO-8601 with a timezone offset: %v", err))
		}
	}

	for name, fieldType := range c.DeclaredSchema {
		switch fieldType {
		case "boolean", "integer", "number", "string", "array", "object":
		default:
			return utils.NewConfigurationError(fmt.Sprintf(
				"declared_schema field '%s' has unknown type '%s'", name, fieldType))
		}
	}

	if d := c.Delimited.Delimiter; d != "detect" && utf8.RuneCountInString(d) != 1 {
		return utils.NewConfigurationError("delimited.delimiter must be a single character or 'detect'")
	}
	if utf8.RuneCountInString(c.Delimited.QuoteCharacter) != 1 {
		return utils.NewConfigurationError("delimited.quote_character must be a single character")
	}

	return nil
}

// validateFileType rejects unknown format types, with suggestions for common
// misnomers, mirroring the values accepted by the record pipeline.
func (c *Config) validateFileType() error {
	switch c.Format.Type {
	case FileTypeDelimited, FileTypeJSONL, FileTypeAvro, FileTypeParquet:
		return nil
	case "csv", "tsv", "txt":
		return utils.NewErrorBuilder(utils.ErrCodeInvalidFileType).
			WithMessage(fmt.Sprintf("'%s' is not a valid file type. Did you mean 'delimited'?", c.Format.Type)).
			Build()
	case "json", "ndjson":
		return utils.NewErrorBuilder(utils.ErrCodeInvalidFileType).
			WithMessage(fmt.Sprintf("'%s' is not a valid file type. Did you mean 'jsonl'?", c.Format.Type)).
			Build()
	default:
		return utils.NewErrorBuilder(utils.ErrCodeInvalidFileType).
			WithMessage(fmt.Sprintf("'%s' is not a valid file type", c.Format.Type)).
			Build()
	}
}

// DelimiterRune returns the configured delimiter as a rune. Only valid after
// Validate has accepted a single-character delimiter.
func (c *DelimitedConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// QuoteRune returns the configured quote character as a rune.
func (c *DelimitedConfig) QuoteRune() rune {
	r, _ := utf8.DecodeRuneInString(c.QuoteCharacter)
	return r
}
