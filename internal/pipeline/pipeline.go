package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"filetap/internal/config"
	"filetap/internal/decoder"
	"filetap/internal/discovery"
	"filetap/internal/filesystem"
	"filetap/internal/schema"
	"filetap/internal/utils"
)

// State names the phase a pipeline run is in. Transitions are linear:
// Idle -> Selecting -> Decoding -> Emitting -> Completed, with Failed
// reachable from any phase.
type State string

const (
	StateIdle      State = "idle"
	StateSelecting State = "selecting"
	StateDecoding  State = "decoding"
	StateEmitting  State = "emitting"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Sink receives the pipeline's output in order: exactly one schema, then
// every record. The schema is always written before the first record.
type Sink interface {
	WriteSchema(streamName string, s *schema.Schema) error
	WriteRecord(streamName string, record map[string]interface{}) error
}

// Result summarizes a completed run.
type Result struct {
	RecordCount int
	// NextCursor is the serialized replication cursor for the next run, valid
	// only when CursorUpdated is true. When false the caller keeps its prior
	// cursor unchanged.
	NextCursor    string
	CursorUpdated bool
}

// Pipeline wires a storage backend, file selection, and a format decoder into
// one run that streams records to a sink. The component graph is built once
// in New and reused across Run calls.
type Pipeline struct {
	cfg      *config.Config
	backend  filesystem.Backend
	selector *discovery.Selector

	delimited *decoder.DelimitedDecoder
	jsonl     *decoder.JSONLinesDecoder
	avro      *decoder.AvroDecoder
	parquet   *decoder.ParquetDecoder

	state State
}

// New builds a pipeline from validated configuration, connecting to the
// configured backend.
func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	backend, err := filesystem.NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	selector, err := discovery.NewSelector(backend, cfg.Source.FileRegex)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:       cfg,
		backend:   backend,
		selector:  selector,
		delimited: decoder.NewDelimitedDecoder(&cfg.Delimited),
		jsonl:     decoder.NewJSONLinesDecoder(&cfg.JSONL),
		avro:      decoder.NewAvroDecoder(&cfg.Avro),
		parquet:   decoder.NewParquetDecoder(&cfg.Parquet),
		state:     StateIdle,
	}, nil
}

// State returns the phase of the most recent run.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes one sync: select files newer than the cursor, derive the
// schema, decode every selected file in last-modified order, and stream the
// records to the sink. cursor is the persisted replication value from the
// previous run, or nil for a first run; start_date substitutes for a missing
// cursor.
func (p *Pipeline) Run(ctx context.Context, cursor *time.Time, sink Sink) (*Result, error) {
	result, err := p.run(ctx, cursor, sink)
	if err != nil {
		p.state = StateFailed
		return nil, err
	}
	p.state = StateCompleted
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, cursor *time.Time, sink Sink) (*Result, error) {
	cursor, err := p.effectiveCursor(cursor)
	if err != nil {
		return nil, err
	}

	p.state = StateSelecting
	entries, err := p.selector.SelectFiles(ctx, p.cfg.Source.Path, cursor)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		// Nothing newer than the cursor. The caller keeps its prior cursor.
		return &Result{}, nil
	}

	p.state = StateDecoding
	s, err := p.buildSchema(ctx, entries)
	if err != nil {
		return nil, err
	}

	p.state = StateEmitting
	if err := sink.WriteSchema(p.cfg.StreamName, s); err != nil {
		return nil, fmt.Errorf("failed to write schema: %w", err)
	}

	tracker := discovery.NewCursorTracker()
	recordCount := 0
	for _, entry := range entries {
		count, err := p.syncFile(ctx, entry, sink)
		if err != nil {
			return nil, err
		}
		recordCount += count
		tracker.Observe(entry)
	}

	next, updated := tracker.NextCursor()
	return &Result{RecordCount: recordCount, NextCursor: next, CursorUpdated: updated}, nil
}

// effectiveCursor resolves the cursor for this run: the persisted value when
// present, otherwise the configured start_date. Incremental runs depend on
// the last-modified provenance field, so a cursor without additional_info is
// a configuration error.
func (p *Pipeline) effectiveCursor(cursor *time.Time) (*time.Time, error) {
	if cursor == nil && p.cfg.Source.StartDate != "" {
		start, err := time.Parse(time.RFC3339, p.cfg.Source.StartDate)
		if err != nil {
			return nil, utils.NewConfigurationError(
				fmt.Sprintf("start_date must be ISO-8601 with a timezone offset: %v", err))
		}
		cursor = &start
	}

	if cursor != nil && !p.cfg.Source.AdditionalInfo {
		return nil, utils.NewConfigurationError(
			"incremental replication requires source additional_info to be enabled, " +
				"as the replication key is the last-modified provenance field")
	}

	return cursor, nil
}

// syncFile decodes one file and emits its records, returning how many were
// emitted.
func (p *Pipeline) syncFile(ctx context.Context, entry filesystem.FileEntry, sink Sink) (int, error) {
	log.Printf("Starting sync of %s.", entry.Name)

	stream, err := filesystem.OpenDecoded(ctx, p.backend, entry.Name, p.cfg.Source.Compression)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	lastModified := entry.LastModified.UTC().Format(discovery.CursorFormat)
	count := 0
	err = p.decoder().Decode(stream, entry, func(row decoder.Row) error {
		record := map[string]interface{}(row.Values)
		if p.cfg.Source.AdditionalInfo {
			record[schema.ProvenanceFileName] = entry.Name
			record[schema.ProvenanceLineNumber] = row.LineNumber
			record[schema.ProvenanceLastModified] = lastModified
		}
		if err := sink.WriteRecord(p.cfg.StreamName, record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	log.Printf("Completed sync of %d records from %s.", count, entry.Name)
	return count, nil
}

// decoder returns the decoder for the configured file type. The type was
// validated with the configuration, so the default is unreachable.
func (p *Pipeline) decoder() decoder.Decoder {
	switch p.cfg.Format.Type {
	case config.FileTypeJSONL:
		return p.jsonl
	case config.FileTypeAvro:
		return p.avro
	case config.FileTypeParquet:
		return p.parquet
	default:
		return p.delimited
	}
}

// buildSchema derives the stream schema once per run, before any record is
// emitted: the declared schema when configured, otherwise per-format
// inference over the selected files.
func (p *Pipeline) buildSchema(ctx context.Context, entries []filesystem.FileEntry) (*schema.Schema, error) {
	var s *schema.Schema
	var err error
	if len(p.cfg.DeclaredSchema) > 0 {
		s = schema.DeclaredFields(p.cfg.DeclaredSchema)
	} else {
		s, err = p.formatSchema(ctx, entries)
		if err != nil {
			return nil, err
		}
	}

	if p.cfg.Source.AdditionalInfo {
		s.AddProvenanceFields()
	}
	if p.cfg.Format.Type == config.FileTypeDelimited &&
		p.cfg.Delimited.ErrorHandling == config.ErrorHandlingIgnore {
		s.Add(schema.Field{Name: decoder.RestKey, Types: []string{"null", "array"}})
	}
	return s, nil
}

func (p *Pipeline) formatSchema(ctx context.Context, entries []filesystem.FileEntry) (*schema.Schema, error) {
	switch p.cfg.Format.Type {
	case config.FileTypeDelimited:
		return p.delimitedSchema(ctx, entries)
	case config.FileTypeJSONL:
		return p.jsonlSchema(ctx, entries)
	case config.FileTypeAvro:
		return p.avroSchema(ctx, entries)
	case config.FileTypeParquet:
		return p.parquetSchema(ctx, entries)
	default:
		return nil, utils.NewErrorBuilder(utils.ErrCodeInvalidFileType).
			WithMessage(fmt.Sprintf("'%s' is not a valid file type", p.cfg.Format.Type)).
			Build()
	}
}

// delimitedSchema unions the column names of every selected file. Every file
// contributes, so files with disjoint headers still land in one stream.
func (p *Pipeline) delimitedSchema(ctx context.Context, entries []filesystem.FileEntry) (*schema.Schema, error) {
	headersPerFile := make([][]string, 0, len(entries))
	for _, entry := range entries {
		headers, err := withFile(ctx, p, entry, func(r io.Reader) ([]string, error) {
			return p.delimited.FieldNames(r, entry.Name)
		})
		if err != nil {
			return nil, err
		}
		headersPerFile = append(headersPerFile, headers)
	}
	return schema.DelimitedFields(headersPerFile), nil
}

// jsonlSampleLimit caps how many rows sampled type inference decodes before
// settling on a schema.
const jsonlSampleLimit = 100

// jsonlSchema samples field names per the sampling strategy. Only "first" is
// supported: the first decodable row of the first file that has one. Under
// sampled type inference the field types are voted from decoded values
// instead of following the coercion strategy.
func (p *Pipeline) jsonlSchema(ctx context.Context, entries []filesystem.FileEntry) (*schema.Schema, error) {
	if p.cfg.JSONL.SamplingStrategy != "first" {
		return nil, utils.NewNotSupportedError(
			fmt.Sprintf("the sampling strategy '%s' is not implemented", p.cfg.JSONL.SamplingStrategy))
	}

	if p.cfg.JSONL.TypeInference == config.InferenceSampled {
		return p.sampledJSONLSchema(ctx, entries)
	}

	var fields []string
	for _, entry := range entries {
		sampled, err := withFile(ctx, p, entry, func(r io.Reader) ([]string, error) {
			return p.jsonl.SampleFields(r, entry)
		})
		if err != nil {
			return nil, err
		}
		if len(sampled) > 0 {
			fields = sampled
			break
		}
	}

	return schema.JSONLFields(fields, p.cfg.JSONL.TypeCoercionStrategy)
}

// sampledJSONLSchema tallies value types over a bounded row sample and votes
// a dominant type per field. Rows are observed after coercion, so the schema
// describes the records as emitted.
func (p *Pipeline) sampledJSONLSchema(ctx context.Context, entries []filesystem.FileEntry) (*schema.Schema, error) {
	tally := schema.NewTypeTally()
	sampled := 0
	for _, entry := range entries {
		if sampled >= jsonlSampleLimit {
			break
		}
		count, err := withFile(ctx, p, entry, func(r io.Reader) (int, error) {
			observed := 0
			err := decoder.SampleRows(p.jsonl, r, entry, jsonlSampleLimit-sampled, func(row decoder.Row) {
				tally.Observe(map[string]interface{}(row.Values))
				observed++
			})
			return observed, err
		})
		if err != nil {
			return nil, err
		}
		sampled += count
	}
	return tally.Resolve(), nil
}

// avroSchema translates the writer schemas embedded in the selected files.
// Files may carry different schemas, so the stream schema is the union across
// all of them, first definition winning. Under "envelope" no file needs to be
// opened.
func (p *Pipeline) avroSchema(ctx context.Context, entries []filesystem.FileEntry) (*schema.Schema, error) {
	if p.cfg.Avro.TypeCoercionStrategy == config.CoercionEnvelope {
		return schema.AvroFields("", config.CoercionEnvelope)
	}

	union := schema.New()
	for _, entry := range entries {
		schemaJSON, err := withFile(ctx, p, entry, func(r io.Reader) (string, error) {
			return p.avro.SchemaJSON(r)
		})
		if err != nil {
			return nil, err
		}
		fileSchema, err := schema.AvroFields(schemaJSON, p.cfg.Avro.TypeCoercionStrategy)
		if err != nil {
			return nil, err
		}
		union.Merge(fileSchema)
	}
	return union, nil
}

// parquetSchema translates the footer schemas of the selected files, unioned
// the same way avroSchema unions writer schemas.
func (p *Pipeline) parquetSchema(ctx context.Context, entries []filesystem.FileEntry) (*schema.Schema, error) {
	if p.cfg.Parquet.TypeCoercionStrategy == config.CoercionEnvelope {
		return schema.ParquetFields(nil, config.CoercionEnvelope)
	}

	union := schema.New()
	for _, entry := range entries {
		elements, err := withFile(ctx, p, entry, p.parquet.SchemaElements)
		if err != nil {
			return nil, err
		}
		fileSchema, err := schema.ParquetFields(elements, p.cfg.Parquet.TypeCoercionStrategy)
		if err != nil {
			return nil, err
		}
		union.Merge(fileSchema)
	}
	return union, nil
}

// withFile opens one file with decompression applied, runs fn over the
// stream, and closes the handle.
func withFile[T any](ctx context.Context, p *Pipeline, entry filesystem.FileEntry, fn func(io.Reader) (T, error)) (T, error) {
	var zero T
	stream, err := filesystem.OpenDecoded(ctx, p.backend, entry.Name, p.cfg.Source.Compression)
	if err != nil {
		return zero, err
	}
	defer stream.Close()
	return fn(stream)
}
