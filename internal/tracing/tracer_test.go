package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())

	// Spans from a no-op tracer are invalid but safe to use.
	_, span := p.Tracer().Start(context.Background(), "pool.generation")
	span.End()
	require.False(t, span.SpanContext().IsValid())

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestFileExporterRequiresPath(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: "file"})
	require.Error(t, err)
}

func TestUnknownExporterRejected(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: "carrier-pigeon"})
	require.Error(t, err)
}

func TestFileExporterWritesSpanRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "traces.jsonl")

	p, err := NewProvider(Config{
		Enabled:    true,
		Exporter:   "file",
		FilePath:   path,
		SampleRate: 1.0,
	})
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "pool.generation")
	span.SetAttributes(
		attribute.String(AttrRunID, "run-123"),
		attribute.Int(AttrTaskCount, 4),
	)
	span.AddEvent(EventPaused)
	time.Sleep(time.Millisecond)
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "exporter wrote no spans")

	var record SpanRecord
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
	require.Equal(t, "pool.generation", record.Name)
	require.Equal(t, "run-123", record.Attributes[AttrRunID])
	require.Greater(t, record.DurationMs, 0.0)
	require.Len(t, record.Events, 1)
	require.Equal(t, EventPaused, record.Events[0].Name)
}

func TestFileExporterShutdownIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exporter, err := NewFileExporter(path)
	require.NoError(t, err)

	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()))
}
