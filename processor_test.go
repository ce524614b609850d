// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.WorkerTimeout = 30 * time.Second
	return cfg
}

func TestProcessor_Extract(t *testing.T) {
	proc := NewProcessor(testConfig())

	text, truncated, err := proc.Extract(context.Background(), td("pdf_test.pdf"))
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Contains(t, text, "Fixture Title")
	assert.Contains(t, text, "SP2")
	assert.Contains(t, text, "SP3")
}

func TestProcessor_Extract_Truncation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalChars = 10
	proc := NewProcessor(cfg)

	text, truncated, err := proc.Extract(context.Background(), td("pdf_test.pdf"))
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.LessOrEqual(t, len(text), 10)
}

func TestProcessor_Extract_MissingFile(t *testing.T) {
	proc := NewProcessor(testConfig())
	_, _, err := proc.Extract(context.Background(), td("no_such_file.pdf"))
	assert.Error(t, err)
}

func TestProcessor_ExtractAsStream(t *testing.T) {
	proc := NewProcessor(testConfig())

	ch, _, err := proc.ExtractAsStream(context.Background(), td("pdf_test.pdf"))
	require.NoError(t, err)

	var sb strings.Builder
	for chunk := range ch {
		sb.WriteString(chunk)
	}
	text := sb.String()
	assert.Contains(t, text, "Fixture Title")
	assert.Contains(t, text, "SP3")
}

func TestProcessor_ParallelMatchesSequential(t *testing.T) {
	// Parallel page extraction joined in index order must be
	// byte-identical to sequential extraction.
	seqCfg := testConfig()
	seqCfg.MaxWorkersPerPDF = 1
	seq := NewProcessor(seqCfg)

	parCfg := testConfig()
	parCfg.MaxWorkersPerPDF = 4
	par := NewProcessor(parCfg)

	want, _, err := seq.Extract(context.Background(), td("pdf_test.pdf"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		got, _, err := par.Extract(context.Background(), td("pdf_test.pdf"))
		require.NoError(t, err)
		assert.Equal(t, want, got, "parallel output must be byte-identical to sequential")
	}
}

func TestProcessor_StrictModeOnDamagedFile(t *testing.T) {
	// A file with a broken startxref fails strict extraction but
	// succeeds in best-effort mode.
	pdf := simplePagePDF("BT /F1 12 Tf 10 700 Td (Survives) Tj ET")
	i := bytes.LastIndex(pdf, []byte("startxref"))
	broken := append(append([]byte{}, pdf[:i]...), []byte("startxref\n3\n%%EOF\n")...)

	dir := t.TempDir()
	path := dir + "/broken.pdf"
	require.NoError(t, writeFile(path, broken))

	strictCfg := testConfig()
	strictCfg.ParsingMode = Strict
	_, _, err := NewProcessor(strictCfg).Extract(context.Background(), path)
	assert.Error(t, err)

	text, _, err := NewProcessor(testConfig()).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Survives")
}

func TestProcessor_Metadata(t *testing.T) {
	proc := NewProcessor(testConfig())

	var buf bytes.Buffer
	require.NoError(t, proc.Metadata(context.Background(), td("pdf_test.pdf"), &buf))

	var meta MetadataFull
	require.NoError(t, json.Unmarshal(buf.Bytes(), &meta))
	assert.Equal(t, "Extraction Fixture", meta.Title)
	assert.Equal(t, 3, meta.NPages)
}

func TestAdjustWorkerCount(t *testing.T) {
	proc := NewProcessor(testConfig())
	assert.Equal(t, 1, proc.adjustWorkerCount(0))
	assert.GreaterOrEqual(t, proc.adjustWorkerCount(2), 1)
}

func TestStreamInOrder_Ordering(t *testing.T) {
	proc := NewProcessor(testConfig())
	results := make(chan pageResult, 3)
	// Deliver out of order; collection must reassemble 1, 2, 3.
	results <- pageResult{index: 2, text: "two "}
	results <- pageResult{index: 3, text: "three"}
	results <- pageResult{index: 1, text: "one "}
	close(results)

	outCh := make(chan string, 3)
	done := make(chan struct{})
	var got []string
	go func() {
		defer close(done)
		for s := range outCh {
			got = append(got, s)
		}
	}()
	proc.streamInOrder(results, outCh)
	close(outCh)
	<-done

	assert.Equal(t, []string{"one ", "two ", "three"}, got)
}

func TestNewProcessor_InvalidConfigPanics(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPDFs = 0
	assert.Panics(t, func() { NewProcessor(cfg) })
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
