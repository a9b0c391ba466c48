package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightassist/skyguard/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

func TestSinkEmitAppendsOneLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	sink := NewSink(path, testLogger(t))

	now := time.Unix(1700000000, 0)
	b := NewBuilder(CategoryGuardrailPass, now).WithContext(map[string]interface{}{"airport": "KDEN"})
	b.Log("input", map[string]interface{}{"wind": "220 @ 10"})
	sink.Emit(b.Build())

	b2 := NewBuilder(CategorySafeFail, now)
	sink.Emit(b2.Build())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, CategoryGuardrailPass, rec.Category)
	assert.Equal(t, "KDEN", rec.Context["airport"])
	require.Len(t, rec.Events, 1)
	assert.Equal(t, "input", rec.Events[0].Type)
}

func TestSinkConcurrentWritesSerialize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	sink := NewSink(path, testLogger(t))

	var wg sync.WaitGroup
	n := 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Emit(NewBuilder(CategoryFetch, time.Now()).Build())
		}()
	}
	wg.Wait()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		count++
	}
	assert.Equal(t, n, count)
}

func TestNewTraceIDFormat(t *testing.T) {
	id := NewTraceID(time.Unix(1700000000, 0))
	assert.Contains(t, id, "-")
}
