package xtest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/ronakrm/promptrelay/llm"
	"github.com/ronakrm/promptrelay/llm/httpclient"
)

// LoadTestData reads testdata/<name> and unmarshals it into v.
func LoadTestData(t *testing.T, name string, v any) error {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		return fmt.Errorf("failed to read test data %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal test data %s: %w", name, err)
	}

	return nil
}

// LoadStreamChunks reads a jsonl recording of a provider event stream.
// Each line is one event payload; the event type is taken from the payload's
// "type" field when present. Non-JSON lines such as the OpenAI [DONE]
// sentinel are passed through as data only.
func LoadStreamChunks(t *testing.T, name string) ([]*httpclient.StreamEvent, error) {
	t.Helper()

	return loadLines(name, func(line []byte) (*httpclient.StreamEvent, error) {
		event := &httpclient.StreamEvent{Data: line}
		if gjson.ValidBytes(line) {
			event.Type = gjson.GetBytes(line, "type").String()
		}

		return event, nil
	})
}

// LoadLlmResponses reads a jsonl recording of unified stream responses.
func LoadLlmResponses(t *testing.T, name string) ([]*llm.Response, error) {
	t.Helper()

	return loadLines(name, func(line []byte) (*llm.Response, error) {
		response := &llm.Response{}
		if err := json.Unmarshal(line, response); err != nil {
			return nil, fmt.Errorf("invalid response line %q: %w", line, err)
		}

		return response, nil
	})
}

func loadLines[T any](name string, parse func(line []byte) (T, error)) ([]T, error) {
	file, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		return nil, fmt.Errorf("failed to open test data %s: %w", name, err)
	}
	defer file.Close()

	var items []T

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		item, err := parse([]byte(line))
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan test data %s: %w", name, err)
	}

	return items, nil
}
