package airtable

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrDataSource matches every *DataSourceError through errors.Is.
	ErrDataSource = errors.New("airtable: data source error")
	// ErrRecordNotFound is wrapped by a DataSourceError for 404 responses.
	ErrRecordNotFound = errors.New("airtable: record not found")
)

// DataSourceError reports a failed or rejected Airtable call.
type DataSourceError struct {
	Op         string
	Table      string
	StatusCode int
	Type       string
	Message    string
	Err        error
}

func (e *DataSourceError) Error() string {
	msg := fmt.Sprintf("airtable: %s %s", e.Op, e.Table)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Type != "" {
		msg += ": " + e.Type
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil && !errors.Is(e.Err, ErrRecordNotFound) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataSourceError) Unwrap() error { return e.Err }

func (e *DataSourceError) Is(target error) bool { return target == ErrDataSource }

// newStatusError decodes Airtable's error body. It comes either as
// {"error": "NOT_FOUND"} or {"error": {"type": "...", "message": "..."}}.
func newStatusError(op, table string, status int, payload []byte) *DataSourceError {
	e := &DataSourceError{Op: op, Table: table, StatusCode: status}
	if status == http.StatusNotFound {
		e.Err = ErrRecordNotFound
	}

	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Error) == 0 {
		e.Message = http.StatusText(status)
		return e
	}

	var asString string
	if err := json.Unmarshal(body.Error, &asString); err == nil {
		e.Type = asString
		return e
	}

	var asObject struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body.Error, &asObject); err == nil {
		e.Type = asObject.Type
		e.Message = asObject.Message
	}
	return e
}
