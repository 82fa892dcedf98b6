package spot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/spot-sdk/internal/protocol"
)

// Program is a named, ordered sequence of commands submitted as one unit.
type Program struct {
	Name     string    `json:"name"`
	Commands []Command `json:"commands"`
}

func (p *Program) append(cmd Command) {
	p.Commands = append(p.Commands, cmd)
}

func (p Program) request() protocol.ProgramRequest {
	records := make([]protocol.CommandRecord, 0, len(p.Commands))
	for _, cmd := range p.Commands {
		records = append(records, cmd.record())
	}
	return protocol.ProgramRequest{Name: p.Name, Commands: records}
}

// ProgramRecord is what a ProgramRecorder receives after each flush.
type ProgramRecord struct {
	Program     Program
	Valid       bool
	Err         error
	SubmittedAt time.Time
}

// ProgramRecorder keeps a copy of flushed programs.
type ProgramRecorder interface {
	Record(rec ProgramRecord) error
}

// ProgramStore submits programs to the control server.
type ProgramStore struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewProgramStore executes the newProgramStore function.
func NewProgramStore(url string, client *http.Client, logger *zap.Logger) *ProgramStore {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramStore{url: url, client: client, logger: logger}
}

// Submit posts the program and returns the validity flag the server reports.
// A valid=false answer is a successful call.
func (s *ProgramStore) Submit(ctx context.Context, program Program) (bool, error) {
	body, err := json.Marshal(program.request())
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return false, &TransportError{Op: "submit program", URL: s.url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	valid, err := doValidRequest(s.client, req, "submit program")
	if err != nil {
		s.logger.Warn("program submission failed",
			zap.String("program", program.Name),
			zap.Int("commands", len(program.Commands)),
			zap.Error(err),
		)
		return false, err
	}
	s.logger.Info("program submitted",
		zap.String("program", program.Name),
		zap.Int("commands", len(program.Commands)),
		zap.Bool("valid", valid),
	)
	return valid, nil
}

func doValidRequest(client *http.Client, req *http.Request, op string) (bool, error) {
	url := req.URL.String()
	resp, err := client.Do(req)
	if err != nil {
		return false, &TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(bytes.TrimSpace(payload))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return false, &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	var decoded protocol.ValidResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return false, &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	if decoded.Valid == nil {
		return false, &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: errors.New("response has no valid field")}
	}
	return *decoded.Valid, nil
}
